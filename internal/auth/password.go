package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword matches every password strength failure.
var ErrWeakPassword = errors.New("weak password")

// PolicyError names the password rule that was broken.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string        { return e.Reason }
func (e *PolicyError) Is(target error) bool { return target == ErrWeakPassword }

func weak(format string, args ...any) error {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	specialChars   = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
)

var commonPasswords = map[string]bool{
	"password": true, "admin": true, "12345678": true, "qwerty123": true,
	"letmein": true, "welcome": true, "monkey": true, "dragon": true,
}

// ValidatePassword enforces the password rules for every account.
func ValidatePassword(pw string) error {
	n := len([]rune(pw))
	switch {
	case n < minPasswordLen:
		return weak("password must be at least %d characters long", minPasswordLen)
	case n > maxPasswordLen:
		return weak("password must not exceed %d characters", maxPasswordLen)
	case !strings.ContainsFunc(pw, unicode.IsUpper):
		return weak("password must contain at least one uppercase letter")
	case !strings.ContainsFunc(pw, unicode.IsLower):
		return weak("password must contain at least one lowercase letter")
	case !strings.ContainsFunc(pw, unicode.IsDigit):
		return weak("password must contain at least one number")
	case !strings.ContainsAny(pw, specialChars):
		return weak("password must contain at least one special character (!@#$%%^&*...)")
	case commonPasswords[strings.ToLower(pw)]:
		return weak("password is too common")
	}
	return nil
}

func HashPassword(pw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

const tempAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TemporaryPassword returns a random password that always satisfies
// ValidatePassword.
func TemporaryPassword() (string, error) {
	var sb strings.Builder
	sb.WriteString("Aa1!")
	max := big.NewInt(int64(len(tempAlphabet)))
	for i := 0; i < 12; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tempAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
