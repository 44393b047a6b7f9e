package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what a session token carries: the user and the session row
// it belongs to.
type Claims struct {
	UserID    int64  `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with HS256.
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

// NewTokenIssuer uses secret as the signing key. With an empty secret a
// random key is generated, so tokens do not survive a restart.
func NewTokenIssuer(secret string, now func() time.Time) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{key: key, now: now}, nil
}

// Generate creates a signed token for the session, valid until expiresAt.
func (i *TokenIssuer) Generate(userID int64, sessionID string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// Validate checks the signature and expiry of a token.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
