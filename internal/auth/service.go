// Package auth implements login with lockout, session tokens, password
// changes and user administration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pharmaspot/internal/config"
	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("session is invalid or expired")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSamePassword       = errors.New("new password must be different from current password")
	ErrForbidden          = errors.New("not allowed")
	ErrInvalidInput       = errors.New("invalid input")
)

// LockedError is returned while an account is locked out. JustLocked is
// set on the attempt that triggered the lock.
type LockedError struct {
	Until      time.Time
	JustLocked bool
	Lockout    time.Duration
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d minutes.", int(e.Lockout.Minutes()))
	}
	return fmt.Sprintf("Account is locked until %s. Too many failed attempts.", e.Until.UTC().Format(time.RFC3339))
}

type Service struct {
	store  *database.Store
	tokens *TokenIssuer
	cfg    config.AuthConfig
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *database.Store, cfg config.AuthConfig, opts ...Option) (*Service, error) {
	s := &Service{store: store, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.MaxAttempts < 1 {
		s.cfg.MaxAttempts = 5
	}
	if s.cfg.Lockout <= 0 {
		s.cfg.Lockout = 15 * time.Minute
	}
	if s.cfg.SessionTTL <= 0 {
		s.cfg.SessionTTL = 8 * time.Hour
	}
	if s.cfg.BcryptCost == 0 {
		s.cfg.BcryptCost = 12
	}
	tokens, err := NewTokenIssuer(cfg.SessionSecret, s.clock)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	return s, nil
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// --- login ---

type LoginInput struct {
	Login     string
	Password  string
	IP        string
	UserAgent string
}

type LoginResult struct {
	User               *models.User
	Token              string
	ExpiresAt          time.Time
	MustChangePassword bool
}

// Login checks credentials, applies the lockout policy and opens a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	now := s.clock()
	login := strings.TrimSpace(in.Login)
	ctx = database.WithActor(ctx, database.Actor{IP: in.IP, UserAgent: in.UserAgent})
	log := logging.FromContext(ctx)

	user, err := s.store.FindUserByLogin(ctx, login)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("login for unknown user", "identifier", login, "ip", in.IP)
		if aerr := s.store.Audit(ctx, &models.AuditLog{
			Action:   models.ActionLoginFailed,
			Table:    "users",
			NewValue: `{"identifier":` + strconv.Quote(login) + `}`,
		}); aerr != nil {
			return nil, aerr
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.IsLocked(now) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}

	if !CheckPassword(user.PasswordHash, in.Password) {
		return nil, s.recordFailure(ctx, user, now)
	}

	res := &LoginResult{User: user, MustChangePassword: user.MustChangePassword}
	err = s.store.WithTx(ctx, func(tx *database.Store) error {
		status := models.LoggedInStatus(now)
		if err := tx.UpdateUserColumns(ctx, user.ID, map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"status":                status,
			"last_login":            now,
		}); err != nil {
			return err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		user.Status = status
		user.LastLogin = &now

		sess := &models.Session{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			IPAddress: in.IP,
			UserAgent: in.UserAgent,
			ExpiresAt: now.Add(s.cfg.SessionTTL),
		}
		token, err := s.tokens.Generate(user.ID, sess.ID, sess.ExpiresAt)
		if err != nil {
			return err
		}
		sess.Token = token
		if err := tx.CreateSession(ctx, sess); err != nil {
			return err
		}
		res.Token = token
		res.ExpiresAt = sess.ExpiresAt

		return tx.Audit(ctx, userAudit(models.ActionUserLogin, user.ID))
	})
	if err != nil {
		return nil, err
	}
	log.Info("user logged in", "user_id", user.ID, "must_change_password", user.MustChangePassword)
	return res, nil
}

func (s *Service) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1
	if attempts >= s.cfg.MaxAttempts {
		until := now.Add(s.cfg.Lockout)
		err := s.store.WithTx(ctx, func(tx *database.Store) error {
			if err := tx.UpdateUserColumns(ctx, user.ID, map[string]any{
				"failed_login_attempts": attempts,
				"locked_until":          until,
			}); err != nil {
				return err
			}
			return tx.Audit(ctx, userAudit(models.ActionAccountLocked, user.ID))
		})
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Warn("account locked", "user_id", user.ID, "until", until)
		return &LockedError{Until: until, JustLocked: true, Lockout: s.cfg.Lockout}
	}

	err := s.store.WithTx(ctx, func(tx *database.Store) error {
		if err := tx.UpdateUserColumns(ctx, user.ID, map[string]any{"failed_login_attempts": attempts}); err != nil {
			return err
		}
		return tx.Audit(ctx, userAudit(models.ActionLoginFailed, user.ID))
	})
	if err != nil {
		return err
	}
	return ErrInvalidCredentials
}

// --- sessions ---

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID             int64
	Username           string
	SessionID          string
	Permissions        models.PermissionSet
	MustChangePassword bool
}

func (id *Identity) IsAdmin() bool { return id.UserID == models.AdminUserID }

func (id *Identity) Has(p models.Permission) bool { return id.Permissions.Has(p) }

// Authenticate resolves the X-User-Id / X-Session-Token pair of a request.
func (s *Service) Authenticate(ctx context.Context, userID int64, token string) (*Identity, error) {
	if userID <= 0 || token == "" {
		return nil, ErrSessionInvalid
	}
	claims, err := s.tokens.Validate(token)
	if err != nil || claims.UserID != userID {
		return nil, ErrSessionInvalid
	}

	sess, err := s.store.FindSession(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID || !sess.ExpiresAt.After(s.clock()) {
		return nil, ErrSessionInvalid
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if user.IsLoggedOut() {
		return nil, ErrSessionInvalid
	}

	return &Identity{
		UserID:             user.ID,
		Username:           user.Username,
		SessionID:          sess.ID,
		Permissions:        user.PermissionSet(),
		MustChangePassword: user.MustChangePassword,
	}, nil
}

// Logout marks the user logged out and drops all of their sessions.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	now := s.clock()
	return s.store.WithTx(ctx, func(tx *database.Store) error {
		if err := tx.UpdateUserColumns(ctx, userID, map[string]any{
			"status":     models.LoggedOutStatus(now),
			"last_login": nil,
		}); err != nil {
			return err
		}
		if err := tx.DeleteUserSessions(ctx, userID); err != nil {
			return err
		}
		return tx.Audit(ctx, userAudit(models.ActionUserLogout, userID))
	})
}

// CleanupSessions removes expired sessions.
func (s *Service) CleanupSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.clock())
}

// --- passwords ---

type ChangePasswordInput struct {
	Actor    *Identity
	TargetID int64 // zero means the actor
	Current  string
	New      string
}

// ChangePassword sets a new password. Changing another user's password
// needs the users permission; only the administrator changing their own
// password may skip the current one.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	target := in.TargetID
	if target == 0 {
		target = in.Actor.UserID
	}
	if target != in.Actor.UserID && !in.Actor.Has(models.PermUsers) {
		return ErrForbidden
	}
	if err := ValidatePassword(in.New); err != nil {
		return err
	}

	user, err := s.store.GetUser(ctx, target)
	if err != nil {
		return err
	}
	adminSelf := target == models.AdminUserID && in.Actor.UserID == models.AdminUserID
	if !adminSelf && !CheckPassword(user.PasswordHash, in.Current) {
		return ErrWrongPassword
	}
	if CheckPassword(user.PasswordHash, in.New) {
		return ErrSamePassword
	}

	hash, err := HashPassword(in.New, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx *database.Store) error {
		if err := tx.UpdateUserColumns(ctx, target, map[string]any{
			"password":             hash,
			"must_change_password": false,
		}); err != nil {
			return err
		}
		return tx.Audit(ctx, userAudit(models.ActionPasswordChanged, target))
	})
}

// --- administrator ---

// EnsureAdmin creates the administrator (user 1) with a random temporary
// password if it does not exist yet. The password is returned only when
// the account was created.
func (s *Service) EnsureAdmin(ctx context.Context) (string, error) {
	_, err := s.store.GetUser(ctx, models.AdminUserID)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	temp, err := TemporaryPassword()
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(temp, s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	admin := &models.User{
		ID:                 models.AdminUserID,
		Username:           "admin",
		Fullname:           "Administrator",
		PasswordHash:       hash,
		MustChangePassword: true,
	}
	models.AllPermissions().Apply(admin)
	if err := s.store.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, database.ErrConflict) {
			// created concurrently
			return "", nil
		}
		return "", err
	}
	logging.FromContext(ctx).Info("default admin user created; password must be changed on first login")
	return temp, nil
}

// ResetAdmin gives the administrator a new temporary password, clears any
// lockout and forces a password change on next login.
func (s *Service) ResetAdmin(ctx context.Context, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if _, err := s.EnsureAdmin(ctx); err != nil {
		return err
	}
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx *database.Store) error {
		if err := tx.UpdateUserColumns(ctx, models.AdminUserID, map[string]any{
			"password":              hash,
			"must_change_password":  true,
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"status":                "",
		}); err != nil {
			return err
		}
		if err := tx.DeleteUserSessions(ctx, models.AdminUserID); err != nil {
			return err
		}
		return tx.Audit(ctx, userAudit(models.ActionPasswordChanged, models.AdminUserID))
	})
}

// --- user administration ---

type UserInput struct {
	ID          int64
	Username    string
	Fullname    string
	Password    string
	Email       string
	Phone       string
	Permissions models.PermissionSet
}

// SaveUser creates a user when ID is zero and updates it otherwise. New
// users must change their password on first login. On update an empty
// password keeps the current one.
func (s *Service) SaveUser(ctx context.Context, in UserInput) (*models.User, bool, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, false, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if in.ID == 0 || in.Password != "" {
		if err := ValidatePassword(in.Password); err != nil {
			return nil, false, err
		}
	}

	var hash string
	if in.Password != "" {
		h, err := HashPassword(in.Password, s.cfg.BcryptCost)
		if err != nil {
			return nil, false, err
		}
		hash = h
	}

	if in.ID == 0 {
		u := &models.User{
			Username:           in.Username,
			Fullname:           strings.TrimSpace(in.Fullname),
			PasswordHash:       hash,
			Email:              strings.TrimSpace(in.Email),
			Phone:              strings.TrimSpace(in.Phone),
			MustChangePassword: true,
		}
		in.Permissions.Apply(u)
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, false, err
		}
		return u, true, nil
	}

	u, err := s.store.GetUser(ctx, in.ID)
	if err != nil {
		return nil, false, err
	}
	u.Username = in.Username
	u.Fullname = strings.TrimSpace(in.Fullname)
	u.Email = strings.TrimSpace(in.Email)
	u.Phone = strings.TrimSpace(in.Phone)
	if hash != "" {
		u.PasswordHash = hash
	}
	in.Permissions.Apply(u)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, false, nil
}

func userAudit(action string, userID int64) *models.AuditLog {
	return &models.AuditLog{
		UserID:   &userID,
		Action:   action,
		Table:    "users",
		RecordID: strconv.FormatInt(userID, 10),
	}
}
