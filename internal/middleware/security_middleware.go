package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

const (
	HeaderUserID       = "X-User-Id"
	HeaderSessionToken = "X-Session-Token"

	identityKey = "identity"
)

// Authenticator resolves request credentials to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, userID int64, token string) (*auth.Identity, error)
}

// RequireSession checks the X-User-Id / X-Session-Token pair and stores the
// caller's identity for the handlers that follow.
func RequireSession(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Both headers are required
		rawID := c.GetHeader(HeaderUserID)
		token := c.GetHeader(HeaderSessionToken)
		if rawID == "" || token == "" {
			abort(c, apperr.Unauthorized("AUTH_REQUIRED", "Please provide valid authentication credentials"))
			return
		}
		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			abort(c, apperr.Unauthorized("AUTH_REQUIRED", "Please provide valid authentication credentials"))
			return
		}

		// 2. Validate the session
		id, err := a.Authenticate(c.Request.Context(), userID, token)
		if errors.Is(err, auth.ErrSessionInvalid) {
			abort(c, apperr.Unauthorized("SESSION_EXPIRED", "Please login again"))
			return
		}
		if err != nil {
			abort(c, apperr.Internal(err))
			return
		}

		// 3. Attribute writes and log lines to the caller
		ctx := c.Request.Context()
		ctx = database.WithActor(ctx, database.Actor{
			UserID:    id.UserID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", id.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Set(identityKey, id)

		c.Next()
	}
}

// CurrentIdentity returns the identity stored by RequireSession.
func CurrentIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

// RequirePasswordChanged blocks sessions that still owe a password change.
// Routes that let the user change it are registered without this guard.
func RequirePasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id != nil && id.MustChangePassword {
			abort(c, apperr.Forbidden("PASSWORD_CHANGE_REQUIRED", "You must change your default password before continuing"))
			return
		}
		c.Next()
	}
}

// RequirePermission is a secondary guard that checks one permission flag.
func RequirePermission(p models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil {
			abort(c, apperr.Unauthorized("AUTH_REQUIRED", "Please login first"))
			return
		}
		if !id.Has(p) {
			abort(c, apperr.Forbidden("PERMISSION_DENIED", "You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

// RequireAdmin only lets the administrator account through.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil {
			abort(c, apperr.Unauthorized("AUTH_REQUIRED", "Please login first"))
			return
		}
		if !id.IsAdmin() {
			abort(c, apperr.Forbidden("ADMIN_REQUIRED", "This action requires administrator privileges"))
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

func abort(c *gin.Context, err *apperr.Error) {
	_ = c.Error(err)
	c.Abort()
}
