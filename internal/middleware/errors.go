package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/database"
	"pharmaspot/internal/inventory"
	"pharmaspot/internal/ledger"
	"pharmaspot/internal/logging"
)

// ErrorHandler renders the last error attached with c.Error as
// {"error": code, "message": text}. Outside production the cause of a 500
// is included in the message.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ae := Classify(err)

		msg := ae.Message
		if ae.Status >= http.StatusInternalServerError {
			logging.FromContext(c.Request.Context()).Error("request failed",
				"path", c.FullPath(), "error", err.Error())
			if !production && ae.Err != nil {
				msg = ae.Err.Error()
			}
		}
		c.JSON(ae.Status, gin.H{"error": ae.Code, "message": msg})
	}
}

// Classify maps any error onto the API's error envelope.
func Classify(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}

	var locked *auth.LockedError
	var policy *auth.PolicyError
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("NOT_FOUND", "Resource not found")
	case errors.Is(err, database.ErrConflict):
		return apperr.Conflict("CONFLICT", "Resource already exists")
	case errors.Is(err, database.ErrProtected):
		return apperr.Forbidden("PROTECTED", "This record cannot be removed")
	case errors.Is(err, inventory.ErrInsufficientStock):
		return apperr.Conflict("INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, ledger.ErrInvalid), errors.Is(err, auth.ErrInvalidInput):
		return apperr.Validation(err.Error())
	case errors.As(err, &policy):
		return apperr.Validation(policy.Reason)
	case errors.Is(err, auth.ErrWrongPassword):
		return apperr.New(http.StatusBadRequest, "INVALID_CURRENT_PASSWORD", "Current password is incorrect")
	case errors.Is(err, auth.ErrSamePassword):
		return apperr.New(http.StatusBadRequest, "SAME_PASSWORD", "New password must be different from current password")
	case errors.Is(err, auth.ErrSessionInvalid):
		return apperr.Unauthorized("SESSION_EXPIRED", "Please login again")
	case errors.Is(err, auth.ErrForbidden):
		return apperr.Forbidden("PERMISSION_DENIED", "You do not have permission to perform this action")
	case errors.As(err, &locked):
		return apperr.Forbidden("ACCOUNT_LOCKED", locked.Error())
	}
	return apperr.Internal(err)
}
