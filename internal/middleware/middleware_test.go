package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/database"
	"pharmaspot/internal/inventory"
	"pharmaspot/internal/ledger"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	ids map[string]*auth.Identity
	err error
}

func (f *fakeAuth) Authenticate(_ context.Context, userID int64, token string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.ids[token]
	if !ok || id.UserID != userID {
		return nil, auth.ErrSessionInvalid
	}
	return id, nil
}

type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func do(r http.Handler, method, path string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func creds(id int64, token string) map[string]string {
	return map[string]string{HeaderUserID: fmt.Sprint(id), HeaderSessionToken: token}
}

func newGatedRouter(a Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(true))
	okHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": CurrentIdentity(c).UserID})
	}
	s := r.Group("", RequireSession(a))
	s.GET("/exempt", okHandler)
	g := s.Group("", RequirePasswordChanged())
	g.GET("/open", okHandler)
	g.GET("/products", RequirePermission(models.PermProducts), okHandler)
	g.GET("/admin", RequireAdmin(), okHandler)
	return r
}

func TestRequireSession(t *testing.T) {
	a := &fakeAuth{ids: map[string]*auth.Identity{
		"cashier": {UserID: 7, Username: "cashier"},
	}}
	r := newGatedRouter(a)

	rec, body := do(r, http.MethodGet, "/open", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REQUIRED", body.Error)

	rec, body = do(r, http.MethodGet, "/open", map[string]string{HeaderUserID: "seven", HeaderSessionToken: "cashier"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REQUIRED", body.Error)

	rec, body = do(r, http.MethodGet, "/open", creds(7, "stale"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", body.Error)
	assert.Equal(t, "Please login again", body.Message)

	rec, _ = do(r, http.MethodGet, "/open", creds(7, "cashier"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":7}`, rec.Body.String())
}

func TestRequireSession_StoreFailureIs500(t *testing.T) {
	r := newGatedRouter(&fakeAuth{err: errors.New("disk I/O error")})
	rec, body := do(r, http.MethodGet, "/open", creds(7, "x"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.Error)
	assert.NotContains(t, body.Message, "disk", "production hides the cause")
}

func TestGates(t *testing.T) {
	a := &fakeAuth{ids: map[string]*auth.Identity{
		"admin":   {UserID: models.AdminUserID, Permissions: models.AllPermissions()},
		"cashier": {UserID: 7},
		"stock":   {UserID: 8, Permissions: models.PermissionSet{Products: true}},
		"fresh":   {UserID: 9, MustChangePassword: true, Permissions: models.AllPermissions()},
	}}
	r := newGatedRouter(a)

	tests := []struct {
		name   string
		path   string
		id     int64
		token  string
		status int
		code   string
	}{
		{"permission missing", "/products", 7, "cashier", http.StatusForbidden, "PERMISSION_DENIED"},
		{"permission granted", "/products", 8, "stock", http.StatusOK, ""},
		{"admin only", "/admin", 8, "stock", http.StatusForbidden, "ADMIN_REQUIRED"},
		{"admin", "/admin", models.AdminUserID, "admin", http.StatusOK, ""},
		{"must change password", "/open", 9, "fresh", http.StatusForbidden, "PASSWORD_CHANGE_REQUIRED"},
		{"must change password exempt", "/exempt", 9, "fresh", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(r, http.MethodGet, tt.path, creds(tt.id, tt.token))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("get: %w", database.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{database.ErrConflict, http.StatusConflict, "CONFLICT"},
		{database.ErrProtected, http.StatusForbidden, "PROTECTED"},
		{fmt.Errorf("%w: product 3", inventory.ErrInsufficientStock), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{fmt.Errorf("%w: status must be 0 or 1", ledger.ErrInvalid), http.StatusBadRequest, "VALIDATION_ERROR"},
		{auth.ValidatePassword("short"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{auth.ErrWrongPassword, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD"},
		{auth.ErrSamePassword, http.StatusBadRequest, "SAME_PASSWORD"},
		{auth.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED"},
		{&auth.LockedError{Until: time.Now().Add(time.Minute)}, http.StatusForbidden, "ACCOUNT_LOCKED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ae := Classify(tt.err)
			assert.Equal(t, tt.status, ae.Status)
			assert.Equal(t, tt.code, ae.Code)
		})
	}

	ae := Classify(auth.ValidatePassword("short"))
	assert.Equal(t, "password must be at least 8 characters long", ae.Message)
}

func TestErrorHandler_DevelopmentShowsCause(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) { _ = c.Error(errors.New("no such table: inventory")) })

	rec, body := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.Error)
	assert.Equal(t, "no such table: inventory", body.Message)
}

func TestErrorHandler_LeavesWrittenResponses(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.New("ignored"))
		c.JSON(http.StatusTeapot, gin.H{"ok": true})
	})
	rec, _ := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(Limit{Max: 2, Window: time.Minute, Message: "slow down"})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(ErrorHandler(true))
	r.GET("/", rl.Handler(true), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		rec, _ := do(r, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec, body := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_many_requests", body.Error)
	assert.Equal(t, "slow down", body.Message)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	// one token refills every window/max
	now = now.Add(30 * time.Second)
	rec, _ = do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, rl.Sweep())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(Limit{Max: 1, Window: time.Hour})
	r := gin.New()
	r.GET("/", rl.Handler(false), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 5; i++ {
		rec, _ := do(r, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRequestLoggerAndSecurityHeaders(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logging.NewWithWriter(&buf, "info")))
	r.Use(SecurityHeaders())
	r.GET("/ping", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusOK)
	})

	rec, _ := do(r, http.MethodGet, "/ping", map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first, last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, "inside handler", first["msg"])
	assert.Equal(t, "req-1", first["request_id"])
	assert.Equal(t, "request completed", last["msg"])
	assert.EqualValues(t, 200, last["status"])
	assert.Equal(t, "/ping", last["path"])
}
