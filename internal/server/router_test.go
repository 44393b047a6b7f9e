package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pharmaspot/internal/auth"
	"pharmaspot/internal/config"
	"pharmaspot/internal/database"
	"pharmaspot/internal/handlers"
	"pharmaspot/internal/inventory"
	"pharmaspot/internal/ledger"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

const adminPassword = "Adm1n!strator"

func init() {
	gin.SetMode(gin.TestMode)
}

type session struct {
	UserID int64
	Token  string
}

type testEnv struct {
	t      *testing.T
	router *Router
	store  *database.Store
	auth   *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(context.Background(),
		config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "api.db")}, "silent")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	store := database.New(db)
	authSvc, err := auth.NewService(store, config.AuthConfig{
		SessionSecret: "test-secret",
		BcryptCost:    bcrypt.MinCost,
		MaxAttempts:   5,
		Lockout:       15 * time.Minute,
		SessionTTL:    8 * time.Hour,
	})
	require.NoError(t, err)

	h := &handlers.Handler{
		Store:   store,
		Auth:    authSvc,
		Ledger:  ledger.NewService(store, inventory.NewService(store, false)),
		AppName: "PharmaSpot",
		Version: "test",
	}
	cfg := config.Config{
		Env:         "test",
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   config.RateLimitConfig{Enabled: false},
		Telemetry:   config.TelemetryConfig{ServiceName: "pharmaspot-test"},
	}
	return &testEnv{t: t, router: New(cfg, logging.Discard(), h, authSvc), store: store, auth: authSvc}
}

func (e *testEnv) do(method, path string, body any, s *session) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		req.Header.Set("X-User-Id", fmt.Sprint(s.UserID))
		req.Header.Set("X-Session-Token", s.Token)
	}
	rec := httptest.NewRecorder()
	e.router.Engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *testEnv) login(username, password string) *session {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/users/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		ID      int64 `json:"id"`
		Auth    bool  `json:"auth"`
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}](e.t, rec)
	require.True(e.t, body.Auth)
	return &session{UserID: body.ID, Token: body.Session.Token}
}

// admin creates the administrator and completes the first password change.
func (e *testEnv) admin() *session {
	e.t.Helper()
	temp, err := e.auth.EnsureAdmin(context.Background())
	require.NoError(e.t, err)
	s := e.login("admin", temp)
	rec := e.do(http.MethodPost, "/api/users/change-password",
		map[string]string{"currentPassword": temp, "newPassword": adminPassword}, s)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return s
}

func (e *testEnv) user(username string, perms models.PermissionSet) *session {
	e.t.Helper()
	hash, err := auth.HashPassword(adminPassword, bcrypt.MinCost)
	require.NoError(e.t, err)
	u := &models.User{Username: username, PasswordHash: hash}
	perms.Apply(u)
	require.NoError(e.t, e.store.CreateUser(context.Background(), u))
	return e.login(username, adminPassword)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, false, body["assistant"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestNoRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/nothing-here", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Error)

	// the assistant is not mounted without a key
	s := env.admin()
	rec = env.do(http.MethodPost, "/api/assistant/ask", map[string]string{"message": "hi"}, s)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFirstLoginMustChangePassword(t *testing.T) {
	env := newTestEnv(t)
	temp, err := env.auth.EnsureAdmin(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/users/check", nil, nil).Code)

	rec := env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "admin", "password": temp}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["auth"])
	assert.Equal(t, true, body["must_change_password"])
	assert.NotContains(t, body, "password")
	s := &session{UserID: models.AdminUserID, Token: body["session"].(map[string]any)["token"].(string)}

	rec = env.do(http.MethodGet, "/api/inventory/products", nil, s)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PASSWORD_CHANGE_REQUIRED", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/users/me/permissions", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AllPermissions(), decode[models.PermissionSet](t, rec))

	rec = env.do(http.MethodPost, "/api/users/change-password", map[string]string{"newPassword": "weak"}, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/users/change-password", map[string]string{"newPassword": adminPassword}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/inventory/products", nil, s)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.admin()

	rec := env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "admin"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_CREDENTIALS", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "ghost", "password": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"auth":false,"message":"Invalid credentials"}`, rec.Body.String())

	for i := 1; i <= 4; i++ {
		rec = env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "admin", "password": "wrong"}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}
	rec = env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t,
		`{"auth":false,"message":"Account locked due to too many failed attempts. Try again in 15 minutes."}`,
		rec.Body.String())

	// correct password is still refused while locked
	rec = env.do(http.MethodPost, "/api/users/login", map[string]string{"username": "admin", "password": adminPassword}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["message"], "Account is locked until")
}

func TestSessionGate(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	rec := env.do(http.MethodGet, "/api/inventory/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REQUIRED", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/inventory/products", nil, &session{UserID: 2, Token: s.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/users/logout/1", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/inventory/products", nil, s)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", decode[errorBody](t, rec).Error)
}

func TestPermissionGates(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin()
	cashier := env.user("cashier", models.PermissionSet{})

	tests := []struct {
		method, path string
		body         any
		code         string
	}{
		{http.MethodPost, "/api/inventory/product", map[string]any{"name": "X"}, "PERMISSION_DENIED"},
		{http.MethodDelete, "/api/inventory/product/1", nil, "PERMISSION_DENIED"},
		{http.MethodGet, "/api/transactions/all", nil, "PERMISSION_DENIED"},
		{http.MethodPost, "/api/transactions/delete", map[string]any{"orderId": "x"}, "PERMISSION_DENIED"},
		{http.MethodPost, "/api/categories/category", map[string]any{"name": "X"}, "PERMISSION_DENIED"},
		{http.MethodPost, "/api/settings/post", map[string]any{"store": "X"}, "PERMISSION_DENIED"},
		{http.MethodPost, "/api/users/post", map[string]any{"username": "x"}, "PERMISSION_DENIED"},
		{http.MethodGet, "/api/reports/sales", nil, "PERMISSION_DENIED"},
		{http.MethodGet, "/api/users/all", nil, "ADMIN_REQUIRED"},
		{http.MethodGet, "/api/audit", nil, "ADMIN_REQUIRED"},
		{http.MethodGet, "/api/users/logout/1", nil, "PERMISSION_DENIED"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, cashier)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Error)
		})
	}

	// reads stay open to any session
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/inventory/products", nil, cashier).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/transactions/on-hold", nil, cashier).Code)

	rec := env.do(http.MethodDelete, "/api/users/user/1", nil, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CANNOT_DELETE_ADMIN", decode[errorBody](t, rec).Error)
}

type productBody struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	StockDisplay string  `json:"stock_display"`
}

type txnBody struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Items  []struct {
		ID          int64   `json:"id"`
		ProductName string  `json:"product_name"`
		Price       float64 `json:"price"`
		Quantity    int     `json:"quantity"`
	} `json:"items"`
}

func TestSaleDecrementsStock(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	rec := env.do(http.MethodPost, "/api/inventory/product", map[string]any{
		"name": "Aspirin", "price": 5, "cost_price": 2.5, "quantity": 100, "barcode": "4001",
	}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	aspirin := decode[productBody](t, rec)
	require.NotZero(t, aspirin.ID)

	rec = env.do(http.MethodPost, "/api/transactions/new", map[string]any{
		"id": "sale-1", "status": 1, "total": 50, "paid": 50, "till": 1,
		"items": []map[string]any{{"id": aspirin.ID, "product_name": "Aspirin", "price": 5, "quantity": 10}},
	}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/inventory/product/%d", aspirin.ID), nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[productBody](t, rec)
	assert.Equal(t, 90, got.Quantity)
	assert.Equal(t, "90", got.StockDisplay)

	rec = env.do(http.MethodGet, "/api/inventory/product/barcode/4001", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aspirin.ID, decode[productBody](t, rec).ID)

	rec = env.do(http.MethodGet, "/api/transactions/sale-1", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	txn := decode[txnBody](t, rec)
	require.Len(t, txn.Items, 1)
	assert.Equal(t, aspirin.ID, txn.Items[0].ID)
	assert.Equal(t, "Aspirin", txn.Items[0].ProductName)
	assert.Equal(t, 5.0, txn.Items[0].Price)
	assert.Equal(t, 10, txn.Items[0].Quantity)

	// a held order does not touch stock
	rec = env.do(http.MethodPost, "/api/transactions/new", map[string]any{
		"id": "hold-1", "status": 0, "total": 25, "paid": 0, "ref_number": "H-1",
		"items": []map[string]any{{"id": aspirin.ID, "product_name": "Aspirin", "price": 5, "quantity": 5}},
	}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/inventory/product/%d", aspirin.ID), nil, s)
	assert.Equal(t, 90, decode[productBody](t, rec).Quantity)

	rec = env.do(http.MethodGet, "/api/transactions/on-hold", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	held := decode[[]txnBody](t, rec)
	require.Len(t, held, 1)
	assert.Equal(t, "hold-1", held[0].ID)

	// deleting the sale does not restore stock
	rec = env.do(http.MethodPost, "/api/transactions/delete", map[string]any{"orderId": "sale-1"}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/inventory/product/%d", aspirin.ID), nil, s)
	assert.Equal(t, 90, decode[productBody](t, rec).Quantity)

	// the stock movement is in the audit log
	rec = env.do(http.MethodGet, "/api/audit?limit=50", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	var actions []string
	for _, a := range decode[[]models.AuditLog](t, rec) {
		actions = append(actions, a.Action)
	}
	assert.Contains(t, actions, models.ActionInventoryUpdated)
	assert.Contains(t, actions, models.ActionTransactionCreated)
}

func TestTransactions_Errors(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	rec := env.do(http.MethodGet, "/api/transactions/missing", nil, s)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/transactions/new", map[string]any{"status": 5, "total": 1, "paid": 1}, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/transactions/new", map[string]any{"id": "dup", "status": 0, "total": 1}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/transactions/new", map[string]any{"id": "dup", "status": 0, "total": 1}, s)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPut, "/api/transactions/new", map[string]any{"id": "nope", "status": 0}, s)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/transactions/delete", map[string]any{"orderId": 12345}, s)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/transactions/by-date?start=yesterday&end=2026-01-01", nil, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/transactions/by-date?start=2026-02-01&end=2026-01-01", nil, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactions_ByDate(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	for i, day := range []string{"2026-03-01T10:00:00Z", "2026-03-02T10:00:00Z", "2026-03-05T10:00:00Z"} {
		rec := env.do(http.MethodPost, "/api/transactions/new", map[string]any{
			"id": fmt.Sprintf("t%d", i), "date": day, "status": i % 2, "total": 10, "paid": 0, "till": i + 1,
		}, s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/api/transactions/by-date?start=2026-03-01&end=2026-03-02", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]txnBody](t, rec), 2)

	rec = env.do(http.MethodGet, "/api/transactions/by-date?start=2026-03-01&end=2026-03-31&status=1", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]txnBody](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	rec = env.do(http.MethodGet, "/api/transactions/by-date?start=2026-03-01&end=2026-03-31&till=3&user=0", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]txnBody](t, rec), 1)
}

func TestUsers(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin()

	rec := env.do(http.MethodPost, "/api/users/post", map[string]any{
		"username": "clerk", "fullname": "Clerk", "password": "Cl3rk!pass", "perm_transactions": "on",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}](t, rec)
	assert.Equal(t, "clerk", created.Username)

	rec = env.do(http.MethodPost, "/api/users/post", map[string]any{"username": "clerk", "password": "Cl3rk!pass"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USERNAME_EXISTS", decode[errorBody](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/users/post", map[string]any{"username": "weak", "password": "password"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/users/post", map[string]any{"id": 999, "username": "ghost"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/users/post", map[string]any{
		"id": fmt.Sprint(created.ID), "username": "clerk", "fullname": "Head Clerk", "perm_transactions": true, "perm_products": 1,
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/users/user/%d", created.ID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[map[string]any](t, rec)
	assert.Equal(t, "Head Clerk", u["fullname"])
	assert.Equal(t, true, u["perm_products"])
	assert.Equal(t, true, u["must_change_password"])
	assert.NotContains(t, u, "password")

	rec = env.do(http.MethodGet, "/api/users/all?limit=1", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Data  []map[string]any `json:"data"`
		Total int64            `json:"total"`
	}](t, rec)
	assert.Len(t, page.Data, 1)
	assert.EqualValues(t, 2, page.Total)

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/users/user/%d", created.ID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/users/user/%d", created.ID), nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	rec := env.do(http.MethodPost, "/api/categories/category", map[string]any{"name": "Analgesics"}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cat := decode[models.Category](t, rec)

	rec = env.do(http.MethodPost, "/api/categories/category", map[string]any{"name": "Analgesics"}, s)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPut, "/api/categories/category", map[string]any{"id": cat.ID, "name": "Pain relief"}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/categories/category/%d", cat.ID), nil, s)
	assert.Equal(t, "Pain relief", decode[models.Category](t, rec).Name)

	rec = env.do(http.MethodPost, "/api/inventory/product", map[string]any{
		"name": "Ibuprofen", "category_id": cat.ID, "price": 3, "cost_price": 1, "quantity": 4, "min_stock": 5,
	}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/inventory/product", map[string]any{"name": "Gauze", "price": 1, "tracks_stock": false}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "N/A", decode[productBody](t, rec).StockDisplay)

	rec = env.do(http.MethodPost, "/api/inventory/product", map[string]any{"name": "Bad", "price": -1}, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPost, "/api/inventory/product", map[string]any{"name": "Bad", "expiration_date": "31/12/2026"}, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/inventory/products?category=%d", cat.ID), nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data  []productBody `json:"data"`
		Total int64         `json:"total"`
	}](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Ibuprofen", list.Data[0].Name)

	rec = env.do(http.MethodGet, "/api/inventory/alerts", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[struct {
		LowStock []productBody `json:"low_stock"`
	}](t, rec)
	require.Len(t, alerts.LowStock, 1)
	assert.Equal(t, "Ibuprofen", alerts.LowStock[0].Name)

	rec = env.do(http.MethodGet, "/api/reports/valuation", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	val := decode[map[string]any](t, rec)
	assert.Equal(t, 4.0, val["grand_total"])

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/categories/category/%d", cat.ID), nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/categories/category/%d", cat.ID), nil, s)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// customers
	rec = env.do(http.MethodPost, "/api/customers/customer", map[string]any{"name": "Jane Roe", "phone": "555-0100"}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	cust := decode[models.Customer](t, rec)
	rec = env.do(http.MethodPut, "/api/customers/customer", map[string]any{"id": cust.ID, "name": "Jane Roe", "email": "jane@example.com"}, s)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/customers/all?q=jane", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@example.com")
	rec = env.do(http.MethodPost, "/api/customers/customer", map[string]any{"phone": "1"}, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/customers/customer/%d", cust.ID), nil, s)
	require.Equal(t, http.StatusOK, rec.Code)

	// settings
	rec = env.do(http.MethodPost, "/api/settings/post", map[string]any{
		"store": "Corner Pharmacy", "symbol": "$", "tax": 7.5, "charge_tax": "on",
	}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodGet, "/api/settings/get", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[struct {
		Settings struct {
			Store     string  `json:"store"`
			Tax       float64 `json:"tax"`
			ChargeTax bool    `json:"charge_tax"`
		} `json:"settings"`
	}](t, rec)
	assert.Equal(t, "Corner Pharmacy", st.Settings.Store)
	assert.Equal(t, 7.5, st.Settings.Tax)
	assert.True(t, st.Settings.ChargeTax)
}

func TestSalesReport(t *testing.T) {
	env := newTestEnv(t)
	s := env.admin()

	rec := env.do(http.MethodPost, "/api/transactions/new", map[string]any{
		"id": "r1", "date": "2026-06-10T12:00:00Z", "status": 1, "total": 30, "paid": 30,
		"items": []map[string]any{{"id": 77, "product_name": "Syrup", "price": 15, "quantity": 2}},
	}, s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/reports/sales?start=2026-06-01&end=2026-06-30", nil, s)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[struct {
		TotalRevenue float64 `json:"total_revenue"`
		TotalOrders  int64   `json:"total_orders"`
		TopSelling   []struct {
			ProductName string `json:"product_name"`
			Sold        int    `json:"sold"`
		} `json:"top_selling"`
	}](t, rec)
	assert.Equal(t, 30.0, report.TotalRevenue)
	assert.EqualValues(t, 1, report.TotalOrders)
	require.Len(t, report.TopSelling, 1)
	assert.Equal(t, 2, report.TopSelling[0].Sold)

	rec = env.do(http.MethodGet, "/api/reports/sales?start=2026-06-30&end=2026-06-01", nil, s)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
