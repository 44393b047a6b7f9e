// Package server wires the HTTP routes, their gates and the middleware stack.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/config"
	"pharmaspot/internal/handlers"
	"pharmaspot/internal/middleware"
	"pharmaspot/internal/models"
)

// Router is the gin engine plus the rate limiters it owns.
type Router struct {
	Engine   *gin.Engine
	limiters []*middleware.RateLimiter
}

// Sweep forgets idle rate-limit clients.
func (r *Router) Sweep() int {
	n := 0
	for _, l := range r.limiters {
		n += l.Sweep()
	}
	return n
}

func New(cfg config.Config, log *slog.Logger, h *handlers.Handler, authn middleware.Authenticator) *Router {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorHandler(cfg.IsProduction()))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderUserID, middleware.HeaderSessionToken},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Limit", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	rl := cfg.RateLimit
	loginLimiter := middleware.NewRateLimiter(middleware.Limit{
		Max: rl.LoginMax, Window: rl.LoginWindow,
		Message: "Too many login attempts, please try again later.",
	})
	apiLimiter := middleware.NewRateLimiter(middleware.Limit{Max: rl.APIMax, Window: rl.APIWindow})
	strictLimiter := middleware.NewRateLimiter(middleware.Limit{
		Max: rl.StrictMax, Window: rl.StrictWindow,
		Message: "Too many attempts for this operation, please try again later.",
	})

	r.GET("/", h.Health)
	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperr.NotFound("NOT_FOUND", "Route not found"))
	})

	api := r.Group("/api", apiLimiter.Handler(rl.Enabled))
	login := loginLimiter.Handler(rl.Enabled)
	strict := strictLimiter.Handler(rl.Enabled)

	// --- PUBLIC ROUTES ---
	api.POST("/users/login", login, h.Login)
	api.GET("/users/check", h.CheckAdmin)

	// --- SESSION ROUTES (reachable before the first password change) ---
	session := api.Group("", middleware.RequireSession(authn))
	session.GET("/users/logout/:userId", h.Logout)
	session.POST("/users/change-password", strict, h.ChangePassword)
	session.GET("/users/me/permissions", h.MyPermissions)

	// --- PROTECTED ROUTES ---
	authed := session.Group("", middleware.RequirePasswordChanged())
	perm := middleware.RequirePermission
	{
		users := authed.Group("/users")
		users.GET("/user/:userId", h.GetUser)
		users.POST("/post", perm(models.PermUsers), strict, h.SaveUser)

		tx := authed.Group("/transactions")
		tx.POST("/new", h.CreateTransaction)
		tx.PUT("/new", h.UpdateTransaction)
		tx.POST("/delete", perm(models.PermTransactions), h.DeleteTransaction)
		tx.GET("/all", perm(models.PermTransactions), h.ListTransactions)
		tx.GET("/by-date", perm(models.PermTransactions), h.TransactionsByDate)
		tx.GET("/on-hold", h.OnHold)
		tx.GET("/customer-orders", h.CustomerOrders)
		tx.GET("/:id", h.GetTransaction)

		inv := authed.Group("/inventory")
		inv.GET("/products", h.ListProducts)
		inv.GET("/product/:id", h.GetProduct)
		inv.GET("/product/barcode/:barcode", h.GetProductByBarcode)
		inv.GET("/alerts", h.StockAlerts)
		inv.POST("/product", perm(models.PermProducts), h.SaveProduct)
		inv.DELETE("/product/:id", perm(models.PermProducts), h.DeleteProduct)

		cat := authed.Group("/categories")
		cat.GET("/all", h.ListCategories)
		cat.GET("/category/:id", h.GetCategory)
		cat.POST("/category", perm(models.PermCategories), h.CreateCategory)
		cat.PUT("/category", perm(models.PermCategories), h.UpdateCategory)
		cat.DELETE("/category/:id", perm(models.PermCategories), h.DeleteCategory)

		cust := authed.Group("/customers")
		cust.GET("/all", h.ListCustomers)
		cust.GET("/customer/:id", h.GetCustomer)
		cust.POST("/customer", h.CreateCustomer)
		cust.PUT("/customer", h.UpdateCustomer)
		cust.DELETE("/customer/:id", h.DeleteCustomer)

		settings := authed.Group("/settings")
		settings.GET("/get", h.GetSettings)
		settings.POST("/post", perm(models.PermSettings), h.SaveSettings)

		reports := authed.Group("/reports")
		reports.GET("/sales", perm(models.PermTransactions), h.SalesReport)
		reports.GET("/valuation", perm(models.PermProducts), h.StockValuation)

		// ADMIN ONLY
		admin := authed.Group("", middleware.RequireAdmin())
		admin.GET("/users/all", h.ListUsers)
		admin.DELETE("/users/user/:userId", h.DeleteUser)
		admin.GET("/audit", h.AuditLog)
		if h.Assistant != nil {
			admin.POST("/assistant/ask", h.AskAssistant)
		}
	}

	return &Router{Engine: r, limiters: []*middleware.RateLimiter{loginLimiter, apiLimiter, strictLimiter}}
}

// Server builds the http.Server for the router.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
