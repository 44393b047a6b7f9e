package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmaspot/internal/ai"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/config"
	"pharmaspot/internal/database"
	"pharmaspot/internal/handlers"
	"pharmaspot/internal/inventory"
	"pharmaspot/internal/ledger"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/server"
	"pharmaspot/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	logger := logging.New(cfg.LogLevel).With("app", cfg.AppName, "version", cfg.Version)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		log.Fatal("Failed to set up tracing: ", err)
	}

	// 1. Database
	db, err := database.Open(ctx, cfg.Database, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)
	store := database.New(db)

	// 2. Services
	authSvc, err := auth.NewService(store, cfg.Auth)
	if err != nil {
		log.Fatal("Failed to set up authentication: ", err)
	}
	if temp, err := authSvc.EnsureAdmin(ctx); err != nil {
		log.Fatal("Failed to create the administrator: ", err)
	} else if temp != "" && !cfg.IsProduction() {
		logger.Warn("temporary admin password issued; it will not be shown again", "password", temp)
	}
	stock := inventory.NewService(store, cfg.Inventory.PreventOversell)
	sales := ledger.NewService(store, stock)

	h := &handlers.Handler{
		Store:      store,
		Auth:       authSvc,
		Ledger:     sales,
		AppName:    cfg.AppName,
		Version:    cfg.Version,
		Production: cfg.IsProduction(),
	}
	if cfg.GeminiAPIKey != "" {
		h.Assistant = ai.NewAgent(store, cfg.GeminiAPIKey)
	} else {
		logger.Info("GEMINI_API_KEY not set, assistant disabled")
	}

	// 3. HTTP
	router := server.New(cfg, logger, h, authSvc)
	srv := router.Server(cfg.HTTPAddr)

	go housekeeping(ctx, authSvc, router, cfg.Auth.CleanupInterval)

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
}

// housekeeping purges expired sessions and idle rate-limit entries.
func housekeeping(ctx context.Context, a *auth.Service, r *server.Router, every time.Duration) {
	if every <= 0 {
		return
	}
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.CleanupSessions(ctx)
			if err != nil {
				log.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
			r.Sweep()
		}
	}
}
