package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the API server.
type Config struct {
	Env         string
	AppName     string
	Version     string
	HTTPAddr    string
	CORSOrigins []string
	LogLevel    string

	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Inventory InventoryConfig
	Telemetry TelemetryConfig

	GeminiAPIKey string
}

type DatabaseConfig struct {
	Driver string // sqlite | mysql | postgres
	Path   string // sqlite file
	DSN    string // mysql / postgres
}

type AuthConfig struct {
	SessionSecret   string
	BcryptCost      int
	MaxAttempts     int
	Lockout         time.Duration
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

// RateLimitConfig describes the three limiter tiers: login attempts, general
// API traffic and sensitive operations (password changes, user writes).
type RateLimitConfig struct {
	Enabled      bool
	LoginMax     int
	LoginWindow  time.Duration
	APIMax       int
	APIWindow    time.Duration
	StrictMax    int
	StrictWindow time.Duration
}

type InventoryConfig struct {
	PreventOversell bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Notice: no .env file found, using system environment variables")
	}

	cfg := Config{
		Env:         envStr("APP_ENV", "development"),
		AppName:     envStr("APP_NAME", "PharmaSpot"),
		Version:     envStr("APP_VERSION", "1.5.1"),
		HTTPAddr:    envStr("HTTP_ADDR", "127.0.0.1:8001"),
		CORSOrigins: envList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(envStr("DB_DRIVER", "sqlite")),
			Path:   envStr("DB_PATH", "data/pharmacy.db"),
			DSN:    os.Getenv("DB_DSN"),
		},
		Auth: AuthConfig{
			SessionSecret:   os.Getenv("SESSION_SECRET"),
			BcryptCost:      envInt("BCRYPT_COST", 12),
			MaxAttempts:     envInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			Lockout:         envDur("AUTH_LOCKOUT", 15*time.Minute),
			SessionTTL:      envDur("AUTH_SESSION_TTL", 8*time.Hour),
			CleanupInterval: envDur("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:      envBool("RATE_LIMIT_ENABLED", true),
			LoginMax:     envInt("RATE_LIMIT_LOGIN_MAX", 5),
			LoginWindow:  envDur("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			APIMax:       envInt("RATE_LIMIT_API_MAX", 100),
			APIWindow:    envDur("RATE_LIMIT_API_WINDOW", 15*time.Minute),
			StrictMax:    envInt("RATE_LIMIT_STRICT_MAX", 10),
			StrictWindow: envDur("RATE_LIMIT_STRICT_WINDOW", time.Hour),
		},
		Inventory: InventoryConfig{
			PreventOversell: envBool("INVENTORY_PREVENT_OVERSELL", false),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "pharmaspot-api"),
		},
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
	}
	return cfg
}

// IsProduction reports whether internal error details must be hidden.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate returns an error for settings the server cannot run with and
// logs warnings for weak but usable ones.
func (c Config) Validate() error {
	if c.Auth.BcryptCost < 10 {
		log.Printf("Warning: BCRYPT_COST=%d, should be at least 10", c.Auth.BcryptCost)
	}
	if c.Auth.SessionSecret == "" {
		if c.IsProduction() {
			return errors.New("SESSION_SECRET is required in production")
		}
		log.Println("Warning: SESSION_SECRET is empty, using an insecure development secret")
	}
	if c.Auth.MaxAttempts < 1 {
		return errors.New("AUTH_MAX_LOGIN_ATTEMPTS must be positive")
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			return errors.New("DB_DSN is required for driver " + c.Database.Driver)
		}
	default:
		return errors.New("unsupported DB_DRIVER " + c.Database.Driver)
	}
	return nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envList(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
