package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pharmaspot/internal/config"
	"pharmaspot/internal/models"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Open connects to the configured database and returns a ready gorm handle.
// SQLite is opened with WAL and foreign keys; server databases are retried
// a few times so the API can start alongside its database container.
func Open(ctx context.Context, cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	var db *gorm.DB
	attempts := 1
	if cfg.Driver != "sqlite" {
		attempts = connectAttempts
	}
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to database. Retrying in %s... (%d/%d)", connectBackoff, i+1, attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	configurePool(sqlDB, cfg.Driver)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// SQLiteDSN adds the pragmas every connection needs. Times are written in
// a fixed UTC layout so range queries can compare them as text.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func configurePool(sqlDB *sql.DB, driver string) {
	if driver == "" || driver == "sqlite" {
		// One writer at a time; WAL still lets the single connection read
		// consistently while a checkout commits.
		sqlDB.SetMaxOpenConns(1)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
