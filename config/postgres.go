package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

// gormLogLevel keeps SQL logging quiet unless the service runs at debug.
func gormLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return gormLogger.Info
	case "error", "fatal", "panic":
		return gormLogger.Error
	default:
		return gormLogger.Warn
	}
}

func InitPostgres(cfg *Config) error {
	if cfg == nil || cfg.PostgresURI == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{
		Logger:  gormLogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	maxOpen, maxIdle := cfg.PGMaxOpenConns, cfg.PGMaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = min(10, maxOpen)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	PostgresDB = db
	return nil
}
