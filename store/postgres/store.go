// Package postgres opens a PostgreSQL-backed stockledger store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/stockledger/store/sqldb"
)

// Pool defaults.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultConnMaxIdleTime = time.Minute
)

// Options tunes the connection pool. Zero fields use the defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// LogLevel sets gorm's query logging. Zero is silent.
	LogLevel logger.LogLevel
}

// Open connects to dsn, tunes the pool and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*sqldb.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("stockledger/postgres: empty dsn")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("stockledger/postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("stockledger/postgres: sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpenConns, DefaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdleConns, DefaultMaxIdleConns))
	sqlDB.SetConnMaxLifetime(orDefault(opts.ConnMaxLifetime, DefaultConnMaxLifetime))
	sqlDB.SetConnMaxIdleTime(orDefault(opts.ConnMaxIdleTime, DefaultConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("stockledger/postgres: ping: %w", err)
	}

	return sqldb.New(db), nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
