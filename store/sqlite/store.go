// Package sqlite opens an SQLite-backed stockledger store.
//
// SQLite allows one writer at a time, so the pool is pinned to a single
// connection and transactions queue in Go instead of failing with
// SQLITE_BUSY.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/stockledger/store/sqldb"
)

// Open opens the database at path. Use ":memory:" for a private
// in-memory database.
func Open(ctx context.Context, path string) (*sqldb.Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("stockledger/sqlite: open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("stockledger/sqlite: sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("stockledger/sqlite: ping: %w", err)
	}

	return sqldb.New(db), nil
}
