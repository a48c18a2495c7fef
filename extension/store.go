package extension

import (
	"context"
	"fmt"

	"github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/store/memory"
	"github.com/xraph/stockledger/store/mongo"
	"github.com/xraph/stockledger/store/postgres"
	"github.com/xraph/stockledger/store/redis"
	"github.com/xraph/stockledger/store/sqlite"
)

// openStore connects the backend named by cfg.Driver.
func openStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverPostgres:
		return postgres.Open(ctx, cfg.DSN, postgres.Options{MaxOpenConns: cfg.MaxOpenConns})
	case DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = ":memory:"
		}
		return sqlite.Open(ctx, path)
	case DriverMongo:
		name := cfg.Database
		if name == "" {
			name = "stockledger"
		}
		return mongo.Open(ctx, cfg.DSN, name)
	case DriverRedis:
		var opts []redis.Option
		if cfg.KeyPrefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.KeyPrefix))
		}
		return redis.Open(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("stockledger: unknown store driver %q", cfg.Driver)
	}
}
