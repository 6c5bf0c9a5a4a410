// Package store selects and opens the configured inventory.Store backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/platform/db"
	"github.com/lotledger/lotledger/internal/store/gormdb"
	"github.com/lotledger/lotledger/internal/store/memory"
	"github.com/lotledger/lotledger/internal/store/postgres"
	"github.com/lotledger/lotledger/internal/store/redisdoc"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = gormdb.DriverSQLite
	DriverMySQL    = gormdb.DriverMySQL
	DriverGormPG   = gormdb.DriverPostgres
	DriverRedis    = "redis"
)

// Config selects a backend.
type Config struct {
	Driver    string
	DSN       string
	Namespace string
	// Redis is reused by the redis driver when DSN is empty.
	Redis *redis.Client
}

// Backend is an opened store plus the function releasing its resources.
type Backend struct {
	Store inventory.Store
	Close func()
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", DriverMemory:
		return &Backend{Store: memory.New(), Close: func() {}}, nil

	case DriverPostgres:
		pool, err := db.New(ctx, cfg.DSN, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: postgres.New(pool), Close: pool.Close}, nil

	case DriverSQLite, DriverMySQL, DriverGormPG:
		gdb, err := gormdb.Open(ctx, gormdb.Options{
			Driver:    cfg.Driver,
			DSN:       cfg.DSN,
			Namespace: cfg.Namespace,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("store: sql handle: %w", err)
		}
		return &Backend{Store: gormdb.New(gdb), Close: func() { _ = sqlDB.Close() }}, nil

	case DriverRedis:
		client := cfg.Redis
		closeFn := func() {}
		if cfg.DSN != "" {
			opts, err := redis.ParseURL(cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("store: parse redis dsn: %w", err)
			}
			client = redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("store: ping redis: %w", err)
			}
			closeFn = func() { _ = client.Close() }
		}
		if client == nil {
			return nil, fmt.Errorf("store: redis driver needs STORE_DSN or REDIS_ADDR")
		}
		return &Backend{Store: redisdoc.New(client, cfg.Namespace), Close: closeFn}, nil
	}
	return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
}
