package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/internal/app"
	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/observability"
	"github.com/lotledger/lotledger/internal/platform/cache"
	"github.com/lotledger/lotledger/internal/shared"
	"github.com/lotledger/lotledger/internal/store"
)

// runtime is the wired service graph shared by every command.
type runtime struct {
	cfg     *app.Config
	logger  *slog.Logger
	redis   *redis.Client
	backend *store.Backend
	metrics *observability.Metrics
	ledger  *inventory.LedgerService
	orders  *inventory.OrderService
}

// bootstrap loads configuration and opens the store. Redis is optional unless
// the redis driver is selected; without it the report cache and idempotency
// guard are disabled.
func bootstrap(ctx context.Context, withMetrics bool) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.RedisAddr != "" && !app.InTestMode() {
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
		} else {
			rt.redis = client
		}
	}

	backend, err := store.Open(ctx, store.Config{
		Driver:    cfg.StoreDriver,
		DSN:       cfg.StoreDSN,
		Namespace: cfg.StoreNamespace,
		Redis:     rt.redis,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.backend = backend

	if withMetrics {
		rt.metrics = observability.NewMetrics()
	}

	svcCfg := inventory.ServiceConfig{Logger: logger}
	if rt.metrics != nil {
		svcCfg.Metrics = rt.metrics
	}
	var idem inventory.IdempotencyPort
	if rt.redis != nil {
		svcCfg.Cache = cache.NewReportCache(rt.redis, cfg.StoreNamespace, cfg.ReportCacheTTL)
		idem = shared.NewIdempotencyStore(rt.redis, cfg.StoreNamespace, cfg.IdempotencyTTL)
	}
	rt.ledger = inventory.NewLedgerService(backend.Store, svcCfg)
	rt.orders = inventory.NewOrderService(backend.Store, idem, svcCfg)
	return rt, nil
}

// Close releases the store and Redis connections.
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.backend != nil && rt.backend.Close != nil {
		rt.backend.Close()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
