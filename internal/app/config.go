package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// StoreDriver is one of memory, postgres, sqlite, mysql, gorm-postgres, redis.
	StoreDriver    string `envconfig:"STORE_DRIVER" default:"sqlite"`
	StoreDSN       string `envconfig:"STORE_DSN" default:""`
	StoreNamespace string `envconfig:"STORE_NAMESPACE" default:""`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`

	ReportCacheTTL     time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"4"`
	ReportWarmupCron  string `envconfig:"REPORT_WARMUP_CRON" default:"*/10 * * * *"`
	// WorkerMetricsAddr serves the worker's /metrics; empty disables it.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

var validDrivers = map[string]bool{
	"memory": true, "postgres": true, "sqlite": true, "mysql": true, "gorm-postgres": true, "redis": true,
}

// LoadEnv loads a .env file when present. Existing variables win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unusable combinations.
func (c *Config) Validate() error {
	if !validDrivers[c.StoreDriver] {
		return fmt.Errorf("app: unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if (c.StoreDriver == "postgres" || c.StoreDriver == "mysql" || c.StoreDriver == "gorm-postgres") && c.StoreDSN == "" {
		return errors.New("app: STORE_DSN must be provided for " + c.StoreDriver)
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("app: RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return errors.New("app: WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
