package gormdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "gorm-postgres"
)

// DefaultSQLitePath is the database file used when the sqlite DSN is empty.
const DefaultSQLitePath = "lotledger.db"

// Options configures Open.
type Options struct {
	Driver    string
	DSN       string
	Namespace string
	Logger    *slog.Logger
	// SlowThreshold marks queries logged as slow. Zero uses one second.
	SlowThreshold time.Duration
}

// Open connects through GORM and migrates the schema.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = time.Second
	}

	naming := schema.NamingStrategy{}
	if ns := strings.TrimSpace(opts.Namespace); ns != "" {
		naming.TablePrefix = ns + "_"
	}

	gormLogger := logger.New(slogWriter{logger: opts.Logger}, logger.Config{
		SlowThreshold:             opts.SlowThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		NamingStrategy: naming,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("store/gormdb: open %s: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("store/gormdb: sql handle: %w", err)
		}
		// a single connection keeps :memory: databases shared and serialises writers
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("store/gormdb: auto migrate: %w", err)
	}
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return sqlite.Open(dsn), nil
	case DriverMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("store/gormdb: mysql requires a dsn")
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("store/gormdb: postgres requires a dsn")
		}
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("store/gormdb: unsupported driver %q", driver)
}

// slogWriter routes GORM log lines through slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "gorm"))
}
