// Package backend opens the store set selected by the storage config.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/storage"
	chstore "regime-trader/internal/storage/clickhouse"
	"regime-trader/internal/storage/memory"
	"regime-trader/internal/storage/migrations"
	pgstore "regime-trader/internal/storage/postgres"
)

// Backend names.
const (
	Memory   = "memory"
	Postgres = "postgres"
)

// ErrUnknownBackend is returned for a backend name Open does not know.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Stores is every store a binary may need. Runs, fills and signals live in
// Postgres; the equity curve and ticks live in ClickHouse.
type Stores struct {
	Runs    storage.RunStore
	Fills   storage.FillStore
	Equity  storage.EquityStore
	Ticks   storage.TickStore
	Signals storage.SignalStore
}

// Option configures Open.
type Option func(*options)

type options struct {
	migrate bool
	logger  zerolog.Logger
}

// WithMigrations applies the embedded migrations before the stores are
// returned.
func WithMigrations() Option {
	return func(o *options) { o.migrate = true }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open returns the configured stores and a cleanup func that closes any
// connections. The cleanup func is never nil on success.
func Open(ctx context.Context, cfg config.StorageConfig, opts ...Option) (*Stores, func(), error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Backend {
	case "", Memory:
		return NewMemory(), func() {}, nil
	case Postgres:
		return openSQL(ctx, cfg, o)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// NewMemory returns a fresh in-memory store set.
func NewMemory() *Stores {
	return &Stores{
		Runs:    memory.NewRunStore(),
		Fills:   memory.NewFillStore(),
		Equity:  memory.NewEquityStore(),
		Ticks:   memory.NewTickStore(),
		Signals: memory.NewSignalStore(),
	}
}

// PoolConfig converts the config section into pgx pool settings.
func PoolConfig(c config.PoolConfig) pgstore.PoolConfig {
	return pgstore.PoolConfig{
		MaxConns:          c.MaxConns,
		MinConns:          c.MinConns,
		MaxConnLifetime:   c.MaxConnLifetime,
		MaxConnIdleTime:   c.MaxConnIdleTime,
		HealthCheckPeriod: c.HealthCheckPeriod,
	}
}

func openSQL(ctx context.Context, cfg config.StorageConfig, o options) (*Stores, func(), error) {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, PoolConfig(cfg.PostgresPool))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	var chConn *chstore.Conn
	if o.migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool, o.logger)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		o.logger.Info().Strs("files", applied).Msg("postgres migrations applied")

		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN, o.logger)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
	}

	stores := &Stores{
		Runs:    pgstore.NewRunStore(pool),
		Fills:   pgstore.NewFillStore(pool),
		Signals: pgstore.NewSignalStore(pool),
		Equity:  chstore.NewEquityStore(chConn),
		Ticks:   chstore.NewTickStore(chConn),
	}
	cleanup := func() {
		if err := chConn.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("close clickhouse")
		}
		pool.Close()
	}
	return stores, cleanup, nil
}
