package storage

import (
	"context"

	"regime-trader/internal/domain"
)

// RunStore provides access to backtest run summaries.
type RunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.RunSummary) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// ListByStrategy retrieves all runs for a strategy, ordered by scenario_id, run_id ASC.
	ListByStrategy(ctx context.Context, strategyID string) ([]*domain.RunSummary, error)
}

// FillStore provides access to the per-run trade log.
type FillStore interface {
	// InsertBulk adds fills for a run atomically. Fails entire batch on duplicate fill_id.
	InsertBulk(ctx context.Context, fills []domain.Fill) error

	// GetByRun retrieves all fills for a run, ordered by timestamp ASC, fill_id ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.Fill, error)
}

// EquityStore provides access to per-run equity curves.
type EquityStore interface {
	// InsertBulk adds a run's equity curve atomically. Fails if the run already has a curve.
	InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error

	// GetByRun retrieves the equity curve for a run in insertion order.
	GetByRun(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}

// TickStore provides access to historical market data.
type TickStore interface {
	// InsertBulk adds ticks atomically. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, ticks []domain.MarketDataPoint) error

	// GetByTimeRange retrieves ticks within [start, end] (inclusive), ordered by
	// timestamp ASC, symbol ASC. An empty symbol matches every symbol.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.MarketDataPoint, error)
}

// SignalStore provides access to historical signals.
type SignalStore interface {
	// InsertBulk adds signals atomically. Fails entire batch on duplicate timestamp.
	InsertBulk(ctx context.Context, signals []domain.Signal) error

	// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]domain.Signal, error)
}
