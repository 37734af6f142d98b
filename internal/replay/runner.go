package replay

import (
	"context"
	"fmt"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// Runner loads ticks and signals from storage and replays them.
type Runner struct {
	tickStore   storage.TickStore
	signalStore storage.SignalStore
}

// NewRunner creates a new replay runner.
func NewRunner(tickStore storage.TickStore, signalStore storage.SignalStore) *Runner {
	return &Runner{
		tickStore:   tickStore,
		signalStore: signalStore,
	}
}

// Load reads ticks for symbol (empty for all symbols) and signals within
// [from, to] and validates their chronology.
func (r *Runner) Load(ctx context.Context, symbol string, from, to int64) ([]domain.MarketDataPoint, []domain.Signal, error) {
	ticks, err := r.tickStore.GetByTimeRange(ctx, symbol, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load ticks: %w", err)
	}
	signals, err := r.signalStore.GetByTimeRange(ctx, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load signals: %w", err)
	}

	if err := ValidateMarketData(ticks); err != nil {
		return nil, nil, err
	}
	if err := ValidateSignals(signals); err != nil {
		return nil, nil, err
	}
	return ticks, signals, nil
}

// Run replays the merged stream through engine, event by event.
func (r *Runner) Run(ctx context.Context, symbol string, from, to int64, engine ReplayEngine) error {
	ticks, signals, err := r.Load(ctx, symbol, from, to)
	if err != nil {
		return err
	}

	for _, event := range MergeEvents(ticks, signals) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := engine.OnEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// RunBacktest hands the loaded range to a TickEngine in one call.
func (r *Runner) RunBacktest(ctx context.Context, symbol string, from, to int64, engine TickEngine) (*domain.BacktestResult, error) {
	ticks, signals, err := r.Load(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, ticks, signals)
}
