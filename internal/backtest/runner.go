package backtest

import (
	"context"

	"regime-trader/internal/domain"
	"regime-trader/internal/replay"
)

// Runner executes a backtest over a stored time range.
type Runner struct {
	replayRunner *replay.Runner
	backtester   *Backtester
}

// NewRunner creates a new backtest runner.
func NewRunner(replayRunner *replay.Runner, backtester *Backtester) *Runner {
	return &Runner{
		replayRunner: replayRunner,
		backtester:   backtester,
	}
}

// Run loads ticks for symbol (empty for every symbol) and signals within
// [from, to] and backtests them.
func (r *Runner) Run(ctx context.Context, symbol string, from, to int64) (*domain.BacktestResult, error) {
	return r.replayRunner.RunBacktest(ctx, symbol, from, to, r.backtester)
}

// RunAll backtests everything in storage.
func (r *Runner) RunAll(ctx context.Context, symbol string) (*domain.BacktestResult, error) {
	return r.Run(ctx, symbol, 0, maxTimestamp)
}

const maxTimestamp = int64(1<<63 - 1)
