package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// ErrNoEquity is returned when a stored run has no equity curve.
var ErrNoEquity = errors.New("no equity curve available for aggregation")

// metricTolerance is the largest difference between a stored and a
// recomputed metric that still counts as a match.
const metricTolerance = 1e-9

// Aggregator recomputes run metrics from persisted fills and equity curves.
type Aggregator struct {
	runStore    storage.RunStore
	fillStore   storage.FillStore
	equityStore storage.EquityStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunStore, fillStore storage.FillStore, equityStore storage.EquityStore) *Aggregator {
	return &Aggregator{
		runStore:    runStore,
		fillStore:   fillStore,
		equityStore: equityStore,
	}
}

// Rebuild loads a run's summary, trade log and equity curve and recomputes
// every derived metric. Regime changes and skipped signals are not persisted
// and are left empty.
func (a *Aggregator) Rebuild(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	summary, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	fills, err := a.fillStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load fills %s: %w", runID, err)
	}
	curve, err := a.equityStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity %s: %w", runID, err)
	}
	if len(curve) == 0 {
		return nil, ErrNoEquity
	}

	r := &domain.BacktestResult{
		RunID:           summary.RunID,
		StrategyID:      summary.StrategyID,
		ScenarioID:      summary.ScenarioID,
		InitialCapital:  summary.InitialCapital,
		SafeModeEntered: summary.SafeModeEntered,
		EquityCurve:     curve,
		Trades:          fills,
	}
	Summarize(r)
	return r, nil
}

// Verify recomputes a run and reports every metric whose stored value
// disagrees with the recomputed one. Messages are sorted for deterministic
// output; an empty slice means the run is consistent.
func (a *Aggregator) Verify(ctx context.Context, runID string) ([]string, error) {
	summary, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	rebuilt, err := a.Rebuild(ctx, runID)
	if err != nil {
		return nil, err
	}
	got := rebuilt.Summary()

	var mismatches []string
	checkFloat := func(name string, stored, recomputed float64) {
		if math.Abs(stored-recomputed) > metricTolerance {
			mismatches = append(mismatches, fmt.Sprintf("%s: stored %v, recomputed %v", name, stored, recomputed))
		}
	}
	checkInt := func(name string, stored, recomputed int) {
		if stored != recomputed {
			mismatches = append(mismatches, fmt.Sprintf("%s: stored %d, recomputed %d", name, stored, recomputed))
		}
	}

	checkFloat("final_equity", summary.FinalEquity, got.FinalEquity)
	checkFloat("total_pnl", summary.TotalPnL, got.TotalPnL)
	checkFloat("sharpe_ratio", summary.SharpeRatio, got.SharpeRatio)
	checkFloat("max_drawdown", summary.MaxDrawdown, got.MaxDrawdown)
	checkFloat("win_rate", summary.WinRate, got.WinRate)
	checkInt("total_trades", summary.TotalTrades, got.TotalTrades)
	checkInt("winning_trades", summary.WinningTrades, got.WinningTrades)

	for _, r := range domain.AllRegimes() {
		s, g := summary.RegimeBreakdown[r], got.RegimeBreakdown[r]
		checkInt("regime_trades["+r.String()+"]", s.Trades, g.Trades)
		checkFloat("regime_pnl["+r.String()+"]", s.PnL, g.PnL)
	}

	sort.Strings(mismatches)
	return mismatches, nil
}
