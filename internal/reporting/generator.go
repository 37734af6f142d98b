package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"regime-trader/internal/backtest"
	"regime-trader/internal/decision"
	"regime-trader/internal/domain"
	"regime-trader/internal/metrics"
	"regime-trader/internal/storage"
)

// ErrNoStore is returned when a stored run is requested from a generator
// built without stores.
var ErrNoStore = errors.New("report generator has no run store")

// Generator produces reports from finished or stored runs.
type Generator struct {
	runStore        storage.RunStore
	aggregator      *metrics.Aggregator
	evaluator       *decision.Evaluator
	confidenceLevel float64
	now             func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator that evaluates every run with
// evaluator.
func NewGenerator(evaluator *decision.Evaluator) *Generator {
	return &Generator{
		evaluator:       evaluator,
		confidenceLevel: backtest.DefaultConfidenceLevel,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithStores lets the generator read stored runs and list sibling scenarios.
// Fills and equity curves are needed to compare two stored runs.
func (g *Generator) WithStores(runs storage.RunStore, fills storage.FillStore, equity storage.EquityStore) *Generator {
	g.runStore = runs
	g.aggregator = metrics.NewAggregator(runs, fills, equity)
	return g
}

// WithConfidenceLevel sets the level used for baseline comparisons.
func (g *Generator) WithConfidenceLevel(level float64) *Generator {
	g.confidenceLevel = level
	return g
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromResult builds the report for a finished backtest. baseline may be nil.
func (g *Generator) FromResult(ctx context.Context, result, baseline *domain.BacktestResult) (*Report, error) {
	var cmp *domain.Comparison
	if baseline != nil {
		c := backtest.CompareStrategies(result, baseline, g.confidenceLevel)
		cmp = &c
	}

	report, err := g.build(ctx, result.Summary(), cmp, baseline)
	if err != nil {
		return nil, err
	}
	report.RegimeChanges = append([]domain.RegimeChange(nil), result.RegimeChanges...)
	report.SkippedByReason = skipCounts(result.SkippedSignals)
	return report, nil
}

// Generate builds the report for a stored run. When baselineID is set both
// runs are rebuilt from their stored fills and equity curves and compared.
func (g *Generator) Generate(ctx context.Context, runID, baselineID string) (*Report, error) {
	if g.runStore == nil {
		return nil, ErrNoStore
	}

	summary, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var cmp *domain.Comparison
	var baseline *domain.BacktestResult
	if baselineID != "" {
		candidate, err := g.aggregator.Rebuild(ctx, runID)
		if err != nil {
			return nil, err
		}
		baseline, err = g.aggregator.Rebuild(ctx, baselineID)
		if err != nil {
			return nil, err
		}
		c := backtest.CompareStrategies(candidate, baseline, g.confidenceLevel)
		cmp = &c
	}

	return g.build(ctx, summary, cmp, baseline)
}

func (g *Generator) build(ctx context.Context, summary *domain.RunSummary, cmp *domain.Comparison, baseline *domain.BacktestResult) (*Report, error) {
	input, err := decision.FromSummary(summary, cmp)
	if err != nil {
		return nil, fmt.Errorf("decision input: %w", err)
	}
	result, err := g.evaluator.Evaluate(*input)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	scenarios, err := g.scenarios(ctx, summary)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:     g.now(),
		Summary:         summary,
		RegimeBreakdown: regimeRows(summary.RegimeBreakdown),
		Scenarios:       scenarios,
		Decision:        result,
	}
	if cmp != nil {
		report.Comparison = &ComparisonSection{
			BaselineRunID:      baseline.RunID,
			BaselineStrategyID: baseline.StrategyID,
			Comparison:         *cmp,
		}
	}
	return report, nil
}

// scenarios lists the other stored runs of the same strategy. Without a
// store there are none.
func (g *Generator) scenarios(ctx context.Context, summary *domain.RunSummary) ([]ScenarioRow, error) {
	if g.runStore == nil {
		return nil, nil
	}
	runs, err := g.runStore.ListByStrategy(ctx, summary.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", summary.StrategyID, err)
	}

	var rows []ScenarioRow
	for _, r := range runs {
		if r.RunID == summary.RunID {
			continue
		}
		rows = append(rows, ScenarioRow{
			RunID:       r.RunID,
			ScenarioID:  r.ScenarioID,
			TotalReturn: r.TotalReturn,
			SharpeRatio: r.SharpeRatio,
			MaxDrawdown: r.MaxDrawdown,
			WinRate:     r.WinRate,
			TotalTrades: r.TotalTrades,
		})
	}

	// Sort by (scenario_id, run_id)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ScenarioID != rows[j].ScenarioID {
			return rows[i].ScenarioID < rows[j].ScenarioID
		}
		return rows[i].RunID < rows[j].RunID
	})
	return rows, nil
}

func regimeRows(breakdown map[domain.Regime]domain.RegimeStats) []RegimeRow {
	var rows []RegimeRow
	for _, reg := range domain.AllRegimes() {
		st, ok := breakdown[reg]
		if !ok || st.Trades == 0 {
			continue
		}
		rows = append(rows, RegimeRow{
			Regime:  reg,
			Trades:  st.Trades,
			Closes:  st.Closes,
			Wins:    st.Wins,
			WinRate: st.WinRate,
			PnL:     st.PnL,
		})
	}
	return rows
}

func skipCounts(skipped []domain.SkippedSignal) []SkipRow {
	counts := make(map[domain.SkipReason]int)
	for _, s := range skipped {
		counts[s.Reason]++
	}
	rows := make([]SkipRow, 0, len(counts))
	for reason, n := range counts {
		rows = append(rows, SkipRow{Reason: reason, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Reason < rows[j].Reason })
	return rows
}
