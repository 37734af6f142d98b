package reporting

import (
	"time"

	"regime-trader/internal/decision"
	"regime-trader/internal/domain"
)

// Report is everything rendered for one backtest run.
type Report struct {
	GeneratedAt time.Time

	Summary *domain.RunSummary

	// Regime breakdown in regime table order. Regimes with no fills are omitted.
	RegimeBreakdown []RegimeRow

	// Regime transitions. Stored runs keep only the count in Summary.
	RegimeChanges []domain.RegimeChange

	// Skipped signals grouped by reason, sorted by reason. Empty for stored runs.
	SkippedByReason []SkipRow

	// Other runs of the same strategy, sorted by scenario_id, run_id.
	Scenarios []ScenarioRow

	// Comparison against a baseline run. Nil when no baseline was given.
	Comparison *ComparisonSection

	Decision *decision.DecisionResult
}

// RegimeRow is one line of the regime breakdown.
type RegimeRow struct {
	Regime  domain.Regime
	Trades  int
	Closes  int
	Wins    int
	WinRate float64
	PnL     float64
}

// SkipRow counts skipped signals for one reason.
type SkipRow struct {
	Reason domain.SkipReason
	Count  int
}

// ScenarioRow summarizes a sibling run under another execution scenario.
type ScenarioRow struct {
	RunID       string
	ScenarioID  string
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
	WinRate     float64
	TotalTrades int
}

// ComparisonSection is the candidate (A) against the baseline (B).
type ComparisonSection struct {
	BaselineRunID      string
	BaselineStrategyID string
	domain.Comparison
}
