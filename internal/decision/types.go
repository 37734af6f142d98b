package decision

import (
	"errors"
	"math"

	"regime-trader/internal/config"
	"regime-trader/internal/domain"
)

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Validation errors for DecisionInput.
var (
	ErrNilInput          = errors.New("decision input is nil")
	ErrEmptyStrategyID   = errors.New("strategy_id is required")
	ErrEmptyScenarioID   = errors.New("scenario_id is required")
	ErrNegativeTrades    = errors.New("total trades must be >= 0")
	ErrInvalidWinRate    = errors.New("win rate must be in [0, 1]")
	ErrInvalidDrawdown   = errors.New("max drawdown must be in [0, 1]")
	ErrNonFiniteMetric   = errors.New("metric is NaN or infinite")
	ErrInvalidComparison = errors.New("comparison winner must be A or B")
)

// DecisionInput contains the run metrics the gate is evaluated on.
type DecisionInput struct {
	RunID      string
	StrategyID string
	ScenarioID string

	SharpeRatio     float64
	MaxDrawdown     float64 // fraction of peak equity
	TotalTrades     int
	WinRate         float64 // over closing trades, [0, 1]
	TotalPnL        float64
	SafeModeEntered bool

	// Comparison of this run (A) against a baseline (B). Nil when no
	// baseline was given.
	Comparison *domain.Comparison
}

// Validate checks that the input is usable. Metrics that come out of a
// well-formed run always pass.
func (d *DecisionInput) Validate() error {
	if d == nil {
		return ErrNilInput
	}
	if d.StrategyID == "" {
		return ErrEmptyStrategyID
	}
	if d.ScenarioID == "" {
		return ErrEmptyScenarioID
	}
	for _, v := range []float64{d.SharpeRatio, d.MaxDrawdown, d.WinRate, d.TotalPnL} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFiniteMetric
		}
	}
	if d.TotalTrades < 0 {
		return ErrNegativeTrades
	}
	if d.WinRate < 0 || d.WinRate > 1 {
		return ErrInvalidWinRate
	}
	if d.MaxDrawdown < 0 || d.MaxDrawdown > 1 {
		return ErrInvalidDrawdown
	}
	if c := d.Comparison; c != nil && c.Winner != domain.WinnerA && c.Winner != domain.WinnerB {
		return ErrInvalidComparison
	}
	return nil
}

// Thresholds are the GO criteria limits.
type Thresholds struct {
	MinSharpe   float64
	MaxDrawdown float64
	MinTrades   int
	MinWinRate  float64
}

// DefaultThresholds returns the stock gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSharpe:   1.0,
		MaxDrawdown: 0.25,
		MinTrades:   10,
		MinWinRate:  0.4,
	}
}

// ThresholdsFrom converts the configured decision section.
func ThresholdsFrom(cfg config.DecisionConfig) Thresholds {
	return Thresholds{
		MinSharpe:   cfg.MinSharpe,
		MaxDrawdown: cfg.MaxDrawdown,
		MinTrades:   cfg.MinTrades,
		MinWinRate:  cfg.MinWinRate,
	}
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
	// Skipped criteria count as passed and are reported as n/a.
	Skipped bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	RunID      string
	StrategyID string
	ScenarioID string

	Decision   Decision
	GOCriteria []CriterionResult // 5 GO criteria
	NOGOChecks []CriterionResult // 3 NO-GO triggers
}
