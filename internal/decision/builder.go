package decision

import (
	"errors"
	"sort"

	"regime-trader/internal/domain"
)

// ErrNoRuns is returned when there is nothing to build inputs from.
var ErrNoRuns = errors.New("no runs to evaluate")

// FromResult builds the input for a finished backtest. cmp compares result
// (A) against a baseline (B) and may be nil.
func FromResult(result *domain.BacktestResult, cmp *domain.Comparison) (*DecisionInput, error) {
	if result == nil {
		return nil, ErrNilInput
	}
	return FromSummary(result.Summary(), cmp)
}

// FromSummary builds the input from a stored run summary.
func FromSummary(s *domain.RunSummary, cmp *domain.Comparison) (*DecisionInput, error) {
	if s == nil {
		return nil, ErrNilInput
	}
	input := &DecisionInput{
		RunID:           s.RunID,
		StrategyID:      s.StrategyID,
		ScenarioID:      s.ScenarioID,
		SharpeRatio:     s.SharpeRatio,
		MaxDrawdown:     s.MaxDrawdown,
		TotalTrades:     s.TotalTrades,
		WinRate:         s.WinRate,
		TotalPnL:        s.TotalPnL,
		SafeModeEntered: s.SafeModeEntered,
		Comparison:      cmp,
	}

	// Validate before returning (fail fast)
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return input, nil
}

// Builder constructs DecisionInputs for a batch of stored runs.
type Builder struct {
	// comparisons maps run_id to that run's comparison against the baseline.
	comparisons map[string]*domain.Comparison
}

// NewBuilder creates a new decision input builder. comparisons may be nil,
// in which case every baseline criterion is skipped.
func NewBuilder(comparisons map[string]*domain.Comparison) *Builder {
	return &Builder{comparisons: comparisons}
}

// BuildAll creates a DecisionInput per run, ordered by strategy_id,
// scenario_id, run_id.
func (b *Builder) BuildAll(runs []*domain.RunSummary) ([]*DecisionInput, error) {
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	for _, run := range runs {
		if run == nil {
			return nil, ErrNilInput
		}
	}

	sorted := make([]*domain.RunSummary, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StrategyID != sorted[j].StrategyID {
			return sorted[i].StrategyID < sorted[j].StrategyID
		}
		if sorted[i].ScenarioID != sorted[j].ScenarioID {
			return sorted[i].ScenarioID < sorted[j].ScenarioID
		}
		return sorted[i].RunID < sorted[j].RunID
	})

	inputs := make([]*DecisionInput, 0, len(sorted))
	for _, run := range sorted {
		input, err := FromSummary(run, b.comparisons[run.RunID])
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}
