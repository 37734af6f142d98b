package decision

import (
	"errors"
	"math"
	"testing"

	"regime-trader/internal/config"
	"regime-trader/internal/domain"
)

func TestDecisionInput_Validate(t *testing.T) {
	valid := goodInput()
	if err := valid.Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	var nilInput *DecisionInput
	if err := nilInput.Validate(); !errors.Is(err, ErrNilInput) {
		t.Errorf("expected ErrNilInput, got %v", err)
	}

	tests := []struct {
		name string
		mod  func(*DecisionInput)
		want error
	}{
		{"empty strategy", func(in *DecisionInput) { in.StrategyID = "" }, ErrEmptyStrategyID},
		{"empty scenario", func(in *DecisionInput) { in.ScenarioID = "" }, ErrEmptyScenarioID},
		{"nan sharpe", func(in *DecisionInput) { in.SharpeRatio = math.NaN() }, ErrNonFiniteMetric},
		{"inf pnl", func(in *DecisionInput) { in.TotalPnL = math.Inf(1) }, ErrNonFiniteMetric},
		{"negative trades", func(in *DecisionInput) { in.TotalTrades = -1 }, ErrNegativeTrades},
		{"win rate over 1", func(in *DecisionInput) { in.WinRate = 1.01 }, ErrInvalidWinRate},
		{"negative drawdown", func(in *DecisionInput) { in.MaxDrawdown = -0.1 }, ErrInvalidDrawdown},
		{"bad winner", func(in *DecisionInput) { in.Comparison = &domain.Comparison{Winner: "C"} }, ErrInvalidComparison},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := goodInput()
			tt.mod(&input)
			if err := input.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestThresholdsFrom(t *testing.T) {
	got := ThresholdsFrom(config.Default().Decision)
	if got != DefaultThresholds() {
		t.Errorf("ThresholdsFrom(default) = %+v, want %+v", got, DefaultThresholds())
	}
}
