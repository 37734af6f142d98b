package backtest

import (
	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
	"regime-trader/internal/metrics"
)

// DefaultConfidenceLevel is used when CompareStrategies gets a level outside (0, 1).
const DefaultConfidenceLevel = 0.95

// CompareStrategies runs a pooled-variance two-sample t-test on the equity
// returns of a and b. The winner is A only when its Sharpe ratio is strictly
// higher.
func CompareStrategies(a, b *domain.BacktestResult, confidenceLevel float64) domain.Comparison {
	if !(confidenceLevel > 0 && confidenceLevel < 1) {
		confidenceLevel = DefaultConfidenceLevel
	}

	test := metrics.TwoSampleTTest(a.Returns(), b.Returns())

	winner := domain.WinnerB
	if a.SharpeRatio > b.SharpeRatio {
		winner = domain.WinnerA
	}

	return domain.Comparison{
		SharpeA:         a.SharpeRatio,
		SharpeB:         b.SharpeRatio,
		ReturnA:         a.TotalReturn,
		ReturnB:         b.TotalReturn,
		MeanReturnDiff:  test.MeanDiff,
		TStatistic:      test.TStatistic,
		PValue:          test.PValue,
		IsSignificant:   test.PValue < 1-confidenceLevel,
		ConfidenceLevel: confidenceLevel,
		Winner:          winner,
	}
}

// LogComparison writes the outcome of a comparison at info level.
func LogComparison(logger zerolog.Logger, c domain.Comparison) {
	logger.Info().
		Str("winner", c.Winner).
		Bool("significant", c.IsSignificant).
		Float64("p_value", c.PValue).
		Float64("t_statistic", c.TStatistic).
		Float64("sharpe_a", c.SharpeA).
		Float64("sharpe_b", c.SharpeB).
		Msg("strategy comparison")
}
