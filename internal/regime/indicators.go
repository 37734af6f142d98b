package regime

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are the raw indicators a classification is based on.
type Metrics struct {
	Volatility    float64 // annualised stddev of recent returns
	TrendStrength float64 // [-1, 1]
	MeanReversion float64 // [-1, 1], positive means mean-reverting
}

// ComputeMetrics derives the three indicators from a trailing return window.
// Callers must ensure len(returns) >= cfg.TrendSlowWindow.
func ComputeMetrics(cfg Config, returns []float64) Metrics {
	return Metrics{
		Volatility:    annualizedVolatility(tail(returns, cfg.VolatilityWindow)),
		TrendStrength: trendStrength(returns, cfg.TrendFastWindow, cfg.TrendSlowWindow),
		MeanReversion: meanReversion(tail(returns, cfg.VolatilityWindow), cfg.AutocorrLag),
	}
}

// annualizedVolatility is the population stddev scaled by sqrt(252).
func annualizedVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return stat.PopStdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
}

// trendStrength compares fast and slow means of the cumulative price proxy.
func trendStrength(returns []float64, fast, slow int) float64 {
	prices := make([]float64, len(returns))
	level := 1.0
	for i, r := range returns {
		level *= 1 + r
		prices[i] = level
	}

	fastMA := stat.Mean(tail(prices, fast), nil)
	slowMA := stat.Mean(tail(prices, slow), nil)
	if !(slowMA > 0) {
		return 0
	}
	return clip((fastMA-slowMA)/slowMA, -1, 1)
}

// meanReversion is the negated lag autocorrelation, clipped to [-1, 1].
func meanReversion(returns []float64, lag int) float64 {
	if len(returns) < lag+1 {
		return 0
	}
	return clip(-autocorrelation(returns, lag), -1, 1)
}

// autocorrelation returns c_lag / c0 on demeaned data, both normalised by n.
func autocorrelation(data []float64, lag int) float64 {
	n := len(data)
	if lag < 0 || n < lag+1 {
		return 0
	}

	mean := stat.Mean(data, nil)
	demeaned := make([]float64, n)
	copy(demeaned, data)
	floats.AddConst(-mean, demeaned)

	c0 := floats.Dot(demeaned, demeaned) / float64(n)
	if c0 == 0 {
		return 0
	}
	cLag := floats.Dot(demeaned[:n-lag], demeaned[lag:]) / float64(n)
	return cLag / c0
}

// tail returns the last n elements of xs, or all of xs if shorter.
func tail(xs []float64, n int) []float64 {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
