package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"regime-trader/internal/domain"
)

// TradingDaysPerYear annualises the per-tick Sharpe ratio.
const TradingDaysPerYear = 252

// Summarize fills the derived metric fields of r from its equity curve and
// trade log. FinalEquity is the last point of the curve, or the initial
// capital when the curve is empty.
func Summarize(r *domain.BacktestResult) {
	r.FinalEquity = r.InitialCapital
	if n := len(r.EquityCurve); n > 0 {
		r.FinalEquity = r.EquityCurve[n-1].Equity
	}
	r.TotalPnL = r.FinalEquity - r.InitialCapital
	r.TotalReturn = 0
	if r.InitialCapital > 0 {
		r.TotalReturn = r.TotalPnL / r.InitialCapital
	}

	r.SharpeRatio = SharpeRatio(r.Returns())
	r.MaxDrawdown = MaxDrawdown(r.EquityCurve)

	r.TotalTrades = len(r.Trades)
	r.ClosingTrades, r.WinningTrades = 0, 0
	for i := range r.Trades {
		if r.Trades[i].Closing {
			r.ClosingTrades++
			if r.Trades[i].IsWin() {
				r.WinningTrades++
			}
		}
	}
	r.WinRate = computeWinRate(r.WinningTrades, r.ClosingTrades)
	r.MaxConsecutiveLosses = computeMaxConsecutiveLosses(r.Trades)
	r.RegimeBreakdown = RegimeBreakdown(r.Trades)
}

// SharpeRatio returns mean/stddev*sqrt(252) using the population stddev.
// Fewer than two returns or zero dispersion give 0.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	if !(std > 0) {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the worst peak-to-trough decline of the curve as a
// positive fraction of the running peak.
// Points must be in chronological order.
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0].Equity
	maxDrawdown := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - p.Equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return math.Min(maxDrawdown, 1)
}

// RegimeBreakdown aggregates fills per regime. Every fill counts as a trade;
// wins and win rate are over closing fills.
func RegimeBreakdown(fills []domain.Fill) map[domain.Regime]domain.RegimeStats {
	out := make(map[domain.Regime]domain.RegimeStats)
	for i := range fills {
		f := &fills[i]
		st := out[f.Regime]
		st.Trades++
		st.PnL += f.NetPnL()
		if f.Closing {
			st.Closes++
			if f.IsWin() {
				st.Wins++
			}
		}
		out[f.Regime] = st
	}
	for r, st := range out {
		st.WinRate = computeWinRate(st.Wins, st.Closes)
		out[r] = st
	}
	return out
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMaxConsecutiveLosses finds the longest streak of closing fills that
// are not wins. Fills must be in chronological order.
func computeMaxConsecutiveLosses(fills []domain.Fill) int {
	maxStreak := 0
	currentStreak := 0

	for i := range fills {
		if !fills[i].Closing {
			continue
		}
		if fills[i].IsWin() {
			currentStreak = 0
			continue
		}
		currentStreak++
		if currentStreak > maxStreak {
			maxStreak = currentStreak
		}
	}
	return maxStreak
}
