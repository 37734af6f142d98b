// Package verification replays stored backtest runs and checks that the
// stored trade log and summary match a fresh run over the same inputs.
package verification

import (
	"fmt"
	"math"

	"regime-trader/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // e.g. "fills[3].Price"
	Expected any    // stored value
	Actual   any    // replayed value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: stored %v, replayed %v", d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
	StoredPnL   float64
	ReplayedPnL float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// CompareFills compares two trade logs in order. Extra or missing fills are
// reported once by count, then each common index is compared field by field.
func CompareFills(stored, replayed []domain.Fill) []FieldDivergence {
	var divergences []FieldDivergence
	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{Field: "fills.len", Expected: len(stored), Actual: len(replayed)})
	}

	n := min(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		divergences = append(divergences, compareFill(fmt.Sprintf("fills[%d]", i), &stored[i], &replayed[i])...)
	}
	return divergences
}

func compareFill(prefix string, s, r *domain.Fill) []FieldDivergence {
	var out []FieldDivergence
	exact := func(field string, a, b any) {
		if a != b {
			out = append(out, FieldDivergence{Field: prefix + "." + field, Expected: a, Actual: b})
		}
	}
	approx := func(field string, a, b float64) {
		if !floatEquals(a, b) {
			out = append(out, FieldDivergence{Field: prefix + "." + field, Expected: a, Actual: b})
		}
	}

	exact("FillID", s.FillID, r.FillID)
	exact("OrderID", s.OrderID, r.OrderID)
	exact("Timestamp", s.Timestamp, r.Timestamp)
	exact("Symbol", s.Symbol, r.Symbol)
	exact("Side", s.Side, r.Side)
	approx("Size", s.Size, r.Size)
	approx("Price", s.Price, r.Price)
	approx("Commission", s.Commission, r.Commission)
	exact("Regime", s.Regime, r.Regime)
	approx("RealizedPnL", s.RealizedPnL, r.RealizedPnL)
	exact("Closing", s.Closing, r.Closing)
	exact("ForceClose", s.ForceClose, r.ForceClose)
	return out
}

// CompareSummaries compares the scalar run metrics.
func CompareSummaries(stored, replayed *domain.RunSummary) []FieldDivergence {
	var out []FieldDivergence
	approx := func(field string, a, b float64) {
		if !floatEquals(a, b) {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}
	exact := func(field string, a, b any) {
		if a != b {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}

	exact("RunID", stored.RunID, replayed.RunID)
	approx("FinalEquity", stored.FinalEquity, replayed.FinalEquity)
	approx("TotalPnL", stored.TotalPnL, replayed.TotalPnL)
	approx("SharpeRatio", stored.SharpeRatio, replayed.SharpeRatio)
	approx("MaxDrawdown", stored.MaxDrawdown, replayed.MaxDrawdown)
	approx("WinRate", stored.WinRate, replayed.WinRate)
	exact("TotalTrades", stored.TotalTrades, replayed.TotalTrades)
	exact("ClosingTrades", stored.ClosingTrades, replayed.ClosingTrades)
	exact("WinningTrades", stored.WinningTrades, replayed.WinningTrades)
	exact("MaxConsecutiveLosses", stored.MaxConsecutiveLosses, replayed.MaxConsecutiveLosses)
	exact("SafeModeEntered", stored.SafeModeEntered, replayed.SafeModeEntered)
	exact("RegimeChanges", stored.RegimeChanges, replayed.RegimeChanges)
	return out
}

// floatEquals compares two float64 values within FloatTolerance. NaNs
// compare equal to each other.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}
