package metrics

import (
	"math"
	"testing"

	"regime-trader/internal/domain"
)

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Timestamp: int64(i) * 1000, Equity: v}
	}
	return out
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio(nil); got != 0 {
		t.Errorf("empty: expected 0, got %v", got)
	}
	if got := SharpeRatio([]float64{0.01}); got != 0 {
		t.Errorf("single return: expected 0, got %v", got)
	}
	if got := SharpeRatio([]float64{0.01, 0.01, 0.01}); got != 0 {
		t.Errorf("zero stddev: expected 0, got %v", got)
	}

	// mean 0.01, population std 0.01 -> sqrt(252)
	got := SharpeRatio([]float64{0.0, 0.02})
	if math.Abs(got-math.Sqrt(252)) > 1e-9 {
		t.Errorf("expected %v, got %v", math.Sqrt(252), got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []domain.EquityPoint
		want  float64
	}{
		{"empty", nil, 0},
		{"monotone up", curve(100, 110, 120), 0},
		{"single dip", curve(100, 80, 120), 0.2},
		{"deeper later", curve(100, 90, 200, 100, 150), 0.5},
		{"starts below later peak", curve(100, 50, 100, 75), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.curve)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("MaxDrawdown = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("drawdown %v outside [0, 1]", got)
			}
		})
	}
}

func TestRegimeBreakdown(t *testing.T) {
	fills := []domain.Fill{
		{Regime: domain.RegimeTrending, Commission: 1},
		{Regime: domain.RegimeTrending, Closing: true, RealizedPnL: 50, Commission: 1},
		{Regime: domain.RegimeTrending, Closing: true, RealizedPnL: -20, Commission: 1},
		{Regime: domain.RegimeUncertain, Closing: true, RealizedPnL: 0.5, Commission: 1},
	}

	got := RegimeBreakdown(fills)

	tr := got[domain.RegimeTrending]
	if tr.Trades != 3 || tr.Closes != 2 || tr.Wins != 1 {
		t.Errorf("trending counts wrong: %+v", tr)
	}
	if math.Abs(tr.PnL-27) > 1e-9 {
		t.Errorf("trending pnl = %v, want 27", tr.PnL)
	}
	if tr.WinRate != 0.5 {
		t.Errorf("trending win rate = %v, want 0.5", tr.WinRate)
	}

	// Commission exceeds the gross gain: not a win.
	un := got[domain.RegimeUncertain]
	if un.Wins != 0 || un.WinRate != 0 {
		t.Errorf("uncertain should have no wins: %+v", un)
	}
	if _, ok := got[domain.RegimeHighVolatility]; ok {
		t.Errorf("regimes without fills must be absent")
	}
}

func TestSummarize(t *testing.T) {
	r := &domain.BacktestResult{
		InitialCapital: 1000,
		EquityCurve:    curve(1000, 1100, 990, 1210),
		Trades: []domain.Fill{
			{Timestamp: 1, Regime: domain.RegimeTrending},
			{Timestamp: 2, Regime: domain.RegimeTrending, Closing: true, RealizedPnL: -10},
			{Timestamp: 3, Regime: domain.RegimeTrending, Closing: true, RealizedPnL: -5},
			{Timestamp: 4, Regime: domain.RegimeLowVolatility, Closing: true, RealizedPnL: 30},
		},
	}

	Summarize(r)

	if r.FinalEquity != 1210 || math.Abs(r.TotalPnL-210) > 1e-9 || math.Abs(r.TotalReturn-0.21) > 1e-12 {
		t.Errorf("pnl fields wrong: final=%v pnl=%v ret=%v", r.FinalEquity, r.TotalPnL, r.TotalReturn)
	}
	if math.Abs(r.MaxDrawdown-0.1) > 1e-12 {
		t.Errorf("max drawdown = %v, want 0.1", r.MaxDrawdown)
	}
	if r.TotalTrades != 4 || r.ClosingTrades != 3 || r.WinningTrades != 1 {
		t.Errorf("trade counts wrong: %d/%d/%d", r.TotalTrades, r.ClosingTrades, r.WinningTrades)
	}
	if math.Abs(r.WinRate-1.0/3) > 1e-12 {
		t.Errorf("win rate = %v", r.WinRate)
	}
	if r.MaxConsecutiveLosses != 2 {
		t.Errorf("max consecutive losses = %d, want 2", r.MaxConsecutiveLosses)
	}
	if r.SharpeRatio == 0 {
		t.Errorf("expected non-zero sharpe")
	}
	if len(r.RegimeBreakdown) != 2 {
		t.Errorf("expected 2 regimes in breakdown, got %d", len(r.RegimeBreakdown))
	}
}

func TestSummarize_EmptyRun(t *testing.T) {
	r := &domain.BacktestResult{InitialCapital: 5000}
	Summarize(r)

	if r.FinalEquity != 5000 || r.TotalPnL != 0 || r.SharpeRatio != 0 || r.WinRate != 0 {
		t.Errorf("empty run should be neutral: %+v", r)
	}
}

func TestTwoSampleTTest(t *testing.T) {
	a := []float64{0.01, 0.02, 0.015, 0.012, 0.018, 0.011, 0.019, 0.016}
	b := []float64{-0.01, 0.0, -0.005, 0.002, -0.008, 0.001, -0.004, -0.002}

	res := TwoSampleTTest(a, b)
	if res.TStatistic <= 0 {
		t.Errorf("expected positive t, got %v", res.TStatistic)
	}
	if res.PValue <= 0 || res.PValue >= 0.001 {
		t.Errorf("expected a highly significant p, got %v", res.PValue)
	}
	if res.DegreesFreedom != 14 {
		t.Errorf("df = %v, want 14", res.DegreesFreedom)
	}

	same := TwoSampleTTest(a, a)
	if same.TStatistic != 0 || math.Abs(same.PValue-1) > 1e-9 {
		t.Errorf("identical samples: expected t=0 p=1, got %+v", same)
	}
}

func TestTwoSampleTTest_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"empty", nil, nil},
		{"too small", []float64{0.1}, []float64{0.2, 0.3}},
		{"no variance", []float64{0.1, 0.1, 0.1}, []float64{0.1, 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TwoSampleTTest(tt.a, tt.b)
			if res.PValue != 1 || res.TStatistic != 0 {
				t.Errorf("expected p=1 t=0, got %+v", res)
			}
		})
	}
}

func TestTwoSampleTTest_PValueBounds(t *testing.T) {
	for shift := -0.05; shift <= 0.05; shift += 0.01 {
		a := []float64{0.01, -0.02, 0.03, 0.0, 0.01}
		b := make([]float64, len(a))
		for i, v := range a {
			b[i] = v + shift + float64(i%2)*0.001
		}
		res := TwoSampleTTest(a, b)
		if res.PValue < 0 || res.PValue > 1 || math.IsNaN(res.PValue) {
			t.Fatalf("shift %v: p-value %v outside [0, 1]", shift, res.PValue)
		}
	}
}
