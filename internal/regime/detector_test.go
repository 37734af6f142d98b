package regime

import (
	"math"
	"testing"
	"time"

	"regime-trader/internal/domain"
)

// constantReturns builds n identical returns.
func constantReturns(n int, r float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

// alternatingReturns builds n returns alternating between +amp and -amp.
func alternatingReturns(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func TestDetect_InsufficientData(t *testing.T) {
	d := NewDetector(DefaultConfig())

	for _, n := range []int{0, 1, 29} {
		regime, conf := d.Detect(constantReturns(n, 0.01))
		if regime != domain.RegimeUncertain || conf != 0 {
			t.Errorf("n=%d: expected (uncertain, 0), got (%s, %v)", n, regime, conf)
		}
	}
}

func TestDetect_LowVolatility(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// Constant returns have zero volatility: score 1.0.
	regime, conf := d.Detect(constantReturns(40, 0.0001))
	if regime != domain.RegimeLowVolatility {
		t.Fatalf("expected low-volatility, got %s", regime)
	}
	if math.Abs(conf-1.0) > 1e-9 {
		t.Errorf("expected confidence 1.0, got %v", conf)
	}
	if d.CurrentRegime() != regime || d.Confidence() != conf {
		t.Errorf("getters disagree with Detect result")
	}
}

func TestDetect_HighVolatility(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// std of +/-0.05 is 0.05; annualised ~0.794 -> score capped at 1.
	// Lag-5 autocorrelation of an alternating series is negative, so the
	// mean-reversion score is positive but cannot beat a capped 1.0 that
	// is evaluated first.
	regime, conf := d.Detect(alternatingReturns(40, 0.05))
	if regime != domain.RegimeHighVolatility {
		t.Fatalf("expected high-volatility, got %s", regime)
	}
	if conf != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", conf)
	}
}

func TestDetect_UncertainKeepsBestScore(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// Period-5 pattern: annualised vol ~0.40 gives a high-vol score near
	// 0.33, and lag-5 autocorrelation is positive so mean reversion does
	// not qualify.
	base := []float64{1, 1, 0, -1, -1}
	returns := make([]float64, 40)
	for i := range returns {
		returns[i] = base[i%5] * 0.028
	}
	st := Classify(DefaultConfig(), returns)
	if st.Metrics.MeanReversion > MeanReversionThreshold {
		t.Fatalf("fixture should not be mean-reverting, got %v", st.Metrics.MeanReversion)
	}

	regime, conf := d.Detect(returns)
	if regime != domain.RegimeUncertain {
		t.Fatalf("expected uncertain, got %s", regime)
	}
	want := (st.Metrics.Volatility - HighVolThreshold) / HighVolThreshold
	if math.Abs(conf-want) > 1e-12 {
		t.Errorf("expected confidence %v, got %v", want, conf)
	}
	if conf <= 0 || conf >= 0.7 {
		t.Errorf("expected best sub-threshold score, got %v", conf)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = math.Sin(float64(i)*0.7) * 0.02
	}

	a := NewDetector(DefaultConfig())
	b := NewDetector(DefaultConfig())
	for i := 0; i < 3; i++ {
		ra, ca := a.Detect(returns)
		rb, cb := b.Detect(returns)
		if ra != rb || ca != cb {
			t.Fatalf("run %d: detectors disagree: (%s,%v) vs (%s,%v)", i, ra, ca, rb, cb)
		}
	}
}

func TestTimeSinceLastDetection(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	d := NewDetector(DefaultConfig(), WithClock(func() time.Time { return now }))

	if got := d.TimeSinceLastDetection(); got != time.Duration(math.MaxInt64) {
		t.Fatalf("expected max duration before first Detect, got %v", got)
	}

	d.Detect(nil)
	now = now.Add(90 * time.Second)
	if got := d.TimeSinceLastDetection(); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
}

func TestAutocorrelation(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		lag  int
		want float64
	}{
		{"constant", constantReturns(10, 0.3), 1, 0},
		{"too short", []float64{1, 2}, 5, 0},
		{"alternating lag 1", alternatingReturns(4, 1), 1, -0.75},
		{"alternating lag 2", alternatingReturns(4, 1), 2, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := autocorrelation(tt.data, tt.lag)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("autocorrelation(%v, %d) = %v, want %v", tt.data, tt.lag, got, tt.want)
			}
		})
	}
}

func TestTrendStrength_ClippedAndSigned(t *testing.T) {
	up := trendStrength(constantReturns(30, 0.01), 10, 30)
	down := trendStrength(constantReturns(30, -0.01), 10, 30)
	if up <= 0 {
		t.Errorf("rising prices should give positive trend, got %v", up)
	}
	if down >= 0 {
		t.Errorf("falling prices should give negative trend, got %v", down)
	}

	huge := trendStrength(constantReturns(30, 1.0), 10, 30)
	if huge != 1 {
		t.Errorf("expected trend clipped to 1, got %v", huge)
	}

	// A -100% return collapses the proxy to zero.
	wiped := trendStrength(constantReturns(30, -1.0), 10, 30)
	if wiped != 0 {
		t.Errorf("expected 0 for non-positive slow mean, got %v", wiped)
	}
}

func TestDetector_MetricsDoesNotMutate(t *testing.T) {
	d := NewDetector(DefaultConfig())
	m := d.Metrics(constantReturns(40, 0.0001))
	if m.Volatility != 0 {
		t.Errorf("expected zero volatility, got %v", m.Volatility)
	}
	if d.CurrentRegime() != domain.RegimeUncertain {
		t.Errorf("Metrics must not change the current regime")
	}
}
