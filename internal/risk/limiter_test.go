package risk

import (
	"math"
	"math/rand"
	"testing"
)

const capTolerance = 1e-6

func TestCheckLimit_PerPositionCap(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())

	got := l.CheckLimit(50000, "MUC", 100000, nil)
	if got != 20000 {
		t.Errorf("expected 20000, got %v", got)
	}
	got = l.CheckLimit(-50000, "MUC", 100000, nil)
	if got != -20000 {
		t.Errorf("expected -20000, got %v", got)
	}
	got = l.CheckLimit(4800, "MUC", 100000, nil)
	if got != 4800 {
		t.Errorf("expected 4800 unchanged, got %v", got)
	}
}

func TestCheckLimit_TotalExposure(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())

	positions := map[string]float64{
		"AAA": 20000,
		"BBB": -20000,
		"CCC": 25000,
		"MUC": 15000, // replaced by the proposal, not counted
	}
	// Others total 65000; cap 80000 leaves 15000.
	got := l.CheckLimit(18000, "MUC", 100000, positions)
	if math.Abs(got-15000) > capTolerance {
		t.Errorf("expected 15000, got %v", got)
	}

	positions["DDD"] = 15000
	if got := l.CheckLimit(18000, "MUC", 100000, positions); got != 0 {
		t.Errorf("expected 0 with no headroom, got %v", got)
	}
}

func TestCheckLimit_DegenerateCapital(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())
	for _, capital := range []float64{0, -1000, math.NaN()} {
		if got := l.CheckLimit(1000, "MUC", capital, nil); got != 0 {
			t.Errorf("capital %v: expected 0, got %v", capital, got)
		}
		if l.IsWithinLimits(1000, "MUC", capital, nil) {
			t.Errorf("capital %v: IsWithinLimits must be false", capital)
		}
	}
}

func TestCheckLimit_Properties(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"AAA", "BBB", "CCC", "MUC"}

	for i := 0; i < 2000; i++ {
		capital := 1000 + rng.Float64()*1e6
		positions := make(map[string]float64)
		for _, s := range symbols[:rng.Intn(len(symbols))] {
			positions[s] = (rng.Float64()*2 - 1) * 0.3 * capital
		}
		proposed := (rng.Float64()*2 - 1) * capital

		got := l.CheckLimit(proposed, "MUC", capital, positions)

		if got != 0 && math.Signbit(got) != math.Signbit(proposed) {
			t.Fatalf("case %d: sign flipped: %v -> %v", i, proposed, got)
		}
		if math.Abs(got) > math.Abs(proposed) {
			t.Fatalf("case %d: not monotone: |%v| > |%v|", i, got, proposed)
		}
		if math.Abs(got)/capital > 0.2+capTolerance {
			t.Fatalf("case %d: per-position fraction %v > 0.2", i, math.Abs(got)/capital)
		}
		if total := (otherExposure("MUC", positions) + math.Abs(got)) / capital; got != 0 && total > 0.8+capTolerance {
			t.Fatalf("case %d: total exposure fraction %v > 0.8", i, total)
		}
		if again := l.CheckLimit(got, "MUC", capital, positions); again != got {
			t.Fatalf("case %d: not idempotent: %v -> %v", i, got, again)
		}
		if !l.IsWithinLimits(got, "MUC", capital, positions) {
			t.Fatalf("case %d: clamped value %v reported outside limits", i, got)
		}
		if l.IsWithinLimits(proposed, "MUC", capital, positions) != (got == proposed) {
			t.Fatalf("case %d: IsWithinLimits disagrees with CheckLimit for %v", i, proposed)
		}
	}
}

func TestAvailableExposure(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())
	positions := map[string]float64{"AAA": 30000, "BBB": -20000}

	if got := l.AvailableExposure(100000, positions); math.Abs(got-30000) > capTolerance {
		t.Errorf("AvailableExposure = %v, want 30000", got)
	}
	if got := l.MaxPositionForSymbol("CCC", 100000, positions); math.Abs(got-20000) > capTolerance {
		t.Errorf("MaxPositionForSymbol = %v, want 20000", got)
	}

	positions["CCC"] = 40000
	if got := l.AvailableExposure(100000, positions); got != 0 {
		t.Errorf("AvailableExposure = %v, want 0", got)
	}
	if got := l.MaxPositionForSymbol("DDD", 100000, positions); got != 0 {
		t.Errorf("MaxPositionForSymbol = %v, want 0", got)
	}
}

func TestMaxPositionForSymbol_IgnoresOwnPosition(t *testing.T) {
	l := NewPositionLimiter(DefaultLimitConfig())
	positions := map[string]float64{"AAA": 15000, "BBB": 40000, "CCC": 20000}

	// 75000 is held in total; a symbol's own notional does not count
	// against it, so only an unheld symbol is squeezed to 5000.
	tests := []struct {
		symbol string
		want   float64
	}{
		{"AAA", 20000},
		{"BBB", 20000},
		{"CCC", 20000},
		{"DDD", 5000},
	}
	for _, tt := range tests {
		got := l.MaxPositionForSymbol(tt.symbol, 100000, positions)
		if math.Abs(got-tt.want) > capTolerance {
			t.Errorf("MaxPositionForSymbol(%s) = %v, want %v", tt.symbol, got, tt.want)
		}
		if clamped := l.CheckLimit(1e9, tt.symbol, 100000, positions); math.Abs(clamped-got) > capTolerance {
			t.Errorf("CheckLimit(%s) = %v, MaxPositionForSymbol = %v", tt.symbol, clamped, got)
		}
	}
}
