package strategy

import (
	"errors"
	"testing"
	"time"

	"regime-trader/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestDefaultTable(t *testing.T) {
	s := NewAdaptiveStrategy()

	tests := []struct {
		regime    domain.Regime
		mult      float64
		threshold float64
		hold      time.Duration
	}{
		{domain.RegimeTrending, 1.0, 0.3, time.Hour},
		{domain.RegimeMeanReverting, 0.8, 0.4, 30 * time.Minute},
		{domain.RegimeHighVolatility, 0.5, 0.5, 15 * time.Minute},
		{domain.RegimeLowVolatility, 1.2, 0.25, 2 * time.Hour},
		{domain.RegimeUncertain, 0.3, 0.6, 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.regime.String(), func(t *testing.T) {
			p := s.Parameters(tt.regime)
			if p.PositionMultiplier != tt.mult {
				t.Errorf("multiplier = %v, want %v", p.PositionMultiplier, tt.mult)
			}
			if p.SignalThreshold != tt.threshold {
				t.Errorf("threshold = %v, want %v", p.SignalThreshold, tt.threshold)
			}
			if p.MaxHoldingPeriod != tt.hold {
				t.Errorf("hold = %v, want %v", p.MaxHoldingPeriod, tt.hold)
			}
			if len(s.SignalWeights(tt.regime)) == 0 {
				t.Errorf("no signal weights")
			}
		})
	}
}

func TestUncertainIsMostConservative(t *testing.T) {
	s := NewAdaptiveStrategy()
	u := s.Parameters(domain.RegimeUncertain)

	for _, r := range s.Regimes() {
		if r == domain.RegimeUncertain {
			continue
		}
		p := s.Parameters(r)
		if p.PositionMultiplier <= u.PositionMultiplier {
			t.Errorf("%s multiplier %v not above uncertain %v", r, p.PositionMultiplier, u.PositionMultiplier)
		}
		if p.SignalThreshold >= u.SignalThreshold {
			t.Errorf("%s threshold %v not below uncertain %v", r, p.SignalThreshold, u.SignalThreshold)
		}
	}
}

func TestOutOfRangeRegimeFallsBack(t *testing.T) {
	s := NewAdaptiveStrategy()
	bogus := domain.Regime(42)

	if s.Parameters(bogus) != s.Parameters(domain.RegimeUncertain) {
		t.Errorf("expected uncertain fallback")
	}
	if s.PositionMultiplier(domain.Regime(-1)) != 0.3 {
		t.Errorf("expected uncertain multiplier")
	}
}

func TestSignalWeightsReturnsCopy(t *testing.T) {
	s := NewAdaptiveStrategy()

	w := s.SignalWeights(domain.RegimeTrending)
	w["temp_momentum"] = 99

	if got := s.SignalWeights(domain.RegimeTrending)["temp_momentum"]; got != 0.5 {
		t.Errorf("table mutated through returned map: %v", got)
	}
}

func TestUpdate_Merges(t *testing.T) {
	s := NewAdaptiveStrategy()

	err := s.Update(domain.RegimeTrending, ParameterUpdate{
		SignalThreshold: ptr(0.35),
		Weights:         map[string]float64{"wind_speed": 0.1, "avg_delay": -0.5},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	p := s.Parameters(domain.RegimeTrending)
	if p.SignalThreshold != 0.35 {
		t.Errorf("threshold = %v, want 0.35", p.SignalThreshold)
	}
	if p.PositionMultiplier != 1.0 {
		t.Errorf("untouched field changed: %v", p.PositionMultiplier)
	}

	w := s.SignalWeights(domain.RegimeTrending)
	if w["wind_speed"] != 0.1 || w["avg_delay"] != -0.5 || w["temp_trend"] != 0.6 {
		t.Errorf("weights not merged: %v", w)
	}

	// Other regimes untouched.
	if s.SignalThreshold(domain.RegimeUncertain) != 0.6 {
		t.Errorf("uncertain entry changed")
	}
}

func TestUpdate_Rejects(t *testing.T) {
	s := NewAdaptiveStrategy()

	tests := []struct {
		name string
		u    ParameterUpdate
	}{
		{"negative multiplier", ParameterUpdate{PositionMultiplier: ptr(-0.1)}},
		{"threshold above one", ParameterUpdate{SignalThreshold: ptr(1.5)}},
		{"negative stop", ParameterUpdate{StopLossPct: ptr(-0.01)}},
		{"negative hold", ParameterUpdate{MaxHoldingPeriod: ptr(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Update(domain.RegimeTrending, tt.u); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	if err := s.Update(domain.Regime(9), ParameterUpdate{}); !errors.Is(err, domain.ErrUnknownRegime) {
		t.Errorf("expected ErrUnknownRegime, got %v", err)
	}

	if s.Parameters(domain.RegimeTrending) != NewAdaptiveStrategy().Parameters(domain.RegimeTrending) {
		t.Errorf("rejected updates must leave the table unchanged")
	}
}
