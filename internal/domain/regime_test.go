package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseRegime_RoundTripsWireNames(t *testing.T) {
	for _, r := range AllRegimes() {
		got, err := ParseRegime(r.String())
		if err != nil {
			t.Fatalf("ParseRegime(%q): %v", r.String(), err)
		}
		if got != r {
			t.Errorf("ParseRegime(%q) = %v, want %v", r.String(), got, r)
		}
	}
}

func TestParseRegime_Unknown(t *testing.T) {
	_, err := ParseRegime("sideways")
	if !errors.Is(err, ErrUnknownRegime) {
		t.Fatalf("expected ErrUnknownRegime, got %v", err)
	}
}

func TestRegime_IndexFallsBackToUncertain(t *testing.T) {
	if Regime(42).Index() != int(RegimeUncertain) {
		t.Errorf("out-of-range regime should index the uncertain slot")
	}
	if Regime(-1).Valid() {
		t.Errorf("negative regime should not be valid")
	}
}

func TestSignal_JSONUsesWireName(t *testing.T) {
	sig := Signal{Timestamp: 1000, Strength: 0.5, Confidence: 0.7, Regime: RegimeHighVolatility}
	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["regime"] != "high-volatility" {
		t.Errorf("regime encoded as %v, want high-volatility", decoded["regime"])
	}

	var back Signal
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	if back.Regime != RegimeHighVolatility {
		t.Errorf("decoded regime %v", back.Regime)
	}
}

func TestMarketDataPoint_Validate(t *testing.T) {
	valid := MarketDataPoint{Timestamp: 1, Symbol: "X", Price: 100, Volume: 0, Bid: 99.9, Ask: 100.1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid point rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(m *MarketDataPoint)
	}{
		{"empty symbol", func(m *MarketDataPoint) { m.Symbol = "" }},
		{"zero price", func(m *MarketDataPoint) { m.Price = 0 }},
		{"negative volume", func(m *MarketDataPoint) { m.Volume = -1 }},
		{"zero bid", func(m *MarketDataPoint) { m.Bid = 0 }},
		{"crossed quote", func(m *MarketDataPoint) { m.Bid = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			if err := m.Validate(); !errors.Is(err, ErrInvalidMarketData) {
				t.Errorf("expected ErrInvalidMarketData, got %v", err)
			}
		})
	}
}

func TestSignal_ValidateBounds(t *testing.T) {
	bad := []Signal{
		{Strength: 1.5, Confidence: 0.5, Regime: RegimeTrending},
		{Strength: 0.5, Confidence: -0.1, Regime: RegimeTrending},
		{Strength: 0.5, Confidence: 0.5, Regime: Regime(9)},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("signal %d should fail validation", i)
		}
	}
}

func TestEquityReturns_DropsNonFinite(t *testing.T) {
	curve := []EquityPoint{{1, 100}, {2, 110}, {3, 0}, {4, 50}}
	got := EquityReturns(curve)
	// 100->110 = 0.1, 110->0 = -1, 0->50 = +Inf dropped
	if len(got) != 2 {
		t.Fatalf("expected 2 returns, got %v", got)
	}
	if math.Abs(got[0]-0.1) > 1e-12 {
		t.Errorf("first return %v", got[0])
	}
	if got[1] != -1 {
		t.Errorf("second return %v, want -1", got[1])
	}
}

func TestScenarioByID(t *testing.T) {
	s, err := ScenarioByID("Realistic")
	if err != nil {
		t.Fatalf("ScenarioByID: %v", err)
	}
	if s.SlippageBps != 5 || s.CommissionBps != 2 {
		t.Errorf("realistic scenario = %+v", s)
	}
	if _, err := ScenarioByID("lunar"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
}
