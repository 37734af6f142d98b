package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/domain"
)

func TestFromConfig_AppliesOverrides(t *testing.T) {
	cfg := config.StrategyConfig{
		Overrides: map[string]config.RegimeOverride{
			"high-volatility": {PositionMultiplier: ptr(0.25)},
			"uncertain": {
				SignalThreshold:  ptr(0.8),
				MaxHoldingPeriod: ptr(5 * time.Minute),
			},
		},
	}

	s, err := FromConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	if got := s.PositionMultiplier(domain.RegimeHighVolatility); got != 0.25 {
		t.Errorf("high-volatility multiplier = %v, want 0.25", got)
	}
	p := s.Parameters(domain.RegimeUncertain)
	if p.SignalThreshold != 0.8 || p.MaxHoldingPeriod != 5*time.Minute {
		t.Errorf("uncertain overrides not applied: %+v", p)
	}
	if p.PositionMultiplier != 0.3 {
		t.Errorf("unset field must keep default, got %v", p.PositionMultiplier)
	}
}

func TestFromConfig_Empty(t *testing.T) {
	s, err := FromConfig(config.StrategyConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if s.Parameters(domain.RegimeTrending) != NewAdaptiveStrategy().Parameters(domain.RegimeTrending) {
		t.Errorf("expected default table")
	}
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig(config.StrategyConfig{
		Overrides: map[string]config.RegimeOverride{"sideways": {}},
	}, zerolog.Nop())
	if !errors.Is(err, domain.ErrUnknownRegime) {
		t.Errorf("expected ErrUnknownRegime, got %v", err)
	}

	_, err = FromConfig(config.StrategyConfig{
		Overrides: map[string]config.RegimeOverride{"trending": {SignalThreshold: ptr(2.0)}},
	}, zerolog.Nop())
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
