package strategy

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/domain"
)

// FromConfig creates an AdaptiveStrategy from the default table plus the
// per-regime overrides in cfg. Overrides are applied in regime name order so
// the first error reported is deterministic.
func FromConfig(cfg config.StrategyConfig, logger zerolog.Logger) (*AdaptiveStrategy, error) {
	s := NewAdaptiveStrategy(WithLogger(logger))

	names := make([]string, 0, len(cfg.Overrides))
	for name := range cfg.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r, err := domain.ParseRegime(name)
		if err != nil {
			return nil, err
		}
		o := cfg.Overrides[name]
		if err := s.Update(r, ParameterUpdate{
			PositionMultiplier: o.PositionMultiplier,
			StopLossPct:        o.StopLossPct,
			TakeProfitPct:      o.TakeProfitPct,
			SignalThreshold:    o.SignalThreshold,
			MaxHoldingPeriod:   o.MaxHoldingPeriod,
			Weights:            o.SignalWeights,
		}); err != nil {
			return nil, fmt.Errorf("override %s: %w", name, err)
		}
	}
	return s, nil
}
