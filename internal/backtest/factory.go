package backtest

import (
	"fmt"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/pipeline"
	"regime-trader/internal/sizing"
	"regime-trader/internal/strategy"
)

// Sizing modes accepted in configuration.
const (
	SizingUnit     = "unit"
	SizingNotional = "notional"
)

// ConfigFrom converts the application config to run settings.
func ConfigFrom(cfg *config.Config) (Config, error) {
	scenario, err := cfg.Backtest.ExecutionScenario()
	if err != nil {
		return Config{}, fmt.Errorf("backtest scenario: %w", err)
	}
	return Config{
		StrategyID:     cfg.Backtest.StrategyID,
		InitialCapital: cfg.Backtest.InitialCapital,
		Scenario:       scenario,
		Regime:         cfg.Regime.Detector(),
		Limits:         cfg.Risk.Limits(),
		Drawdown:       cfg.Risk.Drawdown(),
	}, nil
}

// SizingFrom returns the sizing strategy named by cfg.Backtest.Sizing.
func SizingFrom(cfg *config.Config) pipeline.SizingStrategy {
	if cfg.Backtest.Sizing == SizingNotional {
		return pipeline.NotionalSizing{Sizer: sizing.NewPositionSizer(cfg.Sizing.Sizer())}
	}
	return pipeline.UnitSizing{}
}

// FromConfig builds a Backtester with the configured regime table and sizing.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Backtester, error) {
	runCfg, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.FromConfig(cfg.Strategy, logger)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	return New(runCfg,
		WithStrategy(strat),
		WithSizingStrategy(SizingFrom(cfg)),
		WithLogger(logger),
	), nil
}
