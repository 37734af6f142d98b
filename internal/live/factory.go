package live

import (
	"fmt"

	"github.com/rs/zerolog"

	"regime-trader/internal/backtest"
	"regime-trader/internal/config"
	"regime-trader/internal/strategy"
)

// ConfigFrom converts the application config to trader settings.
func ConfigFrom(cfg *config.Config) TraderConfig {
	orders := DefaultOrderManagerConfig()
	orders.PositionLimit = cfg.Live.PositionLimit
	orders.MaxRetries = cfg.Live.MaxRetries
	orders.RetryPriceStep = cfg.Live.RetryPriceStep
	orders.MaxRejections = cfg.Live.MaxRejections
	orders.OrdersPerSecond = cfg.Live.OrdersPerSecond
	orders.BreakerTimeout = cfg.Live.BreakerTimeout

	return TraderConfig{
		AccountID:      cfg.Live.AccountID,
		Symbols:        append([]string(nil), cfg.Live.Symbols...),
		InitialCapital: cfg.Backtest.InitialCapital,
		Regime:         cfg.Regime.Detector(),
		Limits:         cfg.Risk.Limits(),
		Drawdown:       cfg.Risk.Drawdown(),
		Orders:         orders,
		ReconcileEvery: cfg.Live.ReconcileEvery,
	}
}

// FromConfig builds a Trader on exchange with the configured regime table
// and the same sizing mode the backtester would use.
func FromConfig(cfg *config.Config, exchange ExchangeClient, logger zerolog.Logger) (*Trader, error) {
	strat, err := strategy.FromConfig(cfg.Strategy, logger)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	return NewTrader(ConfigFrom(cfg), exchange,
		WithTraderStrategy(strat),
		WithTraderSizing(backtest.SizingFrom(cfg)),
		WithTraderLogger(logger),
	), nil
}
