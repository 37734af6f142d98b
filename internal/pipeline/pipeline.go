// Package pipeline is the signal to order-intent decision path shared by the
// backtester and the live trader.
package pipeline

import (
	"math"

	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
	"regime-trader/internal/risk"
	"regime-trader/internal/strategy"
)

// Aggressive limit offsets applied to the quote so orders cross immediately.
const (
	BuyLimitMultiplier  = 1.01
	SellLimitMultiplier = 0.99
)

// minOrderUnits is the smallest order worth sending.
const minOrderUnits = 1.0

// Intent is an order the pipeline wants placed.
type Intent struct {
	Symbol     string
	Side       domain.Side
	Units      float64 // > 0
	LimitPrice float64
	Notional   float64 // clamped notional at the tick price
	Regime     domain.Regime
}

// Decision is either an Intent or the reason no trade was made.
type Decision struct {
	Intent *Intent
	Reason domain.SkipReason
}

// Trade reports whether the decision carries an intent.
func (d Decision) Trade() bool { return d.Intent != nil }

func noTrade(reason domain.SkipReason) Decision {
	return Decision{Reason: reason}
}

// Pipeline runs threshold gating, sizing and risk clamping for one signal.
// It holds no state of its own; the monitor it reads is shared with the caller.
type Pipeline struct {
	strategy *strategy.AdaptiveStrategy
	limiter  *risk.PositionLimiter
	monitor  *risk.DrawdownMonitor
	sizing   SizingStrategy
	logger   zerolog.Logger
}

// New creates a pipeline with UnitSizing.
func New(strat *strategy.AdaptiveStrategy, limiter *risk.PositionLimiter, monitor *risk.DrawdownMonitor) *Pipeline {
	return &Pipeline{
		strategy: strat,
		limiter:  limiter,
		monitor:  monitor,
		sizing:   UnitSizing{},
		logger:   zerolog.Nop(),
	}
}

// WithSizingStrategy replaces the sizing strategy. A nil s keeps the current one.
func (p *Pipeline) WithSizingStrategy(s SizingStrategy) *Pipeline {
	if s != nil {
		p.sizing = s
	}
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger zerolog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// Strategy returns the regime table.
func (p *Pipeline) Strategy() *strategy.AdaptiveStrategy { return p.strategy }

// Monitor returns the drawdown monitor.
func (p *Pipeline) Monitor() *risk.DrawdownMonitor { return p.monitor }

// Decide turns a signal into an order intent. equity is used as capital for
// the limiter. positions maps symbol to signed committed notional: the open
// position plus unfilled orders. The limiter clamps the position the order
// would leave behind, so repeated signals cannot stack past the caps.
func (p *Pipeline) Decide(sig domain.Signal, tick domain.MarketDataPoint, equity float64, positions map[string]float64) Decision {
	if p.monitor.IsSafeMode() {
		return noTrade(domain.SkipSafeMode)
	}

	params := p.strategy.Parameters(sig.Regime)
	if math.Abs(sig.Strength) < params.SignalThreshold {
		return noTrade(domain.SkipBelowThreshold)
	}

	units := p.sizing.Size(SizingInput{
		Signal:             sig,
		Tick:               tick,
		Params:             params,
		Equity:             equity,
		ExposurePct:        exposurePct(positions, equity),
		DrawdownMultiplier: p.monitor.Multiplier(),
	})
	if math.IsNaN(units) || math.Abs(units) < minOrderUnits {
		return noTrade(domain.SkipBelowMinSize)
	}
	if !(tick.Price > 0) {
		return noTrade(domain.SkipBelowMinSize)
	}

	proposed := units * tick.Price
	held := positions[tick.Symbol]
	target := p.limiter.CheckLimit(held+proposed, tick.Symbol, equity, positions)
	clamped := orderNotional(proposed, target-held)
	adjusted := clamped / tick.Price
	if math.Abs(adjusted) < minOrderUnits {
		return noTrade(domain.SkipClampedToZero)
	}

	side := domain.SideFor(adjusted)
	limit := tick.Bid * SellLimitMultiplier
	if side == domain.SideBuy {
		limit = tick.Ask * BuyLimitMultiplier
	}

	p.logger.Debug().
		Str("symbol", tick.Symbol).
		Stringer("regime", sig.Regime).
		Str("side", string(side)).
		Float64("proposed_notional", proposed).
		Float64("held_notional", held).
		Float64("target_notional", target).
		Float64("clamped_notional", clamped).
		Float64("limit", limit).
		Msg("order intent")

	return Decision{Intent: &Intent{
		Symbol:     tick.Symbol,
		Side:       side,
		Units:      math.Abs(adjusted),
		LimitPrice: limit,
		Notional:   math.Abs(clamped),
		Regime:     sig.Regime,
	}}
}

// orderNotional limits the move toward the clamped target to the proposed
// direction and size. A position already over a cap may be reduced by the
// proposal but never grown, and an order is never larger than proposed.
func orderNotional(proposed, delta float64) float64 {
	if math.IsNaN(delta) || delta*proposed <= 0 {
		return 0
	}
	if math.Abs(delta) > math.Abs(proposed) {
		return proposed
	}
	return delta
}

// exposurePct returns total |notional| / equity, or 0 without equity.
func exposurePct(positions map[string]float64, equity float64) float64 {
	if !(equity > 0) {
		return 0
	}
	var total float64
	for _, n := range positions {
		total += math.Abs(n)
	}
	return total / equity
}
