package pipeline

import (
	"regime-trader/internal/domain"
	"regime-trader/internal/sizing"
	"regime-trader/internal/strategy"
)

// unitScale converts strength*confidence into units; a full-strength,
// full-confidence signal asks for 100 units before multipliers.
const unitScale = 100

// SizingInput is everything a sizing strategy may look at.
type SizingInput struct {
	Signal             domain.Signal
	Tick               domain.MarketDataPoint
	Params             strategy.Parameters
	Equity             float64
	ExposurePct        float64 // open exposure / equity
	DrawdownMultiplier float64
}

// SizingStrategy proposes a signed order size in units.
type SizingStrategy interface {
	Size(in SizingInput) float64
}

// SizingFunc adapts a function to SizingStrategy.
type SizingFunc func(in SizingInput) float64

// Size calls f.
func (f SizingFunc) Size(in SizingInput) float64 { return f(in) }

// UnitSizing sizes strength*confidence*100 units, scaled by the regime and
// drawdown multipliers.
type UnitSizing struct{}

// Size implements SizingStrategy.
func (UnitSizing) Size(in SizingInput) float64 {
	return in.Signal.Strength * in.Signal.Confidence * unitScale * in.Params.PositionMultiplier * in.DrawdownMultiplier
}

// NotionalSizing sizes through a PositionSizer as a fraction of equity and
// converts the notional to units at the tick price.
type NotionalSizing struct {
	Sizer *sizing.PositionSizer
}

// Size implements SizingStrategy.
func (n NotionalSizing) Size(in SizingInput) float64 {
	if !(in.Tick.Price > 0) {
		return 0
	}
	notional := n.Sizer.CalculateSize(
		in.Signal.Strength,
		in.Signal.Confidence,
		in.Signal.Regime,
		in.Equity,
		in.Params.PositionMultiplier,
		in.ExposurePct,
	)
	return notional * in.DrawdownMultiplier / in.Tick.Price
}
