package domain

import "math"

// FlatEpsilon is the size below which a position counts as closed.
const FlatEpsilon = 1e-6

// PositionRecord is the running state of one symbol during a run.
type PositionRecord struct {
	Symbol        string
	Size          float64 // signed units; positive is long
	EntryPrice    float64 // volume-weighted entry price of the open size
	RealizedPnL   float64
	UnrealizedPnL float64
	LastPrice     float64
}

// Notional returns |size| * last price.
func (p *PositionRecord) Notional() float64 {
	return math.Abs(p.Size * p.LastPrice)
}

// SignedNotional returns size * last price; negative for a short.
func (p *PositionRecord) SignedNotional() float64 {
	return p.Size * p.LastPrice
}

// IsFlat reports whether the position has no open size.
func (p *PositionRecord) IsFlat() bool {
	return p.Size == 0
}

// Apply books a signed fill of delta units at price. It returns the PnL
// realized by the reducing part and whether the fill reduced the position.
// A fill that crosses zero closes the old side and opens the remainder at
// price.
func (p *PositionRecord) Apply(delta, price float64) (realized float64, reduced bool) {
	switch {
	case delta == 0:
		return 0, false

	case p.Size == 0:
		p.Size = delta
		p.EntryPrice = price
		return 0, false

	case (p.Size > 0) == (delta > 0):
		held, added := math.Abs(p.Size), math.Abs(delta)
		p.EntryPrice = (held*p.EntryPrice + added*price) / (held + added)
		p.Size += delta
		return 0, false
	}

	closed := math.Min(math.Abs(delta), math.Abs(p.Size))
	perUnit := price - p.EntryPrice
	if p.Size < 0 {
		perUnit = -perUnit
	}
	realized = closed * perUnit
	p.RealizedPnL += realized

	remaining := p.Size + delta
	switch {
	case math.Abs(remaining) < FlatEpsilon:
		p.Size = 0
		p.EntryPrice = 0
	case (remaining > 0) != (p.Size > 0):
		p.Size = remaining
		p.EntryPrice = price
	default:
		p.Size = remaining
	}
	return realized, true
}

// Mark revalues the open size at price and returns the unrealized PnL.
func (p *PositionRecord) Mark(price float64) float64 {
	p.LastPrice = price
	if p.Size == 0 {
		p.UnrealizedPnL = 0
		return 0
	}
	p.UnrealizedPnL = p.Size * (price - p.EntryPrice)
	return p.UnrealizedPnL
}
