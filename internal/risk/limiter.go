// Package risk enforces position limits and drawdown-triggered risk reduction.
package risk

import (
	"math"
	"sort"
)

// LimitConfig holds exposure caps as fractions of capital.
type LimitConfig struct {
	MaxPositionPct      float64
	MaxTotalExposurePct float64
}

// DefaultLimitConfig returns 20% per position and 80% total.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		MaxPositionPct:      0.2,
		MaxTotalExposurePct: 0.8,
	}
}

// PositionLimiter clamps proposed notionals against per-position and
// aggregate exposure caps. It is stateless; positions are passed in.
type PositionLimiter struct {
	cfg LimitConfig
}

// NewPositionLimiter creates a limiter.
func NewPositionLimiter(cfg LimitConfig) *PositionLimiter {
	return &PositionLimiter{cfg: cfg}
}

// Config returns the limiter configuration.
func (l *PositionLimiter) Config() LimitConfig { return l.cfg }

// CheckLimit returns proposed shrunk to fit both caps. The result keeps the
// sign of proposed and never exceeds it in magnitude. positions maps symbol
// to notional; the entry for symbol itself is ignored since the proposal
// replaces it.
func (l *PositionLimiter) CheckLimit(proposed float64, symbol string, capital float64, positions map[string]float64) float64 {
	if !(capital > 0) || proposed == 0 || math.IsNaN(proposed) {
		return 0
	}

	size := math.Abs(proposed)

	maxPosition := l.cfg.MaxPositionPct * capital
	if size > maxPosition {
		size = maxPosition
	}

	headroom := l.cfg.MaxTotalExposurePct*capital - otherExposure(symbol, positions)
	if headroom <= 0 {
		return 0
	}
	if size > headroom {
		size = headroom
	}

	return math.Copysign(size, proposed)
}

// IsWithinLimits reports whether CheckLimit would leave proposed unchanged.
func (l *PositionLimiter) IsWithinLimits(proposed float64, symbol string, capital float64, positions map[string]float64) bool {
	if !(capital > 0) {
		return false
	}
	size := math.Abs(proposed)
	if size == 0 {
		return true
	}
	if math.IsNaN(size) || size > l.cfg.MaxPositionPct*capital {
		return false
	}
	return size <= l.cfg.MaxTotalExposurePct*capital-otherExposure(symbol, positions)
}

// AvailableExposure is the unused part of the aggregate cap across all positions.
func (l *PositionLimiter) AvailableExposure(capital float64, positions map[string]float64) float64 {
	if !(capital > 0) {
		return 0
	}
	return math.Max(0, l.cfg.MaxTotalExposurePct*capital-otherExposure("", positions))
}

// MaxPositionForSymbol is the largest |notional| symbol may hold: the tighter
// of the per-position cap and the aggregate headroom left by every other
// symbol. It equals CheckLimit of an unbounded proposal.
func (l *PositionLimiter) MaxPositionForSymbol(symbol string, capital float64, positions map[string]float64) float64 {
	if !(capital > 0) {
		return 0
	}
	headroom := math.Max(0, l.cfg.MaxTotalExposurePct*capital-otherExposure(symbol, positions))
	return math.Min(l.cfg.MaxPositionPct*capital, headroom)
}

// otherExposure sums |notional| over every symbol except symbol. Symbols are
// summed in sorted order so repeated calls agree to the last bit.
func otherExposure(symbol string, positions map[string]float64) float64 {
	keys := make([]string, 0, len(positions))
	for s := range positions {
		if s != symbol {
			keys = append(keys, s)
		}
	}
	sort.Strings(keys)

	var total float64
	for _, s := range keys {
		total += math.Abs(positions[s])
	}
	return total
}
