// Package sizing turns signal strength and confidence into a notional
// position size.
package sizing

import (
	"math"

	"regime-trader/internal/domain"
)

// DefaultTargetVol is the annualised volatility AdjustForVolatility targets.
const DefaultTargetVol = 0.15

// Volatility adjustment bounds.
const (
	minVolFactor = 0.25
	maxVolFactor = 2.0
)

// defaultPayoffRatio is used by the Kelly variant when avg loss is not positive.
const defaultPayoffRatio = 2.0

// minPositionPct is the smallest position worth placing, as a fraction of capital.
const minPositionPct = 0.01

// Config holds sizing fractions. All percentages are fractions of capital.
type Config struct {
	BasePositionPct  float64
	MaxPositionPct   float64
	MinConfidence    float64
	MaxTotalExposure float64
	MinStrength      float64
	TargetVol        float64
}

// DefaultConfig returns the standard sizing parameters.
func DefaultConfig() Config {
	return Config{
		BasePositionPct:  0.1,
		MaxPositionPct:   0.2,
		MinConfidence:    0.3,
		MaxTotalExposure: 0.8,
		MinStrength:      0.01,
		TargetVol:        DefaultTargetVol,
	}
}

// PositionSizer computes signed notional sizes. It holds no mutable state.
type PositionSizer struct {
	cfg Config
}

// NewPositionSizer creates a sizer.
func NewPositionSizer(cfg Config) *PositionSizer {
	return &PositionSizer{cfg: cfg}
}

// Config returns the sizer configuration.
func (s *PositionSizer) Config() Config { return s.cfg }

// passesGates reports whether a signal is strong and confident enough to size.
func (s *PositionSizer) passesGates(strength, confidence, capital float64) bool {
	if !(capital > 0) {
		return false
	}
	if confidence < s.cfg.MinConfidence {
		return false
	}
	return math.Abs(strength) >= s.cfg.MinStrength
}

// CalculateSize returns a signed notional for the signal. The regime is
// informational; its effect arrives through regimeMultiplier.
// currentExposurePct is total open exposure as a fraction of capital.
func (s *PositionSizer) CalculateSize(strength, confidence float64, _ domain.Regime, capital, regimeMultiplier, currentExposurePct float64) float64 {
	if !s.passesGates(strength, confidence, capital) {
		return 0
	}

	pct := s.cfg.BasePositionPct * math.Abs(strength) * confidence * regimeMultiplier
	pct = math.Min(pct, s.cfg.MaxPositionPct)

	headroom := s.cfg.MaxTotalExposure - currentExposurePct
	if headroom <= 0 {
		return 0
	}
	if pct > headroom {
		pct = headroom
	}
	if pct <= 0 {
		return 0
	}

	return math.Copysign(pct*capital, strength)
}

// CalculateSizeWithKelly sizes with half-Kelly instead of the base fraction.
func (s *PositionSizer) CalculateSizeWithKelly(winRate, avgWin, avgLoss, strength, confidence, regimeMultiplier, capital float64) float64 {
	if !s.passesGates(strength, confidence, capital) {
		return 0
	}

	f := KellyFraction(winRate, avgWin, avgLoss)
	pct := f * math.Abs(strength) * confidence * regimeMultiplier
	pct = math.Min(pct, s.cfg.MaxPositionPct)
	if pct <= 0 {
		return 0
	}

	return math.Copysign(pct*capital, strength)
}

// KellyFraction returns half-Kelly (p*b - q) / b * 0.5, floored at 0.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	b := defaultPayoffRatio
	if avgLoss > 0 {
		b = avgWin / avgLoss
	}
	if !(b > 0) {
		return 0
	}

	p := winRate
	q := 1 - p
	f := (p*b - q) / b * 0.5
	return math.Max(f, 0)
}

// AdjustForVolatility scales base by target/current, clamped to [0.25, 2].
// A non-positive current volatility leaves base unchanged.
func (s *PositionSizer) AdjustForVolatility(base, currentVol, targetVol float64) float64 {
	if currentVol <= 0 {
		return base
	}
	if targetVol <= 0 {
		targetVol = s.cfg.TargetVol
	}
	factor := math.Max(minVolFactor, math.Min(maxVolFactor, targetVol/currentVol))
	return base * factor
}

// MaxPositionSize is the largest notional a single position may take.
func (s *PositionSizer) MaxPositionSize(capital float64) float64 {
	return s.cfg.MaxPositionPct * capital
}

// MinPositionSize is the smallest notional worth placing.
func (s *PositionSizer) MinPositionSize(capital float64) float64 {
	return minPositionPct * capital
}
