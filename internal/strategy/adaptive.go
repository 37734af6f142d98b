// Package strategy maps market regimes to trading parameters and signal weights.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
)

// ErrInvalidParameter is returned when an update carries an out-of-range value.
var ErrInvalidParameter = errors.New("invalid strategy parameter")

// Parameters are the risk and entry settings for one regime.
type Parameters struct {
	PositionMultiplier float64       // scales position size
	StopLossPct        float64       // fraction of entry price
	TakeProfitPct      float64       // fraction of entry price
	SignalThreshold    float64       // minimum |strength| to trade
	MaxHoldingPeriod   time.Duration // longest a position may be held
}

// Entry is one row of the regime table.
type Entry struct {
	Parameters Parameters
	Weights    map[string]float64
}

// ParameterUpdate merges into an Entry. Nil fields are left unchanged.
type ParameterUpdate struct {
	PositionMultiplier *float64
	StopLossPct        *float64
	TakeProfitPct      *float64
	SignalThreshold    *float64
	MaxHoldingPeriod   *time.Duration
	Weights            map[string]float64 // merged by key
}

// AdaptiveStrategy is a fixed-size regime table. Reads and updates are safe
// for concurrent use.
type AdaptiveStrategy struct {
	mu     sync.RWMutex
	table  [domain.NumRegimes]Entry
	logger zerolog.Logger
}

// Option configures an AdaptiveStrategy.
type Option func(*AdaptiveStrategy)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *AdaptiveStrategy) { s.logger = logger }
}

// NewAdaptiveStrategy creates a strategy with the default table.
func NewAdaptiveStrategy(opts ...Option) *AdaptiveStrategy {
	s := &AdaptiveStrategy{
		table:  defaultTable(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parameters returns the parameters for r. Out-of-range regimes get the
// Uncertain entry.
func (s *AdaptiveStrategy) Parameters(r domain.Regime) Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table[r.Index()].Parameters
}

// SignalWeights returns a copy of the feature weights for r.
func (s *AdaptiveStrategy) SignalWeights(r domain.Regime) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.table[r.Index()].Weights
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// PositionMultiplier returns the size multiplier for r.
func (s *AdaptiveStrategy) PositionMultiplier(r domain.Regime) float64 {
	return s.Parameters(r).PositionMultiplier
}

// SignalThreshold returns the minimum |strength| for r.
func (s *AdaptiveStrategy) SignalThreshold(r domain.Regime) float64 {
	return s.Parameters(r).SignalThreshold
}

// Regimes returns every configured regime in table order.
func (s *AdaptiveStrategy) Regimes() []domain.Regime {
	return domain.AllRegimes()
}

// Update merges u into the entry for r. The table is unchanged on error.
func (s *AdaptiveStrategy) Update(r domain.Regime, u ParameterUpdate) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %v", domain.ErrUnknownRegime, r)
	}
	if err := u.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.table[r]
	p := &e.Parameters
	if u.PositionMultiplier != nil {
		p.PositionMultiplier = *u.PositionMultiplier
	}
	if u.StopLossPct != nil {
		p.StopLossPct = *u.StopLossPct
	}
	if u.TakeProfitPct != nil {
		p.TakeProfitPct = *u.TakeProfitPct
	}
	if u.SignalThreshold != nil {
		p.SignalThreshold = *u.SignalThreshold
	}
	if u.MaxHoldingPeriod != nil {
		p.MaxHoldingPeriod = *u.MaxHoldingPeriod
	}
	if len(u.Weights) > 0 {
		merged := make(map[string]float64, len(e.Weights)+len(u.Weights))
		for k, v := range e.Weights {
			merged[k] = v
		}
		for k, v := range u.Weights {
			merged[k] = v
		}
		e.Weights = merged
	}
	s.table[r] = e

	s.logger.Info().
		Stringer("regime", r).
		Float64("position_multiplier", p.PositionMultiplier).
		Float64("signal_threshold", p.SignalThreshold).
		Int("weights", len(e.Weights)).
		Msg("regime parameters updated")
	return nil
}

func (u ParameterUpdate) validate() error {
	check := func(name string, v *float64, lo, hi float64) error {
		if v == nil {
			return nil
		}
		if math.IsNaN(*v) || *v < lo || *v > hi {
			return fmt.Errorf("%w: %s=%v", ErrInvalidParameter, name, *v)
		}
		return nil
	}

	if err := check("position_multiplier", u.PositionMultiplier, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := check("stop_loss_pct", u.StopLossPct, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := check("take_profit_pct", u.TakeProfitPct, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := check("signal_threshold", u.SignalThreshold, 0, 1); err != nil {
		return err
	}
	if u.MaxHoldingPeriod != nil && *u.MaxHoldingPeriod < 0 {
		return fmt.Errorf("%w: max_holding_period=%v", ErrInvalidParameter, *u.MaxHoldingPeriod)
	}
	for k, w := range u.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %s=%v", ErrInvalidParameter, k, w)
		}
	}
	return nil
}
