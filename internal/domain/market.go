package domain

import (
	"fmt"
	"math"
)

// MarketDataPoint is one quote for a symbol. Produced by the feed, read-only afterwards.
type MarketDataPoint struct {
	Timestamp int64     `json:"timestamp"` // unix ms
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Returns   []float64 `json:"returns,omitempty"` // trailing returns, most recent last
}

// Validate checks price, volume and quote bounds.
func (m *MarketDataPoint) Validate() error {
	switch {
	case m.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidMarketData)
	case !(m.Price > 0):
		return fmt.Errorf("%w: price %v must be > 0", ErrInvalidMarketData, m.Price)
	case m.Volume < 0 || math.IsNaN(m.Volume):
		return fmt.Errorf("%w: volume %v must be >= 0", ErrInvalidMarketData, m.Volume)
	case !(m.Bid > 0):
		return fmt.Errorf("%w: bid %v must be > 0", ErrInvalidMarketData, m.Bid)
	case !(m.Ask > 0):
		return fmt.Errorf("%w: ask %v must be > 0", ErrInvalidMarketData, m.Ask)
	case m.Bid > m.Ask:
		return fmt.Errorf("%w: bid %v above ask %v", ErrInvalidMarketData, m.Bid, m.Ask)
	}
	return nil
}

// Signal is a trading signal from the signal-processing collaborator.
type Signal struct {
	Timestamp  int64              `json:"timestamp"`  // unix ms
	Strength   float64            `json:"strength"`   // [-1, 1]
	Confidence float64            `json:"confidence"` // [0, 1]
	Regime     Regime             `json:"regime"`
	Components map[string]float64 `json:"components,omitempty"` // informational only
}

// Validate checks strength and confidence bounds.
func (s *Signal) Validate() error {
	if math.IsNaN(s.Strength) || s.Strength < -1 || s.Strength > 1 {
		return fmt.Errorf("%w: strength %v outside [-1, 1]", ErrInvalidSignal, s.Strength)
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidSignal, s.Confidence)
	}
	if !s.Regime.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownRegime, s.Regime)
	}
	return nil
}
