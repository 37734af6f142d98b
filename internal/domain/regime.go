package domain

import (
	"fmt"
)

// Regime is a market-state label derived from recent returns.
type Regime int

// Regime values. The zero value is Trending; use Uncertain as the neutral default.
const (
	RegimeTrending Regime = iota
	RegimeMeanReverting
	RegimeHighVolatility
	RegimeLowVolatility
	RegimeUncertain
)

// NumRegimes is the number of Regime variants. Tables indexed by Regime use this length.
const NumRegimes = 5

var regimeNames = [NumRegimes]string{
	RegimeTrending:       "trending",
	RegimeMeanReverting:  "mean-reverting",
	RegimeHighVolatility: "high-volatility",
	RegimeLowVolatility:  "low-volatility",
	RegimeUncertain:      "uncertain",
}

// AllRegimes returns every regime in table order.
func AllRegimes() []Regime {
	return []Regime{
		RegimeTrending,
		RegimeMeanReverting,
		RegimeHighVolatility,
		RegimeLowVolatility,
		RegimeUncertain,
	}
}

// Valid reports whether r is one of the five variants.
func (r Regime) Valid() bool {
	return r >= RegimeTrending && r <= RegimeUncertain
}

// Index returns the table slot for r. Out-of-range values map to Uncertain.
func (r Regime) Index() int {
	if !r.Valid() {
		return int(RegimeUncertain)
	}
	return int(r)
}

// String returns the wire name of the regime.
func (r Regime) String() string {
	if !r.Valid() {
		return fmt.Sprintf("regime(%d)", int(r))
	}
	return regimeNames[r]
}

// ParseRegime converts a wire name into a Regime.
func ParseRegime(s string) (Regime, error) {
	for i, name := range regimeNames {
		if name == s {
			return Regime(i), nil
		}
	}
	return RegimeUncertain, fmt.Errorf("%w: %q", ErrUnknownRegime, s)
}

// MarshalText encodes the regime as its wire name.
func (r Regime) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRegime, int(r))
	}
	return []byte(regimeNames[r]), nil
}

// UnmarshalText decodes a wire name.
func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := ParseRegime(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RegimeChange records a transition observed during a run.
type RegimeChange struct {
	Timestamp  int64 // unix ms
	From       Regime
	To         Regime
	Confidence float64
}
