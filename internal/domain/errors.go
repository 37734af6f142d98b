package domain

import "errors"

// Validation errors for domain values.
var (
	// ErrUnknownRegime is returned when a regime name is not one of the five variants.
	ErrUnknownRegime = errors.New("unknown regime")

	// ErrInvalidMarketData is returned when a market data point violates its bounds.
	ErrInvalidMarketData = errors.New("invalid market data")

	// ErrInvalidSignal is returned when a signal violates its bounds.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrUnknownScenario is returned for an unrecognised scenario id.
	ErrUnknownScenario = errors.New("unknown execution scenario")
)
