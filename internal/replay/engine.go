package replay

import (
	"context"

	"regime-trader/internal/domain"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeTick   EventType = "tick"
	EventTypeSignal EventType = "signal"
)

// Event is one item of a merged tick and signal stream.
// Only one of Tick or Signal is set based on Type.
type Event struct {
	Type      EventType
	Timestamp int64
	Tick      *domain.MarketDataPoint
	Signal    *domain.Signal
}

// ReplayEngine processes events one at a time, in order.
type ReplayEngine interface {
	// OnEvent is called for each event. Events are ordered by timestamp,
	// with ticks before signals at the same timestamp.
	OnEvent(ctx context.Context, event *Event) error
}

// TickEngine consumes a fully materialised run.
type TickEngine interface {
	Run(ctx context.Context, market []domain.MarketDataPoint, signals []domain.Signal) (*domain.BacktestResult, error)
}
