package replay

import (
	"fmt"

	"regime-trader/internal/domain"
)

// ValidateMarketData checks that tick timestamps never decrease. Equal
// timestamps are allowed for different symbols.
func ValidateMarketData(ticks []domain.MarketDataPoint) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp < ticks[i-1].Timestamp {
			return fmt.Errorf("%w: market data index %d: %d after %d",
				ErrChronologyViolation, i, ticks[i].Timestamp, ticks[i-1].Timestamp)
		}
	}
	return nil
}

// ValidateSignals checks that signal timestamps never decrease.
func ValidateSignals(signals []domain.Signal) error {
	for i := 1; i < len(signals); i++ {
		if signals[i].Timestamp < signals[i-1].Timestamp {
			return fmt.Errorf("%w: signal index %d: %d after %d",
				ErrChronologyViolation, i, signals[i].Timestamp, signals[i-1].Timestamp)
		}
	}
	return nil
}

// MergeEvents combines validated ticks and signals into one stream ordered by
// timestamp. At equal timestamps ticks come first so a signal sees the quote
// it was generated against. Relative order within each input is preserved.
func MergeEvents(ticks []domain.MarketDataPoint, signals []domain.Signal) []*Event {
	events := make([]*Event, 0, len(ticks)+len(signals))

	i, j := 0, 0
	for i < len(ticks) || j < len(signals) {
		takeTick := j >= len(signals) || (i < len(ticks) && ticks[i].Timestamp <= signals[j].Timestamp)
		if takeTick {
			events = append(events, &Event{
				Type:      EventTypeTick,
				Timestamp: ticks[i].Timestamp,
				Tick:      &ticks[i],
			})
			i++
			continue
		}
		events = append(events, &Event{
			Type:      EventTypeSignal,
			Timestamp: signals[j].Timestamp,
			Signal:    &signals[j],
		})
		j++
	}
	return events
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, tick before signal)
func compareEvents(a, b *Event) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Type != b.Type {
		if a.Type == EventTypeTick {
			return -1
		}
		return 1
	}
	return 0
}

// ValidateEvents checks that a merged stream is in replay order.
func ValidateEvents(events []*Event) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) > 0 {
			return fmt.Errorf("%w: event index %d", ErrChronologyViolation, i)
		}
	}
	return nil
}
