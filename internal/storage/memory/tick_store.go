package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string]domain.MarketDataPoint // keyed by (symbol, timestamp)
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string]domain.MarketDataPoint),
	}
}

// tickKey generates a unique key for a tick.
func tickKey(symbol string, timestamp int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestamp)
}

// copyTick copies the returns window so stored ticks stay immutable.
func copyTick(t domain.MarketDataPoint) domain.MarketDataPoint {
	t.Returns = append([]float64(nil), t.Returns...)
	return t
}

// InsertBulk adds multiple ticks. Fails entire batch on duplicate or invalid tick.
func (s *TickStore) InsertBulk(_ context.Context, ticks []domain.MarketDataPoint) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(ticks))
	for i := range ticks {
		if err := ticks[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		key := tickKey(ticks[i].Symbol, ticks[i].Timestamp)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, t := range ticks {
		s.data[tickKey(t.Symbol, t.Timestamp)] = copyTick(t)
	}
	return nil
}

// GetByTimeRange retrieves ticks within [start, end] (inclusive), ordered by
// timestamp ASC, symbol ASC. An empty symbol matches every symbol.
func (s *TickStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]domain.MarketDataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.MarketDataPoint
	for _, t := range s.data {
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		if t.Timestamp >= start && t.Timestamp <= end {
			result = append(result, copyTick(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.TickStore = (*TickStore)(nil)
