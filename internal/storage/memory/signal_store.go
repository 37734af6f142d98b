package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[int64]domain.Signal // keyed by timestamp
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[int64]domain.Signal),
	}
}

func copySignal(sig domain.Signal) domain.Signal {
	if sig.Components != nil {
		c := make(map[string]float64, len(sig.Components))
		for k, v := range sig.Components {
			c[k] = v
		}
		sig.Components = c
	}
	return sig
}

// InsertBulk adds multiple signals. Fails entire batch on duplicate timestamp or invalid signal.
func (s *SignalStore) InsertBulk(_ context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(signals))
	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		ts := signals[i].Timestamp
		if _, exists := s.data[ts]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[ts]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[ts] = struct{}{}
	}

	for _, sig := range signals {
		s.data[sig.Timestamp] = copySignal(sig)
	}
	return nil
}

// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by timestamp ASC.
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Signal
	for ts, sig := range s.data {
		if ts >= start && ts <= end {
			result = append(result, copySignal(sig))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
