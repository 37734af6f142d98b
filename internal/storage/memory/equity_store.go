package memory

import (
	"context"
	"sync"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// EquityStore is an in-memory implementation of storage.EquityStore.
type EquityStore struct {
	mu   sync.RWMutex
	data map[string][]domain.EquityPoint // keyed by run_id
}

// NewEquityStore creates a new in-memory equity store.
func NewEquityStore() *EquityStore {
	return &EquityStore{
		data: make(map[string][]domain.EquityPoint),
	}
}

// InsertBulk stores a run's curve. Returns ErrDuplicateKey if the run already has one.
func (s *EquityStore) InsertBulk(_ context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[runID] = append([]domain.EquityPoint(nil), points...)
	return nil
}

// GetByRun retrieves the equity curve for a run in insertion order.
func (s *EquityStore) GetByRun(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.EquityPoint(nil), s.data[runID]...), nil
}

var _ storage.EquityStore = (*EquityStore)(nil)
