package memory

import (
	"context"
	"sort"
	"sync"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[string]domain.Fill // keyed by fill_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data: make(map[string]domain.Fill),
	}
}

// InsertBulk adds multiple fills atomically. Fails entire batch on any duplicate.
func (s *FillStore) InsertBulk(_ context.Context, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(fills))

	// First pass: check for duplicates (existing + intra-batch)
	for _, f := range fills {
		if f.FillID == "" || f.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.FillID] = struct{}{}
	}

	// Second pass: insert all
	for _, f := range fills {
		s.data[f.FillID] = f
	}
	return nil
}

// GetByRun retrieves all fills for a run, ordered by timestamp ASC, fill_id ASC.
func (s *FillStore) GetByRun(_ context.Context, runID string) ([]domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Fill
	for _, f := range s.data {
		if f.RunID == runID {
			result = append(result, f)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].FillID < result[j].FillID
	})
	return result, nil
}

var _ storage.FillStore = (*FillStore)(nil)
