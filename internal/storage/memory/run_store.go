package memory

import (
	"context"
	"sort"
	"sync"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// copyRun deep-copies a summary so callers never share the breakdown map.
func copyRun(r *domain.RunSummary) *domain.RunSummary {
	out := *r
	out.RegimeBreakdown = make(map[domain.Regime]domain.RegimeStats, len(r.RegimeBreakdown))
	for k, v := range r.RegimeBreakdown {
		out.RegimeBreakdown[k] = v
	}
	return &out
}

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// ListByStrategy retrieves all runs for a strategy, ordered by scenario_id, run_id ASC.
func (s *RunStore) ListByStrategy(_ context.Context, strategyID string) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, copyRun(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ScenarioID != result[j].ScenarioID {
			return result[i].ScenarioID < result[j].ScenarioID
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)
