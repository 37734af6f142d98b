package memory

import (
	"context"
	"errors"
	"testing"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunSummary{
		RunID:       "run1",
		StrategyID:  "adaptive",
		ScenarioID:  "realistic",
		SharpeRatio: 1.4,
		RegimeBreakdown: map[domain.Regime]domain.RegimeStats{
			domain.RegimeTrending: {Trades: 2, Closes: 1, Wins: 1, PnL: 12.5, WinRate: 1},
		},
	}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// mutating the caller's map must not leak into the store
	run.RegimeBreakdown[domain.RegimeUncertain] = domain.RegimeStats{Trades: 9}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SharpeRatio != 1.4 {
		t.Errorf("SharpeRatio mismatch: got %f, want %f", got.SharpeRatio, 1.4)
	}
	if len(got.RegimeBreakdown) != 1 {
		t.Errorf("RegimeBreakdown len: got %d, want 1", len(got.RegimeBreakdown))
	}
	if got.RegimeBreakdown[domain.RegimeTrending].PnL != 12.5 {
		t.Errorf("Trending PnL: got %f, want 12.5", got.RegimeBreakdown[domain.RegimeTrending].PnL)
	}
}

func TestRunStore_DuplicateKey(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunSummary{RunID: "run1", StrategyID: "adaptive"}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, run)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_InvalidInput(t *testing.T) {
	store := NewRunStore()

	err := store.Insert(context.Background(), &domain.RunSummary{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRunStore_NotFound(t *testing.T) {
	store := NewRunStore()

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_ListByStrategy_Ordering(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	runs := []*domain.RunSummary{
		{RunID: "r3", StrategyID: "adaptive", ScenarioID: "realistic"},
		{RunID: "r1", StrategyID: "adaptive", ScenarioID: "realistic"},
		{RunID: "r2", StrategyID: "adaptive", ScenarioID: "optimistic"},
		{RunID: "r4", StrategyID: "other", ScenarioID: "optimistic"},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.RunID, err)
		}
	}

	got, err := store.ListByStrategy(ctx, "adaptive")
	if err != nil {
		t.Fatalf("ListByStrategy failed: %v", err)
	}

	want := []string{"r2", "r1", "r3"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d runs, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].RunID != id {
			t.Errorf("Position %d: got %s, want %s", i, got[i].RunID, id)
		}
	}
}
