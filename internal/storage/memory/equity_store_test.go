package memory

import (
	"context"
	"errors"
	"testing"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

func TestEquityStore_InsertAndGet(t *testing.T) {
	store := NewEquityStore()
	ctx := context.Background()

	points := []domain.EquityPoint{
		{Timestamp: 1000, Equity: 100000},
		{Timestamp: 2000, Equity: 100500},
		{Timestamp: 3000, Equity: 99800},
	}
	if err := store.InsertBulk(ctx, "run1", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	points[0].Equity = 1

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	if got[0].Equity != 100000 {
		t.Errorf("Stored curve aliased caller slice: got %f", got[0].Equity)
	}
	if got[2].Timestamp != 3000 {
		t.Errorf("Order mismatch: got ts %d, want 3000", got[2].Timestamp)
	}
}

func TestEquityStore_DuplicateRun(t *testing.T) {
	store := NewEquityStore()
	ctx := context.Background()
	points := []domain.EquityPoint{{Timestamp: 1000, Equity: 1}}

	if err := store.InsertBulk(ctx, "run1", points); err != nil {
		t.Fatalf("First InsertBulk failed: %v", err)
	}
	err := store.InsertBulk(ctx, "run1", points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEquityStore_UnknownRunIsEmpty(t *testing.T) {
	store := NewEquityStore()

	got, err := store.GetByRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty curve, got %d points", len(got))
	}
}

func TestEquityStore_EmptyRunID(t *testing.T) {
	store := NewEquityStore()

	err := store.InsertBulk(context.Background(), "", []domain.EquityPoint{{Timestamp: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
