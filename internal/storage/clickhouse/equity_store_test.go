package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

func TestEquityStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityStore(conn)
	ctx := context.Background()

	// Test empty insert
	assert.NoError(t, store.InsertBulk(ctx, "run-1", nil))

	// same timestamp twice keeps insertion order
	curve := []domain.EquityPoint{
		{Timestamp: 1000, Equity: 100000},
		{Timestamp: 2000, Equity: 100250.5},
		{Timestamp: 2000, Equity: 99800},
		{Timestamp: 3000, Equity: 101000},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", curve))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, curve, got)

	// other runs are isolated
	got, err = store.GetByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEquityStore_DuplicateRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityStore(conn)
	ctx := context.Background()

	curve := []domain.EquityPoint{{Timestamp: 1000, Equity: 1}}
	require.NoError(t, store.InsertBulk(ctx, "run-1", curve))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", curve), storage.ErrDuplicateKey)
}

func TestEquityStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityStore(conn)
	err := store.InsertBulk(context.Background(), "", []domain.EquityPoint{{Timestamp: 1, Equity: 1}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
