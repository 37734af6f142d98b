package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

func signal(ts int64, strength float64) domain.Signal {
	return domain.Signal{Timestamp: ts, Strength: strength, Confidence: 0.8, Regime: domain.RegimeTrending}
}

func TestSignalStore_InsertAndRange(t *testing.T) {
	pool := newTestPool(t)

	store := NewSignalStore(pool)
	ctx := context.Background()

	withComponents := signal(2000, -0.4)
	withComponents.Regime = domain.RegimeLowVolatility
	withComponents.Components = map[string]float64{"momentum": -0.6, "carry": 0.1}

	require.NoError(t, store.InsertBulk(ctx, []domain.Signal{signal(3000, 0.2), withComponents, signal(1000, 0.5)}))

	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, signal(1000, 0.5), got[0])
	assert.Equal(t, withComponents, got[1])

	got, err = store.GetByTimeRange(ctx, 5000, 6000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSignalStore_Duplicate(t *testing.T) {
	pool := newTestPool(t)

	store := NewSignalStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.Signal{signal(1000, 0.5)}))
	err := store.InsertBulk(ctx, []domain.Signal{signal(2000, 0.1), signal(1000, 0.3)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, 0, 10000)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch leaves nothing behind")
}

func TestSignalStore_InvalidSignal(t *testing.T) {
	pool := newTestPool(t)

	err := NewSignalStore(pool).InsertBulk(context.Background(), []domain.Signal{signal(1000, 1.5)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
