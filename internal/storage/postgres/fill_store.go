package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

var fillColumns = []string{
	"fill_id", "run_id", "order_id", "timestamp_ms", "symbol", "side",
	"size", "price", "commission", "regime", "realized_pnl", "closing", "force_close",
}

// InsertBulk adds fills for a run atomically. Fails entire batch on duplicate fill_id.
// Rows are streamed with COPY inside one transaction; a unique violation
// anywhere in the batch rolls back all of it.
func (s *FillStore) InsertBulk(ctx context.Context, fills []domain.Fill) (err error) {
	if len(fills) == 0 {
		return nil
	}
	for _, f := range fills {
		if f.FillID == "" || f.RunID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("fill_insert", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"fills"}, fillColumns,
		pgx.CopyFromSlice(len(fills), func(i int) ([]any, error) {
			f := fills[i]
			return []any{
				f.FillID, f.RunID, f.OrderID, f.Timestamp, f.Symbol, string(f.Side),
				f.Size, f.Price, f.Commission, f.Regime.String(), f.RealizedPnL, f.Closing, f.ForceClose,
			}, nil
		}),
	)
	if err != nil {
		return wrapErr("copy fills", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves all fills for a run, ordered by timestamp ASC, fill_id ASC.
func (s *FillStore) GetByRun(ctx context.Context, runID string) (fills []domain.Fill, err error) {
	defer func(start time.Time) { observe("fill_get", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT fill_id, run_id, order_id, timestamp_ms, symbol, side,
		       size, price, commission, regime, realized_pnl, closing, force_close
		FROM fills
		WHERE run_id = $1
		ORDER BY timestamp_ms ASC, fill_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.Fill
		var side, regime string
		err := rows.Scan(
			&f.FillID, &f.RunID, &f.OrderID, &f.Timestamp, &f.Symbol, &side,
			&f.Size, &f.Price, &f.Commission, &regime, &f.RealizedPnL, &f.Closing, &f.ForceClose,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.Side = domain.Side(side)
		if f.Regime, err = domain.ParseRegime(regime); err != nil {
			return nil, fmt.Errorf("fill %s: %w", f.FillID, err)
		}
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fills: %w", err)
	}
	return fills, nil
}
