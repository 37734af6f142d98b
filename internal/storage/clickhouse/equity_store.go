package clickhouse

import (
	"context"
	"fmt"
	"time"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// EquityStore implements storage.EquityStore using ClickHouse.
type EquityStore struct {
	conn *Conn
}

// NewEquityStore creates a new EquityStore.
func NewEquityStore(conn *Conn) *EquityStore {
	return &EquityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// InsertBulk stores a run's curve. Returns ErrDuplicateKey if the run already has one.
func (s *EquityStore) InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) (err error) {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("equity_insert", start, err) }(time.Now())

	// MergeTree does not enforce keys, so check before writing
	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve (run_id, seq, timestamp_ms, equity)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, p := range points {
		if err := batch.Append(runID, uint32(i), p.Timestamp, p.Equity); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves the equity curve for a run in insertion order.
func (s *EquityStore) GetByRun(ctx context.Context, runID string) (points []domain.EquityPoint, err error) {
	defer func(start time.Time) { observe("equity_get", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms, equity
		FROM equity_curve
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	return scanEquity(rows)
}

func (s *EquityStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM equity_curve WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEquity(rows chRows) ([]domain.EquityPoint, error) {
	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}
	return points, nil
}
