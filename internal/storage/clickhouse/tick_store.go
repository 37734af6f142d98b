package clickhouse

import (
	"context"
	"fmt"
	"time"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

type tickKey struct {
	symbol    string
	timestamp int64
}

// InsertBulk adds ticks atomically. Fails entire batch on duplicate (symbol, timestamp).
func (s *TickStore) InsertBulk(ctx context.Context, ticks []domain.MarketDataPoint) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("tick_insert", start, err) }(time.Now())

	// Validate and check intra-batch duplicates
	seen := make(map[tickKey]struct{}, len(ticks))
	for i := range ticks {
		if err := ticks[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		k := tickKey{ticks[i].Symbol, ticks[i].Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for k := range seen {
		exists, err := s.exists(ctx, k)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (symbol, timestamp_ms, price, volume, bid, ask, returns)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		returns := t.Returns
		if returns == nil {
			returns = []float64{}
		}
		if err := batch.Append(t.Symbol, t.Timestamp, t.Price, t.Volume, t.Bid, t.Ask, returns); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves ticks within [start, end] (inclusive), ordered by
// timestamp ASC, symbol ASC. An empty symbol matches every symbol.
func (s *TickStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (ticks []domain.MarketDataPoint, err error) {
	defer func(begin time.Time) { observe("tick_range", begin, err) }(time.Now())

	query := `
		SELECT symbol, timestamp_ms, price, volume, bid, ask, returns
		FROM ticks
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
	`
	args := []any{start, end}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY timestamp_ms ASC, symbol ASC"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

func (s *TickStore) exists(ctx context.Context, k tickKey) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM ticks
		WHERE symbol = ? AND timestamp_ms = ?
	`, k.symbol, k.timestamp).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTicks scans multiple rows. An empty returns array reads back as nil.
func scanTicks(rows chRows) ([]domain.MarketDataPoint, error) {
	var ticks []domain.MarketDataPoint
	for rows.Next() {
		var t domain.MarketDataPoint
		var returns []float64
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &t.Price, &t.Volume, &t.Bid, &t.Ask, &returns); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		if len(returns) > 0 {
			t.Returns = returns
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	return ticks, nil
}
