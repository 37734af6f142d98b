package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// InsertBulk adds signals atomically. Fails entire batch on duplicate timestamp.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []domain.Signal) (err error) {
	if len(signals) == 0 {
		return nil
	}
	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}
	defer func(start time.Time) { observe("signal_insert", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO signals (timestamp_ms, strength, confidence, regime, components)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, sig := range signals {
		var components map[string]float64
		if len(sig.Components) > 0 {
			components = sig.Components
		}
		_, err := tx.Exec(ctx, query, sig.Timestamp, sig.Strength, sig.Confidence, sig.Regime.String(), components)
		if err != nil {
			return wrapErr("insert signal", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by timestamp ASC.
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) (signals []domain.Signal, err error) {
	defer func(begin time.Time) { observe("signal_range", begin, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT timestamp_ms, strength, confidence, regime, components
		FROM signals
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var regime string
		if err := rows.Scan(&sig.Timestamp, &sig.Strength, &sig.Confidence, &regime, &sig.Components); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		reg, err := domain.ParseRegime(regime)
		if err != nil {
			return nil, fmt.Errorf("signal at %d: %w", sig.Timestamp, err)
		}
		sig.Regime = reg
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}
