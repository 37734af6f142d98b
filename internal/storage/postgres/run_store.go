package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL. The regime
// breakdown lives in its own table and is written in the same transaction.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, strategy_id, scenario_id,
	initial_capital, final_equity, total_pnl, total_return,
	sharpe_ratio, max_drawdown, win_rate,
	total_trades, closing_trades, winning_trades, max_consecutive_losses,
	safe_mode_entered, regime_changes, skipped_signals
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSummary) (err error) {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("run_insert", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (`+runColumns+`) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17
		)
	`,
		r.RunID, r.StrategyID, r.ScenarioID,
		r.InitialCapital, r.FinalEquity, r.TotalPnL, r.TotalReturn,
		r.SharpeRatio, r.MaxDrawdown, r.WinRate,
		r.TotalTrades, r.ClosingTrades, r.WinningTrades, r.MaxConsecutiveLosses,
		r.SafeModeEntered, r.RegimeChanges, r.SkippedSignals,
	)
	if err != nil {
		return wrapErr("insert run", err)
	}

	if len(r.RegimeBreakdown) > 0 {
		batch := &pgx.Batch{}
		for _, reg := range domain.AllRegimes() {
			st, ok := r.RegimeBreakdown[reg]
			if !ok {
				continue
			}
			batch.Queue(`
				INSERT INTO run_regime_stats (run_id, regime, trades, closes, wins, pnl, win_rate)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, r.RunID, reg.String(), st.Trades, st.Closes, st.Wins, st.PnL, st.WinRate)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert regime stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (run *domain.RunSummary, err error) {
	defer func(start time.Time) { observe("run_get", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = $1`, runID)
	run, err = scanRun(row)
	if err != nil {
		return nil, wrapErr("get run "+runID, err)
	}

	if err := s.loadBreakdowns(ctx, map[string]*domain.RunSummary{run.RunID: run}); err != nil {
		return nil, err
	}
	return run, nil
}

// ListByStrategy retrieves all runs for a strategy, ordered by scenario_id, run_id ASC.
func (s *RunStore) ListByStrategy(ctx context.Context, strategyID string) (runs []*domain.RunSummary, err error) {
	defer func(start time.Time) { observe("run_list", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY scenario_id ASC, run_id ASC
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.RunSummary)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
		byID[run.RunID] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	if err := s.loadBreakdowns(ctx, byID); err != nil {
		return nil, err
	}
	return runs, nil
}

// loadBreakdowns fills RegimeBreakdown on every run in byID.
func (s *RunStore) loadBreakdowns(ctx context.Context, byID map[string]*domain.RunSummary) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id, run := range byID {
		ids = append(ids, id)
		run.RegimeBreakdown = make(map[domain.Regime]domain.RegimeStats)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, regime, trades, closes, wins, pnl, win_rate
		FROM run_regime_stats
		WHERE run_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("query regime stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID, name string
		var st domain.RegimeStats
		if err := rows.Scan(&runID, &name, &st.Trades, &st.Closes, &st.Wins, &st.PnL, &st.WinRate); err != nil {
			return fmt.Errorf("scan regime stats: %w", err)
		}
		reg, err := domain.ParseRegime(name)
		if err != nil {
			return fmt.Errorf("regime stats for %s: %w", runID, err)
		}
		byID[runID].RegimeBreakdown[reg] = st
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate regime stats: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var r domain.RunSummary
	err := row.Scan(
		&r.RunID, &r.StrategyID, &r.ScenarioID,
		&r.InitialCapital, &r.FinalEquity, &r.TotalPnL, &r.TotalReturn,
		&r.SharpeRatio, &r.MaxDrawdown, &r.WinRate,
		&r.TotalTrades, &r.ClosingTrades, &r.WinningTrades, &r.MaxConsecutiveLosses,
		&r.SafeModeEntered, &r.RegimeChanges, &r.SkippedSignals,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
