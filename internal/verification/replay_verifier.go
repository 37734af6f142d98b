package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"regime-trader/internal/backtest"
	"regime-trader/internal/replay"
	"regime-trader/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run id doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrConfigMismatch is returned when the backtester cannot have produced
	// the stored run.
	ErrConfigMismatch = errors.New("backtester config does not match stored run")
)

// ReplayVerifier re-runs stored runs from stored ticks and signals.
type ReplayVerifier struct {
	runStore  storage.RunStore
	fillStore storage.FillStore
	replay    *replay.Runner
	logger    zerolog.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore    storage.RunStore
	FillStore   storage.FillStore
	TickStore   storage.TickStore
	SignalStore storage.SignalStore
	Logger      zerolog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:  opts.RunStore,
		fillStore: opts.FillStore,
		replay:    replay.NewRunner(opts.TickStore, opts.SignalStore),
		logger:    opts.Logger,
	}
}

// Range selects the stored inputs a run is replayed over.
type Range struct {
	Symbol   string // empty for every symbol
	From, To int64
}

// All is the full stored range for every symbol.
var All = Range{From: 0, To: 1<<63 - 1}

// VerifyRun replays runID with bt over rng and compares the result with the
// stored summary and fills. A different replayed run id means the inputs or
// cost model changed since the run was stored.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string, bt *backtest.Backtester, rng Range) (*VerificationResult, error) {
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	cfg := bt.Config()
	if cfg.StrategyID != stored.StrategyID || cfg.Scenario.ScenarioID != stored.ScenarioID {
		return nil, fmt.Errorf("%w: run is %s/%s, backtester is %s/%s", ErrConfigMismatch,
			stored.StrategyID, stored.ScenarioID, cfg.StrategyID, cfg.Scenario.ScenarioID)
	}

	storedFills, err := v.fillStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load fills: %w", err)
	}

	replayed, err := v.replay.RunBacktest(ctx, rng.Symbol, rng.From, rng.To, bt)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	divergences := CompareSummaries(stored, replayed.Summary())
	divergences = append(divergences, CompareFills(storedFills, replayed.Trades)...)

	res := &VerificationResult{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
		StoredPnL:   stored.TotalPnL,
		ReplayedPnL: replayed.TotalPnL,
	}
	v.logger.Info().
		Str("run_id", runID).
		Bool("match", res.Match).
		Int("divergences", len(divergences)).
		Msg("run verified")
	return res, nil
}

// VerifyAll verifies every stored run of the backtester's strategy and
// scenario. Replay errors are recorded as divergences, not returned.
func (v *ReplayVerifier) VerifyAll(ctx context.Context, bt *backtest.Backtester, rng Range) (*VerificationReport, error) {
	cfg := bt.Config()
	runs, err := v.runStore.ListByStrategy(ctx, cfg.StrategyID)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{}
	for _, run := range runs {
		if run.ScenarioID != cfg.Scenario.ScenarioID {
			continue
		}
		report.TotalRuns++

		result, err := v.VerifyRun(ctx, run.RunID, bt, rng)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Results = append(report.Results, VerificationResult{
				RunID:     run.RunID,
				StoredPnL: run.TotalPnL,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}
	return report, nil
}
