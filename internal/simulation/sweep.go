// Package simulation runs independent backtests in parallel and persists
// their results.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"regime-trader/internal/backtest"
	"regime-trader/internal/domain"
	"regime-trader/internal/pipeline"
	"regime-trader/internal/storage"
	"regime-trader/internal/strategy"
)

// Sweep errors
var (
	ErrNoVariants       = errors.New("no sweep variants")
	ErrDuplicateVariant = errors.New("duplicate sweep variant")
	ErrBaselineNotFound = errors.New("baseline variant not found")
)

// Variant is one backtest configuration in a sweep. Name must be unique, and
// two variants must not share strategy id, scenario id and capital since
// those determine the run id.
type Variant struct {
	Name     string
	Config   backtest.Config
	Strategy *strategy.AdaptiveStrategy // nil uses the built-in table
	Sizing   pipeline.SizingStrategy    // nil uses UnitSizing
}

// Result pairs a variant name with its backtest output.
type Result struct {
	Variant string
	Result  *domain.BacktestResult
}

// SweepOptions contains configuration for creating a SweepRunner.
// Stores are optional; when all three are set every result is persisted.
type SweepOptions struct {
	RunStore    storage.RunStore
	FillStore   storage.FillStore
	EquityStore storage.EquityStore
	Concurrency int // <= 0 uses GOMAXPROCS
	Logger      zerolog.Logger
}

// SweepRunner executes variants concurrently. Each variant gets its own
// Backtester, so runs share no mutable state.
type SweepRunner struct {
	runStore    storage.RunStore
	fillStore   storage.FillStore
	equityStore storage.EquityStore
	concurrency int
	logger      zerolog.Logger
}

// NewSweepRunner creates a sweep runner.
func NewSweepRunner(opts SweepOptions) *SweepRunner {
	n := opts.Concurrency
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &SweepRunner{
		runStore:    opts.RunStore,
		fillStore:   opts.FillStore,
		equityStore: opts.EquityStore,
		concurrency: n,
		logger:      opts.Logger,
	}
}

// ScenarioVariants builds one variant per execution scenario, named by
// scenario id.
func ScenarioVariants(base backtest.Config, scenarios []domain.ExecutionScenario) []Variant {
	out := make([]Variant, 0, len(scenarios))
	for _, sc := range scenarios {
		cfg := base
		cfg.Scenario = sc
		out = append(out, Variant{Name: sc.ScenarioID, Config: cfg})
	}
	return out
}

// Run backtests every variant over the same inputs. Results are sorted by
// scenario id, then variant name. The first failing run cancels the rest.
func (r *SweepRunner) Run(ctx context.Context, market []domain.MarketDataPoint, signals []domain.Signal, variants []Variant) ([]Result, error) {
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	if err := checkVariants(variants); err != nil {
		return nil, err
	}

	results := make([]Result, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, v := range variants {
		g.Go(func() error {
			opts := []backtest.Option{
				backtest.WithLogger(r.logger.With().Str("variant", v.Name).Logger()),
				backtest.WithStrategy(v.Strategy),
				backtest.WithSizingStrategy(v.Sizing),
			}
			res, err := backtest.New(v.Config, opts...).Run(gctx, market, signals)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			results[i] = Result{Variant: v.Name, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Result.ScenarioID, results[j].Result.ScenarioID
		if a != b {
			return a < b
		}
		return results[i].Variant < results[j].Variant
	})

	if r.persists() {
		for _, res := range results {
			if err := r.persist(ctx, res.Result); err != nil {
				return nil, fmt.Errorf("persist variant %s: %w", res.Variant, err)
			}
		}
	}

	r.logger.Info().Int("variants", len(results)).Bool("persisted", r.persists()).Msg("sweep complete")
	return results, nil
}

func (r *SweepRunner) persists() bool {
	return r.runStore != nil && r.fillStore != nil && r.equityStore != nil
}

func (r *SweepRunner) persist(ctx context.Context, res *domain.BacktestResult) error {
	if err := r.runStore.Insert(ctx, res.Summary()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := r.fillStore.InsertBulk(ctx, res.Trades); err != nil {
		return fmt.Errorf("insert fills: %w", err)
	}
	if err := r.equityStore.InsertBulk(ctx, res.RunID, res.EquityCurve); err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}
	return nil
}

type runKey struct {
	strategyID string
	scenarioID string
	capital    float64
	slippage   float64
	commission float64
}

func checkVariants(variants []Variant) error {
	names := make(map[string]struct{}, len(variants))
	keys := make(map[runKey]string, len(variants))
	for _, v := range variants {
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("%w: name %q", ErrDuplicateVariant, v.Name)
		}
		names[v.Name] = struct{}{}

		k := runKey{
			strategyID: v.Config.StrategyID,
			scenarioID: v.Config.Scenario.ScenarioID,
			capital:    v.Config.InitialCapital,
			slippage:   v.Config.Scenario.SlippageBps,
			commission: v.Config.Scenario.CommissionBps,
		}
		if other, dup := keys[k]; dup {
			return fmt.Errorf("%w: %q and %q produce the same run id", ErrDuplicateVariant, other, v.Name)
		}
		keys[k] = v.Name
	}
	return nil
}

// CompareAgainst compares every result with the named baseline. The baseline
// itself is omitted from the returned map.
func CompareAgainst(results []Result, baseline string, confidenceLevel float64) (map[string]domain.Comparison, error) {
	var base *domain.BacktestResult
	for _, r := range results {
		if r.Variant == baseline {
			base = r.Result
			break
		}
	}
	if base == nil {
		return nil, fmt.Errorf("%w: %q", ErrBaselineNotFound, baseline)
	}

	out := make(map[string]domain.Comparison, len(results)-1)
	for _, r := range results {
		if r.Variant == baseline {
			continue
		}
		out[r.Variant] = backtest.CompareStrategies(r.Result, base, confidenceLevel)
	}
	return out, nil
}
