package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"regime-trader/internal/backtest"
	"regime-trader/internal/config"
	"regime-trader/internal/decision"
	"regime-trader/internal/domain"
	"regime-trader/internal/logging"
	"regime-trader/internal/replay"
	"regime-trader/internal/reporting"
	"regime-trader/internal/simulation"
	"regime-trader/internal/storage/backend"
	"regime-trader/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	scenarios := flag.String("scenarios", "optimistic,realistic,pessimistic,degraded", "Comma-separated execution scenarios")
	baseline := flag.String("baseline", domain.ScenarioRealistic, "Scenario the others are compared against")
	concurrency := flag.Int("concurrency", 0, "Parallel backtests (0 = GOMAXPROCS)")
	csvPath := flag.String("csv", "", "Write the runs table as CSV to this path")
	persist := flag.Bool("persist", false, "Persist every run")
	migrate := flag.Bool("migrate", false, "Apply storage migrations before running")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	logger = logger.With().Str("cmd", "sweep").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := run(ctx, logger, cfg, *scenarios, *baseline, *concurrency, *csvPath, *persist, *migrate); err != nil {
		logger.Error().Err(err).Msg("sweep failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, scenarioList, baseline string, concurrency int, csvPath string, persist, migrate bool) error {
	scenarios, err := parseScenarios(scenarioList)
	if err != nil {
		return err
	}

	if cfg.Backtest.MarketFile == "" {
		return fmt.Errorf("backtest.market_file is required for a sweep")
	}
	market, err := replay.LoadMarketFile(cfg.Backtest.MarketFile)
	if err != nil {
		return err
	}
	var signals []domain.Signal
	if cfg.Backtest.SignalsFile != "" {
		if signals, err = replay.LoadSignalsFile(cfg.Backtest.SignalsFile); err != nil {
			return err
		}
	}

	base, err := backtest.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	strat, err := strategy.FromConfig(cfg.Strategy, logger)
	if err != nil {
		return err
	}
	variants := simulation.ScenarioVariants(base, scenarios)
	for i := range variants {
		variants[i].Strategy = strat
		variants[i].Sizing = backtest.SizingFrom(cfg)
	}

	opts := simulation.SweepOptions{Concurrency: concurrency, Logger: logger}
	if persist {
		var storeOpts []backend.Option
		storeOpts = append(storeOpts, backend.WithLogger(logger))
		if migrate {
			storeOpts = append(storeOpts, backend.WithMigrations())
		}
		stores, cleanup, err := backend.Open(ctx, cfg.Storage, storeOpts...)
		if err != nil {
			return err
		}
		defer cleanup()
		opts.RunStore, opts.FillStore, opts.EquityStore = stores.Runs, stores.Fills, stores.Equity
	}

	results, err := simulation.NewSweepRunner(opts).Run(ctx, market, signals, variants)
	if err != nil {
		return err
	}

	comparisons, err := simulation.CompareAgainst(results, baseline, cfg.Decision.ConfidenceLevel)
	if err != nil {
		return err
	}

	evaluator := decision.NewEvaluator(decision.ThresholdsFrom(cfg.Decision))
	runs := make([]*domain.RunSummary, 0, len(results))
	byRun := make(map[string]*domain.Comparison, len(results))
	names := make(map[string]string, len(results))
	for _, r := range results {
		runs = append(runs, r.Result.Summary())
		names[r.Result.RunID] = r.Variant
		if c, ok := comparisons[r.Variant]; ok {
			byRun[r.Result.RunID] = &c
		}
	}

	inputs, err := decision.NewBuilder(byRun).BuildAll(runs)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-14s %10s %9s %9s %7s  %s\n", "SCENARIO", "RETURN", "SHARPE", "MAX DD", "TRADES", "DECISION")
	for _, in := range inputs {
		res, err := evaluator.Evaluate(*in)
		if err != nil {
			return err
		}
		run := findRun(runs, in.RunID)
		fmt.Printf("%-14s %9.2f%% %9.3f %8.2f%% %7d  ",
			names[in.RunID], run.TotalReturn*100, run.SharpeRatio, run.MaxDrawdown*100, run.TotalTrades)
		printDecision(res.Decision)
	}

	if csvPath != "" {
		sort.Slice(runs, func(i, j int) bool { return runs[i].ScenarioID < runs[j].ScenarioID })
		if err := os.WriteFile(csvPath, []byte(reporting.RenderRunsCSV(runs)), 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Info().Str("path", csvPath).Msg("runs csv written")
	}
	return nil
}

func parseScenarios(list string) ([]domain.ExecutionScenario, error) {
	var out []domain.ExecutionScenario
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s, err := domain.ScenarioByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenarios given")
	}
	return out, nil
}

func findRun(runs []*domain.RunSummary, runID string) *domain.RunSummary {
	for _, r := range runs {
		if r.RunID == runID {
			return r
		}
	}
	return &domain.RunSummary{}
}

func printDecision(d decision.Decision) {
	if d == decision.DecisionGO {
		color.Green("%s", d)
		return
	}
	color.Red("%s", d)
}
