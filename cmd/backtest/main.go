package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
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
	"regime-trader/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	baselinePath := flag.String("baseline", "", "Config of the baseline strategy to compare against")
	symbol := flag.String("symbol", "", "Symbol to load from storage when no market file is configured (empty for all)")
	outDir := flag.String("out", "", "Directory for report.md, trades.csv and equity.csv")
	persist := flag.Bool("persist", false, "Persist the run summary, fills and equity curve")
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
	logger = logger.With().Str("cmd", "backtest").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := run(ctx, logger, cfg, options{
		baselinePath: *baselinePath,
		symbol:       *symbol,
		outDir:       *outDir,
		persist:      *persist,
		migrate:      *migrate,
	}); err != nil {
		logger.Error().Err(err).Msg("backtest failed")
		os.Exit(1)
	}
}

type options struct {
	baselinePath string
	symbol       string
	outDir       string
	persist      bool
	migrate      bool
}

func run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, opts options) error {
	var storeOpts []backend.Option
	storeOpts = append(storeOpts, backend.WithLogger(logger))
	if opts.migrate {
		storeOpts = append(storeOpts, backend.WithMigrations())
	}
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, storeOpts...)
	if err != nil {
		return err
	}
	defer cleanup()

	market, signals, err := loadInputs(ctx, cfg, stores, opts.symbol)
	if err != nil {
		return err
	}
	logger.Info().Int("ticks", len(market)).Int("signals", len(signals)).Msg("inputs loaded")

	result, err := runConfig(ctx, cfg, logger, market, signals)
	if err != nil {
		return err
	}

	var baseline *domain.BacktestResult
	if opts.baselinePath != "" {
		baseCfg, err := config.LoadWithEnv(opts.baselinePath)
		if err != nil {
			return fmt.Errorf("load baseline config: %w", err)
		}
		baseline, err = runConfig(ctx, baseCfg, logger, market, signals)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
	}

	gen := reporting.NewGenerator(decision.NewEvaluator(decision.ThresholdsFrom(cfg.Decision))).
		WithStores(stores.Runs, stores.Fills, stores.Equity).
		WithConfidenceLevel(cfg.Decision.ConfidenceLevel)

	if opts.persist {
		if err := persist(ctx, stores, result); err != nil {
			return err
		}
		logger.Info().Str("run_id", result.RunID).Msg("run persisted")
	}

	report, err := gen.FromResult(ctx, result, baseline)
	if err != nil {
		return err
	}
	if report.Comparison != nil {
		backtest.LogComparison(logger, report.Comparison.Comparison)
	}

	if opts.outDir != "" {
		if err := writeOutputs(opts.outDir, report, result); err != nil {
			return err
		}
		logger.Info().Str("dir", opts.outDir).Msg("report written")
	}

	printResult(result, report)
	return nil
}

func loadInputs(ctx context.Context, cfg *config.Config, stores *backend.Stores, symbol string) ([]domain.MarketDataPoint, []domain.Signal, error) {
	if cfg.Backtest.MarketFile == "" {
		return replay.NewRunner(stores.Ticks, stores.Signals).Load(ctx, symbol, 0, 1<<63-1)
	}
	market, err := replay.LoadMarketFile(cfg.Backtest.MarketFile)
	if err != nil {
		return nil, nil, err
	}
	var signals []domain.Signal
	if cfg.Backtest.SignalsFile != "" {
		signals, err = replay.LoadSignalsFile(cfg.Backtest.SignalsFile)
		if err != nil {
			return nil, nil, err
		}
	}
	return market, signals, nil
}

func runConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger, market []domain.MarketDataPoint, signals []domain.Signal) (*domain.BacktestResult, error) {
	bt, err := backtest.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return bt.Run(ctx, market, signals)
}

func persist(ctx context.Context, stores *backend.Stores, result *domain.BacktestResult) error {
	if err := stores.Runs.Insert(ctx, result.Summary()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := stores.Fills.InsertBulk(ctx, result.Trades); err != nil {
		return fmt.Errorf("insert fills: %w", err)
	}
	if err := stores.Equity.InsertBulk(ctx, result.RunID, result.EquityCurve); err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}
	return nil
}

func writeOutputs(dir string, report *reporting.Report, result *domain.BacktestResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]string{
		"report.md":  reporting.RenderMarkdown(report),
		"trades.csv": reporting.RenderTradesCSV(result),
		"equity.csv": reporting.RenderEquityCSV(result),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func printResult(r *domain.BacktestResult, report *reporting.Report) {
	bold := color.New(color.Bold)
	bold.Printf("\nRun %s (%s / %s)\n", r.RunID, r.StrategyID, r.ScenarioID)
	fmt.Printf("  Final equity:   %.2f\n", r.FinalEquity)
	fmt.Printf("  Total return:   %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  Sharpe:         %.3f\n", r.SharpeRatio)
	fmt.Printf("  Max drawdown:   %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  Trades:         %d (win rate %.1f%%)\n", r.TotalTrades, r.WinRate*100)
	fmt.Printf("  Regime changes: %d\n", len(r.RegimeChanges))
	if r.SafeModeEntered {
		color.Yellow("  Safe mode was entered during the run")
	}

	if c := report.Comparison; c != nil {
		fmt.Printf("\nvs %s: Sharpe %.3f / %.3f, p=%.4f, winner %s\n",
			c.BaselineStrategyID, c.SharpeA, c.SharpeB, c.PValue, c.Winner)
	}

	if report.Decision == nil {
		return
	}
	fmt.Print("\nDecision: ")
	if report.Decision.Decision == decision.DecisionGO {
		color.New(color.FgGreen, color.Bold).Println(report.Decision.Decision)
	} else {
		color.New(color.FgRed, color.Bold).Println(report.Decision.Decision)
	}
}
