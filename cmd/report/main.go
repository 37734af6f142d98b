package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"regime-trader/internal/backtest"
	"regime-trader/internal/config"
	"regime-trader/internal/decision"
	"regime-trader/internal/logging"
	"regime-trader/internal/metrics"
	"regime-trader/internal/reporting"
	"regime-trader/internal/storage/backend"
	"regime-trader/internal/verification"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	runID := flag.String("run-id", "", "Stored run to report on (required)")
	baselineID := flag.String("baseline-id", "", "Stored run to compare against")
	output := flag.String("output", "", "Write the Markdown report here instead of stdout")
	strategyCSV := flag.String("runs-csv", "", "Write every stored run of the same strategy as CSV")
	verify := flag.Bool("verify", false, "Recompute the stored summary from fills and equity and report mismatches")
	replayRun := flag.Bool("replay", false, "Re-run the backtest from stored ticks and signals and compare with the stored run")
	symbol := flag.String("symbol", "", "Symbol the run was backtested on, for -replay (empty for all)")
	migrate := flag.Bool("migrate", false, "Apply storage migrations first")
	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(2)
	}

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
	logger = logger.With().Str("cmd", "report").Logger()

	ctx := context.Background()

	storeOpts := []backend.Option{backend.WithLogger(logger)}
	if *migrate {
		storeOpts = append(storeOpts, backend.WithMigrations())
	}
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, storeOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	if *verify {
		mismatches, err := metrics.NewAggregator(stores.Runs, stores.Fills, stores.Equity).Verify(ctx, *runID)
		if err != nil {
			logger.Fatal().Err(err).Msg("verify")
		}
		if len(mismatches) > 0 {
			for _, m := range mismatches {
				color.Red("mismatch: %s", m)
			}
			os.Exit(1)
		}
		color.Green("stored summary matches fills and equity curve")
	}

	if *replayRun {
		bt, err := backtest.FromConfig(cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("backtester")
		}
		verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			RunStore:    stores.Runs,
			FillStore:   stores.Fills,
			TickStore:   stores.Ticks,
			SignalStore: stores.Signals,
			Logger:      logger,
		})
		rng := verification.All
		rng.Symbol = *symbol
		res, err := verifier.VerifyRun(ctx, *runID, bt, rng)
		if err != nil {
			logger.Fatal().Err(err).Msg("replay")
		}
		if !res.Match {
			for _, d := range res.Divergences {
				color.Red("divergence: %s", d)
			}
			os.Exit(1)
		}
		color.Green("replay matches stored run (pnl %.2f)", res.ReplayedPnL)
	}

	gen := reporting.NewGenerator(decision.NewEvaluator(decision.ThresholdsFrom(cfg.Decision))).
		WithStores(stores.Runs, stores.Fills, stores.Equity).
		WithConfidenceLevel(cfg.Decision.ConfidenceLevel)

	report, err := gen.Generate(ctx, *runID, *baselineID)
	if err != nil {
		logger.Fatal().Err(err).Str("run_id", *runID).Msg("generate report")
	}
	md := reporting.RenderMarkdown(report)

	if *output == "" {
		fmt.Print(md)
	} else {
		if err := writeFile(*output, md); err != nil {
			logger.Fatal().Err(err).Msg("write report")
		}
		logger.Info().Str("path", *output).Msg("report written")
	}

	if *strategyCSV != "" {
		runs, err := stores.Runs.ListByStrategy(ctx, report.Summary.StrategyID)
		if err != nil {
			logger.Fatal().Err(err).Msg("list runs")
		}
		if err := writeFile(*strategyCSV, reporting.RenderRunsCSV(runs)); err != nil {
			logger.Fatal().Err(err).Msg("write runs csv")
		}
	}

	if report.Decision != nil && report.Decision.Decision != decision.DecisionGO {
		os.Exit(3)
	}
}

func writeFile(path, body string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
