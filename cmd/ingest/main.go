package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/domain"
	"regime-trader/internal/logging"
	"regime-trader/internal/replay"
	"regime-trader/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	marketPath := flag.String("market", "", "Market data file (defaults to backtest.market_file)")
	signalsPath := flag.String("signals", "", "Signals file (defaults to backtest.signals_file)")
	batchSize := flag.Int("batch-size", 5000, "Rows per insert")
	migrate := flag.Bool("migrate", true, "Apply storage migrations first")
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
	logger = logger.With().Str("cmd", "ingest").Logger()

	if *marketPath == "" {
		*marketPath = cfg.Backtest.MarketFile
	}
	if *signalsPath == "" {
		*signalsPath = cfg.Backtest.SignalsFile
	}
	if *marketPath == "" && *signalsPath == "" {
		logger.Fatal().Msg("nothing to ingest: set -market or -signals")
	}
	if *batchSize <= 0 {
		logger.Fatal().Int("batch_size", *batchSize).Msg("batch size must be positive")
	}
	if cfg.Storage.Backend == backend.Memory {
		logger.Warn().Msg("memory backend selected, ingested data is discarded on exit")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	storeOpts := []backend.Option{backend.WithLogger(logger)}
	if *migrate {
		storeOpts = append(storeOpts, backend.WithMigrations())
	}
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, storeOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer cleanup()

	if err := ingest(ctx, logger, stores, *marketPath, *signalsPath, *batchSize); err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		cleanup()
		os.Exit(1)
	}
}

func ingest(ctx context.Context, logger zerolog.Logger, stores *backend.Stores, marketPath, signalsPath string, batchSize int) error {
	if marketPath != "" {
		ticks, err := replay.LoadMarketFile(marketPath)
		if err != nil {
			return err
		}
		n, err := inBatches(ctx, ticks, batchSize, func(batch []domain.MarketDataPoint) error {
			return stores.Ticks.InsertBulk(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("insert ticks after %d rows: %w", n, err)
		}
		logger.Info().Str("file", marketPath).Int("rows", n).Msg("ticks ingested")
	}

	if signalsPath != "" {
		signals, err := replay.LoadSignalsFile(signalsPath)
		if err != nil {
			return err
		}
		n, err := inBatches(ctx, signals, batchSize, func(batch []domain.Signal) error {
			return stores.Signals.InsertBulk(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("insert signals after %d rows: %w", n, err)
		}
		logger.Info().Str("file", signalsPath).Int("rows", n).Msg("signals ingested")
	}
	return nil
}

// inBatches calls insert on consecutive slices of rows and returns how many
// rows were written before the first failure.
func inBatches[T any](ctx context.Context, rows []T, size int, insert func([]T) error) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += size {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+size, len(rows))
		if err := insert(rows[start:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}
