package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/config"
	"regime-trader/internal/feed"
	"regime-trader/internal/live"
	"regime-trader/internal/logging"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	feedURL := flag.String("feed-url", "", "Websocket feed URL (overrides feed.url)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for /health, /status and /metrics (overrides live.metrics_addr)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}
	if *metricsAddr != "" {
		cfg.Live.MetricsAddr = *metricsAddr
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	logger = logger.With().Str("cmd", "live").Logger()

	if cfg.Feed.URL == "" {
		logger.Fatal().Msg("feed url is required (feed.url, REGIME_FEED_URL or -feed-url)")
	}
	if len(cfg.Live.Symbols) == 0 {
		logger.Fatal().Msg("live.symbols is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg)
	done <- err
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("live trading stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, logger zerolog.Logger, cfg *config.Config) error {
	scenario, err := cfg.Backtest.ExecutionScenario()
	if err != nil {
		return err
	}
	trader, err := live.FromConfig(cfg, live.NewPaperExchange(scenario), logger)
	if err != nil {
		return err
	}

	feedCfg := feed.DefaultConfig()
	feedCfg.PingInterval = cfg.Feed.PingInterval
	feedCfg.ReconnectDelay = cfg.Feed.ReconnectDelay
	feedCfg.MaxReconnectDelay = cfg.Feed.MaxReconnect
	feedCfg.BufferSize = cfg.Feed.BufferSize
	feedCfg.Symbols = cfg.Live.Symbols

	ws, err := feed.Dial(ctx, cfg.Feed.URL, &feedCfg, feed.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ws.Close()

	srv := newStatusServer(cfg.Live.MetricsAddr, trader, ws, logger)
	go srv.start()
	defer srv.shutdown()

	logger.Info().
		Str("account", cfg.Live.AccountID).
		Str("symbols", strings.Join(cfg.Live.Symbols, ",")).
		Str("scenario", scenario.ScenarioID).
		Msg("paper trading started")

	err = trader.Run(ctx, ws.Ticks(), ws.Signals())
	logger.Info().
		Int("fills", len(trader.Fills())).
		Int("skipped", len(trader.Skipped())).
		Float64("equity", trader.Equity()).
		Msg("session summary")
	return err
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
