package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/feed"
	"regime-trader/internal/live"
	"regime-trader/internal/observability"
)

// statusServer serves health, status and metrics for a running trader.
type statusServer struct {
	http    *http.Server
	trader  *live.Trader
	feed    *feed.WSFeed
	started time.Time
	logger  zerolog.Logger
}

func newStatusServer(addr string, trader *live.Trader, ws *feed.WSFeed, logger zerolog.Logger) *statusServer {
	s := &statusServer{trader: trader, feed: ws, started: time.Now(), logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/safe-mode/ack", s.handleAck)

	s.http = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *statusServer) start() {
	s.logger.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("HTTP server error")
	}
}

func (s *statusServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("HTTP server shutdown")
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Regime     string  `json:"regime"`
	Equity     float64 `json:"equity"`
	Drawdown   float64 `json:"drawdown"`
	SafeMode   bool    `json:"safe_mode"`
	Fills      int     `json:"fills"`
	Skipped    int     `json:"skipped"`
	Reconnects int64   `json:"feed_reconnects"`
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Regime:     s.trader.Regime().String(),
		Equity:     s.trader.Equity(),
		Drawdown:   s.trader.Monitor().CurrentDrawdown(),
		SafeMode:   s.trader.Monitor().IsSafeMode(),
		Fills:      len(s.trader.Fills()),
		Skipped:    len(s.trader.Skipped()),
		Reconnects: s.feed.Reconnects(),
	}
	if resp.SafeMode {
		resp.Status = "safe_mode"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleAck leaves safe mode. The operator name is required.
func (s *statusServer) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	operator := r.URL.Query().Get("operator")
	if err := s.trader.AcknowledgeSafeMode(operator); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Warn().Str("operator", operator).Msg("safe mode acknowledged")
	w.WriteHeader(http.StatusNoContent)
}
