package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"regime-trader/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy_id|scenario_id|slippage_bps|commission_bps|initial_capital|input_digest)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	strategyID string,
	scenario domain.ExecutionScenario,
	initialCapital float64,
	inputDigest string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		strategyID,
		scenario.ScenarioID,
		math.Float64bits(scenario.SlippageBps),
		math.Float64bits(scenario.CommissionBps),
		math.Float64bits(initialCapital),
		inputDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeInputDigest hashes the market data and signals a run consumes.
// Floats are hashed by bit pattern so the digest is exact.
// Signal components are informational and excluded.
func ComputeInputDigest(market []domain.MarketDataPoint, signals []domain.Signal) string {
	h := sha256.New()
	for i := range market {
		m := &market[i]
		fmt.Fprintf(h, "t|%d|%s|%d|%d|%d|%d|%d",
			m.Timestamp, m.Symbol,
			math.Float64bits(m.Price), math.Float64bits(m.Volume),
			math.Float64bits(m.Bid), math.Float64bits(m.Ask),
			len(m.Returns))
		for _, r := range m.Returns {
			fmt.Fprintf(h, "|%d", math.Float64bits(r))
		}
		h.Write([]byte{'\n'})
	}
	for i := range signals {
		s := &signals[i]
		fmt.Fprintf(h, "s|%d|%d|%d|%d\n",
			s.Timestamp,
			math.Float64bits(s.Strength), math.Float64bits(s.Confidence),
			int(s.Regime))
	}
	return hex.EncodeToString(h.Sum(nil))
}
