package live

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
	"regime-trader/internal/observability"
)

// reconcileTolerance is the size difference treated as rounding noise.
const reconcileTolerance = 0.01

// Mismatch is a symbol whose local size disagrees with the exchange.
type Mismatch struct {
	Symbol   string
	Local    float64
	Exchange float64
}

// ReconcileReport summarises one reconciliation.
type ReconcileReport struct {
	OnlyLocal    []string
	OnlyExchange []string
	Mismatches   []Mismatch
	At           time.Time
}

// Clean reports whether local state already matched the exchange.
func (r ReconcileReport) Clean() bool {
	return len(r.OnlyLocal) == 0 && len(r.OnlyExchange) == 0 && len(r.Mismatches) == 0
}

// PositionTracker keeps the local position book. Fills are booked with the
// same rules as the backtest; the exchange stays the source of truth on
// reconciliation.
type PositionTracker struct {
	client ExchangeClient
	limit  float64
	logger zerolog.Logger
	now    func() time.Time

	mu              sync.RWMutex
	positions       map[string]*domain.PositionRecord
	commissions     float64
	lastReconcileAt time.Time
}

// TrackerOption configures a PositionTracker.
type TrackerOption func(*PositionTracker)

// WithTrackerLogger sets the logger.
func WithTrackerLogger(logger zerolog.Logger) TrackerOption {
	return func(t *PositionTracker) { t.logger = logger }
}

// WithTrackerClock sets the clock used for reconciliation timestamps.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *PositionTracker) { t.now = now }
}

// NewPositionTracker creates a tracker. limit is the absolute per-symbol
// position limit used by CanTrade and LimitRemaining.
func NewPositionTracker(client ExchangeClient, limit float64, opts ...TrackerOption) *PositionTracker {
	t := &PositionTracker{
		client:    client,
		limit:     limit,
		logger:    zerolog.Nop(),
		now:       time.Now,
		positions: make(map[string]*domain.PositionRecord),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ApplyFill books a signed fill of delta units at price. It returns the
// realized PnL of any reducing part and whether the fill reduced the position.
func (t *PositionTracker) ApplyFill(symbol string, delta, price, commission float64) (realized float64, reduced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[symbol]
	if !ok {
		pos = &domain.PositionRecord{Symbol: symbol}
		t.positions[symbol] = pos
	}
	before := pos.Size
	realized, reduced = pos.Apply(delta, price)
	pos.Mark(price)
	t.commissions += commission

	t.logger.Info().
		Str("symbol", symbol).
		Float64("size_before", before).
		Float64("size_after", pos.Size).
		Float64("entry", pos.EntryPrice).
		Float64("realized_pnl", realized).
		Msg("position updated")
	return realized, reduced
}

// MarkPrice revalues the symbol's open size. Unknown symbols are ignored.
func (t *PositionTracker) MarkPrice(symbol string, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos, ok := t.positions[symbol]; ok {
		pos.Mark(price)
	}
}

// Size returns the signed size held in symbol.
func (t *PositionTracker) Size(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[symbol]; ok {
		return pos.Size
	}
	return 0
}

// Position returns a copy of the symbol's record.
func (t *PositionTracker) Position(symbol string) (domain.PositionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[symbol]
	if !ok {
		return domain.PositionRecord{}, false
	}
	return *pos, true
}

// Positions returns copies of every non-flat record sorted by symbol.
func (t *PositionTracker) Positions() []domain.PositionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.PositionRecord, 0, len(t.positions))
	for _, pos := range t.positions {
		if !pos.IsFlat() {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Notionals maps symbol to signed size at its last price.
func (t *PositionTracker) Notionals() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.positions))
	for sym, pos := range t.positions {
		out[sym] = pos.SignedNotional()
	}
	return out
}

// TotalExposure sums |size * price| over every position. prices overrides
// the last marked price per symbol and may be nil.
func (t *PositionTracker) TotalExposure(prices map[string]float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, sym := range t.symbolsLocked() {
		pos := t.positions[sym]
		price := pos.LastPrice
		if p, ok := prices[sym]; ok {
			price = p
		}
		total += math.Abs(pos.Size * price)
	}
	return total
}

// UnrealizedPnL sums unrealized PnL over every position.
func (t *PositionTracker) UnrealizedPnL() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, sym := range t.symbolsLocked() {
		total += t.positions[sym].UnrealizedPnL
	}
	return total
}

// Equity is capital less commissions plus realized and unrealized PnL.
func (t *PositionTracker) Equity(capital float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := capital - t.commissions
	for _, sym := range t.symbolsLocked() {
		p := t.positions[sym]
		total += p.RealizedPnL + p.UnrealizedPnL
	}
	return total
}

// CanTrade reports whether a signed trade keeps the position within limit.
func (t *PositionTracker) CanTrade(symbol string, size float64) bool {
	projected := t.Size(symbol) + size
	return projected >= -t.limit && projected <= t.limit
}

// LimitRemaining returns the units that can still be bought and sold.
func (t *PositionTracker) LimitRemaining(symbol string) (buy, sell float64) {
	current := t.Size(symbol)
	return t.limit - current, current + t.limit
}

// Reconcile replaces local sizes and entries with the exchange's view.
// Realized PnL and last prices are kept. Differences are logged and counted.
func (t *PositionTracker) Reconcile(ctx context.Context) (ReconcileReport, error) {
	remote, err := t.client.GetPositions(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("position reconciliation failed")
		return ReconcileReport{}, fmt.Errorf("reconcile positions: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	report := ReconcileReport{At: t.now()}
	for _, sym := range t.symbolsLocked() {
		local := t.positions[sym]
		if local.IsFlat() {
			continue
		}
		r, ok := remote[sym]
		switch {
		case !ok:
			report.OnlyLocal = append(report.OnlyLocal, sym)
		case math.Abs(local.Size-r.Size) > reconcileTolerance:
			report.Mismatches = append(report.Mismatches, Mismatch{Symbol: sym, Local: local.Size, Exchange: r.Size})
		}
	}
	remoteSyms := make([]string, 0, len(remote))
	for sym := range remote {
		remoteSyms = append(remoteSyms, sym)
	}
	sort.Strings(remoteSyms)
	for _, sym := range remoteSyms {
		if local, ok := t.positions[sym]; (!ok || local.IsFlat()) && remote[sym].Size != 0 {
			report.OnlyExchange = append(report.OnlyExchange, sym)
		}
	}

	for sym, local := range t.positions {
		if _, ok := remote[sym]; !ok {
			local.Size = 0
			local.EntryPrice = 0
			local.Mark(local.LastPrice)
		}
	}
	for _, sym := range remoteSyms {
		r := remote[sym]
		local, ok := t.positions[sym]
		if !ok {
			local = &domain.PositionRecord{Symbol: sym, LastPrice: r.EntryPrice}
			t.positions[sym] = local
		}
		local.Size = r.Size
		local.EntryPrice = r.EntryPrice
		local.Mark(local.LastPrice)
	}
	t.lastReconcileAt = report.At

	n := len(report.OnlyLocal) + len(report.OnlyExchange) + len(report.Mismatches)
	for i := 0; i < n; i++ {
		observability.RecordReconcileMismatch()
	}
	if n > 0 {
		t.logger.Warn().
			Strs("only_local", report.OnlyLocal).
			Strs("only_exchange", report.OnlyExchange).
			Int("size_mismatches", len(report.Mismatches)).
			Msg("position reconciliation found differences")
	} else {
		t.logger.Debug().Int("positions", len(remote)).Msg("position reconciliation clean")
	}
	return report, nil
}

// LastReconcile returns the time of the last successful reconciliation.
func (t *PositionTracker) LastReconcile() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastReconcileAt
}

func (t *PositionTracker) symbolsLocked() []string {
	keys := make([]string, 0, len(t.positions))
	for k := range t.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
