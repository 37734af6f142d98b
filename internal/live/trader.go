package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/backtest"
	"regime-trader/internal/domain"
	"regime-trader/internal/idhash"
	"regime-trader/internal/observability"
	"regime-trader/internal/pipeline"
	"regime-trader/internal/regime"
	"regime-trader/internal/replay"
	"regime-trader/internal/risk"
	"regime-trader/internal/strategy"
)

// TraderConfig holds account-level settings.
type TraderConfig struct {
	AccountID      string
	Symbols        []string // traded on every signal, in this order
	InitialCapital float64
	Regime         regime.Config
	Limits         risk.LimitConfig
	Drawdown       risk.DrawdownConfig
	Orders         OrderManagerConfig
	ReconcileEvery time.Duration // 0 disables periodic reconciliation in Run
}

// Trader drives one account. OnTick and OnSignal are serialized by a mutex
// and run the same pipeline the backtester uses.
type Trader struct {
	cfg      TraderConfig
	exchange ExchangeClient
	orders   *OrderManager
	tracker  *PositionTracker
	detector *regime.Detector
	monitor  *risk.DrawdownMonitor
	pipe     *pipeline.Pipeline
	logger   zerolog.Logger

	mu      sync.Mutex
	latest  map[string]domain.MarketDataPoint
	current domain.Regime
	fills   []domain.Fill
	skipped []domain.SkippedSignal
}

// TraderOption configures a Trader.
type TraderOption func(*traderOptions)

type traderOptions struct {
	strategy *strategy.AdaptiveStrategy
	sizing   pipeline.SizingStrategy
	logger   zerolog.Logger
}

// WithTraderStrategy replaces the default regime table.
func WithTraderStrategy(s *strategy.AdaptiveStrategy) TraderOption {
	return func(o *traderOptions) { o.strategy = s }
}

// WithTraderSizing replaces the default UnitSizing.
func WithTraderSizing(s pipeline.SizingStrategy) TraderOption {
	return func(o *traderOptions) { o.sizing = s }
}

// WithTraderLogger sets the logger shared by the trader's components.
func WithTraderLogger(logger zerolog.Logger) TraderOption {
	return func(o *traderOptions) { o.logger = logger }
}

// NewTrader wires an order manager, position tracker, detector and drawdown
// monitor around exchange.
func NewTrader(cfg TraderConfig, exchange ExchangeClient, opts ...TraderOption) *Trader {
	o := traderOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With().Str("account", cfg.AccountID).Logger()
	if o.strategy == nil {
		o.strategy = strategy.NewAdaptiveStrategy(strategy.WithLogger(logger))
	}

	orders := NewOrderManager(exchange, cfg.Orders, WithOrderLogger(logger))
	monitor := risk.NewDrawdownMonitor(cfg.InitialCapital, cfg.Drawdown, risk.WithDrawdownLogger(logger))
	return &Trader{
		cfg:      cfg,
		exchange: exchange,
		orders:   orders,
		tracker:  NewPositionTracker(exchange, orders.Config().PositionLimit, WithTrackerLogger(logger)),
		detector: regime.NewDetector(cfg.Regime, regime.WithLogger(logger)),
		monitor:  monitor,
		pipe: pipeline.New(o.strategy, risk.NewPositionLimiter(cfg.Limits), monitor).
			WithSizingStrategy(o.sizing).
			WithLogger(logger),
		logger:  logger,
		latest:  make(map[string]domain.MarketDataPoint),
		current: domain.RegimeUncertain,
	}
}

// Orders returns the order manager.
func (t *Trader) Orders() *OrderManager { return t.orders }

// Tracker returns the position tracker.
func (t *Trader) Tracker() *PositionTracker { return t.tracker }

// Monitor returns the drawdown monitor.
func (t *Trader) Monitor() *risk.DrawdownMonitor { return t.monitor }

// Regime returns the last detected regime.
func (t *Trader) Regime() domain.Regime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Equity returns the account equity from the local book.
func (t *Trader) Equity() float64 {
	return t.tracker.Equity(t.cfg.InitialCapital)
}

// Fills returns a copy of the trade log.
func (t *Trader) Fills() []domain.Fill {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Fill, len(t.fills))
	copy(out, t.fills)
	return out
}

// Skipped returns a copy of the no-trade decisions.
func (t *Trader) Skipped() []domain.SkippedSignal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.SkippedSignal, len(t.skipped))
	copy(out, t.skipped)
	return out
}

// AcknowledgeSafeMode resets the drawdown monitor out of safe mode.
func (t *Trader) AcknowledgeSafeMode(operator string) error {
	return t.monitor.AcknowledgeAndReset(operator)
}

// OnTick updates the regime, matches resting paper orders, marks the book
// and feeds equity to the drawdown monitor.
func (t *Trader) OnTick(ctx context.Context, tick domain.MarketDataPoint) error {
	if err := tick.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.latest[tick.Symbol]; ok && tick.Timestamp < prev.Timestamp {
		t.logger.Warn().Str("symbol", tick.Symbol).Int64("ts", tick.Timestamp).Int64("last_ts", prev.Timestamp).Msg("stale tick dropped")
		return nil
	}

	if len(tick.Returns) >= backtest.RegimeWarmup {
		t.updateRegime(tick)
	}

	if sink, ok := t.exchange.(QuoteSink); ok {
		for _, o := range sink.OnQuote(tick) {
			t.orders.MarkFilled(o.OrderID)
			t.book(o)
		}
	}

	t.tracker.MarkPrice(tick.Symbol, tick.Price)
	t.latest[tick.Symbol] = tick

	equity := t.Equity()
	t.monitor.Update(equity)
	observability.UpdateRisk(observability.ModeLive, equity, t.monitor.CurrentDrawdown(), int(t.monitor.Level()))
	return nil
}

// OnSignal applies sig to every configured symbol's latest quote.
func (t *Trader) OnSignal(ctx context.Context, sig domain.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.monitor.IsSafeMode() {
		for _, sym := range t.cfg.Symbols {
			t.skip(sig.Timestamp, sym, domain.SkipSafeMode)
		}
		return nil
	}

	for _, sym := range t.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick, ok := t.latest[sym]
		if !ok {
			t.skip(sig.Timestamp, sym, domain.SkipNoMarketForTick)
			continue
		}
		if t.orders.ShouldPauseTrading(sym) {
			t.skip(sig.Timestamp, sym, domain.SkipTradingPaused)
			continue
		}

		d := t.pipe.Decide(sig, tick, t.Equity(), t.committed())
		if !d.Trade() {
			t.skip(sig.Timestamp, sym, d.Reason)
			continue
		}

		if err := t.execute(ctx, d.Intent); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			t.logger.Warn().Err(err).Str("symbol", sym).Msg("order not placed")
			t.skip(sig.Timestamp, sym, domain.SkipOrderFailed)
		}
	}
	return nil
}

// OnEvent dispatches a merged replay event.
func (t *Trader) OnEvent(ctx context.Context, event *replay.Event) error {
	switch event.Type {
	case replay.EventTypeTick:
		return t.OnTick(ctx, *event.Tick)
	case replay.EventTypeSignal:
		return t.OnSignal(ctx, *event.Signal)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Run consumes ticks and signals until ctx is done or both channels close,
// reconciling positions every ReconcileEvery.
func (t *Trader) Run(ctx context.Context, ticks <-chan domain.MarketDataPoint, signals <-chan domain.Signal) error {
	var reconcile <-chan time.Time
	if t.cfg.ReconcileEvery > 0 {
		ticker := time.NewTicker(t.cfg.ReconcileEvery)
		defer ticker.Stop()
		reconcile = ticker.C
	}

	for ticks != nil || signals != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			if err := t.OnTick(ctx, tick); err != nil {
				t.logger.Warn().Err(err).Str("symbol", tick.Symbol).Msg("tick rejected")
			}
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if err := t.OnSignal(ctx, sig); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.logger.Warn().Err(err).Int64("ts", sig.Timestamp).Msg("signal rejected")
			}
		case <-reconcile:
			if _, err := t.tracker.Reconcile(ctx); err != nil {
				t.logger.Error().Err(err).Msg("reconcile")
			}
		}
	}
	return nil
}

// committed is the tracker's signed notionals plus resting orders valued at
// their limit price.
func (t *Trader) committed() map[string]float64 {
	out := t.tracker.Notionals()
	for _, o := range t.orders.ActiveOrders("") {
		out[o.Symbol] += o.SignedVolume() * o.Price
	}
	return out
}

// execute submits an intent and books it if the exchange filled it at once.
func (t *Trader) execute(ctx context.Context, in *pipeline.Intent) error {
	signed := in.Side.Sign() * in.Units
	order, err := t.orders.Submit(ctx, in.Symbol, signed, in.LimitPrice, t.tracker.Size(in.Symbol))
	if err != nil {
		return err
	}
	if order.Status == StatusFilled {
		t.book(*order)
	}
	return nil
}

// book applies an exchange fill to the tracker and appends the trade log.
func (t *Trader) book(o Order) {
	realized, reduced := t.tracker.ApplyFill(o.Symbol, o.SignedVolume(), o.FillPrice, o.Commission)

	t.fills = append(t.fills, domain.Fill{
		FillID:      idhash.ComputeFillID(t.cfg.AccountID, o.OrderID, o.Timestamp, len(t.fills)),
		RunID:       t.cfg.AccountID,
		OrderID:     o.OrderID,
		Timestamp:   o.Timestamp,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Size:        float64(o.Volume),
		Price:       o.FillPrice,
		Commission:  o.Commission,
		Regime:      t.current,
		RealizedPnL: realized,
		Closing:     reduced,
	})
	observability.RecordFill(observability.ModeLive, string(o.Side))
}

func (t *Trader) updateRegime(tick domain.MarketDataPoint) {
	next, confidence := t.detector.Detect(tick.Returns)
	if next == t.current {
		return
	}
	t.logger.Info().
		Int64("ts", tick.Timestamp).
		Stringer("from", t.current).
		Stringer("to", next).
		Float64("confidence", confidence).
		Msg("regime change")
	observability.RecordRegimeChange(observability.ModeLive, next.String())
	t.current = next
}

func (t *Trader) skip(ts int64, symbol string, reason domain.SkipReason) {
	t.skipped = append(t.skipped, domain.SkippedSignal{Timestamp: ts, Symbol: symbol, Reason: reason})
	observability.RecordSkippedSignal(observability.ModeLive, string(reason))
	t.logger.Debug().Int64("ts", ts).Str("symbol", symbol).Str("reason", string(reason)).Msg("signal skipped")
}

var _ replay.ReplayEngine = (*Trader)(nil)
