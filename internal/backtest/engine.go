// Package backtest replays market data and signals through the shared
// decision pipeline and simulates fills with slippage and commission.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
	"regime-trader/internal/idhash"
	"regime-trader/internal/metrics"
	"regime-trader/internal/observability"
	"regime-trader/internal/pipeline"
	"regime-trader/internal/regime"
	"regime-trader/internal/replay"
	"regime-trader/internal/risk"
	"regime-trader/internal/strategy"
)

// RegimeWarmup is the number of trailing returns a tick needs before the
// detector runs on it.
const RegimeWarmup = 30

// Config holds run-level settings.
type Config struct {
	StrategyID     string
	InitialCapital float64
	Scenario       domain.ExecutionScenario
	Regime         regime.Config
	Limits         risk.LimitConfig
	Drawdown       risk.DrawdownConfig
}

// DefaultConfig returns 100000 initial capital under the realistic scenario
// (5 bps slippage, 2 bps commission).
func DefaultConfig() Config {
	return Config{
		StrategyID:     "adaptive",
		InitialCapital: 100000,
		Scenario:       domain.ScenarioConfigRealistic,
		Regime:         regime.DefaultConfig(),
		Limits:         risk.DefaultLimitConfig(),
		Drawdown:       risk.DefaultDrawdownConfig(),
	}
}

// Backtester runs deterministic simulations. Every Run builds its own
// detector, drawdown monitor and position book, so one Backtester may serve
// several sequential or concurrent runs. The strategy table is shared and
// read-only during a run.
type Backtester struct {
	cfg      Config
	strategy *strategy.AdaptiveStrategy
	sizing   pipeline.SizingStrategy
	logger   zerolog.Logger
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithStrategy replaces the default regime table.
func WithStrategy(s *strategy.AdaptiveStrategy) Option {
	return func(b *Backtester) {
		if s != nil {
			b.strategy = s
		}
	}
}

// WithSizingStrategy replaces the default UnitSizing for every run.
func WithSizingStrategy(s pipeline.SizingStrategy) Option {
	return func(b *Backtester) {
		if s != nil {
			b.sizing = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backtester) { b.logger = logger }
}

// New creates a Backtester.
func New(cfg Config, opts ...Option) *Backtester {
	b := &Backtester{
		cfg:    cfg,
		sizing: pipeline.UnitSizing{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.strategy == nil {
		b.strategy = strategy.NewAdaptiveStrategy(strategy.WithLogger(b.logger))
	}
	return b
}

// Config returns the run settings.
func (b *Backtester) Config() Config { return b.cfg }

// Strategy returns the regime table used by every run.
func (b *Backtester) Strategy() *strategy.AdaptiveStrategy { return b.strategy }

// Run replays market and signals with the configured sizing strategy.
// Every record is validated and both inputs must be in non-decreasing
// timestamp order.
func (b *Backtester) Run(ctx context.Context, market []domain.MarketDataPoint, signals []domain.Signal) (*domain.BacktestResult, error) {
	return b.RunWithSizing(ctx, market, signals, b.sizing)
}

// RunWithSizing is Run with a one-off sizing strategy. A nil s uses the
// configured one.
func (b *Backtester) RunWithSizing(ctx context.Context, market []domain.MarketDataPoint, signals []domain.Signal, s pipeline.SizingStrategy) (*domain.BacktestResult, error) {
	if s == nil {
		s = b.sizing
	}
	start := time.Now()

	res, err := b.run(ctx, market, signals, s)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordBacktestRun(b.cfg.Scenario.ScenarioID, status, time.Since(start).Seconds())
	return res, err
}

func (b *Backtester) run(ctx context.Context, market []domain.MarketDataPoint, signals []domain.Signal, s pipeline.SizingStrategy) (*domain.BacktestResult, error) {
	for i := range market {
		if err := market[i].Validate(); err != nil {
			return nil, fmt.Errorf("market data index %d: %w", i, err)
		}
	}
	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			return nil, fmt.Errorf("signal index %d: %w", i, err)
		}
	}
	if err := replay.ValidateMarketData(market); err != nil {
		return nil, err
	}
	if err := replay.ValidateSignals(signals); err != nil {
		return nil, err
	}

	runID := idhash.ComputeRunID(b.cfg.StrategyID, b.cfg.Scenario, b.cfg.InitialCapital, idhash.ComputeInputDigest(market, signals))
	logger := b.logger.With().Str("run_id", runID[:12]).Str("scenario", b.cfg.Scenario.ScenarioID).Logger()

	st := newRunState(b.cfg, runID, b.strategy, s, logger)

	logger.Info().
		Int("ticks", len(market)).
		Int("signals", len(signals)).
		Float64("initial_capital", b.cfg.InitialCapital).
		Float64("slippage_bps", b.cfg.Scenario.SlippageBps).
		Float64("commission_bps", b.cfg.Scenario.CommissionBps).
		Msg("backtest started")

	bySignalTime := make(map[int64]domain.Signal, len(signals))
	for _, sig := range signals {
		bySignalTime[sig.Timestamp] = sig
	}

	for i := range market {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled at tick %d: %w", i, err)
		}
		tick := market[i]
		var sig *domain.Signal
		if v, ok := bySignalTime[tick.Timestamp]; ok {
			sig = &v
		}
		st.step(tick, sig)
	}

	st.finish()
	res := st.result
	metrics.Summarize(res)

	observability.UpdateRisk(observability.ModeBacktest, res.FinalEquity, st.monitor.CurrentDrawdown(), int(st.monitor.Level()))

	logger.Info().
		Float64("final_equity", res.FinalEquity).
		Float64("total_pnl", res.TotalPnL).
		Float64("sharpe", res.SharpeRatio).
		Float64("max_drawdown", res.MaxDrawdown).
		Int("trades", res.TotalTrades).
		Int("skipped", len(res.SkippedSignals)).
		Int("regime_changes", len(res.RegimeChanges)).
		Bool("safe_mode_entered", res.SafeModeEntered).
		Msg("backtest complete")

	return res, nil
}

// runState is everything one run mutates. It is owned by a single goroutine.
type runState struct {
	cfg      Config
	runID    string
	detector *regime.Detector
	monitor  *risk.DrawdownMonitor
	pipe     *pipeline.Pipeline
	logger   zerolog.Logger

	cash      float64 // initial capital less commissions
	positions map[string]*domain.PositionRecord
	pending   []*domain.Order
	issued    int // filled + pending orders, used for order ids
	current   domain.Regime

	result *domain.BacktestResult
}

func newRunState(cfg Config, runID string, strat *strategy.AdaptiveStrategy, s pipeline.SizingStrategy, logger zerolog.Logger) *runState {
	monitor := risk.NewDrawdownMonitor(cfg.InitialCapital, cfg.Drawdown, risk.WithDrawdownLogger(logger))
	return &runState{
		cfg:      cfg,
		runID:    runID,
		detector: regime.NewDetector(cfg.Regime, regime.WithLogger(logger)),
		monitor:  monitor,
		pipe: pipeline.New(strat, risk.NewPositionLimiter(cfg.Limits), monitor).
			WithSizingStrategy(s).
			WithLogger(logger),
		logger:    logger,
		cash:      cfg.InitialCapital,
		positions: make(map[string]*domain.PositionRecord),
		current:   domain.RegimeUncertain,
		result: &domain.BacktestResult{
			RunID:          runID,
			StrategyID:     cfg.StrategyID,
			ScenarioID:     cfg.Scenario.ScenarioID,
			InitialCapital: cfg.InitialCapital,
		},
	}
}

// step processes one tick: regime, fills, marking, equity, then the signal.
func (st *runState) step(tick domain.MarketDataPoint, sig *domain.Signal) {
	if len(tick.Returns) >= RegimeWarmup {
		st.updateRegime(tick)
	}

	st.fillPending(tick)

	if pos, ok := st.positions[tick.Symbol]; ok {
		pos.Mark(tick.Price)
	}

	equity := st.equity()
	st.monitor.Update(equity)
	if st.monitor.IsSafeMode() {
		st.result.SafeModeEntered = true
	}
	st.result.EquityCurve = append(st.result.EquityCurve, domain.EquityPoint{
		Timestamp: tick.Timestamp,
		Equity:    equity,
	})

	if sig != nil {
		st.decide(*sig, tick, equity)
	}
}

func (st *runState) updateRegime(tick domain.MarketDataPoint) {
	prev := st.current
	next, confidence := st.detector.Detect(tick.Returns)
	st.current = next
	if next == prev {
		return
	}

	st.result.RegimeChanges = append(st.result.RegimeChanges, domain.RegimeChange{
		Timestamp:  tick.Timestamp,
		From:       prev,
		To:         next,
		Confidence: confidence,
	})
	observability.RecordRegimeChange(observability.ModeBacktest, next.String())
	st.logger.Debug().
		Int64("ts", tick.Timestamp).
		Stringer("from", prev).
		Stringer("to", next).
		Float64("confidence", confidence).
		Msg("regime change")
}

func (st *runState) fillPending(tick domain.MarketDataPoint) {
	if len(st.pending) == 0 {
		return
	}

	kept := st.pending[:0]
	for _, o := range st.pending {
		if o.Symbol != tick.Symbol {
			kept = append(kept, o)
			continue
		}
		price, ok := FillPrice(o, tick, st.cfg.Scenario.SlippageBps)
		if !ok {
			kept = append(kept, o)
			continue
		}
		o.Filled = true
		o.FillPrice = price
		o.FillTime = tick.Timestamp

		commission := Commission(o.Size, price, st.cfg.Scenario.CommissionBps)
		st.cash -= commission
		st.book(o, tick.Timestamp, price, commission, false)
	}
	// clear the tail so filled orders are not retained by the backing array
	for i := len(kept); i < len(st.pending); i++ {
		st.pending[i] = nil
	}
	st.pending = kept
}

// book applies a filled order to its position and appends the trade log row.
func (st *runState) book(o *domain.Order, ts int64, price, commission float64, forceClose bool) {
	pos, ok := st.positions[o.Symbol]
	if !ok {
		pos = &domain.PositionRecord{Symbol: o.Symbol}
		st.positions[o.Symbol] = pos
	}
	realized, reduced := pos.Apply(o.Side.Sign()*o.Size, price)

	fill := domain.Fill{
		FillID:      idhash.ComputeFillID(st.runID, o.OrderID, ts, len(st.result.Trades)),
		RunID:       st.runID,
		OrderID:     o.OrderID,
		Timestamp:   ts,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Size:        o.Size,
		Price:       price,
		Commission:  commission,
		Regime:      st.current,
		RealizedPnL: realized,
		Closing:     reduced,
		ForceClose:  forceClose,
	}
	st.result.Trades = append(st.result.Trades, fill)

	observability.RecordFill(observability.ModeBacktest, string(o.Side))
	st.logger.Debug().
		Int64("ts", ts).
		Str("order_id", o.OrderID).
		Str("symbol", o.Symbol).
		Str("side", string(o.Side)).
		Float64("size", o.Size).
		Float64("price", price).
		Float64("commission", commission).
		Float64("realized_pnl", realized).
		Bool("force_close", forceClose).
		Msg("fill")
}

// equity returns cash plus realized and unrealized PnL of every position.
func (st *runState) equity() float64 {
	total := st.cash
	for _, sym := range st.symbols() {
		p := st.positions[sym]
		total += p.RealizedPnL + p.UnrealizedPnL
	}
	return total
}

// committed maps every symbol to its signed open notional plus the signed
// notional of its unfilled orders. Positions are valued at their last price;
// pending orders at the tick price for the tick's symbol, else at the last
// known price or their limit.
func (st *runState) committed(tick domain.MarketDataPoint) map[string]float64 {
	out := make(map[string]float64, len(st.positions)+len(st.pending))
	for sym, p := range st.positions {
		out[sym] = p.SignedNotional()
	}
	for _, o := range st.pending {
		price := o.LimitPrice
		if o.Symbol == tick.Symbol {
			price = tick.Price
		} else if p, ok := st.positions[o.Symbol]; ok && p.LastPrice > 0 {
			price = p.LastPrice
		}
		out[o.Symbol] += o.Side.Sign() * o.Size * price
	}
	return out
}

// symbols returns position keys in sorted order so float sums are
// reproducible across runs.
func (st *runState) symbols() []string {
	keys := make([]string, 0, len(st.positions))
	for k := range st.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (st *runState) decide(sig domain.Signal, tick domain.MarketDataPoint, equity float64) {
	d := st.pipe.Decide(sig, tick, equity, st.committed(tick))
	if !d.Trade() {
		st.result.SkippedSignals = append(st.result.SkippedSignals, domain.SkippedSignal{
			Timestamp: tick.Timestamp,
			Symbol:    tick.Symbol,
			Reason:    d.Reason,
		})
		observability.RecordSkippedSignal(observability.ModeBacktest, string(d.Reason))
		st.logger.Debug().
			Int64("ts", tick.Timestamp).
			Str("symbol", tick.Symbol).
			Str("reason", string(d.Reason)).
			Msg("signal skipped")
		return
	}

	in := d.Intent
	st.pending = append(st.pending, &domain.Order{
		OrderID:    fmt.Sprintf("backtest_%d", st.issued),
		Symbol:     in.Symbol,
		Side:       in.Side,
		Size:       in.Units,
		LimitPrice: in.LimitPrice,
		Timestamp:  tick.Timestamp,
	})
	st.issued++
}

// finish liquidates every open position at its symbol's last price and
// cancels orders that never crossed. Force closes carry no slippage or
// commission, so equity is unchanged.
func (st *runState) finish() {
	if n := len(st.pending); n > 0 {
		st.logger.Debug().Int("orders", n).Msg("cancelling unfilled orders")
		st.pending = nil
	}

	if len(st.result.EquityCurve) == 0 {
		return
	}
	ts := st.result.EquityCurve[len(st.result.EquityCurve)-1].Timestamp

	for _, sym := range st.symbols() {
		pos := st.positions[sym]
		if pos.IsFlat() {
			continue
		}
		o := &domain.Order{
			OrderID:    "close_" + sym,
			Symbol:     sym,
			Side:       domain.SideFor(-pos.Size),
			Size:       absf(pos.Size),
			LimitPrice: pos.LastPrice,
			Timestamp:  ts,
			Filled:     true,
			FillPrice:  pos.LastPrice,
			FillTime:   ts,
		}
		st.book(o, ts, pos.LastPrice, 0, true)
		pos.Mark(pos.LastPrice)
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ replay.TickEngine = (*Backtester)(nil)
