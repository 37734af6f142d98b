package domain

// EquityPoint is total equity (cash + realized + unrealized) at a tick.
type EquityPoint struct {
	Timestamp int64 // unix ms
	Equity    float64
}

// RegimeStats aggregates fills attributed to one regime.
type RegimeStats struct {
	Trades  int     // every fill tagged with the regime
	Closes  int     // closing fills
	Wins    int     // closing fills with positive net realized PnL
	PnL     float64 // net realized PnL
	WinRate float64 // wins / closes
}

// SkipReason explains why a signal did not produce an order.
type SkipReason string

// Skip reasons.
const (
	SkipSafeMode        SkipReason = "safe_mode"
	SkipBelowThreshold  SkipReason = "below_threshold"
	SkipBelowMinSize    SkipReason = "below_min_size"
	SkipClampedToZero   SkipReason = "clamped_to_zero"
	SkipNoMarketForTick SkipReason = "no_market"
	SkipTradingPaused   SkipReason = "trading_paused" // live only: repeated exchange rejections
	SkipOrderFailed     SkipReason = "order_failed"   // live only: submission failed after retries
)

// SkippedSignal records a no-trade decision.
type SkippedSignal struct {
	Timestamp int64
	Symbol    string
	Reason    SkipReason
}

// BacktestResult is the output of one backtest run.
type BacktestResult struct {
	RunID      string
	StrategyID string
	ScenarioID string

	InitialCapital float64
	FinalEquity    float64
	TotalPnL       float64 // final equity - initial capital
	TotalReturn    float64 // total pnl / initial capital

	SharpeRatio float64 // annualised, population stddev
	MaxDrawdown float64 // positive fraction of running peak, [0, 1]
	WinRate     float64 // winning closing fills / closing fills

	TotalTrades          int // all fills, force closes included
	ClosingTrades        int
	WinningTrades        int
	MaxConsecutiveLosses int // longest run of non-winning closing fills

	// SafeModeEntered is true if the drawdown monitor reached Safe during the run.
	SafeModeEntered bool

	RegimeBreakdown map[Regime]RegimeStats
	EquityCurve     []EquityPoint
	Trades          []Fill
	RegimeChanges   []RegimeChange
	SkippedSignals  []SkippedSignal
}

// Returns extracts tick-over-tick fractional equity changes. Non-finite values are dropped.
func (r *BacktestResult) Returns() []float64 {
	return EquityReturns(r.EquityCurve)
}

// Summary flattens the scalar fields of r for persistence and reporting.
func (r *BacktestResult) Summary() *RunSummary {
	breakdown := make(map[Regime]RegimeStats, len(r.RegimeBreakdown))
	for k, v := range r.RegimeBreakdown {
		breakdown[k] = v
	}
	return &RunSummary{
		RunID:                r.RunID,
		StrategyID:           r.StrategyID,
		ScenarioID:           r.ScenarioID,
		InitialCapital:       r.InitialCapital,
		FinalEquity:          r.FinalEquity,
		TotalPnL:             r.TotalPnL,
		TotalReturn:          r.TotalReturn,
		SharpeRatio:          r.SharpeRatio,
		MaxDrawdown:          r.MaxDrawdown,
		WinRate:              r.WinRate,
		TotalTrades:          r.TotalTrades,
		ClosingTrades:        r.ClosingTrades,
		WinningTrades:        r.WinningTrades,
		MaxConsecutiveLosses: r.MaxConsecutiveLosses,
		SafeModeEntered:      r.SafeModeEntered,
		RegimeChanges:        len(r.RegimeChanges),
		SkippedSignals:       len(r.SkippedSignals),
		RegimeBreakdown:      breakdown,
	}
}

// RunSummary is the flat record stored per backtest run.
type RunSummary struct {
	RunID      string
	StrategyID string
	ScenarioID string

	InitialCapital float64
	FinalEquity    float64
	TotalPnL       float64
	TotalReturn    float64
	SharpeRatio    float64
	MaxDrawdown    float64
	WinRate        float64

	TotalTrades          int
	ClosingTrades        int
	WinningTrades        int
	MaxConsecutiveLosses int
	SafeModeEntered      bool
	RegimeChanges        int
	SkippedSignals       int

	RegimeBreakdown map[Regime]RegimeStats
}

// Comparison is the outcome of a two-sample test between two runs.
type Comparison struct {
	SharpeA float64
	SharpeB float64
	ReturnA float64
	ReturnB float64

	MeanReturnDiff  float64 // mean(returns A) - mean(returns B)
	TStatistic      float64
	PValue          float64 // two-sided, [0, 1]
	IsSignificant   bool    // p < 1 - confidence level
	ConfidenceLevel float64
	Winner          string // "A" | "B"
}

// Winner tags.
const (
	WinnerA = "A"
	WinnerB = "B"
)
