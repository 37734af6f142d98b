package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regime-trader/internal/domain"
	"regime-trader/internal/pipeline"
	"regime-trader/internal/regime"
	"regime-trader/internal/replay"
	"regime-trader/internal/risk"
)

// fiftyUnits buys or sells 50 units in the signal's direction.
var fiftyUnits = pipeline.SizingFunc(func(in pipeline.SizingInput) float64 {
	if in.Signal.Strength < 0 {
		return -50
	}
	return 50
})

func buySignal(ts int64) domain.Signal {
	return domain.Signal{Timestamp: ts, Strength: 0.6, Confidence: 0.8, Regime: domain.RegimeTrending}
}

func traderConfig(symbols ...string) TraderConfig {
	return TraderConfig{
		AccountID:      "paper",
		Symbols:        symbols,
		InitialCapital: 100000,
		Regime:         regime.DefaultConfig(),
		Limits:         risk.DefaultLimitConfig(),
		Drawdown:       risk.DefaultDrawdownConfig(),
		Orders:         fastConfig(),
	}
}

func TestTrader_TradesEverySymbolWithAQuote(t *testing.T) {
	paper := NewPaperExchange(domain.ScenarioConfigRealistic)
	tr := NewTrader(traderConfig("AAA", "BBB"), paper, WithTraderSizing(fiftyUnits))
	ctx := context.Background()

	require.NoError(t, tr.OnTick(ctx, quote(1000, "AAA", 100)))
	require.NoError(t, tr.OnSignal(ctx, buySignal(1000)))

	fills := tr.Fills()
	require.Len(t, fills, 1)
	fill := fills[0]
	wantPrice := 100.05 * 1.0005
	assert.Equal(t, "AAA", fill.Symbol)
	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.InDelta(t, 50, fill.Size, 1e-9)
	assert.InDelta(t, wantPrice, fill.Price, 1e-9)
	assert.False(t, fill.Closing)
	assert.NotEmpty(t, fill.FillID)

	assert.Equal(t, []domain.SkippedSignal{{Timestamp: 1000, Symbol: "BBB", Reason: domain.SkipNoMarketForTick}}, tr.Skipped())
	assert.InDelta(t, 50, tr.Tracker().Size("AAA"), 1e-9)

	require.NoError(t, tr.OnTick(ctx, quote(2000, "AAA", 100)))
	commission := 50 * wantPrice * 0.0002
	assert.InDelta(t, 100000-commission+50*(100-wantPrice), tr.Equity(), 1e-6)
}

func TestTrader_BelowThresholdSkipped(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(fiftyUnits))
	ctx := context.Background()

	require.NoError(t, tr.OnTick(ctx, quote(1000, "AAA", 100)))
	weak := buySignal(1000)
	weak.Strength = 0.1
	require.NoError(t, tr.OnSignal(ctx, weak))

	assert.Empty(t, tr.Fills())
	require.Len(t, tr.Skipped(), 1)
	assert.Equal(t, domain.SkipBelowThreshold, tr.Skipped()[0].Reason)
}

func TestTrader_SafeModeSkipsUntilAcknowledged(t *testing.T) {
	cfg := traderConfig("AAA")
	cfg.Drawdown = risk.DrawdownConfig{ReductionThreshold: 0.01, SafeModeThreshold: 0.02}
	tr := NewTrader(cfg, NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(fiftyUnits))
	ctx := context.Background()

	require.NoError(t, tr.OnTick(ctx, quote(1000, "AAA", 100)))
	require.NoError(t, tr.OnSignal(ctx, buySignal(1000)))
	require.Len(t, tr.Fills(), 1)

	// 50 units losing ~50 each is a 2.5% drawdown
	require.NoError(t, tr.OnTick(ctx, quote(2000, "AAA", 50)))
	require.True(t, tr.Monitor().IsSafeMode())

	require.NoError(t, tr.OnSignal(ctx, buySignal(2000)))
	assert.Len(t, tr.Fills(), 1, "no orders in safe mode")
	skipped := tr.Skipped()
	require.NotEmpty(t, skipped)
	assert.Equal(t, domain.SkipSafeMode, skipped[len(skipped)-1].Reason)

	assert.ErrorIs(t, tr.AcknowledgeSafeMode(""), risk.ErrOperatorRequired)
	require.NoError(t, tr.AcknowledgeSafeMode("ops"))
	assert.False(t, tr.Monitor().IsSafeMode())
}

func TestTrader_PausesSymbolAfterRejections(t *testing.T) {
	ex := &fakeExchange{rejectN: 100}
	tr := NewTrader(traderConfig("AAA"), ex, WithTraderSizing(fiftyUnits))
	ctx := context.Background()

	require.NoError(t, tr.OnTick(ctx, quote(1000, "AAA", 100)))
	require.NoError(t, tr.OnSignal(ctx, buySignal(1000)))
	require.NoError(t, tr.OnSignal(ctx, buySignal(1001)))

	skipped := tr.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, domain.SkipOrderFailed, skipped[0].Reason)
	assert.Equal(t, domain.SkipTradingPaused, skipped[1].Reason)
	assert.Len(t, ex.attemptLog(), 3, "second signal never reaches the exchange")
}

func TestTrader_RejectsInvalidInput(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic))
	ctx := context.Background()

	bad := quote(1000, "AAA", 100)
	bad.Bid = 200
	assert.ErrorIs(t, tr.OnTick(ctx, bad), domain.ErrInvalidMarketData)

	sig := buySignal(1000)
	sig.Strength = 2
	assert.ErrorIs(t, tr.OnSignal(ctx, sig), domain.ErrInvalidSignal)
}

func TestTrader_StaleTickDropped(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(fiftyUnits))
	ctx := context.Background()

	require.NoError(t, tr.OnTick(ctx, quote(2000, "AAA", 100)))
	require.NoError(t, tr.OnTick(ctx, quote(1000, "AAA", 50)))
	require.NoError(t, tr.OnSignal(ctx, buySignal(2000)))

	fills := tr.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, int64(2000), fills[0].Timestamp, "order priced off the newer quote")
}

func TestTrader_ReplaysMergedEvents(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(fiftyUnits))
	ticks := []domain.MarketDataPoint{quote(1000, "AAA", 100), quote(2000, "AAA", 101)}
	signals := []domain.Signal{buySignal(1000)}

	for _, ev := range replay.MergeEvents(ticks, signals) {
		require.NoError(t, tr.OnEvent(context.Background(), ev))
	}
	require.Len(t, tr.Fills(), 1)
	assert.InDelta(t, 50*(101-100.05*1.0005)-50*100.05*1.0005*0.0002, tr.Equity()-100000, 1e-6)
}

func TestTrader_RunDrainsChannels(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(fiftyUnits))

	ticks := make(chan domain.MarketDataPoint)
	signals := make(chan domain.Signal)

	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background(), ticks, signals) }()
	// unbuffered sends keep the tick ahead of the signal
	ticks <- quote(1000, "AAA", 100)
	signals <- buySignal(1000)
	close(ticks)
	close(signals)

	require.NoError(t, <-done)
	assert.Len(t, tr.Fills(), 1)
}

func TestTrader_RunStopsOnCancel(t *testing.T) {
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Run(ctx, make(chan domain.MarketDataPoint), make(chan domain.Signal))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrader_RepeatedSignalsStayWithinPositionCap(t *testing.T) {
	bigUnits := pipeline.SizingFunc(func(pipeline.SizingInput) float64 { return 150 })
	tr := NewTrader(traderConfig("AAA"), NewPaperExchange(domain.ScenarioConfigRealistic), WithTraderSizing(bigUnits))
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tr.OnTick(ctx, quote(i*1000, "AAA", 100)))
		require.NoError(t, tr.OnSignal(ctx, buySignal(i*1000)))

		require.NoError(t, tr.OnTick(ctx, quote(i*1000+500, "AAA", 100)))
		notional := tr.Tracker().Size("AAA") * 100
		assert.LessOrEqual(t, notional, 0.2*tr.Equity(), "after signal %d", i)
	}

	// 150 units, then the 49 whole units left under the cap, then nothing
	assert.InDelta(t, 199, tr.Tracker().Size("AAA"), 1e-9)
	require.Len(t, tr.Fills(), 2)
	skipped := tr.Skipped()
	require.Len(t, skipped, 3)
	for _, s := range skipped {
		assert.Equal(t, domain.SkipClampedToZero, s.Reason)
	}
}
