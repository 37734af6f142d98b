package replay

import (
	"context"
	"errors"
	"testing"

	"regime-trader/internal/domain"
	"regime-trader/internal/storage/memory"
)

type recordingEngine struct {
	events []*Event
	failAt int
}

func (e *recordingEngine) OnEvent(_ context.Context, event *Event) error {
	e.events = append(e.events, event)
	if e.failAt > 0 && len(e.events) == e.failAt {
		return errors.New("engine failure")
	}
	return nil
}

type countingTickEngine struct {
	ticks, signals int
}

func (e *countingTickEngine) Run(_ context.Context, market []domain.MarketDataPoint, signals []domain.Signal) (*domain.BacktestResult, error) {
	e.ticks, e.signals = len(market), len(signals)
	return &domain.BacktestResult{RunID: "counted"}, nil
}

func seededRunner(t *testing.T) *Runner {
	t.Helper()
	ctx := context.Background()

	ticks := memory.NewTickStore()
	signals := memory.NewSignalStore()
	quote := func(sym string, ts int64) domain.MarketDataPoint {
		return domain.MarketDataPoint{Timestamp: ts, Symbol: sym, Price: 100, Bid: 99.95, Ask: 100.05}
	}
	if err := ticks.InsertBulk(ctx, []domain.MarketDataPoint{
		quote("BTC", 1000), quote("BTC", 2000), quote("ETH", 2000), quote("BTC", 9000),
	}); err != nil {
		t.Fatalf("insert ticks: %v", err)
	}
	if err := signals.InsertBulk(ctx, []domain.Signal{
		{Timestamp: 2000, Strength: 0.5, Confidence: 0.8, Regime: domain.RegimeTrending},
		{Timestamp: 9500, Strength: 0.5, Confidence: 0.8, Regime: domain.RegimeTrending},
	}); err != nil {
		t.Fatalf("insert signals: %v", err)
	}
	return NewRunner(ticks, signals)
}

func TestRunner_Run(t *testing.T) {
	runner := seededRunner(t)
	engine := &recordingEngine{}

	if err := runner.Run(context.Background(), "", 0, 5000, engine); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(engine.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(engine.events))
	}
	if last := engine.events[3]; last.Type != EventTypeSignal || last.Timestamp != 2000 {
		t.Errorf("signal should follow ticks at 2000, got %s@%d", last.Type, last.Timestamp)
	}
}

func TestRunner_RunSymbolFilter(t *testing.T) {
	runner := seededRunner(t)
	engine := &recordingEngine{}

	if err := runner.Run(context.Background(), "ETH", 0, 5000, engine); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(engine.events) != 2 {
		t.Errorf("expected 1 tick and 1 signal, got %d events", len(engine.events))
	}
}

func TestRunner_RunStopsOnEngineError(t *testing.T) {
	runner := seededRunner(t)
	engine := &recordingEngine{failAt: 2}

	if err := runner.Run(context.Background(), "", 0, 10000, engine); err == nil {
		t.Fatal("expected engine error")
	}
	if len(engine.events) != 2 {
		t.Errorf("expected replay to stop after 2 events, got %d", len(engine.events))
	}
}

func TestRunner_RunCancelled(t *testing.T) {
	runner := seededRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx, "", 0, 10000, &recordingEngine{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_RunBacktest(t *testing.T) {
	runner := seededRunner(t)
	engine := &countingTickEngine{}

	res, err := runner.RunBacktest(context.Background(), "BTC", 0, 10000, engine)
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}
	if res.RunID != "counted" {
		t.Errorf("unexpected result %q", res.RunID)
	}
	if engine.ticks != 3 || engine.signals != 2 {
		t.Errorf("got %d ticks, %d signals; want 3, 2", engine.ticks, engine.signals)
	}
}
