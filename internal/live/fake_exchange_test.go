package live

import (
	"context"
	"fmt"
	"sync"

	"regime-trader/internal/domain"
)

type attempt struct {
	symbol string
	side   domain.Side
	price  float64
	volume int
}

// fakeExchange is a scripted ExchangeClient.
type fakeExchange struct {
	mu        sync.Mutex
	rejectN   int   // reject the first n submissions
	failErr   error // returned for every submission when set
	rest      bool  // accept orders as pending instead of filled
	attempts  []attempt
	seq       int
	cancelled []string
	positions map[string]Position
	posErr    error
}

func (f *fakeExchange) SubmitOrder(_ context.Context, symbol string, side domain.Side, price float64, volume int) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt{symbol: symbol, side: side, price: price, volume: volume})
	if f.failErr != nil {
		return nil, f.failErr
	}
	if f.rejectN > 0 {
		f.rejectN--
		return nil, fmt.Errorf("%w: price outside band", ErrOrderRejected)
	}
	f.seq++
	o := &Order{
		OrderID: fmt.Sprintf("ex_%03d", f.seq),
		Symbol:  symbol,
		Side:    side,
		Price:   price,
		Volume:  volume,
		Status:  StatusFilled,
	}
	if f.rest {
		o.Status = StatusPending
	} else {
		o.FillPrice = price
	}
	return o, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return true, nil
}

func (f *fakeExchange) GetPositions(context.Context) (map[string]Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return nil, f.posErr
	}
	out := make(map[string]Position, len(f.positions))
	for k, v := range f.positions {
		out[k] = v
	}
	return out, nil
}

func (f *fakeExchange) attemptLog() []attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]attempt(nil), f.attempts...)
}

// fastConfig removes the pacing so tests run without sleeps.
func fastConfig() OrderManagerConfig {
	cfg := DefaultOrderManagerConfig()
	cfg.RetryDelay = 0
	cfg.OrdersPerSecond = 10000
	cfg.Burst = 100
	return cfg
}

func quote(ts int64, symbol string, price float64) domain.MarketDataPoint {
	return domain.MarketDataPoint{
		Timestamp: ts,
		Symbol:    symbol,
		Price:     price,
		Volume:    10,
		Bid:       price - 0.05,
		Ask:       price + 0.05,
	}
}
