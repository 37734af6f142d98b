package live

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regime-trader/internal/backtest"
	"regime-trader/internal/domain"
)

// PaperExchange is an in-process ExchangeClient. Orders are matched against
// the latest quote with the backtest fill rules: a crossing order fills at
// submission, anything else rests until a later quote crosses it.
type PaperExchange struct {
	scenario domain.ExecutionScenario

	mu      sync.Mutex
	quotes  map[string]domain.MarketDataPoint
	book    map[string]*domain.PositionRecord
	resting map[string]*Order
	seq     int
}

// NewPaperExchange creates a paper exchange charging the scenario's
// slippage and commission.
func NewPaperExchange(scenario domain.ExecutionScenario) *PaperExchange {
	return &PaperExchange{
		scenario: scenario,
		quotes:   make(map[string]domain.MarketDataPoint),
		book:     make(map[string]*domain.PositionRecord),
		resting:  make(map[string]*Order),
	}
}

// SubmitOrder fills o immediately when it crosses the latest quote.
func (p *PaperExchange) SubmitOrder(ctx context.Context, symbol string, side domain.Side, price float64, volume int) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if volume <= 0 || !(price > 0) {
		return nil, fmt.Errorf("%w: volume %d at %v", ErrOrderRejected, volume, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	quote, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no quote for %s", ErrOrderRejected, symbol)
	}

	p.seq++
	o := &Order{
		OrderID:   fmt.Sprintf("paper_%d", p.seq),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Volume:    volume,
		Status:    StatusPending,
		Timestamp: quote.Timestamp,
	}
	if !p.tryFill(o, quote) {
		cp := *o
		p.resting[o.OrderID] = &cp
	}
	return o, nil
}

// CancelOrder removes a resting order.
func (p *PaperExchange) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resting[orderID]; !ok {
		return false, nil
	}
	delete(p.resting, orderID)
	return true, nil
}

// GetPositions returns every non-flat holding.
func (p *PaperExchange) GetPositions(ctx context.Context) (map[string]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Position, len(p.book))
	for sym, pos := range p.book {
		if pos.IsFlat() {
			continue
		}
		out[sym] = Position{Symbol: sym, Size: pos.Size, EntryPrice: pos.EntryPrice}
	}
	return out, nil
}

// OnQuote stores tick as the symbol's latest quote and fills resting orders
// that now cross, in order id sequence.
func (p *PaperExchange) OnQuote(tick domain.MarketDataPoint) []Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.quotes[tick.Symbol] = tick

	ids := make([]string, 0, len(p.resting))
	for id, o := range p.resting {
		if o.Symbol == tick.Symbol {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := p.resting[ids[i]], p.resting[ids[j]]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return ids[i] < ids[j]
	})

	var filled []Order
	for _, id := range ids {
		o := p.resting[id]
		if p.tryFill(o, tick) {
			o.Timestamp = tick.Timestamp
			filled = append(filled, *o)
			delete(p.resting, id)
		}
	}
	return filled
}

// tryFill applies the backtest crossing rule and books a fill into the
// exchange-side position.
func (p *PaperExchange) tryFill(o *Order, quote domain.MarketDataPoint) bool {
	sim := domain.Order{Symbol: o.Symbol, Side: o.Side, Size: float64(o.Volume), LimitPrice: o.Price}
	price, ok := backtest.FillPrice(&sim, quote, p.scenario.SlippageBps)
	if !ok {
		return false
	}
	o.Status = StatusFilled
	o.FillPrice = price
	o.Commission = backtest.Commission(float64(o.Volume), price, p.scenario.CommissionBps)

	pos, found := p.book[o.Symbol]
	if !found {
		pos = &domain.PositionRecord{Symbol: o.Symbol}
		p.book[o.Symbol] = pos
	}
	pos.Apply(o.SignedVolume(), price)
	return true
}

var (
	_ ExchangeClient = (*PaperExchange)(nil)
	_ QuoteSink      = (*PaperExchange)(nil)
)
