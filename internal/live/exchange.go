// Package live runs the decision pipeline against an exchange: order
// submission with retries and a circuit breaker, local position tracking with
// reconciliation, and a paper exchange that reuses the backtest fill rules.
package live

import (
	"context"
	"errors"

	"regime-trader/internal/domain"
)

// Exchange errors.
var (
	// ErrOrderRejected is returned by an ExchangeClient that refused an order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrPositionLimit is returned when an order cannot be placed without
	// breaching the exchange position limit.
	ErrPositionLimit = errors.New("position limit reached")

	// ErrZeroVolume is returned when an order rounds to zero units.
	ErrZeroVolume = errors.New("order volume rounds to zero")
)

// OrderStatus is the exchange-side state of an order.
type OrderStatus string

// Order statuses.
const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// Order is an order acknowledged by the exchange.
type Order struct {
	OrderID    string
	ClientID   string // assigned by the OrderManager
	Symbol     string
	Side       domain.Side
	Price      float64 // limit price
	Volume     int     // whole units, > 0
	Status     OrderStatus
	FillPrice  float64
	Commission float64
	Timestamp  int64 // unix ms
}

// SignedVolume returns the volume with the sign of its side.
func (o *Order) SignedVolume() float64 {
	return o.Side.Sign() * float64(o.Volume)
}

// Position is one exchange-reported holding.
type Position struct {
	Symbol     string
	Size       float64 // signed units
	EntryPrice float64
}

// ExchangeClient is the order entry surface of an exchange.
//
// SubmitOrder returns ErrOrderRejected (possibly wrapped) when the exchange
// refuses the order; any other error is a transport failure.
type ExchangeClient interface {
	SubmitOrder(ctx context.Context, symbol string, side domain.Side, price float64, volume int) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	GetPositions(ctx context.Context) (map[string]Position, error)
}

// QuoteSink is implemented by exchanges that match resting orders against
// quotes pushed by the trader. OnQuote returns the orders it filled.
type QuoteSink interface {
	OnQuote(tick domain.MarketDataPoint) []Order
}
