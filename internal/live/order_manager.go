package live

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"regime-trader/internal/domain"
	"regime-trader/internal/observability"
)

// OrderManagerConfig holds order entry settings.
type OrderManagerConfig struct {
	PositionLimit   float64       // absolute per-symbol limit in units
	MaxRetries      int           // submission attempts per order
	RetryPriceStep  float64       // fraction the limit moves toward the market per rejection
	RetryDelay      time.Duration // pause between attempts
	MaxRejections   int           // consecutive rejections before a symbol is paused
	OrdersPerSecond float64
	Burst           int
	BreakerTimeout  time.Duration // time the breaker stays open
}

// DefaultOrderManagerConfig returns the exchange defaults: a 200 unit limit,
// 3 attempts with a 0.1% price step, and a pause after 3 rejections.
func DefaultOrderManagerConfig() OrderManagerConfig {
	return OrderManagerConfig{
		PositionLimit:   200,
		MaxRetries:      3,
		RetryPriceStep:  0.001,
		RetryDelay:      100 * time.Millisecond,
		MaxRejections:   3,
		OrdersPerSecond: 5,
		Burst:           1,
		BreakerTimeout:  30 * time.Second,
	}
}

// OrderManager validates, submits and tracks orders against one exchange.
type OrderManager struct {
	client  ExchangeClient
	cfg     OrderManagerConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu         sync.Mutex
	active     map[string]*Order
	history    []Order
	rejections map[string]int
}

// OrderManagerOption configures an OrderManager.
type OrderManagerOption func(*OrderManager)

// WithOrderLogger sets the logger.
func WithOrderLogger(logger zerolog.Logger) OrderManagerOption {
	return func(m *OrderManager) { m.logger = logger }
}

// NewOrderManager creates an OrderManager. Zero config fields take their
// defaults.
func NewOrderManager(client ExchangeClient, cfg OrderManagerConfig, opts ...OrderManagerOption) *OrderManager {
	def := DefaultOrderManagerConfig()
	if cfg.PositionLimit <= 0 {
		cfg.PositionLimit = def.PositionLimit
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRejections <= 0 {
		cfg.MaxRejections = def.MaxRejections
	}
	if cfg.OrdersPerSecond <= 0 {
		cfg.OrdersPerSecond = def.OrdersPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	m := &OrderManager{
		client:     client,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), cfg.Burst),
		logger:     zerolog.Nop(),
		active:     make(map[string]*Order),
		rejections: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}

	st := gobreaker.Settings{
		Name:    "exchange",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejection is an answer from a healthy exchange
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrOrderRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.UpdateBreakerState(int(to))
			m.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	m.breaker = gobreaker.NewCircuitBreaker(st)
	return m
}

// Config returns the effective settings.
func (m *OrderManager) Config() OrderManagerConfig { return m.cfg }

// Submit places a signed order of size units at limitPrice. The size is
// clamped so current+size stays within the position limit and rounded toward
// zero to whole units. A rejected order is retried with the limit moved
// RetryPriceStep toward the market each time.
func (m *OrderManager) Submit(ctx context.Context, symbol string, size, limitPrice, current float64) (*Order, error) {
	limit := m.cfg.PositionLimit
	switch projected := current + size; {
	case projected > limit:
		size = limit - current
		if size <= 0 {
			return nil, fmt.Errorf("buy %s at position %v: %w", symbol, current, ErrPositionLimit)
		}
		m.logger.Warn().Str("symbol", symbol).Float64("projected", projected).Float64("size", size).Msg("order clamped to position limit")
	case projected < -limit:
		size = -limit - current
		if size >= 0 {
			return nil, fmt.Errorf("sell %s at position %v: %w", symbol, current, ErrPositionLimit)
		}
		m.logger.Warn().Str("symbol", symbol).Float64("projected", projected).Float64("size", size).Msg("order clamped to position limit")
	}

	side := domain.SideFor(size)
	// truncate toward zero, tolerating float noise just below a whole unit
	volume := int(math.Abs(size) + domain.FlatEpsilon)
	if volume == 0 {
		return nil, fmt.Errorf("%s size %v: %w", symbol, size, ErrZeroVolume)
	}

	clientID := uuid.NewString()
	price := limitPrice
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("submit %s: %w", symbol, err)
		}

		start := time.Now()
		order, err := m.submitOnce(ctx, symbol, side, price, volume)
		elapsed := time.Since(start).Seconds()

		if err == nil {
			observability.RecordOrder("accepted", elapsed)
			order.ClientID = clientID
			m.track(order)
			m.logger.Info().
				Str("order_id", order.OrderID).
				Str("client_id", clientID).
				Str("symbol", symbol).
				Str("side", string(side)).
				Int("volume", volume).
				Float64("price", price).
				Str("status", string(order.Status)).
				Int("attempt", attempt).
				Msg("order submitted")
			return order, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, ErrOrderRejected):
			observability.RecordOrder("rejected", elapsed)
			observability.RecordRejection(symbol)
			m.mu.Lock()
			m.rejections[symbol]++
			m.mu.Unlock()
			if side == domain.SideBuy {
				price *= 1 + m.cfg.RetryPriceStep
			} else {
				price *= 1 - m.cfg.RetryPriceStep
			}
			m.logger.Warn().
				Str("symbol", symbol).
				Int("attempt", attempt).
				Int("max_retries", m.cfg.MaxRetries).
				Float64("next_price", price).
				Msg("order rejected")
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			observability.RecordOrder("breaker_open", elapsed)
			return nil, fmt.Errorf("submit %s: %w", symbol, err)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("submit %s: %w", symbol, ctx.Err())
		default:
			observability.RecordOrder("error", elapsed)
			m.logger.Error().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("order submission failed")
		}

		if attempt < m.cfg.MaxRetries {
			if err := sleepCtx(ctx, m.cfg.RetryDelay); err != nil {
				return nil, fmt.Errorf("submit %s: %w", symbol, err)
			}
		}
	}

	return nil, fmt.Errorf("submit %s after %d attempts: %w", symbol, m.cfg.MaxRetries, lastErr)
}

func (m *OrderManager) submitOnce(ctx context.Context, symbol string, side domain.Side, price float64, volume int) (*Order, error) {
	res, err := m.breaker.Execute(func() (interface{}, error) {
		o, err := m.client.SubmitOrder(ctx, symbol, side, price, volume)
		if err == nil && o == nil {
			err = ErrOrderRejected
		}
		return o, err
	})
	if err != nil {
		return nil, err
	}
	return res.(*Order), nil
}

// track records an accepted order and clears the symbol's rejection streak.
func (m *OrderManager) track(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[o.Symbol] = 0
	m.history = append(m.history, *o)
	if o.Status == StatusPending {
		cp := *o
		m.active[o.OrderID] = &cp
	}
}

// MarkFilled removes a resting order that the exchange reports as filled.
func (m *OrderManager) MarkFilled(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, orderID)
}

// Cancel cancels one order and drops it from the active set on success.
func (m *OrderManager) Cancel(ctx context.Context, orderID string) (bool, error) {
	res, err := m.breaker.Execute(func() (interface{}, error) {
		return m.client.CancelOrder(ctx, orderID)
	})
	if err != nil {
		return false, fmt.Errorf("cancel %s: %w", orderID, err)
	}
	ok := res.(bool)
	if ok {
		m.mu.Lock()
		delete(m.active, orderID)
		m.mu.Unlock()
		m.logger.Info().Str("order_id", orderID).Msg("order cancelled")
	}
	return ok, nil
}

// CancelAll cancels every active order concurrently, or only those for
// symbol when it is non-empty. It returns how many were cancelled.
func (m *OrderManager) CancelAll(ctx context.Context, symbol string) (int, error) {
	orders := m.ActiveOrders(symbol)
	if len(orders) == 0 {
		return 0, nil
	}

	var (
		g         errgroup.Group
		cancelled atomic.Int64
		mu        sync.Mutex
		errs      []error
	)
	for _, o := range orders {
		g.Go(func() error {
			ok, err := m.Cancel(ctx, o.OrderID)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			if ok {
				cancelled.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(cancelled.Load())
	m.logger.Info().Str("symbol", symbol).Int("cancelled", n).Int("requested", len(orders)).Msg("cancel all")
	return n, errors.Join(errs...)
}

// ActiveOrders returns copies of resting orders sorted by order id. An empty
// symbol returns all of them.
func (m *OrderManager) ActiveOrders(symbol string) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.active))
	for _, o := range m.active {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// History returns every accepted order in submission order.
func (m *OrderManager) History() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.history))
	copy(out, m.history)
	return out
}

// RejectionCount returns the consecutive rejections for symbol.
func (m *OrderManager) RejectionCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections[symbol]
}

// ShouldPauseTrading reports whether symbol has reached MaxRejections
// consecutive rejections.
func (m *OrderManager) ShouldPauseTrading(symbol string) bool {
	count := m.RejectionCount(symbol)
	if count >= m.cfg.MaxRejections {
		m.logger.Warn().Str("symbol", symbol).Int("rejections", count).Msg("trading paused")
		return true
	}
	return false
}

// ResetRejections clears the rejection streak for symbol.
func (m *OrderManager) ResetRejections(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rejections, symbol)
}

// BreakerState returns the circuit breaker state.
func (m *OrderManager) BreakerState() gobreaker.State {
	return m.breaker.State()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
