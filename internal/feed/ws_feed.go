// Package feed streams market data and signals from a websocket endpoint.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
	"regime-trader/internal/observability"
)

// ErrClosed is returned when the feed is used after Close.
var ErrClosed = errors.New("feed closed")

// Message types on the wire.
const (
	TypeTick      = "tick"
	TypeSignal    = "signal"
	TypeSubscribe = "subscribe"
)

// Drop reasons.
const (
	DropDecode      = "decode"
	DropUnknownType = "unknown_type"
	DropInvalid     = "invalid"
	DropOutOfOrder  = "out_of_order"
)

// Config configures the websocket feed.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// BufferSize is the capacity of the tick and signal channels.
	BufferSize int
	// Symbols are sent in a subscribe message after every connect. Empty
	// sends nothing.
	Symbols []string
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BufferSize:        256,
	}
}

// envelope is decoded first to route a message by type. Tick and signal
// fields sit next to "type" in the same object.
type envelope struct {
	Type string `json:"type"`
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// WSFeed reads ticks and signals from one websocket endpoint. Messages are
// validated, and any message older than the last one delivered on its
// stream is dropped. Each symbol is its own tick stream.
type WSFeed struct {
	endpoint string
	config   Config
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	ticks   chan domain.MarketDataPoint
	signals chan domain.Signal

	// last delivered timestamp per stream, owned by readLoop
	lastTick   map[string]int64
	lastSignal int64
	seenSignal bool

	dropped    sync.Map // reason -> *atomic.Int64
	reconnects atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a WSFeed.
type Option func(*WSFeed)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *WSFeed) { f.logger = logger }
}

// Dial connects to endpoint and starts reading. A nil config uses
// DefaultConfig.
func Dial(ctx context.Context, endpoint string, config *Config, opts ...Option) (*WSFeed, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   zerolog.Nop(),
		ticks:    make(chan domain.MarketDataPoint, cfg.BufferSize),
		signals:  make(chan domain.Signal, cfg.BufferSize),
		lastTick: make(map[string]int64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	if cfg.PingInterval > 0 {
		f.wg.Add(1)
		go f.pingLoop()
	}

	return f, nil
}

// Ticks delivers validated market data. It is closed by Close.
func (f *WSFeed) Ticks() <-chan domain.MarketDataPoint { return f.ticks }

// Signals delivers validated signals. It is closed by Close.
func (f *WSFeed) Signals() <-chan domain.Signal { return f.signals }

// Dropped returns how many messages were dropped for reason.
func (f *WSFeed) Dropped(reason string) int64 {
	if v, ok := f.dropped.Load(reason); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Reconnects returns how many times the feed has reconnected.
func (f *WSFeed) Reconnects() int64 { return f.reconnects.Load() }

// connect dials the endpoint and sends the subscription.
func (f *WSFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	if len(f.config.Symbols) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
		if err := conn.WriteJSON(subscribeRequest{Type: TypeSubscribe, Symbols: f.config.Symbols}); err != nil {
			conn.Close()
			return fmt.Errorf("write subscribe: %w", err)
		}
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	f.logger.Info().Str("endpoint", f.endpoint).Strs("symbols", f.config.Symbols).Msg("feed connected")
	return nil
}

// Close closes the connection and both channels. It is safe to call more
// than once.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		f.conn.Close()
	}
	f.connMu.Unlock()

	// channels close only after the reader has stopped sending
	f.wg.Wait()
	close(f.ticks)
	close(f.signals)
	return nil
}

// readLoop reads messages and reconnects with exponential backoff on error.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if f.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Warn().Err(err).Msg("feed read failed, reconnecting")
			if !f.reconnect() {
				return
			}
			continue
		}

		f.handleMessage(message)
	}
}

// reconnect redials until it succeeds or the feed is closed. The delay
// doubles after every failed attempt up to MaxReconnectDelay.
func (f *WSFeed) reconnect() bool {
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return false
		case <-time.After(delay):
		}

		f.reconnects.Add(1)
		observability.RecordFeedReconnect()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := f.connect(ctx)
		cancel()
		if err == nil {
			if f.closed.Load() {
				f.connMu.Lock()
				f.conn.Close()
				f.connMu.Unlock()
				return false
			}
			return true
		}
		f.logger.Warn().Err(err).Dur("delay", delay).Msg("feed reconnect failed")

		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// handleMessage decodes, validates and delivers one message.
func (f *WSFeed) handleMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		f.drop(DropDecode, err)
		return
	}

	switch env.Type {
	case TypeTick:
		var tick domain.MarketDataPoint
		if err := json.Unmarshal(message, &tick); err != nil {
			f.drop(DropDecode, err)
			return
		}
		if err := tick.Validate(); err != nil {
			f.drop(DropInvalid, err)
			return
		}
		if last, ok := f.lastTick[tick.Symbol]; ok && tick.Timestamp < last {
			f.drop(DropOutOfOrder, fmt.Errorf("tick %s at %d after %d", tick.Symbol, tick.Timestamp, last))
			return
		}
		f.lastTick[tick.Symbol] = tick.Timestamp
		observability.RecordFeedMessage(TypeTick)
		select {
		case f.ticks <- tick:
		case <-f.done:
		}

	case TypeSignal:
		var sig domain.Signal
		if err := json.Unmarshal(message, &sig); err != nil {
			f.drop(DropDecode, err)
			return
		}
		if err := sig.Validate(); err != nil {
			f.drop(DropInvalid, err)
			return
		}
		if f.seenSignal && sig.Timestamp < f.lastSignal {
			f.drop(DropOutOfOrder, fmt.Errorf("signal at %d after %d", sig.Timestamp, f.lastSignal))
			return
		}
		f.seenSignal = true
		f.lastSignal = sig.Timestamp
		observability.RecordFeedMessage(TypeSignal)
		select {
		case f.signals <- sig:
		case <-f.done:
		}

	default:
		f.drop(DropUnknownType, fmt.Errorf("message type %q", env.Type))
	}
}

func (f *WSFeed) drop(reason string, err error) {
	v, _ := f.dropped.LoadOrStore(reason, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	observability.RecordFeedDropped(reason)
	f.logger.Debug().Err(err).Str("reason", reason).Msg("feed message dropped")
}

// pingLoop sends periodic ping frames to keep connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				// a dead connection surfaces as a read error in readLoop
				_ = f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(f.config.WriteTimeout))
			}
			f.connMu.Unlock()
		}
	}
}
