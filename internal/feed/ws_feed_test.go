package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"regime-trader/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func tickMsg(ts int64, symbol string, price float64) string {
	b, _ := json.Marshal(map[string]any{
		"type":      TypeTick,
		"timestamp": ts,
		"symbol":    symbol,
		"price":     price,
		"volume":    1,
		"bid":       price - 0.01,
		"ask":       price + 0.01,
	})
	return string(b)
}

func signalMsg(ts int64, strength float64) string {
	b, _ := json.Marshal(map[string]any{
		"type":       TypeSignal,
		"timestamp":  ts,
		"strength":   strength,
		"confidence": 0.9,
		"regime":     "trending",
	})
	return string(b)
}

// serve upgrades every connection and hands it to handle.
func serve(t *testing.T, handle func(conn *websocket.Conn, n int)) string {
	t.Helper()
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn, int(conns.Add(1)))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// holdOpen reads until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.ReadTimeout = 5 * time.Second
	return &cfg
}

func recvTick(t *testing.T, f *WSFeed) domain.MarketDataPoint {
	t.Helper()
	select {
	case tick := <-f.Ticks():
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for tick")
	}
	return domain.MarketDataPoint{}
}

func recvSignal(t *testing.T, f *WSFeed) domain.Signal {
	t.Helper()
	select {
	case sig := <-f.Signals():
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for signal")
	}
	return domain.Signal{}
}

func TestWSFeed_DecodesAndFilters(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ int) {
		msgs := []string{
			tickMsg(1000, "AAA", 100),
			`{"type":`, // truncated
			`{"type":"heartbeat"}`,
			tickMsg(3000, "AAA", 101),
			tickMsg(2000, "AAA", 99), // older than 3000 on AAA
			tickMsg(2000, "BBB", 50), // BBB is its own stream
			tickMsg(4000, "AAA", -1), // invalid price
			signalMsg(1500, 0.5),
			signalMsg(1200, 0.5),  // older signal
			signalMsg(1500, 2),    // strength out of range
			signalMsg(1500, -0.3), // equal timestamp is allowed
			tickMsg(5000, "AAA", 102),
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		holdOpen(conn)
	})

	f, err := Dial(context.Background(), url, testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer f.Close()

	var got []string
	for i := 0; i < 4; i++ {
		tick := recvTick(t, f)
		got = append(got, tick.Symbol)
		if tick.Symbol == "AAA" && tick.Timestamp == 2000 {
			t.Errorf("out-of-order AAA tick delivered")
		}
	}
	if strings.Join(got, ",") != "AAA,AAA,BBB,AAA" {
		t.Errorf("tick order = %v", got)
	}

	s1, s2 := recvSignal(t, f), recvSignal(t, f)
	if s1.Strength != 0.5 || s2.Strength != -0.3 {
		t.Errorf("signals = %v, %v", s1.Strength, s2.Strength)
	}
	if s1.Regime != domain.RegimeTrending {
		t.Errorf("regime = %v, want trending", s1.Regime)
	}

	checks := map[string]int64{
		DropDecode:      1,
		DropUnknownType: 1,
		DropOutOfOrder:  2,
		DropInvalid:     2,
	}
	for reason, want := range checks {
		if got := f.Dropped(reason); got != want {
			t.Errorf("Dropped(%s) = %d, want %d", reason, got, want)
		}
	}
}

func TestWSFeed_SubscribesAndReconnects(t *testing.T) {
	subscribed := make(chan []string, 2)
	url := serve(t, func(conn *websocket.Conn, n int) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil || req.Type != TypeSubscribe {
			t.Errorf("expected subscribe, got %s", msg)
			return
		}
		subscribed <- req.Symbols

		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(tickMsg(1000, "AAA", 100)))
			return // drop the connection
		}
		// an old tick is dropped, the new one delivered
		_ = conn.WriteMessage(websocket.TextMessage, []byte(tickMsg(500, "AAA", 100)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(tickMsg(2000, "AAA", 101)))
		holdOpen(conn)
	})

	cfg := testConfig()
	cfg.Symbols = []string{"AAA"}
	f, err := Dial(context.Background(), url, cfg)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer f.Close()

	if tick := recvTick(t, f); tick.Timestamp != 1000 {
		t.Errorf("first tick ts = %d", tick.Timestamp)
	}
	if tick := recvTick(t, f); tick.Timestamp != 2000 {
		t.Errorf("tick after reconnect ts = %d, want 2000", tick.Timestamp)
	}
	if f.Reconnects() < 1 {
		t.Errorf("Reconnects = %d, want >= 1", f.Reconnects())
	}
	if got := f.Dropped(DropOutOfOrder); got != 1 {
		t.Errorf("Dropped(out_of_order) = %d, want 1", got)
	}
	for i := 0; i < 2; i++ {
		select {
		case syms := <-subscribed:
			if len(syms) != 1 || syms[0] != "AAA" {
				t.Errorf("subscribed symbols = %v", syms)
			}
		case <-time.After(time.Second):
			t.Fatal("missing subscribe message")
		}
	}
}

func TestWSFeed_CloseIdempotent(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ int) { holdOpen(conn) })

	f, err := Dial(context.Background(), url, testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
	if _, ok := <-f.Ticks(); ok {
		t.Error("ticks channel should be closed")
	}
	if _, ok := <-f.Signals(); ok {
		t.Error("signals channel should be closed")
	}
}

func TestWSFeed_DialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nothing", testConfig())
	if err == nil {
		t.Fatal("expected dial error")
	}
}
