package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalWatch/internal/domain/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// mockBackend is a websocket server that accepts connections, drains the
// subscribe handshake, and lets tests push frames to the newest connection.
type mockBackend struct {
	*httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
	dials int32
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	ms := &mockBackend{}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ms.dials, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ms.mu.Lock()
		ms.conns = append(ms.conns, conn)
		ms.mu.Unlock()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(ms.Server.Close)
	return ms
}

func (ms *mockBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(ms.URL, "http")
}

func (ms *mockBackend) dialCount() int {
	return int(atomic.LoadInt32(&ms.dials))
}

func (ms *mockBackend) push(t *testing.T, frame string) {
	t.Helper()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.conns) == 0 {
		t.Fatal("no connection to push to")
	}
	conn := ms.conns[len(ms.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("push frame: %v", err)
	}
}

func (ms *mockBackend) dropConns() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, c := range ms.conns {
		_ = c.Close()
	}
	ms.conns = nil
}

// orderLog records which handler saw a frame, across handlers.
type orderLog struct {
	mu   sync.Mutex
	tags []string
}

func (l *orderLog) add(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tags = append(l.tags, tag)
}

func (l *orderLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tags...)
}

// capture records envelopes, optionally tagging a shared order log.
type capture struct {
	mu   sync.Mutex
	envs []*models.Envelope
	tag  string
	log  *orderLog
}

func (h *capture) OnMessage(env *models.Envelope) {
	h.mu.Lock()
	h.envs = append(h.envs, env)
	h.mu.Unlock()
	if h.log != nil {
		h.log.add(h.tag)
	}
}

func (h *capture) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.envs)
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectDeliversFrames(t *testing.T) {
	ms := newMockBackend(t)
	c := New(Config{URL: ms.wsURL(), Channels: []string{"signals"}}, nil, nil)
	h := &capture{}
	c.AddHandler(h)

	c.Connect(context.Background())
	defer c.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateConnected })

	ms.push(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long","current_price":46000}}`)
	waitFor(t, 2*time.Second, func() bool { return h.count() == 1 })

	env := h.envs[0]
	if env.Type != models.TypeSignalUpdate {
		t.Fatalf("unexpected type %q", env.Type)
	}
	s, err := env.Signal()
	if err != nil {
		t.Fatalf("signal payload: %v", err)
	}
	if s.ID != 1 || s.Symbol != "BTCUSDT" || s.CurrentPrice != 46000 {
		t.Fatalf("unexpected signal %+v", s)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ms := newMockBackend(t)
	c := New(Config{URL: ms.wsURL()}, nil, nil)

	c.Connect(context.Background())
	defer c.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateConnected })

	c.Connect(context.Background())
	c.Connect(context.Background())
	time.Sleep(100 * time.Millisecond)

	if got := ms.dialCount(); got != 1 {
		t.Fatalf("expected 1 dial, got %d", got)
	}
}

func TestHandlerOrderAndRemoval(t *testing.T) {
	ms := newMockBackend(t)
	c := New(Config{URL: ms.wsURL()}, nil, nil)

	log := &orderLog{}
	a := &capture{tag: "a", log: log}
	b := &capture{tag: "b", log: log}
	c.AddHandler(a)
	c.AddHandler(b)

	c.Connect(context.Background())
	defer c.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateConnected })

	ms.push(t, `{"type":"stats_update","stats":{"total_signals":1}}`)
	waitFor(t, 2*time.Second, func() bool { return b.count() == 1 })

	order := log.snapshot()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected delivery order [a b], got %v", order)
	}

	c.RemoveHandler(a)
	ms.push(t, `{"type":"stats_update","stats":{"total_signals":2}}`)
	waitFor(t, 2*time.Second, func() bool { return b.count() == 2 })
	if a.count() != 1 {
		t.Fatalf("removed handler still invoked, count %d", a.count())
	}
}

func TestRemoveUnknownHandlerIsNoop(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:0"}, nil, nil)
	h := &capture{}
	c.AddHandler(h)
	c.RemoveHandler(&capture{}) // different identity
	c.mu.Lock()
	n := len(c.handlers)
	c.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected registry untouched, got %d handlers", n)
	}
}

func TestBadFrameIsDroppedConnectionStays(t *testing.T) {
	ms := newMockBackend(t)
	c := New(Config{URL: ms.wsURL()}, nil, nil)
	h := &capture{}
	c.AddHandler(h)

	c.Connect(context.Background())
	defer c.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateConnected })

	ms.push(t, `{not json`)
	ms.push(t, `{"data":{"id":1}}`) // missing type tag
	ms.push(t, `{"type":"stats_update","stats":{"total_signals":9}}`)

	waitFor(t, 2*time.Second, func() bool { return h.count() == 1 })
	if c.State() != models.StateConnected {
		t.Fatalf("connection dropped after bad frame, state %q", c.State())
	}
	if h.envs[0].Type != models.TypeStatsUpdate {
		t.Fatalf("unexpected envelope %+v", h.envs[0])
	}
}

func TestReconnectAfterServerClose(t *testing.T) {
	ms := newMockBackend(t)
	c := New(Config{URL: ms.wsURL(), BaseDelay: 10 * time.Millisecond}, nil, nil)

	c.Connect(context.Background())
	defer c.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateConnected })

	ms.dropConns()
	waitFor(t, 2*time.Second, func() bool { return ms.dialCount() >= 2 && c.State() == models.StateConnected })
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: url, BaseDelay: 100 * time.Millisecond, MaxAttempts: 5}, nil, nil)

	c.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&dials) == 1 })
	waitFor(t, 2*time.Second, func() bool { return c.State() == models.StateReconnecting })

	c.Disconnect()
	time.Sleep(400 * time.Millisecond)

	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("reconnect timer fired after Disconnect, dials %d", got)
	}
	if c.State() != models.StateDisconnected {
		t.Fatalf("unexpected state %q", c.State())
	}
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: url, BaseDelay: 5 * time.Millisecond, MaxAttempts: 3}, nil, nil)

	c.Connect(context.Background())

	// Initial dial plus three backed-off retries, then terminal.
	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&dials) == 4 && c.State() == models.StateDisconnected
	})
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&dials); got != 4 {
		t.Fatalf("expected dialing to stop at 4, got %d", got)
	}

	// A fresh Connect starts the cycle over.
	c.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&dials) >= 5 })
	c.Disconnect()
}

func TestSubscribeHandshakeSent(t *testing.T) {
	type sub struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
	}
	got := make(chan sub, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			var s sub
			if err := conn.ReadJSON(&s); err != nil {
				return
			}
			got <- s
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: url, Channels: []string{"signals", "metrics"}}, nil, nil)
	c.Connect(context.Background())
	defer c.Disconnect()

	for _, want := range []string{"signals", "metrics"} {
		select {
		case s := <-got:
			if s.Type != "subscribe" || s.Channel != want {
				t.Fatalf("unexpected handshake %+v, want channel %q", s, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("handshake for %q not received", want)
		}
	}
}
