package stream

import (
	"context"
	"sync"
	"time"

	"SignalWatch/internal/domain/models"
	drepo "SignalWatch/internal/domain/repository"
	applogger "SignalWatch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Config configures a stream client.
type Config struct {
	Name             string   // label for logs and metrics, e.g. "primary" or "monitor"
	URL              string   // ws://host:port/path
	Channels         []string // subscribe handshake channels, sent after every open
	BaseDelay        time.Duration
	MaxAttempts      int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client maintains at most one live WebSocket connection to the backend,
// decodes inbound frames as envelopes, and fans them out to registered
// handlers in registration order.
//
// Reconnection policy: capped exponential backoff. After an unexpected
// close the next attempt is scheduled at BaseDelay*2^attempts; a
// successful open resets the counter; once MaxAttempts failed attempts
// accumulate the client goes Disconnected and stays down until Connect
// is called again. Connection failures are never returned to callers;
// they only show up in logs, metrics, and State().
type Client struct {
	cfg     Config
	log     *applogger.Logger
	metrics drepo.Metrics

	mu       sync.Mutex
	conn     *websocket.Conn
	state    models.ConnState
	attempts int
	retry    *time.Timer
	gen      uint64 // bumped on Connect/Disconnect to invalidate stale loops and timers
	handlers []drepo.MessageHandler
	dialCtx  context.Context
}

// New creates a stream client. Nil metrics or logger are tolerated for tests.
func New(cfg Config, log *applogger.Logger, metrics drepo.Metrics) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "primary"
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		state:   models.StateDisconnected,
	}
}

// Connect opens the connection if none is active. Calling it while
// connecting, connected, or waiting on a reconnect timer is a no-op.
func (c *Client) Connect(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.state != models.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = models.StateConnecting
	c.attempts = 0
	c.gen++
	c.dialCtx = ctx
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Disconnect closes any active connection, cancels a pending reconnect
// timer, and suppresses automatic reconnection until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = models.StateDisconnected
	c.attempts = 0
}

// AddHandler registers a handler. Handlers are invoked with every decoded
// envelope, in registration order.
func (c *Client) AddHandler(h drepo.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// RemoveHandler removes a previously registered handler by identity.
// No-op when the handler is not present.
func (c *Client) RemoveHandler(h drepo.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.handlers {
		if v == h {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return
		}
	}
}

// State returns the current connection lifecycle state.
func (c *Client) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) dial(gen uint64) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	c.mu.Lock()
	ctx := c.dialCtx
	c.mu.Unlock()

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.logWarn("connect failed", applogger.String("stream", c.cfg.Name), applogger.Error(err))
		c.recordError("connect")
		c.mu.Lock()
		if gen == c.gen {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect won the race; drop the fresh connection.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = models.StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.logInfo("connected", applogger.String("stream", c.cfg.Name), applogger.String("url", c.cfg.URL))
	c.subscribe(conn)
	go c.readLoop(conn, gen)
}

// subscribe sends the channel handshake the backend expects after open.
func (c *Client) subscribe(conn *websocket.Conn) {
	for _, ch := range c.cfg.Channels {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := conn.WriteJSON(msg); err != nil {
			c.logWarn("subscribe failed",
				applogger.String("stream", c.cfg.Name),
				applogger.String("channel", ch),
				applogger.Error(err),
			)
			c.recordError("subscribe")
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		env, derr := models.DecodeEnvelope(frame)
		if derr != nil {
			// Bad frame: log and drop, connection stays up.
			c.logWarn("dropping undecodable frame",
				applogger.String("stream", c.cfg.Name),
				applogger.Error(derr),
			)
			c.recordError("decode")
			continue
		}
		if env.Type == models.TypeError {
			c.logWarn("backend error frame",
				applogger.String("stream", c.cfg.Name),
				applogger.String("message", env.Message),
			)
			c.recordError("backend")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch delivers an envelope to a stable snapshot of the registry, so
// removal during iteration cannot disturb delivery to remaining handlers.
func (c *Client) dispatch(env *models.Envelope) {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]drepo.MessageHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h.OnMessage(env)
	}

	if c.metrics != nil {
		c.metrics.RecordMessage(c.cfg.Name, string(env.Type))
		c.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	}
}

func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Explicit Disconnect already tore this connection down.
		return
	}
	c.conn = nil
	c.logWarn("connection closed", applogger.String("stream", c.cfg.Name), applogger.Error(err))
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxAttempts {
		// Terminal: stay down until an explicit Connect.
		c.state = models.StateDisconnected
		c.logError("reconnect attempts exhausted",
			applogger.String("stream", c.cfg.Name),
			applogger.Int("attempts", c.attempts),
		)
		c.recordError("reconnect_exhausted")
		return
	}

	delay := c.cfg.BaseDelay << c.attempts
	c.attempts++
	c.state = models.StateReconnecting
	if c.metrics != nil {
		c.metrics.RecordReconnect(c.cfg.Name)
	}
	c.logInfo("reconnect scheduled",
		applogger.String("stream", c.cfg.Name),
		applogger.Int("attempt", c.attempts),
		applogger.Duration("delay_ms", delay),
	)

	gen := c.gen
	c.retry = time.AfterFunc(delay, func() { c.retryFire(gen) })
}

func (c *Client) retryFire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != models.StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.state = models.StateConnecting
	c.mu.Unlock()

	c.dial(gen)
}

func (c *Client) logInfo(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

func (c *Client) logWarn(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Warn(msg, fields...)
	}
}

func (c *Client) logError(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Error(msg, fields...)
	}
}

func (c *Client) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}
