// Package realtime is a reconnecting client for the dashboard WebSocket
// channel. Subscriptions are kept in a registry owned by the client and are
// replayed onto every new connection, so callers register once regardless
// of how often the transport is replaced.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	wire "github.com/Chandru6607/6g-dashboard/internal/realtime"
)

// ErrNotConnected is returned by Emit when no transport is held.
var ErrNotConnected = errors.New("realtime: not connected")

// Reconnect defaults.
const (
	DefaultReconnectDelay    = time.Second
	DefaultReconnectAttempts = 5

	writeWait = 5 * time.Second
)

// Handler receives the raw JSON payload of an event.
type Handler func(data json.RawMessage)

// Subscription identifies one On registration.
type Subscription struct {
	id    uint64
	event string
}

// Event returns the subscribed event name.
func (s Subscription) Event() string { return s.event }

type binding struct {
	id uint64
	fn Handler
}

// transport is one live WebSocket connection and the handlers bound to it.
// bindings is guarded by Client.mu.
type transport struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	bindings map[string][]binding
}

// Client is safe for concurrent use.
type Client struct {
	url       string
	header    http.Header
	dialer    *websocket.Dialer
	log       logging.Logger
	delay     time.Duration
	attempts  uint
	onConnect []func()

	// connectMu serialises dials so at most one transport is being
	// established at a time.
	connectMu sync.Mutex

	mu       sync.Mutex
	registry map[string][]binding
	nextID   uint64
	conn     *transport
	lifetime context.Context
	cancel   context.CancelFunc
	closed   bool
}

// Option customises a Client.
type Option func(*Client)

// WithReconnect sets the fixed delay between attempts and the maximum
// number of attempts per (re)connection.
func WithReconnect(delay time.Duration, attempts uint) Option {
	return func(c *Client) {
		if delay > 0 {
			c.delay = delay
		}
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithHeader sets headers sent on the upgrade request, e.g. Origin.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithOnConnect registers fn to run after every successful connection,
// once the registry has been replayed onto it.
func WithOnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = append(c.onConnect, fn) }
}

// NewClient returns a disconnected client for url (ws:// or wss://).
func NewClient(url string, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		log:      logging.Component(log, "realtime-client"),
		delay:    DefaultReconnectDelay,
		attempts: DefaultReconnectAttempts,
		registry: make(map[string][]binding),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a transport unless one is already held. Failed dials
// are retried at a fixed delay up to the configured attempt count. A lost
// connection is re-established automatically until Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.lifetime == nil || c.lifetime.Err() != nil {
		c.lifetime, c.cancel = context.WithCancel(context.Background())
	}
	c.closed = false
	life := c.lifetime
	c.mu.Unlock()

	return c.dial(ctx, life)
}

// Connected reports whether a transport is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnect closes the transport and stops automatic reconnection.
// Registrations are kept for the next Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	t := c.conn
	c.conn = nil
	c.mu.Unlock()

	if t == nil {
		return nil
	}
	_ = t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.log.Info(context.Background(), "websocket disconnected", logging.String("url", c.url))
	return t.ws.Close()
}

// On registers fn for event. If a transport is held the handler is bound to
// it immediately.
func (c *Client) On(event string, fn Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	b := binding{id: c.nextID, fn: fn}
	c.registry[event] = append(c.registry[event], b)
	if c.conn != nil {
		c.conn.bindings[event] = append(c.conn.bindings[event], b)
	}
	return Subscription{id: b.id, event: event}
}

// Off removes sub from the registry and from the live transport.
func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry[sub.event] = without(c.registry[sub.event], sub.id)
	if len(c.registry[sub.event]) == 0 {
		delete(c.registry, sub.event)
	}
	if c.conn != nil {
		c.conn.bindings[sub.event] = without(c.conn.bindings[sub.event], sub.id)
	}
}

// Emit sends event to the server. It never queues: without a transport it
// returns ErrNotConnected.
func (c *Client) Emit(event string, data any) error {
	c.mu.Lock()
	t := c.conn
	c.mu.Unlock()
	if t == nil {
		c.log.Warn(context.Background(), "cannot emit, socket not connected", logging.String("event", event))
		return ErrNotConnected
	}

	frame, err := wire.Encode(event, data)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("realtime: emit %s: %w", event, err)
	}
	if err := t.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("realtime: emit %s: %w", event, err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context, life context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(life, cancel)
	defer stop()

	ws, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		ws, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		return ws, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.delay)),
		backoff.WithMaxTries(c.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn(ctx, "websocket connection error",
				logging.String("url", c.url),
				logging.Duration("retry_in", next),
				logging.Err(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("realtime: connect %s: %w", c.url, err)
	}
	return c.install(ws, life)
}

// install replaces any stale bindings with a fresh copy of the registry and
// starts reading.
func (c *Client) install(ws *websocket.Conn, life context.Context) error {
	c.mu.Lock()
	if c.closed || life.Err() != nil {
		c.mu.Unlock()
		_ = ws.Close()
		return fmt.Errorf("realtime: connect %s: %w", c.url, context.Canceled)
	}
	t := &transport{ws: ws, bindings: make(map[string][]binding, len(c.registry))}
	for event, bs := range c.registry {
		t.bindings[event] = append([]binding(nil), bs...)
	}
	c.conn = t
	hooks := c.onConnect
	c.mu.Unlock()

	c.log.Info(context.Background(), "websocket connected", logging.String("url", c.url))
	go c.readLoop(t, life)
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (c *Client) readLoop(t *transport, life context.Context) {
	for {
		_, msg, err := t.ws.ReadMessage()
		if err != nil {
			c.lost(t, life, err)
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.log.Debug(context.Background(), "dropping malformed frame", logging.Err(err))
			continue
		}

		c.mu.Lock()
		handlers := append([]binding(nil), t.bindings[env.Event]...)
		c.mu.Unlock()
		for _, b := range handlers {
			b.fn(env.Data)
		}
	}
}

func (c *Client) lost(t *transport, life context.Context, err error) {
	c.mu.Lock()
	if c.conn == t {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()
	_ = t.ws.Close()

	if closed || life.Err() != nil {
		return
	}
	c.log.Warn(context.Background(), "websocket connection lost; reconnecting",
		logging.String("url", c.url),
		logging.Err(err),
	)

	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	if c.Connected() {
		return
	}
	if err := c.dial(life, life); err != nil && life.Err() == nil {
		c.log.Error(context.Background(), "websocket reconnection failed", logging.Err(err))
	}
}

func without(bs []binding, id uint64) []binding {
	out := bs[:0:0]
	for _, b := range bs {
		if b.id != id {
			out = append(out, b)
		}
	}
	return out
}
