package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
)

// ErrConnClosed is returned when writing to a closed connection.
var ErrConnClosed = errors.New("realtime: connection closed")

// InboundHandler handles one client-to-server event.
type InboundHandler func(ctx context.Context, c *Conn, data json.RawMessage)

// MetricsRecorder receives hub activity.
type MetricsRecorder interface {
	ConnectionOpened()
	ConnectionClosed()
	EventPublished(event string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()     {}
func (noopMetrics) ConnectionClosed()     {}
func (noopMetrics) EventPublished(string) {}

// Hub tracks open connections and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader
	log      logging.Logger
	metrics  MetricsRecorder

	source   Source
	emitters EmitterConfig

	mu       sync.RWMutex
	conns    map[string]*Conn
	handlers map[string]InboundHandler

	wg sync.WaitGroup
}

// Option customises a Hub.
type Option func(*Hub)

// WithCheckOrigin restricts which browser origins may connect.
func WithCheckOrigin(allowed func(origin string) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed(r.Header.Get("Origin"))
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithEmitters overrides the per-connection emitter cadence.
func WithEmitters(cfg EmitterConfig) Option {
	return func(h *Hub) {
		h.emitters = cfg
	}
}

// NewHub builds a hub whose per-connection emitters draw from source. A nil
// source disables the emitters.
func NewHub(source Source, log logging.Logger, opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log:      logging.Component(log, "realtime"),
		metrics:  noopMetrics{},
		source:   source,
		emitters: DefaultEmitterConfig(),
		conns:    make(map[string]*Conn),
		handlers: make(map[string]InboundHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle registers fn for inbound events named event, replacing any
// previous handler.
func (h *Hub) Handle(event string, fn InboundHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = fn
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish sends event to every open connection. Connections whose write
// fails are closed.
func (h *Hub) Publish(event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		h.log.Error(context.Background(), "drop unencodable event", logging.String("event", event), logging.Err(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(event, frame); err != nil {
			h.log.Warn(c.ctx, "publish failed; closing connection",
				logging.String("conn_id", c.id),
				logging.String("event", event),
				logging.Err(err),
			)
			h.drop(c)
		}
	}
}

// ServeHTTP upgrades the request and serves the connection until the peer
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed",
			logging.String("origin", r.Header.Get("Origin")),
			logging.Err(err),
		)
		return
	}

	// The connection outlives the upgrade request.
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{id: uuid.NewString(), ws: ws, hub: h, ctx: ctx, cancel: cancel}

	h.wg.Add(1)
	defer h.wg.Done()
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.log.Info(ctx, "client connected",
		logging.String("conn_id", c.id),
		logging.String("remote_addr", r.RemoteAddr),
		logging.Int("connections", h.Count()),
	)

	wait := h.startEmitters(c)
	h.readLoop(c)

	h.drop(c)
	wait()
	h.metrics.ConnectionClosed()
	h.log.Info(context.Background(), "client disconnected",
		logging.String("conn_id", c.id),
		logging.Int("connections", h.Count()),
	)
}

// Close disconnects every client and waits for their goroutines to finish.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.drop(c)
	}
	h.wg.Wait()
}

func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) readLoop(c *Conn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(timeNow().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !c.closed.Load() {
				h.log.Warn(c.ctx, "websocket read failed", logging.String("conn_id", c.id), logging.Err(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
			h.log.Debug(c.ctx, "ignoring malformed frame", logging.String("conn_id", c.id))
			continue
		}

		h.mu.RLock()
		fn := h.handlers[env.Event]
		h.mu.RUnlock()
		if fn == nil {
			h.log.Debug(c.ctx, "no handler for inbound event", logging.String("event", env.Event))
			continue
		}
		fn(c.ctx, c, env.Data)
	}
}
