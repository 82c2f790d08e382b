package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Conn is one accepted real-time connection. Writes are serialised by a
// per-connection mutex and bounded by a write deadline.
type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closed  atomic.Bool

	// sent counts telemetry:event frames since the last throughput sample.
	sent atomic.Int64
}

// ID returns the connection id assigned at accept time.
func (c *Conn) ID() string { return c.id }

// Context is cancelled when the connection closes.
func (c *Conn) Context() context.Context { return c.ctx }

// Send writes one event to this connection only.
func (c *Conn) Send(event string, data any) error {
	frame, err := Encode(event, data)
	if err != nil {
		return err
	}
	return c.write(event, frame)
}

func (c *Conn) write(event string, frame []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	c.hub.metrics.EventPublished(event)
	return nil
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close tears the connection down once; later calls are no-ops.
func (c *Conn) close() bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	c.cancel()
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = c.ws.Close()
	return true
}
