// Package rpc is a request/response client for the dashboard MCP endpoint.
// It connects lazily, shares a single in-flight connection attempt between
// concurrent callers, retries failed dials with capped exponential backoff
// and reconnects on its own when the transport is lost.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
)

var (
	// ErrInvalidResponse is returned when a tool or resource yields no
	// content.
	ErrInvalidResponse = errors.New("rpc: invalid response")
	// ErrClosed is returned to callers whose connection attempt was
	// abandoned by Disconnect.
	ErrClosed = errors.New("rpc: client closed")
	// ErrNotConnected is returned when the session is lost between
	// connecting and issuing a call.
	ErrNotConnected = errors.New("rpc: not connected")
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BackoffPolicy bounds connection retries. Delays grow by Multiplier from
// BaseDelay and never exceed MaxDelay.
type BackoffPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultBackoffPolicy allows 10 attempts starting at 1s, doubling up to 30s.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
	}
}

// withDefaults fills zero or invalid fields from DefaultBackoffPolicy so the
// retry always has a ceiling and a non-zero delay.
func (p BackoffPolicy) withDefaults() BackoffPolicy {
	def := DefaultBackoffPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p BackoffPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Session is one established transport.
type Session interface {
	// CallTool returns the text items of the tool result.
	CallTool(ctx context.Context, name string, args map[string]any) ([]string, error)
	// ReadResource returns the text items of the resource.
	ReadResource(ctx context.Context, uri string) ([]string, error)
	// Done is closed when the transport is lost or closed.
	Done() <-chan struct{}
	Close() error
}

// Dialer establishes sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context) (Session, error) { return f(ctx) }

// attempt is the shared outcome of one connection sequence. err is written
// before done is closed.
type attempt struct {
	done chan struct{}
	err  error
}

// Client is safe for concurrent use.
type Client struct {
	dialer      Dialer
	policy      BackoffPolicy
	log         logging.Logger
	onRetry     func(attempt uint, delay time.Duration, err error)
	onConnected func()

	mu       sync.Mutex
	state    State
	session  Session
	inflight *attempt
	cancel   context.CancelFunc
}

// Option customises a Client.
type Option func(*Client)

// WithBackoff overrides the retry policy. Zero or invalid fields keep
// their DefaultBackoffPolicy values.
func WithBackoff(p BackoffPolicy) Option {
	return func(c *Client) { c.policy = p.withDefaults() }
}

// OnRetry registers fn to observe every failed dial and the delay before
// the next one.
func OnRetry(fn func(attempt uint, delay time.Duration, err error)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// OnConnected registers fn to run after every successful connection.
func OnConnected(fn func()) Option {
	return func(c *Client) { c.onConnected = fn }
}

// New returns a disconnected client.
func New(dialer Dialer, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		dialer: dialer,
		policy: DefaultBackoffPolicy(),
		log:    logging.Component(log, "rpc-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect returns once connected. Concurrent callers share one connection
// sequence; ctx only bounds how long this caller waits for it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	a := c.inflight
	if a == nil {
		a = c.startLocked()
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect cancels any connection sequence in flight, closes the session
// and stops automatic reconnection until the next Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.inflight = nil
	c.cancel = nil
	sess := c.session
	c.session = nil
	c.state = StateClosed
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	c.log.Info(context.Background(), "rpc session closed")
	return sess.Close()
}

// CallTool invokes tool name and decodes the first text item into out.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any, out any) error {
	sess, err := c.ensure(ctx)
	if err != nil {
		return fmt.Errorf("rpc: tool %s: %w", name, err)
	}
	texts, err := sess.CallTool(ctx, name, args)
	if err != nil {
		c.log.Error(ctx, "tool call failed", logging.String("tool", name), logging.Err(err))
		return fmt.Errorf("rpc: tool %s: %w", name, err)
	}
	if err := decodeFirst(texts, out); err != nil {
		return fmt.Errorf("rpc: tool %s: %w", name, err)
	}
	return nil
}

// ReadResource reads uri and decodes the first text item into out.
func (c *Client) ReadResource(ctx context.Context, uri string, out any) error {
	sess, err := c.ensure(ctx)
	if err != nil {
		return fmt.Errorf("rpc: resource %s: %w", uri, err)
	}
	texts, err := sess.ReadResource(ctx, uri)
	if err != nil {
		c.log.Error(ctx, "resource read failed", logging.String("uri", uri), logging.Err(err))
		return fmt.Errorf("rpc: resource %s: %w", uri, err)
	}
	if err := decodeFirst(texts, out); err != nil {
		return fmt.Errorf("rpc: resource %s: %w", uri, err)
	}
	return nil
}

func (c *Client) ensure(ctx context.Context) (Session, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// startLocked launches a connection sequence. The sequence runs on its own
// context so an impatient caller cannot abort it for everyone else.
func (c *Client) startLocked() *attempt {
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{done: make(chan struct{})}
	c.inflight = a
	c.cancel = cancel
	c.state = StateConnecting
	go c.establish(ctx, a)
	return a
}

func (c *Client) establish(ctx context.Context, a *attempt) {
	var tries uint
	sess, err := backoff.Retry(ctx, func() (Session, error) {
		tries++
		c.log.Debug(ctx, "connecting", logging.Int("attempt", int(tries)))
		return c.dialer.Dial(ctx)
	},
		backoff.WithBackOff(c.policy.backOff()),
		backoff.WithMaxTries(c.policy.MaxAttempts),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.log.Warn(ctx, "connection error; retrying",
				logging.Int("attempt", int(tries)),
				logging.Duration("retry_in", delay),
				logging.Err(err),
			)
			if c.onRetry != nil {
				c.onRetry(tries, delay, err)
			}
		}),
	)

	c.mu.Lock()
	if c.inflight != a {
		c.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		a.err = ErrClosed
		close(a.done)
		return
	}
	c.inflight = nil
	c.cancel = nil
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.log.Error(ctx, "max connection retries reached", logging.Int("attempts", int(tries)), logging.Err(err))
		a.err = fmt.Errorf("rpc: connect: %w", err)
		close(a.done)
		return
	}
	c.state = StateConnected
	c.session = sess
	hook := c.onConnected
	c.mu.Unlock()

	close(a.done)
	c.log.Info(ctx, "rpc session connected", logging.Int("attempts", int(tries)))
	if hook != nil {
		hook()
	}
	go c.watch(sess)
}

// watch reconnects when sess ends without Disconnect having been called.
func (c *Client) watch(sess Session) {
	<-sess.Done()

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = StateDisconnected
	if c.inflight == nil {
		c.startLocked()
	}
	c.mu.Unlock()
	_ = sess.Close()
	c.log.Warn(context.Background(), "rpc connection lost; reconnecting")
}

func decodeFirst(texts []string, out any) error {
	if len(texts) == 0 || texts[0] == "" {
		return ErrInvalidResponse
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(texts[0]), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
