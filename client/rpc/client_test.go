package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
)

type fakeSession struct {
	mu        sync.Mutex
	toolTexts []string
	toolErr   error
	resTexts  []string
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolTexts, s.toolErr
}

func (s *fakeSession) ReadResource(ctx context.Context, uri string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resTexts, nil
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	s.drop()
	return nil
}

// drop simulates the transport going away.
func (s *fakeSession) drop() {
	s.closeOnce.Do(func() { close(s.done) })
}

var errRefused = errors.New("connection refused")

func fastPolicy() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 10, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 3 * time.Millisecond}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConcurrentConnectSharesOneDial(t *testing.T) {
	var dials atomic.Int32
	release := make(chan struct{})
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		<-release
		return newFakeSession(), nil
	})
	c := New(dialer, logging.Noop(), WithBackoff(fastPolicy()))
	t.Cleanup(func() { _ = c.Disconnect() })

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Connect(context.Background())
		}()
	}
	waitFor(t, "first dial", func() bool { return dials.Load() == 1 })
	if got := c.State(); got != StateConnecting {
		t.Fatalf("expected connecting, got %s", got)
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected exactly one dial, got %d", got)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
}

func TestRetriesWithCappedBackoff(t *testing.T) {
	var dials atomic.Int32
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		if dials.Add(1) <= 3 {
			return nil, errRefused
		}
		return newFakeSession(), nil
	})

	var mu sync.Mutex
	var delays []time.Duration
	var connected atomic.Int32
	policy := fastPolicy()
	c := New(dialer, logging.Noop(),
		WithBackoff(policy),
		OnRetry(func(_ uint, d time.Duration, _ error) {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
		}),
		OnConnected(func() { connected.Add(1) }),
	)
	t.Cleanup(func() { _ = c.Disconnect() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 3 {
		t.Fatalf("expected 3 retry delays, got %v", delays)
	}
	for i, d := range delays {
		if d > policy.MaxDelay {
			t.Fatalf("delay %d (%v) exceeds cap %v", i, d, policy.MaxDelay)
		}
		if i > 0 && d < delays[i-1] {
			t.Fatalf("delays decreased: %v", delays)
		}
	}
	if delays[len(delays)-1] != policy.MaxDelay {
		t.Fatalf("expected final delay to hit the cap, got %v", delays)
	}
	if got := connected.Load(); got != 1 {
		t.Fatalf("expected one success callback, got %d", got)
	}
	if got := dials.Load(); got != 4 {
		t.Fatalf("expected 4 dials, got %d", got)
	}
}

func TestConnectGivesUpAfterMaxAttempts(t *testing.T) {
	var dials atomic.Int32
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		return nil, errRefused
	})
	policy := fastPolicy()
	policy.MaxAttempts = 3
	c := New(dialer, logging.Noop(), WithBackoff(policy))

	err := c.Connect(context.Background())
	if !errors.Is(err, errRefused) {
		t.Fatalf("expected refused error, got %v", err)
	}
	if got := dials.Load(); got != 3 {
		t.Fatalf("expected 3 dials, got %d", got)
	}
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
}

func TestZeroMaxAttemptsStillBounded(t *testing.T) {
	var dials atomic.Int32
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		return nil, errRefused
	})
	c := New(dialer, logging.Noop(), WithBackoff(BackoffPolicy{
		BaseDelay:  time.Millisecond,
		Multiplier: 1,
		MaxDelay:   time.Millisecond,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if !errors.Is(err, errRefused) {
		t.Fatalf("expected refused error, got %v", err)
	}
	if got, want := uint(dials.Load()), DefaultBackoffPolicy().MaxAttempts; got != want {
		t.Fatalf("expected %d dials, got %d", want, got)
	}
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
}

func TestBackoffPolicyDefaults(t *testing.T) {
	def := DefaultBackoffPolicy()
	cases := []struct {
		name string
		in   BackoffPolicy
		want BackoffPolicy
	}{
		{"zero", BackoffPolicy{}, def},
		{"keeps valid fields", fastPolicy(), fastPolicy()},
		{"multiplier below one", BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 0.5, MaxDelay: time.Second},
			BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: def.Multiplier, MaxDelay: time.Second}},
		{"cap below base", BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Millisecond},
			BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.withDefaults(); got != tc.want {
				t.Fatalf("withDefaults() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestReconnectsAfterUnsolicitedClose(t *testing.T) {
	var mu sync.Mutex
	var sessions []*fakeSession
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		s := newFakeSession()
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	})
	var connected atomic.Int32
	c := New(dialer, logging.Noop(), WithBackoff(fastPolicy()), OnConnected(func() { connected.Add(1) }))
	t.Cleanup(func() { _ = c.Disconnect() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	mu.Lock()
	first := sessions[0]
	mu.Unlock()
	first.drop()

	waitFor(t, "reconnection", func() bool { return connected.Load() == 2 })
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })
}

func TestDisconnectCancelsRetry(t *testing.T) {
	var dials atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		if fail.Load() {
			return nil, errRefused
		}
		return newFakeSession(), nil
	})
	c := New(dialer, logging.Noop(), WithBackoff(BackoffPolicy{
		MaxAttempts: 100, BaseDelay: 20 * time.Millisecond, Multiplier: 1, MaxDelay: 20 * time.Millisecond,
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()
	waitFor(t, "first dial", func() bool { return dials.Load() >= 1 })

	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("connect did not return after disconnect")
	}
	if got := c.State(); got != StateClosed {
		t.Fatalf("expected closed, got %s", got)
	}

	stopped := dials.Load()
	time.Sleep(60 * time.Millisecond)
	if got := dials.Load(); got != stopped {
		t.Fatalf("dialing continued after disconnect: %d -> %d", stopped, got)
	}

	fail.Store(false)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect after disconnect: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })
	if got := c.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
}

func TestDisconnectClosesSessionWithoutReconnect(t *testing.T) {
	var dials atomic.Int32
	sess := newFakeSession()
	dialer := DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		return sess, nil
	})
	c := New(dialer, logging.Noop(), WithBackoff(fastPolicy()))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !sess.closed.Load() {
		t.Fatalf("expected session closed")
	}
	time.Sleep(20 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected no reconnect, got %d dials", got)
	}
}

func TestCallToolDecodesAndValidates(t *testing.T) {
	sess := newFakeSession()
	c := New(DialerFunc(func(ctx context.Context) (Session, error) { return sess, nil }), logging.Noop())
	t.Cleanup(func() { _ = c.Disconnect() })

	sess.toolTexts = []string{`{"success":true,"message":"Experiment stopped"}`}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.CallTool(context.Background(), "control_experiment", map[string]any{"action": "stop"}, &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if !out.Success || out.Message != "Experiment stopped" {
		t.Fatalf("unexpected result %+v", out)
	}

	tests := []struct {
		name  string
		texts []string
		err   error
		want  error
	}{
		{name: "empty", texts: nil, want: ErrInvalidResponse},
		{name: "blank", texts: []string{""}, want: ErrInvalidResponse},
		{name: "transport", err: errRefused, want: errRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess.mu.Lock()
			sess.toolTexts, sess.toolErr = tt.texts, tt.err
			sess.mu.Unlock()
			err := c.CallTool(context.Background(), "get_network_info", nil, &out)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	sess.mu.Lock()
	sess.toolTexts, sess.toolErr = []string{"not json"}, nil
	sess.mu.Unlock()
	if err := c.CallTool(context.Background(), "get_network_info", nil, &out); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestReadResourceConnectsLazily(t *testing.T) {
	var dials atomic.Int32
	sess := newFakeSession()
	sess.resTexts = []string{`[{"id":"a"}]`}
	c := New(DialerFunc(func(ctx context.Context) (Session, error) {
		dials.Add(1)
		return sess, nil
	}), logging.Noop())
	t.Cleanup(func() { _ = c.Disconnect() })

	if got := c.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected before first call, got %s", got)
	}
	var out []map[string]string
	if err := c.ReadResource(context.Background(), "agents://states", &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0]["id"] != "a" {
		t.Fatalf("unexpected resource %v", out)
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected one dial, got %d", got)
	}
}

func TestConnectRespectsCallerContext(t *testing.T) {
	release := make(chan struct{})
	c := New(DialerFunc(func(ctx context.Context) (Session, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return newFakeSession(), nil
	}), logging.Noop())
	t.Cleanup(func() { _ = c.Disconnect() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// The shared attempt keeps going for other callers.
	close(release)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
}
