package timectrl

import (
	"context"
	"sync"
	"time"
)

// Loop drives a callback on a fixed period. It fires once immediately when
// started and then on every Period until stopped. A Loop owns at most one
// run: Start on a running Loop cancels the previous run and waits for it to
// exit before installing the new one.
type Loop struct {
	Period time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop constructs a stopped loop.
func NewLoop(period time.Duration) *Loop {
	return &Loop{Period: period}
}

// Start installs a new run driven by fn. The run lives until Stop, the next
// Start, or cancellation of parent.
func (l *Loop) Start(parent context.Context, fn func(time.Time)) {
	if parent == nil {
		parent = context.Background()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	go l.run(ctx, done, fn)
}

// Stop cancels the active run and blocks until it has returned. It reports
// whether a run was active.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopLocked()
}

// Running reports whether a run is installed and has not exited.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Loop) stopLocked() bool {
	if l.cancel == nil {
		return false
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
	return true
}

func (l *Loop) run(ctx context.Context, done chan struct{}, fn func(time.Time)) {
	defer close(done)

	if ctx.Err() != nil {
		return
	}
	fn(time.Now())

	ticker := time.NewTicker(l.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(now)
		}
	}
}

// Every calls fn on every period until ctx is done. The returned channel is
// closed once the goroutine has exited.
func Every(ctx context.Context, period time.Duration, fn func(time.Time)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
	return done
}

// Jittered calls fn after a delay chosen by next, then re-arms with a fresh
// delay after every call until ctx is done.
func Jittered(ctx context.Context, next func() time.Duration, fn func(time.Time)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		timer := time.NewTimer(next())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-timer.C:
				fn(now)
				timer.Reset(next())
			}
		}
	}()
	return done
}
