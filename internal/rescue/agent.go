// Package rescue runs the self-healing watchdog: it periodically restores
// degraded gNBs, caches the simulation state to disk and restores it on
// start-up.
package rescue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/observability"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
	"github.com/Chandru6607/6g-dashboard/model"
	"github.com/Chandru6607/6g-dashboard/timectrl"
)

// Defaults for the watchdog.
const (
	DefaultPeriod          = 10 * time.Second
	DefaultHealProbability = 0.7

	rewardFloor   = 0.5
	rewardResetTo = 0.75
	eventSource   = "rescue.agent"
	recoveryType  = "SYSTEM_RECOVERY"
)

// Publisher fans an event out to every real-time connection.
type Publisher interface {
	Publish(event string, data any)
}

// Dice decides whether a heal attempt succeeds.
type Dice interface {
	Chance(p float64) bool
}

// Resumer restarts the broadcast loop after a restore.
type Resumer interface {
	Resume(ctx context.Context) bool
}

// MetricsRecorder receives watchdog activity.
type MetricsRecorder interface {
	NodesHealed(n int)
	SnapshotWritten(err error)
}

// Result is returned by TroubleshootAll.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Agent is the rescue watchdog.
type Agent struct {
	state   *state.SimulationState
	pub     Publisher
	dice    Dice
	store   *SnapshotStore
	log     logging.Logger
	metrics MetricsRecorder
	now     func() time.Time

	healProbability float64
	loop            *timectrl.Loop

	// mu serialises watchdog passes with troubleshoot requests.
	mu       sync.Mutex
	lastSync atomic.Int64
}

// Option customises an Agent.
type Option func(*Agent)

// WithPeriod overrides the watchdog cadence.
func WithPeriod(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.loop.Period = d
		}
	}
}

// WithHealProbability overrides the per-node heal chance.
func WithHealProbability(p float64) Option {
	return func(a *Agent) { a.healProbability = p }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds a watchdog over st. A nil store disables persistence.
func New(st *state.SimulationState, pub Publisher, dice Dice, store *SnapshotStore, log logging.Logger, opts ...Option) *Agent {
	if store == nil {
		store = NewSnapshotStore("")
	}
	a := &Agent{
		state:           st,
		pub:             pub,
		dice:            dice,
		store:           store,
		log:             logging.Component(log, "rescue"),
		now:             time.Now,
		healProbability: DefaultHealProbability,
		loop:            timectrl.NewLoop(DefaultPeriod),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore loads the cached snapshot into state. A missing cache is not an
// error; a malformed one is logged, left in place and reported. When the
// restored state is active, resumer restarts the broadcast loop.
func (a *Agent) Restore(ctx context.Context, resumer Resumer) (bool, error) {
	snap, ok, err := a.store.Load()
	if err != nil {
		a.log.Warn(ctx, "ignoring unusable state snapshot",
			logging.String("path", a.store.Path()),
			logging.Err(err),
		)
		return false, err
	}
	if !ok {
		a.log.Info(ctx, "no state snapshot; starting from defaults", logging.String("path", a.store.Path()))
		return false, nil
	}
	if err := a.state.Restore(snap); err != nil {
		return false, err
	}
	if resumer != nil {
		resumer.Resume(ctx)
	}
	return true, nil
}

// Start runs the watchdog until Stop or ctx is cancelled. The first pass
// runs one period after start.
func (a *Agent) Start(ctx context.Context) {
	started := false
	a.loop.Start(ctx, func(now time.Time) {
		if !started {
			started = true
			return
		}
		a.Check(ctx)
	})
	a.log.Info(ctx, "rescue watchdog started", logging.Duration("period", a.loop.Period))
}

// Stop halts the watchdog and writes a final snapshot.
func (a *Agent) Stop(ctx context.Context) {
	if a.loop.Stop() {
		_ = a.Backup(ctx)
	}
}

// Check runs one watchdog pass: heal degraded nodes, then cache the state.
func (a *Agent) Check(ctx context.Context) []string {
	healed := a.HealDegraded(ctx)
	_ = a.Backup(ctx)
	return healed
}

// HealDegraded restores each degraded gNB with the configured probability
// and announces every recovery. When any gNB was degraded, the resulting
// topology is published.
func (a *Agent) HealDegraded(ctx context.Context) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "rescue.HealDegraded")
	defer span.End()

	healed, degraded, topo := a.state.HealDegraded(func(string) bool {
		return a.dice.Chance(a.healProbability)
	})
	span.SetAttributes(attribute.Int("healed", len(healed)))
	for _, id := range healed {
		a.notify(ctx, fmt.Sprintf("Node %s restored to ACTIVE", id))
	}
	if degraded {
		a.pub.Publish(model.EventNetworkUpdate, model.NetworkSnapshot{
			Timestamp: a.now(),
			Topology:  &topo,
		})
	}
	if a.metrics != nil {
		a.metrics.NodesHealed(len(healed))
	}
	if len(healed) > 0 {
		a.log.Info(ctx, "degraded nodes restored", logging.Any("nodes", healed))
	}
	return healed
}

// TroubleshootAll forces every node active and lifts under-performing
// agents.
func (a *Agent) TroubleshootAll(ctx context.Context) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "rescue.TroubleshootAll")
	defer span.End()

	reset := a.state.ResetHealth(rewardFloor, rewardResetTo)
	a.notify(ctx, "Intensive troubleshooting complete; all nodes forced ACTIVE")
	a.pub.Publish(model.EventAgentsUpdate, a.state.Agents())
	topo := a.state.Topology()
	a.pub.Publish(model.EventNetworkUpdate, model.NetworkSnapshot{Timestamp: a.now(), Topology: &topo})
	a.log.Info(ctx, "troubleshooting complete", logging.Int("agents_reset", reset))
	return Result{Success: true, Message: "Intensive troubleshooting complete"}
}

// Backup writes the current state to the snapshot cache.
func (a *Agent) Backup(ctx context.Context) error {
	if !a.store.Enabled() {
		return nil
	}
	err := a.store.Save(a.state.Snapshot())
	if a.metrics != nil {
		a.metrics.SnapshotWritten(err)
	}
	if err != nil {
		a.log.Error(ctx, "state snapshot failed", logging.String("path", a.store.Path()), logging.Err(err))
		return err
	}
	a.lastSync.Store(a.now().UnixMilli())
	return nil
}

// LastSync returns the time of the last successful snapshot, or the zero
// time.
func (a *Agent) LastSync() time.Time {
	ms := a.lastSync.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (a *Agent) notify(ctx context.Context, msg string) {
	now := a.now()
	a.pub.Publish(model.EventTelemetryEvent, model.TelemetryEvent{
		ID:        fmt.Sprintf("rescue-%d", now.UnixNano()),
		Timestamp: now,
		Severity:  model.SeverityInfo,
		Source:    eventSource,
		Type:      recoveryType,
		Message:   "[RESCUE] " + msg,
	})
	a.pub.Publish(model.EventAlertNew, model.Alert{
		ID:        fmt.Sprintf("rescue-alert-%d", now.UnixNano()),
		Timestamp: now,
		Severity:  model.SeverityLow,
		Source:    eventSource,
		Message:   msg,
	})
	a.log.Debug(ctx, "recovery announced", logging.String("message", msg))
}
