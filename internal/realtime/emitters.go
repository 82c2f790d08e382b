package realtime

import (
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/model"
	"github.com/Chandru6607/6g-dashboard/timectrl"
)

var timeNow = time.Now

// Source supplies the data pushed by per-connection emitters.
type Source interface {
	NetworkMetrics() model.NetworkMetrics
	AgentStates() []model.Agent
	SyncProgress() model.SyncProgress
	TelemetryEvent() model.TelemetryEvent
	Alert() model.Alert
	Between(min, max time.Duration) time.Duration
}

// EmitterConfig is the cadence of the per-connection emitters.
type EmitterConfig struct {
	Metrics      time.Duration
	Agents       time.Duration
	Sync         time.Duration
	Throughput   time.Duration
	TelemetryMin time.Duration
	TelemetryMax time.Duration
	AlertMin     time.Duration
	AlertMax     time.Duration
}

// DefaultEmitterConfig returns the standard cadence.
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		Metrics:      2 * time.Second,
		Agents:       5 * time.Second,
		Sync:         3 * time.Second,
		Throughput:   time.Second,
		TelemetryMin: 500 * time.Millisecond,
		TelemetryMax: 2 * time.Second,
		AlertMin:     5 * time.Second,
		AlertMax:     15 * time.Second,
	}
}

// startEmitters sends the initial metrics, agents and sync frames and starts
// every periodic emitter bound to the connection context. The returned
// function blocks until all emitters have exited.
func (h *Hub) startEmitters(c *Conn) (wait func()) {
	var running []<-chan struct{}
	spawn := func(done <-chan struct{}) { running = append(running, done) }
	wait = func() {
		for _, done := range running {
			<-done
		}
	}

	spawn(timectrl.Every(c.ctx, pingPeriod, func(time.Time) {
		if err := c.ping(); err != nil {
			h.log.Debug(c.ctx, "ping failed", logging.String("conn_id", c.id), logging.Err(err))
			h.drop(c)
		}
	}))

	if h.source == nil {
		return wait
	}
	src, cfg := h.source, h.emitters

	h.send(c, model.EventNetworkMetrics, src.NetworkMetrics())
	h.send(c, model.EventAgentsUpdate, src.AgentStates())
	h.send(c, model.EventSyncProgress, src.SyncProgress())

	spawn(timectrl.Every(c.ctx, cfg.Metrics, func(time.Time) {
		h.send(c, model.EventNetworkMetrics, src.NetworkMetrics())
	}))
	spawn(timectrl.Every(c.ctx, cfg.Agents, func(time.Time) {
		h.send(c, model.EventAgentsUpdate, src.AgentStates())
	}))
	spawn(timectrl.Every(c.ctx, cfg.Sync, func(time.Time) {
		h.send(c, model.EventSyncProgress, src.SyncProgress())
	}))
	spawn(timectrl.Every(c.ctx, cfg.Throughput, func(time.Time) {
		h.send(c, model.EventTelemetryThroughput, model.ThroughputSample{Throughput: int(c.sent.Swap(0))})
	}))
	spawn(timectrl.Jittered(c.ctx, func() time.Duration {
		return src.Between(cfg.TelemetryMin, cfg.TelemetryMax)
	}, func(time.Time) {
		if h.send(c, model.EventTelemetryEvent, src.TelemetryEvent()) {
			c.sent.Add(1)
		}
	}))
	spawn(timectrl.Jittered(c.ctx, func() time.Duration {
		return src.Between(cfg.AlertMin, cfg.AlertMax)
	}, func(time.Time) {
		h.send(c, model.EventSystemAlert, src.Alert())
	}))
	return wait
}

// send writes one emitter frame, closing the connection on failure. It
// reports whether the frame was written.
func (h *Hub) send(c *Conn, event string, data any) bool {
	if err := c.Send(event, data); err != nil {
		if !c.closed.Load() {
			h.log.Warn(c.ctx, "emitter write failed; closing connection",
				logging.String("conn_id", c.id),
				logging.String("event", event),
				logging.Err(err),
			)
			h.drop(c)
		}
		return false
	}
	return true
}
