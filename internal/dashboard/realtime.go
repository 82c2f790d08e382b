package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/generator"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/realtime"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
	"github.com/Chandru6607/6g-dashboard/model"
)

// Source feeds the per-connection emitters of the real-time hub.
type Source struct {
	state *state.SimulationState
	gen   *generator.Generator
}

// NewSource pairs state and generator for the real-time hub.
func NewSource(st *state.SimulationState, gen *generator.Generator) *Source {
	return &Source{state: st, gen: gen}
}

func (s *Source) NetworkMetrics() model.NetworkMetrics { return s.gen.NetworkMetrics() }

// AgentStates advances training agents while the simulation is active.
func (s *Source) AgentStates() []model.Agent { return s.state.AdvanceAgents() }

func (s *Source) SyncProgress() model.SyncProgress     { return s.gen.SyncProgress() }
func (s *Source) TelemetryEvent() model.TelemetryEvent { return s.gen.TelemetryEvent() }
func (s *Source) Alert() model.Alert                   { return s.gen.Alert() }

func (s *Source) Between(min, max time.Duration) time.Duration {
	return s.gen.Between(min, max)
}

var _ realtime.Source = (*Source)(nil)

// InboundRegistrar is satisfied by the real-time hub.
type InboundRegistrar interface {
	Handle(event string, fn realtime.InboundHandler)
}

// RegisterInbound installs the client-to-server experiment handlers. The
// resulting experiment:status is published to every connection, which
// includes the sender.
func (s *Service) RegisterInbound(r InboundRegistrar) {
	r.Handle(model.EventExperimentStart, func(ctx context.Context, c *realtime.Conn, data json.RawMessage) {
		var req ExperimentRequest
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				s.log.Warn(ctx, "malformed experiment:start payload",
					logging.String("conn_id", c.ID()),
					logging.Err(err),
				)
				return
			}
		}
		s.StartExperiment(ctx, req)
	})
	r.Handle(model.EventExperimentStop, func(ctx context.Context, c *realtime.Conn, _ json.RawMessage) {
		s.StopExperiment(ctx)
	})
}
