// Package dashboard implements the simulation operations behind the REST,
// MCP and real-time surfaces: the broadcast loop, agent toggling,
// experiments and scenario selection.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Chandru6607/6g-dashboard/internal/generator"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/observability"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
	"github.com/Chandru6607/6g-dashboard/model"
	"github.com/Chandru6607/6g-dashboard/timectrl"
)

// ErrInvalidExperimentAction is returned for experiment actions other than
// start and stop.
var ErrInvalidExperimentAction = errors.New("invalid experiment action")

// DefaultLoopPeriod is the broadcast loop cadence.
const DefaultLoopPeriod = time.Second

// Publisher fans an event out to every real-time connection.
type Publisher interface {
	Publish(event string, data any)
}

// Service owns the broadcast loop and mediates every state mutation that
// must be announced to connected clients.
type Service struct {
	state *state.SimulationState
	gen   *generator.Generator
	pub   Publisher
	log   logging.Logger
	now   func() time.Time

	// base bounds the lifetime of loop runs; it is independent of the
	// request that started them.
	base context.Context

	loopMu sync.Mutex
	loop   *timectrl.Loop

	observers []func(active bool)
}

// Option customises a Service.
type Option func(*Service)

// WithLoopPeriod overrides the broadcast cadence.
func WithLoopPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loop.Period = d
		}
	}
}

// WithBaseContext bounds every loop run by ctx.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

// WithActivityObserver registers fn to be told when the loop starts or
// stops.
func WithActivityObserver(fn func(active bool)) Option {
	return func(s *Service) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires a Service over st. A nil publisher drops announcements.
func New(st *state.SimulationState, gen *generator.Generator, pub Publisher, log logging.Logger, opts ...Option) *Service {
	if pub == nil {
		pub = discard{}
	}
	s := &Service{
		state: st,
		gen:   gen,
		pub:   pub,
		log:   logging.Component(log, "dashboard"),
		now:   time.Now,
		base:  context.Background(),
		loop:  timectrl.NewLoop(DefaultLoopPeriod),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type discard struct{}

func (discard) Publish(string, any) {}

// StartSimulation activates the simulation and (re)installs the broadcast
// loop. Concurrent calls are serialised; each cancels and joins the previous
// loop first, so exactly one loop survives.
func (s *Service) StartSimulation(ctx context.Context) model.SimulationStatus {
	ctx, span := observability.StartSpan(ctx, "dashboard.StartSimulation")
	defer span.End()

	s.loopMu.Lock()
	s.state.Activate(s.now())
	s.loop.Start(s.base, s.broadcast)
	s.loopMu.Unlock()

	status := s.state.Status()
	s.pub.Publish(model.EventSimulationState, status)
	s.notify(true)
	s.log.Info(ctx, "simulation started",
		logging.String("topology_type", string(status.TopologyType)),
		logging.Duration("period", s.loop.Period),
	)
	return status
}

// StopSimulation deactivates the simulation and stops the loop. No further
// composite snapshots are published once it returns. It reports whether a
// loop was running.
func (s *Service) StopSimulation(ctx context.Context) bool {
	ctx, span := observability.StartSpan(ctx, "dashboard.StopSimulation")
	defer span.End()

	s.loopMu.Lock()
	stopped := s.loop.Stop()
	s.state.Deactivate()
	s.loopMu.Unlock()

	if !stopped {
		return false
	}
	s.pub.Publish(model.EventSimulationState, s.state.Status())
	s.notify(false)
	s.log.Info(ctx, "simulation stopped")
	return true
}

// Resume restarts the loop when restored state says the simulation was
// active. It reports whether the loop was started.
func (s *Service) Resume(ctx context.Context) bool {
	if !s.state.Active() {
		return false
	}
	s.log.Info(ctx, "resuming simulation from restored state")
	s.StartSimulation(ctx)
	return true
}

// Running reports whether the broadcast loop is installed.
func (s *Service) Running() bool {
	return s.loop.Running()
}

// Close stops the loop without touching the persisted active flag so a
// restart can resume it.
func (s *Service) Close() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	s.loop.Stop()
}

// broadcast is one loop tick: regenerate, store and publish the composite
// snapshot.
func (s *Service) broadcast(now time.Time) {
	s.pub.Publish(model.EventNetworkUpdate, s.Snapshot(now))
}

// Snapshot generates the composite network:update payload and stores the
// generated topology.
func (s *Service) Snapshot(now time.Time) model.NetworkSnapshot {
	tt := s.state.TopologyType()
	topo := s.gen.Topology(tt)
	s.state.SetTopology(topo)
	metrics := s.gen.NetworkMetrics()
	analytics := s.gen.Analytics()
	return model.NetworkSnapshot{
		Timestamp:    now,
		Topology:     &topo,
		TopologyType: tt,
		Metrics:      &metrics,
		Agents:       s.state.AdvanceAgents(),
		Analytics:    &analytics,
	}
}

// ToggleResult is the outcome of ToggleAgent.
type ToggleResult struct {
	Agent        model.Agent        `json:"agent"`
	TopologyType model.TopologyType `json:"topologyType"`
}

// ToggleAgent flips agent id between training and inference. Entering
// training switches to a different topology type. The new agent list and a
// one-off network:update are published.
func (s *Service) ToggleAgent(ctx context.Context, id string) (ToggleResult, error) {
	ctx, span := observability.StartSpan(ctx, "dashboard.ToggleAgent", attribute.String("agent_id", id))
	agent, tt, err := s.state.ToggleAgent(id, s.gen.PickOtherTopology)
	observability.EndSpan(span, err)
	if err != nil {
		return ToggleResult{}, err
	}

	topo := s.gen.Topology(tt)
	s.state.SetTopology(topo)
	metrics := s.gen.NetworkMetrics()

	s.pub.Publish(model.EventAgentsUpdate, s.state.Agents())
	s.pub.Publish(model.EventNetworkUpdate, model.NetworkSnapshot{
		Timestamp:    s.now(),
		Topology:     &topo,
		TopologyType: tt,
		Metrics:      &metrics,
	})
	s.log.Info(ctx, "agent toggled",
		logging.String("agent_id", id),
		logging.String("state", string(agent.State)),
		logging.String("topology_type", string(tt)),
	)
	return ToggleResult{Agent: agent, TopologyType: tt}, nil
}

// NetworkStatus generates a fresh topology for the current type, stores it
// and pairs it with a metrics sample.
func (s *Service) NetworkStatus() model.NetworkStatus {
	topo := s.gen.Topology(s.state.TopologyType())
	s.state.SetTopology(topo)
	return model.NetworkStatus{Topology: topo, Metrics: s.gen.NetworkMetrics()}
}

// Topology returns the last generated topology, generating one if none
// exists yet.
func (s *Service) Topology() model.Topology {
	if topo := s.state.Topology(); len(topo.GNBs) > 0 {
		return topo
	}
	return s.NetworkStatus().Topology
}

// Metrics returns a fresh KPI sample.
func (s *Service) Metrics() model.NetworkMetrics { return s.gen.NetworkMetrics() }

// Agents returns the current agent list.
func (s *Service) Agents() []model.Agent { return s.state.Agents() }

// RewardCurves returns agent training curves.
func (s *Service) RewardCurves() model.RewardCurves { return s.gen.RewardCurves() }

// Predictions returns the digital twin latency forecast.
func (s *Service) Predictions() []model.Prediction { return s.gen.Predictions() }

// Analytics returns the comparative analytics payload.
func (s *Service) Analytics() model.Analytics { return s.gen.Analytics() }

// Status returns the simulation summary.
func (s *Service) Status() model.SimulationStatus { return s.state.Status() }

// SelectScenario records the chosen scenario.
func (s *Service) SelectScenario(ctx context.Context, id string) {
	s.state.SetScenario(id)
	s.log.Info(ctx, "scenario selected", logging.String("scenario", id))
	s.pub.Publish(model.EventSimulationState, s.state.Status())
}

// ExperimentRequest describes an experiment to start.
type ExperimentRequest struct {
	Scenario       string  `json:"scenario"`
	TrafficProfile string  `json:"trafficProfile"`
	Duration       float64 `json:"duration"`
}

// StartExperiment records a running experiment and announces it.
func (s *Service) StartExperiment(ctx context.Context, req ExperimentRequest) model.Experiment {
	now := s.now()
	exp := model.Experiment{
		ID:             fmt.Sprintf("exp-%d", now.UnixMilli()),
		Scenario:       req.Scenario,
		TrafficProfile: req.TrafficProfile,
		Duration:       req.Duration,
		StartTime:      now,
		Status:         model.ExperimentRunning,
	}
	s.state.StartExperiment(exp)
	s.pub.Publish(model.EventExperimentStatus, model.ExperimentStatus{
		Status:    model.ExperimentRunning,
		Scenario:  exp.Scenario,
		StartTime: now,
	})
	s.log.Info(ctx, "experiment started",
		logging.String("experiment_id", exp.ID),
		logging.String("scenario", exp.Scenario),
		logging.String("traffic_profile", exp.TrafficProfile),
	)
	return exp
}

// StopExperiment stops the running experiment, if any, and returns the stop
// time.
func (s *Service) StopExperiment(ctx context.Context) time.Time {
	now := s.now()
	exp, ok := s.state.StopExperiment(now)
	status := model.ExperimentStatus{Status: model.ExperimentStopped, StartTime: now}
	if ok {
		status.Scenario = exp.Scenario
		status.StartTime = exp.StartTime
		s.log.Info(ctx, "experiment stopped", logging.String("experiment_id", exp.ID))
	}
	s.pub.Publish(model.EventExperimentStatus, status)
	return now
}

// ControlExperiment dispatches an experiment action by name.
func (s *Service) ControlExperiment(ctx context.Context, action string, req ExperimentRequest) (string, error) {
	switch action {
	case "start":
		s.StartExperiment(ctx, req)
		return fmt.Sprintf("Experiment started for %s", req.Scenario), nil
	case "stop":
		s.StopExperiment(ctx)
		return "Experiment stopped", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidExperimentAction, action)
	}
}

func (s *Service) notify(active bool) {
	for _, fn := range s.observers {
		fn(active)
	}
}
