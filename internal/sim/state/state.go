// Package state holds the process-wide simulation state shared by the
// broadcast loop, the REST and MCP surfaces and the rescue watchdog.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/generator"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/model"
)

var (
	// ErrAgentNotFound indicates a referenced agent id is unknown.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidTopologyType indicates a topology type outside the known set.
	ErrInvalidTopologyType = errors.New("invalid topology type")
	// ErrInvalidSnapshot indicates a snapshot failed validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// DefaultScenario is the scenario name a fresh process starts with.
const DefaultScenario = "default"

// MetricsRecorder receives simulation activity updates.
type MetricsRecorder interface {
	SetSimulationActive(active bool)
}

// SimulationState is the mutable simulation record. Mutators take the write
// lock; readers receive copies so broadcast payloads are never aliased.
type SimulationState struct {
	mu sync.RWMutex

	active       bool
	startTime    time.Time
	scenario     string
	topologyType model.TopologyType
	agents       []model.Agent
	topology     model.Topology
	experiment   *model.Experiment

	log     logging.Logger
	metrics MetricsRecorder
}

// Snapshot is a consistent copy of SimulationState. It is also the on-disk
// cache format.
type Snapshot struct {
	Active       bool               `json:"active"`
	StartTime    *time.Time         `json:"startTime"`
	Scenario     string             `json:"scenario"`
	TopologyType model.TopologyType `json:"currentTopologyType"`
	Agents       []model.Agent      `json:"agents"`
	Topology     model.Topology     `json:"topology"`
	Experiment   *model.Experiment  `json:"experiment,omitempty"`
}

// Option customises SimulationState construction.
type Option func(*SimulationState)

// WithMetricsRecorder attaches a recorder for the simulation-active gauge.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *SimulationState) {
		s.metrics = m
	}
}

// New builds state seeded with the demo defaults.
func New(log logging.Logger, opts ...Option) *SimulationState {
	s := &SimulationState{
		scenario:     DefaultScenario,
		topologyType: model.TopologyMesh,
		agents:       model.DefaultAgents(),
		log:          logging.Component(log, "state"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *SimulationState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Active:       s.active,
		Scenario:     s.scenario,
		TopologyType: s.topologyType,
		Agents:       model.CloneAgents(s.agents),
		Topology:     s.topology.Clone(),
	}
	if !s.startTime.IsZero() {
		t := s.startTime
		snap.StartTime = &t
	}
	if s.experiment != nil {
		exp := *s.experiment
		snap.Experiment = &exp
	}
	return snap
}

// Restore replaces the state with snap after validating it. Restored values
// win over whatever the process held before.
func (s *SimulationState) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = snap.Active
	s.startTime = time.Time{}
	if snap.StartTime != nil {
		s.startTime = *snap.StartTime
	}
	s.scenario = snap.Scenario
	if s.scenario == "" {
		s.scenario = DefaultScenario
	}
	s.topologyType = snap.TopologyType
	s.agents = model.CloneAgents(snap.Agents)
	s.topology = snap.Topology.Clone()
	s.experiment = nil
	if snap.Experiment != nil {
		exp := *snap.Experiment
		s.experiment = &exp
	}
	active := s.active
	s.mu.Unlock()

	s.recordActive(active)
	s.log.Info(context.Background(), "simulation state restored",
		logging.Bool("active", active),
		logging.String("topology_type", string(snap.TopologyType)),
		logging.Int("agents", len(snap.Agents)),
	)
	return nil
}

// Validate checks that snap is well-formed enough to restore.
func (snap Snapshot) Validate() error {
	if !snap.TopologyType.Valid() {
		return fmt.Errorf("%w: topology type %q", ErrInvalidSnapshot, snap.TopologyType)
	}
	if len(snap.Agents) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalidSnapshot)
	}
	seen := make(map[string]struct{}, len(snap.Agents))
	for _, a := range snap.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: agent with empty id", ErrInvalidSnapshot)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate agent %q", ErrInvalidSnapshot, a.ID)
		}
		seen[a.ID] = struct{}{}
		if !a.State.Valid() {
			return fmt.Errorf("%w: agent %q has state %q", ErrInvalidSnapshot, a.ID, a.State)
		}
		if a.AvgReward < 0 || a.AvgReward > 1 {
			return fmt.Errorf("%w: agent %q avgReward %v out of [0,1]", ErrInvalidSnapshot, a.ID, a.AvgReward)
		}
		if a.Convergence < 0 || a.Convergence > model.MaxConvergence {
			return fmt.Errorf("%w: agent %q convergence %v out of [0,100]", ErrInvalidSnapshot, a.ID, a.Convergence)
		}
		if a.Episodes < 0 {
			return fmt.Errorf("%w: agent %q has negative episodes", ErrInvalidSnapshot, a.ID)
		}
	}
	if err := snap.Topology.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// Active reports whether the broadcast loop should be running.
func (s *SimulationState) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Activate marks the simulation active from now.
func (s *SimulationState) Activate(now time.Time) {
	s.mu.Lock()
	s.active = true
	s.startTime = now
	s.mu.Unlock()
	s.recordActive(true)
}

// Deactivate clears the active flag and start time. It reports whether the
// simulation was active.
func (s *SimulationState) Deactivate() bool {
	s.mu.Lock()
	was := s.active
	s.active = false
	s.startTime = time.Time{}
	s.mu.Unlock()
	s.recordActive(false)
	return was
}

// Status returns the summary published as simulation:state.
func (s *SimulationState) Status() model.SimulationStatus {
	snap := s.Snapshot()
	return model.SimulationStatus{
		Active:       snap.Active,
		StartTime:    snap.StartTime,
		Scenario:     snap.Scenario,
		TopologyType: snap.TopologyType,
		Experiment:   snap.Experiment,
	}
}

// TopologyType returns the layout used on the next generation cycle.
func (s *SimulationState) TopologyType() model.TopologyType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topologyType
}

// SetTopologyType changes the layout used on the next generation cycle.
func (s *SimulationState) SetTopologyType(t model.TopologyType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopologyType, t)
	}
	s.mu.Lock()
	s.topologyType = t
	s.mu.Unlock()
	return nil
}

// Scenario returns the selected scenario name.
func (s *SimulationState) Scenario() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenario
}

// SetScenario records the selected scenario.
func (s *SimulationState) SetScenario(name string) {
	s.mu.Lock()
	s.scenario = name
	s.mu.Unlock()
}

// Agents returns a copy of the agent list.
func (s *SimulationState) Agents() []model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneAgents(s.agents)
}

// AdvanceAgents applies one training step to every training agent while the
// simulation is active, and returns the resulting list.
func (s *SimulationState) AdvanceAgents() []model.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		for i := range s.agents {
			s.agents[i] = generator.AdvanceAgent(s.agents[i])
		}
	}
	return model.CloneAgents(s.agents)
}

// ToggleAgent flips the mode of agent id. When the agent enters training,
// pick chooses the next topology type from the current one. It returns the
// updated agent and the topology type in effect afterwards.
func (s *SimulationState) ToggleAgent(id string, pick func(current model.TopologyType) model.TopologyType) (model.Agent, model.TopologyType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.agents {
		if s.agents[i].ID != id {
			continue
		}
		s.agents[i].State = s.agents[i].State.Toggle()
		if s.agents[i].State == model.AgentTraining && pick != nil {
			s.topologyType = pick(s.topologyType)
		}
		return s.agents[i], s.topologyType, nil
	}
	return model.Agent{}, s.topologyType, fmt.Errorf("%w: %q", ErrAgentNotFound, id)
}

// Topology returns a copy of the last generated topology.
func (s *SimulationState) Topology() model.Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topology.Clone()
}

// SetTopology stores the most recently generated topology.
func (s *SimulationState) SetTopology(t model.Topology) {
	s.mu.Lock()
	s.topology = t.Clone()
	s.mu.Unlock()
}

// HealDegraded visits every degraded gNB and marks it active when heal
// returns true. It returns the healed ids, whether any gNB was degraded and
// the resulting topology.
func (s *SimulationState) HealDegraded(heal func(id string) bool) ([]string, bool, model.Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var healed []string
	degraded := false
	for i := range s.topology.GNBs {
		g := &s.topology.GNBs[i]
		if g.Status != model.NodeDegraded {
			continue
		}
		degraded = true
		if heal(g.ID) {
			g.Status = model.NodeActive
			healed = append(healed, g.ID)
		}
	}
	return healed, degraded, s.topology.Clone()
}

// ResetHealth marks every node active and lifts agents whose average reward
// is below floor to resetTo. It returns the number of agents reset.
func (s *SimulationState) ResetHealth(floor, resetTo float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.topology.GNBs {
		s.topology.GNBs[i].Status = model.NodeActive
	}
	for i := range s.topology.UEs {
		s.topology.UEs[i].Status = model.NodeActive
	}
	reset := 0
	for i := range s.agents {
		if s.agents[i].AvgReward < floor {
			s.agents[i].AvgReward = resetTo
			reset++
		}
	}
	return reset
}

// StartExperiment records exp as the running experiment.
func (s *SimulationState) StartExperiment(exp model.Experiment) {
	exp.Status = model.ExperimentRunning
	s.mu.Lock()
	s.experiment = &exp
	s.mu.Unlock()
}

// StopExperiment marks the running experiment stopped. It returns the
// stopped experiment and whether one was running.
func (s *SimulationState) StopExperiment(now time.Time) (model.Experiment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.experiment == nil || s.experiment.Status != model.ExperimentRunning {
		return model.Experiment{}, false
	}
	s.experiment.Status = model.ExperimentStopped
	stop := now
	s.experiment.StopTime = &stop
	return *s.experiment, true
}

// Experiment returns the most recent experiment, if any.
func (s *SimulationState) Experiment() (model.Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.experiment == nil {
		return model.Experiment{}, false
	}
	return *s.experiment, true
}

func (s *SimulationState) recordActive(active bool) {
	if s.metrics != nil {
		s.metrics.SetSimulationActive(active)
	}
}
