package model

// AgentMode is the operating mode of a simulated RL agent.
type AgentMode string

const (
	AgentTraining  AgentMode = "training"
	AgentInference AgentMode = "inference"
)

// Valid reports whether m is one of the known modes.
func (m AgentMode) Valid() bool {
	return m == AgentTraining || m == AgentInference
}

// Toggle returns the opposite mode.
func (m AgentMode) Toggle() AgentMode {
	if m == AgentTraining {
		return AgentInference
	}
	return AgentTraining
}

// Agent is the per-agent training state shown on the dashboard.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       AgentMode `json:"state"`
	Episodes    int       `json:"episodes"`
	AvgReward   float64   `json:"avgReward"`
	Convergence float64   `json:"convergence"`
}

// Reward and convergence bounds applied while an agent trains.
const (
	MaxAvgReward   = 0.99
	MaxConvergence = 100.0
)

// DefaultAgents returns the demo agent set a fresh process starts with.
func DefaultAgents() []Agent {
	return []Agent{
		{ID: "resource-allocation", Name: "Resource Allocation", State: AgentInference, Episodes: 15420, AvgReward: 0.88, Convergence: 94},
		{ID: "congestion-control", Name: "Congestion Control", State: AgentTraining, Episodes: 8750, AvgReward: 0.72, Convergence: 82},
		{ID: "mobility-management", Name: "Mobility Management", State: AgentInference, Episodes: 12100, AvgReward: 0.91, Convergence: 96},
	}
}

// CloneAgents returns a copy of agents that shares no backing array.
func CloneAgents(agents []Agent) []Agent {
	if agents == nil {
		return nil
	}
	out := make([]Agent, len(agents))
	copy(out, agents)
	return out
}
