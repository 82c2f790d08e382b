package model

import "time"

// NetworkSnapshot is the payload of network:update. The broadcast loop fills
// every field; one-off updates (agent toggle, rescue heal) carry a subset.
type NetworkSnapshot struct {
	Timestamp    time.Time       `json:"timestamp"`
	Topology     *Topology       `json:"topology,omitempty"`
	TopologyType TopologyType    `json:"topologyType,omitempty"`
	Metrics      *NetworkMetrics `json:"metrics,omitempty"`
	Agents       []Agent         `json:"agents,omitempty"`
	Analytics    *Analytics      `json:"analytics,omitempty"`
}

// NetworkStatus is returned by the status endpoint and the MCP network tool.
type NetworkStatus struct {
	Topology Topology       `json:"topology"`
	Metrics  NetworkMetrics `json:"metrics"`
}

// Experiment status values.
const (
	ExperimentRunning = "running"
	ExperimentStopped = "stopped"
)

// Experiment records the most recent experiment run.
type Experiment struct {
	ID             string     `json:"id"`
	Scenario       string     `json:"scenario"`
	TrafficProfile string     `json:"trafficProfile,omitempty"`
	Duration       float64    `json:"duration,omitempty"`
	StartTime      time.Time  `json:"startTime"`
	StopTime       *time.Time `json:"stopTime,omitempty"`
	Status         string     `json:"status"`
}

// ExperimentStatus is the payload of experiment:status.
type ExperimentStatus struct {
	Status    string    `json:"status"`
	Scenario  string    `json:"scenario"`
	StartTime time.Time `json:"startTime"`
}

// SimulationStatus summarises the broadcast loop state. It is the payload of
// simulation:state and GET /api/simulation.
type SimulationStatus struct {
	Active       bool         `json:"active"`
	StartTime    *time.Time   `json:"startTime"`
	Scenario     string       `json:"scenario"`
	TopologyType TopologyType `json:"topologyType"`
	Experiment   *Experiment  `json:"experiment,omitempty"`
}
