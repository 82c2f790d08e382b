package model

import "time"

// Severity levels used by telemetry events and alerts. SeverityLow is only
// used by recovery notifications.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// TelemetryEvent is an ephemeral entry in the dashboard event stream.
type TelemetryEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Type      string    `json:"type,omitempty"`
	Message   string    `json:"message"`
}

// Alert is an ephemeral system alert.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// NetworkMetrics is the headline KPI set. Timestamp is Unix milliseconds.
type NetworkMetrics struct {
	Latency     float64 `json:"latency"`
	Throughput  float64 `json:"throughput"`
	PacketLoss  float64 `json:"packetLoss"`
	ActiveNodes int     `json:"activeNodes"`
	Timestamp   int64   `json:"timestamp"`
}

// SyncProgress reports digital twin synchronisation and AI confidence.
type SyncProgress struct {
	Progress   float64 `json:"progress"`
	Confidence float64 `json:"confidence"`
}

// ThroughputSample is the per-connection event rate over the last second.
type ThroughputSample struct {
	Throughput int `json:"throughput"`
}
