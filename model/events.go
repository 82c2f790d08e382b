package model

// Real-time event names carried in the WebSocket envelope.
const (
	EventNetworkMetrics      = "network:metrics"
	EventNetworkUpdate       = "network:update"
	EventAgentsUpdate        = "agents:update"
	EventTelemetryEvent      = "telemetry:event"
	EventTelemetryThroughput = "telemetry:throughput"
	EventSystemAlert         = "system:alert"
	EventAlertNew            = "alert:new"
	EventSyncProgress        = "sync:progress"
	EventExperimentStatus    = "experiment:status"
	EventSimulationState     = "simulation:state"

	EventExperimentStart = "experiment:start"
	EventExperimentStop  = "experiment:stop"
)
