package generator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Chandru6607/6g-dashboard/model"
)

var (
	eventSeverities = []string{
		string(model.SeverityInfo),
		string(model.SeverityWarning),
		string(model.SeverityError),
		string(model.SeverityCritical),
	}
	eventSources = []string{
		"kafka.network.metrics",
		"mqtt.telemetry",
		"kafka.events",
		"mqtt.alerts",
		"kafka.analytics",
	}
	eventTypes = []string{
		"NETWORK_METRIC_UPDATE",
		"HANDOVER_COMPLETED",
		"RESOURCE_ALLOCATED",
		"CONGESTION_DETECTED",
		"ANOMALY_DETECTED",
		"POLICY_UPDATED",
		"TRAINING_COMPLETED",
		"SYNC_STATUS_CHANGED",
	}
	eventOutcomes = map[model.Severity]string{
		model.SeverityInfo:     "Operation completed successfully",
		model.SeverityWarning:  "Performance degradation detected",
		model.SeverityError:    "Retry attempt in progress",
		model.SeverityCritical: "Immediate attention required",
	}

	alertSeverities = []string{
		string(model.SeverityInfo),
		string(model.SeverityWarning),
		string(model.SeverityCritical),
	}
	alertMessages = map[model.Severity][]string{
		model.SeverityInfo: {
			"Agent training epoch completed",
			"Network topology updated",
			"Scheduled maintenance completed",
		},
		model.SeverityWarning: {
			"High latency detected in sector 3",
			"Resource utilization above 85%",
			"Packet loss increasing",
		},
		model.SeverityCritical: {
			"Base station gNB-4 connection lost",
			"Agent convergence failure",
			"Security breach attempt detected",
		},
	}
)

// AlertSource is the source label carried by generated alerts.
const AlertSource = "System Monitor"

// TelemetryEvent returns a random event for the telemetry stream.
func (g *Generator) TelemetryEvent() model.TelemetryEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	severity := model.Severity(g.pick(eventSeverities))
	eventType := g.pick(eventTypes)
	now := g.now()
	return model.TelemetryEvent{
		ID:        fmt.Sprintf("evt-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Timestamp: now,
		Severity:  severity,
		Source:    g.pick(eventSources),
		Type:      eventType,
		Message:   fmt.Sprintf("%s: %s", eventType, eventOutcomes[severity]),
	}
}

// Alert returns a random system alert.
func (g *Generator) Alert() model.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	severity := model.Severity(g.pick(alertSeverities))
	return model.Alert{
		ID:        "alert-" + uuid.NewString(),
		Timestamp: g.now(),
		Severity:  severity,
		Source:    AlertSource,
		Message:   g.pick(alertMessages[severity]),
	}
}
