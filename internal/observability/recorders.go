package observability

import (
	"time"
)

// ObserveHTTP records one handled HTTP request.
func (c *DashboardCollector) ObserveHTTP(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	if c.HTTPRequests != nil {
		c.HTTPRequests.WithLabelValues(method, route, statusLabel(code)).Inc()
	}
	if c.HTTPDurations != nil {
		c.HTTPDurations.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

// ConnectionOpened increments the WebSocket connection gauge.
func (c *DashboardCollector) ConnectionOpened() {
	if c == nil || c.WSConnections == nil {
		return
	}
	c.WSConnections.Inc()
}

// ConnectionClosed decrements the WebSocket connection gauge.
func (c *DashboardCollector) ConnectionClosed() {
	if c == nil || c.WSConnections == nil {
		return
	}
	c.WSConnections.Dec()
}

// EventPublished counts one event written to one connection.
func (c *DashboardCollector) EventPublished(event string) {
	if c == nil || c.EventsPublished == nil {
		return
	}
	c.EventsPublished.WithLabelValues(event).Inc()
}

// SetSimulationActive satisfies the state metrics recorder so the gauge
// follows activation and deactivation.
func (c *DashboardCollector) SetSimulationActive(active bool) {
	if c == nil || c.SimulationActive == nil {
		return
	}
	if active {
		c.SimulationActive.Set(1)
		return
	}
	c.SimulationActive.Set(0)
}

// MCPCall records one tool or resource invocation.
func (c *DashboardCollector) MCPCall(kind, name string, err error) {
	if c == nil || c.MCPCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.MCPCalls.WithLabelValues(kind, name, outcome).Inc()
}

// NodesHealed adds n to the rescue heal counter.
func (c *DashboardCollector) NodesHealed(n int) {
	if c == nil || c.RescueHeals == nil || n <= 0 {
		return
	}
	c.RescueHeals.Add(float64(n))
}

// SnapshotWritten records the outcome of a snapshot write.
func (c *DashboardCollector) SnapshotWritten(err error) {
	if c == nil || c.SnapshotWrites == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.SnapshotWrites.WithLabelValues(result).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	case code >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}
