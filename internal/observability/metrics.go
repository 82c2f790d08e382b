package observability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DashboardCollector bundles the Prometheus metrics exported by the
// dashboard server: the HTTP surface, the real-time hub, the MCP endpoint,
// the broadcast loop and the rescue watchdog.
type DashboardCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	WSConnections   prometheus.Gauge
	EventsPublished *prometheus.CounterVec

	SimulationActive prometheus.Gauge
	MCPCalls         *prometheus.CounterVec

	RescueHeals    prometheus.Counter
	SnapshotWrites *prometheus.CounterVec
}

// NewDashboardCollector registers dashboard metrics against reg, defaulting
// to the global Prometheus registry when nil. Re-registering against the
// same registry reuses the existing collectors.
func NewDashboardCollector(reg prometheus.Registerer) (*DashboardCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &DashboardCollector{gatherer: gatherer}

	var err error
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}), "dashboard_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"}), "dashboard_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	if c.WSConnections, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_ws_connections",
		Help: "Current number of open real-time WebSocket connections.",
	}), "dashboard_ws_connections"); err != nil {
		return nil, err
	}
	if c.EventsPublished, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_published_total",
		Help: "Real-time events written to connections, labeled by event name.",
	}, []string{"event"}), "dashboard_events_published_total"); err != nil {
		return nil, err
	}
	if c.SimulationActive, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_simulation_active",
		Help: "1 while the broadcast loop is running, 0 otherwise.",
	}), "dashboard_simulation_active"); err != nil {
		return nil, err
	}
	if c.MCPCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_mcp_calls_total",
		Help: "MCP tool and resource invocations, labeled by kind, name, and outcome.",
	}, []string{"kind", "name", "outcome"}), "dashboard_mcp_calls_total"); err != nil {
		return nil, err
	}
	if c.RescueHeals, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_rescue_heals_total",
		Help: "Degraded gNBs restored to active by the rescue watchdog.",
	}), "dashboard_rescue_heals_total"); err != nil {
		return nil, err
	}
	if c.SnapshotWrites, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_snapshot_writes_total",
		Help: "State snapshot writes, labeled by result.",
	}, []string{"result"}), "dashboard_snapshot_writes_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DashboardCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *DashboardCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T, name string) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return collector, nil
}
