// Package api serves the dashboard REST surface and hosts the real-time and
// MCP handlers on the same listener.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/Chandru6607/6g-dashboard/internal/dashboard"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/observability"
	"github.com/Chandru6607/6g-dashboard/internal/rescue"
	"github.com/Chandru6607/6g-dashboard/model"
)

// Simulation is the subset of the dashboard service the REST handlers use.
type Simulation interface {
	StartSimulation(ctx context.Context) model.SimulationStatus
	StopSimulation(ctx context.Context) bool
	ToggleAgent(ctx context.Context, id string) (dashboard.ToggleResult, error)
	NetworkStatus() model.NetworkStatus
	Agents() []model.Agent
	RewardCurves() model.RewardCurves
	Predictions() []model.Prediction
	Analytics() model.Analytics
	Status() model.SimulationStatus
	SelectScenario(ctx context.Context, id string)
	StartExperiment(ctx context.Context, req dashboard.ExperimentRequest) model.Experiment
	StopExperiment(ctx context.Context) time.Time
}

// Troubleshooter forces the network back to a healthy state.
type Troubleshooter interface {
	TroubleshootAll(ctx context.Context) rescue.Result
}

// Server is the REST front end.
type Server struct {
	mux     *http.ServeMux
	sim     Simulation
	rescue  Troubleshooter
	log     logging.Logger
	metrics *observability.DashboardCollector
	tracing bool
	allowed func(origin string) bool
	now     func() time.Time
	started time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithMetrics records request metrics on c.
func WithMetrics(c *observability.DashboardCollector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithTracing starts a server span per request.
func WithTracing() Option {
	return func(s *Server) { s.tracing = true }
}

// WithAllowedOrigins restricts CORS to origins accepted by fn. Without it
// every origin is accepted.
func WithAllowedOrigins(fn func(origin string) bool) Option {
	return func(s *Server) { s.allowed = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer registers the REST routes.
func NewServer(sim Simulation, rescuer Troubleshooter, log logging.Logger, opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		sim:    sim,
		rescue: rescuer,
		log:    logging.Component(log, "api"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/network/status", s.handleNetworkStatus)
	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("POST /api/agents/{id}/toggle", s.handleToggleAgent)
	s.mux.HandleFunc("GET /api/agents/rewards", s.handleRewards)
	s.mux.HandleFunc("GET /api/twin/predictive", s.handlePredictive)
	s.mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	s.mux.HandleFunc("GET /api/analytics/export", s.handleAnalyticsExport)
	s.mux.HandleFunc("POST /api/experiments/start", s.handleExperimentStart)
	s.mux.HandleFunc("POST /api/experiments/stop", s.handleExperimentStop)
	s.mux.HandleFunc("POST /api/scenarios/{id}/select", s.handleSelectScenario)
	s.mux.HandleFunc("POST /api/system/autoconfig", s.handleAutoconfig)
	s.mux.HandleFunc("POST /api/system/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /api/system/rescue", s.handleRescue)
	s.mux.HandleFunc("GET /api/simulation", s.handleSimulation)
	return s
}

// Mount registers an extra handler, such as the WebSocket hub or the MCP
// transport, under pattern.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the routed handler wrapped in the middleware chain:
// CORS, request logging, tracing, then metrics next to the mux.
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.serveMux)
	if s.metrics != nil {
		h = s.metrics.HTTPMiddleware(h)
	}
	if s.tracing {
		h = observability.TracingMiddleware(h)
	}
	h = logging.Middleware(s.log)(h)

	allowed := s.allowed
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return cors.New(cors.Options{
		AllowOriginFunc:  allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", logging.RequestIDHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(h)
}

// serveMux dispatches to the mux and rewrites its own 404 and 405 replies
// into the JSON error envelope. The Allow header set by the mux survives.
func (s *Server) serveMux(w http.ResponseWriter, r *http.Request) {
	if _, pattern := s.mux.Handler(r); pattern != "" {
		s.mux.ServeHTTP(w, r)
		return
	}
	rec := &statusCapture{header: w.Header()}
	s.mux.ServeHTTP(rec, r)
	switch rec.status {
	case http.StatusMethodNotAllowed:
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	case http.StatusNotFound, 0:
		s.writeError(w, r, http.StatusNotFound, "Not found")
	default:
		s.writeError(w, r, rec.status, http.StatusText(rec.status))
	}
}

// statusCapture records the status of an unmatched mux reply and drops its
// plain-text body.
type statusCapture struct {
	header http.Header
	status int
}

func (c *statusCapture) Header() http.Header { return c.header }

func (c *statusCapture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *statusCapture) Write(p []byte) (int, error) {
	c.WriteHeader(http.StatusOK)
	return len(p), nil
}
