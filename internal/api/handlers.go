package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/dashboard"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
)

const serviceVersion = "1.0.0"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "6G Digital Twin Dashboard API",
		"version": serviceVersion,
		"endpoints": map[string]string{
			"api":       "/api",
			"health":    "/api/health",
			"websocket": scheme + "://" + r.Host + "/ws",
			"mcp":       "/mcp",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"uptime":    now.Sub(s.started).Seconds(),
	})
}

func (s *Server) handleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.NetworkStatus())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{"agents": s.sim.Agents()})
}

func (s *Server) handleToggleAgent(w http.ResponseWriter, r *http.Request) {
	res, err := s.sim.ToggleAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":      true,
		"agent":        res.Agent,
		"topologyType": res.TopologyType,
	})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.RewardCurves())
}

func (s *Server) handlePredictive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{"predictions": s.sim.Predictions()})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.Analytics())
}

func (s *Server) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"data":       s.sim.Analytics(),
		"exportTime": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleExperimentStart(w http.ResponseWriter, r *http.Request) {
	var req dashboard.ExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	exp := s.sim.StartExperiment(r.Context(), req)
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":        true,
		"experimentId":   exp.ID,
		"scenario":       exp.Scenario,
		"trafficProfile": exp.TrafficProfile,
		"duration":       exp.Duration,
		"startTime":      exp.StartTime.UnixMilli(),
	})
}

func (s *Server) handleExperimentStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.sim.StopExperiment(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":  true,
		"stopTime": stopped.UnixMilli(),
	})
}

func (s *Server) handleSelectScenario(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.sim.SelectScenario(r.Context(), id)
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"scenarioId": id,
	})
}

func (s *Server) handleAutoconfig(w http.ResponseWriter, r *http.Request) {
	s.sim.StartSimulation(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"active":    true,
		"message":   "System auto-configuration complete & Simulation Started",
		"status":    "OPERATIONAL",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.sim.StopSimulation(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"active":    false,
		"message":   "System disconnected & Simulation Stopped",
		"status":    "DISCONNECTED",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleRescue(w http.ResponseWriter, r *http.Request) {
	if s.rescue == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "rescue agent not configured")
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.rescue.TroubleshootAll(r.Context()))
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "failed to encode JSON response", logging.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, state.ErrAgentNotFound):
		s.writeError(w, r, http.StatusNotFound, "Agent not found")
	case errors.Is(err, state.ErrInvalidTopologyType),
		errors.Is(err, dashboard.ErrInvalidExperimentAction):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "request failed", logging.Err(err))
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
