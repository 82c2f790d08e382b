// Package dashboard is the Go API client for the dashboard backend: a REST
// client and a Service facade that prefers the MCP channel and falls back
// to REST.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Chandru6607/6g-dashboard/model"
)

// APIError is a non-2xx REST response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dashboard api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("dashboard api: HTTP %d: %s", e.StatusCode, e.Message)
}

// Health is the GET /api/health payload.
type Health struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// ToggleResponse is returned by ToggleAgent.
type ToggleResponse struct {
	Success      bool               `json:"success"`
	Agent        model.Agent        `json:"agent"`
	TopologyType model.TopologyType `json:"topologyType"`
}

// ExperimentRequest starts an experiment.
type ExperimentRequest struct {
	Scenario       string  `json:"scenario"`
	TrafficProfile string  `json:"trafficProfile,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
}

// ExperimentResponse is returned by the experiment endpoints. Message is
// set by the MCP path, the remaining fields by REST.
type ExperimentResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message,omitempty"`
	ExperimentID   string  `json:"experimentId,omitempty"`
	Scenario       string  `json:"scenario,omitempty"`
	TrafficProfile string  `json:"trafficProfile,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	StartTime      int64   `json:"startTime,omitempty"`
	StopTime       int64   `json:"stopTime,omitempty"`
}

// AnalyticsExport is returned by ExportAnalytics.
type AnalyticsExport struct {
	Success    bool            `json:"success"`
	Data       model.Analytics `json:"data"`
	ExportTime string          `json:"exportTime"`
}

// SystemResponse is returned by the autoconfig and disconnect endpoints.
type SystemResponse struct {
	Success   bool   `json:"success"`
	Active    bool   `json:"active"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ScenarioResponse is returned by SelectScenario.
type ScenarioResponse struct {
	Success    bool   `json:"success"`
	ScenarioID string `json:"scenarioId"`
}

// RescueResponse is returned by Rescue.
type RescueResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// REST calls the backend's JSON endpoints.
type REST struct {
	base string
	http *http.Client
}

// NewREST returns a client for baseURL (e.g. http://localhost:3001). A nil
// hc uses a client with a 10s timeout.
func NewREST(baseURL string, hc *http.Client) *REST {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &REST{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (r *REST) Health(ctx context.Context) (Health, error) {
	var out Health
	err := r.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (r *REST) NetworkStatus(ctx context.Context) (model.NetworkStatus, error) {
	var out model.NetworkStatus
	err := r.do(ctx, http.MethodGet, "/api/network/status", nil, &out)
	return out, err
}

func (r *REST) Agents(ctx context.Context) ([]model.Agent, error) {
	var out struct {
		Agents []model.Agent `json:"agents"`
	}
	err := r.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out.Agents, err
}

func (r *REST) ToggleAgent(ctx context.Context, id string) (ToggleResponse, error) {
	var out ToggleResponse
	err := r.do(ctx, http.MethodPost, "/api/agents/"+url.PathEscape(id)+"/toggle", nil, &out)
	return out, err
}

func (r *REST) RewardCurves(ctx context.Context) (model.RewardCurves, error) {
	var out model.RewardCurves
	err := r.do(ctx, http.MethodGet, "/api/agents/rewards", nil, &out)
	return out, err
}

func (r *REST) Predictions(ctx context.Context) ([]model.Prediction, error) {
	var out struct {
		Predictions []model.Prediction `json:"predictions"`
	}
	err := r.do(ctx, http.MethodGet, "/api/twin/predictive", nil, &out)
	return out.Predictions, err
}

func (r *REST) Analytics(ctx context.Context) (model.Analytics, error) {
	var out model.Analytics
	err := r.do(ctx, http.MethodGet, "/api/analytics", nil, &out)
	return out, err
}

func (r *REST) ExportAnalytics(ctx context.Context) (AnalyticsExport, error) {
	var out AnalyticsExport
	err := r.do(ctx, http.MethodGet, "/api/analytics/export", nil, &out)
	return out, err
}

func (r *REST) StartExperiment(ctx context.Context, req ExperimentRequest) (ExperimentResponse, error) {
	var out ExperimentResponse
	err := r.do(ctx, http.MethodPost, "/api/experiments/start", req, &out)
	return out, err
}

func (r *REST) StopExperiment(ctx context.Context) (ExperimentResponse, error) {
	var out ExperimentResponse
	err := r.do(ctx, http.MethodPost, "/api/experiments/stop", nil, &out)
	return out, err
}

func (r *REST) SelectScenario(ctx context.Context, id string) (ScenarioResponse, error) {
	var out ScenarioResponse
	err := r.do(ctx, http.MethodPost, "/api/scenarios/"+url.PathEscape(id)+"/select", nil, &out)
	return out, err
}

func (r *REST) AutoConfigure(ctx context.Context) (SystemResponse, error) {
	var out SystemResponse
	err := r.do(ctx, http.MethodPost, "/api/system/autoconfig", nil, &out)
	return out, err
}

func (r *REST) Disconnect(ctx context.Context) (SystemResponse, error) {
	var out SystemResponse
	err := r.do(ctx, http.MethodPost, "/api/system/disconnect", nil, &out)
	return out, err
}

func (r *REST) Rescue(ctx context.Context) (RescueResponse, error) {
	var out RescueResponse
	err := r.do(ctx, http.MethodPost, "/api/system/rescue", nil, &out)
	return out, err
}

func (r *REST) Simulation(ctx context.Context) (model.SimulationStatus, error) {
	var out model.SimulationStatus
	err := r.do(ctx, http.MethodGet, "/api/simulation", nil, &out)
	return out, err
}

func (r *REST) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
