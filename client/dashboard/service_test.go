package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/api"
	backend "github.com/Chandru6607/6g-dashboard/internal/dashboard"
	"github.com/Chandru6607/6g-dashboard/internal/generator"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/rescue"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
	"github.com/Chandru6607/6g-dashboard/model"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

func newBackend(t *testing.T) (*httptest.Server, *state.SimulationState) {
	t.Helper()
	st := state.New(logging.Noop())
	gen := generator.New(42)
	svc := backend.New(st, gen, nil, logging.Noop(), backend.WithLoopPeriod(time.Hour))
	t.Cleanup(svc.Close)
	agent := rescue.New(st, nopPublisher{}, gen, nil, logging.Noop())
	srv := httptest.NewServer(api.NewServer(svc, agent, logging.Noop()).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

// fakeRPC answers from canned values keyed by tool name or resource URI.
type fakeRPC struct {
	mu      sync.Mutex
	replies map[string]any
	fail    error
	calls   []string
	args    []map[string]any
}

func (f *fakeRPC) reply(key string, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	v, ok := f.replies[key]
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return fail
	}
	if !ok {
		return errors.New("unexpected call " + key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeRPC) CallTool(_ context.Context, name string, args map[string]any, out any) error {
	f.mu.Lock()
	f.args = append(f.args, args)
	f.mu.Unlock()
	return f.reply(name, out)
}

func (f *fakeRPC) ReadResource(_ context.Context, uri string, out any) error {
	return f.reply(uri, out)
}

func (f *fakeRPC) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRESTAgainstBackend(t *testing.T) {
	srv, _ := newBackend(t)
	rest := NewREST(srv.URL+"/", nil)
	ctx := context.Background()

	health, err := rest.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v, %v", health, err)
	}

	agents, err := rest.Agents(ctx)
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}

	toggled, err := rest.ToggleAgent(ctx, "congestion-control")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Success || toggled.Agent.State != model.AgentInference {
		t.Fatalf("unexpected toggle response %+v", toggled)
	}

	status, err := rest.NetworkStatus(ctx)
	if err != nil {
		t.Fatalf("network status: %v", err)
	}
	if len(status.Topology.GNBs) == 0 {
		t.Fatalf("expected topology nodes, got %+v", status.Topology)
	}

	started, err := rest.StartExperiment(ctx, ExperimentRequest{Scenario: "urban", TrafficProfile: "burst", Duration: 60})
	if err != nil {
		t.Fatalf("start experiment: %v", err)
	}
	if !started.Success || started.ExperimentID == "" || started.StartTime == 0 {
		t.Fatalf("unexpected start response %+v", started)
	}
	stopped, err := rest.StopExperiment(ctx)
	if err != nil || stopped.StopTime == 0 {
		t.Fatalf("stop experiment: %+v, %v", stopped, err)
	}

	on, err := rest.AutoConfigure(ctx)
	if err != nil || !on.Active || on.Status != "OPERATIONAL" {
		t.Fatalf("autoconfig: %+v, %v", on, err)
	}
	sim, err := rest.Simulation(ctx)
	if err != nil || !sim.Active {
		t.Fatalf("simulation: %+v, %v", sim, err)
	}
	off, err := rest.Disconnect(ctx)
	if err != nil || off.Active || off.Status != "DISCONNECTED" {
		t.Fatalf("disconnect: %+v, %v", off, err)
	}

	rescued, err := rest.Rescue(ctx)
	if err != nil || !rescued.Success {
		t.Fatalf("rescue: %+v, %v", rescued, err)
	}
	sel, err := rest.SelectScenario(ctx, "rural")
	if err != nil || sel.ScenarioID != "rural" {
		t.Fatalf("select scenario: %+v, %v", sel, err)
	}
	export, err := rest.ExportAnalytics(ctx)
	if err != nil || !export.Success || export.ExportTime == "" {
		t.Fatalf("export: %+v, %v", export, err)
	}
}

func TestRESTErrorCarriesMessage(t *testing.T) {
	srv, _ := newBackend(t)
	rest := NewREST(srv.URL, nil)

	_, err := rest.ToggleAgent(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Agent not found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestRESTNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewREST(srv.URL, nil).Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "gateway down" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestServicePrefersRPC(t *testing.T) {
	rpc := &fakeRPC{replies: map[string]any{
		toolNetworkInfo: model.NetworkStatus{Metrics: model.NetworkMetrics{Latency: 1.5}},
		resourceAgentStates: []model.Agent{
			{ID: "only", State: model.AgentTraining},
		},
		toolAnalytics: map[string]any{
			"predictive": []model.Prediction{{Timestamp: 1, Predicted: 2, Confidence: 0.9}},
			"analytics":  model.Analytics{},
		},
	}}
	// A REST base that refuses connections proves the RPC path served.
	svc := NewService(rpc, NewREST("http://127.0.0.1:1", nil), logging.Noop())
	ctx := context.Background()

	status, err := svc.NetworkStatus(ctx)
	if err != nil || status.Metrics.Latency != 1.5 {
		t.Fatalf("network status: %+v, %v", status, err)
	}
	agents, err := svc.Agents(ctx)
	if err != nil || len(agents) != 1 || agents[0].ID != "only" {
		t.Fatalf("agents: %+v, %v", agents, err)
	}
	preds, err := svc.Predictions(ctx)
	if err != nil || len(preds) != 1 || preds[0].Predicted != 2 {
		t.Fatalf("predictions: %+v, %v", preds, err)
	}
	if got := rpc.callCount(); got != 3 {
		t.Fatalf("expected 3 rpc calls, got %d", got)
	}
}

func TestServiceFallsBackToREST(t *testing.T) {
	srv, _ := newBackend(t)
	rpc := &fakeRPC{fail: errors.New("mcp down")}
	svc := NewService(rpc, NewREST(srv.URL, nil), logging.Noop())
	ctx := context.Background()

	agents, err := svc.Agents(ctx)
	if err != nil || len(agents) != 3 {
		t.Fatalf("agents fallback: %d, %v", len(agents), err)
	}
	curves, err := svc.RewardCurves(ctx)
	if err != nil || len(curves.Datasets) == 0 {
		t.Fatalf("reward curves fallback: %+v, %v", curves, err)
	}
	started, err := svc.StartExperiment(ctx, ExperimentRequest{Scenario: "urban"})
	if err != nil || started.ExperimentID == "" {
		t.Fatalf("start fallback: %+v, %v", started, err)
	}
	if rpc.callCount() != 3 {
		t.Fatalf("expected every read to try rpc first, got %d calls", rpc.callCount())
	}
}

func TestServiceJoinsErrorsWhenBothFail(t *testing.T) {
	rpcErr := errors.New("mcp down")
	svc := NewService(&fakeRPC{fail: rpcErr}, NewREST("http://127.0.0.1:1", nil), logging.Noop())

	_, err := svc.NetworkStatus(context.Background())
	if err == nil {
		t.Fatal("expected error when both transports fail")
	}
	if !errors.Is(err, rpcErr) {
		t.Fatalf("expected rpc error in chain, got %v", err)
	}
}

func TestServiceExperimentArgs(t *testing.T) {
	rpc := &fakeRPC{replies: map[string]any{
		toolControlExperiment: map[string]any{"success": true, "message": "Experiment started: urban"},
	}}
	svc := NewService(rpc, NewREST("http://127.0.0.1:1", nil), logging.Noop())

	res, err := svc.StartExperiment(context.Background(), ExperimentRequest{Scenario: "urban", Duration: 30})
	if err != nil || !res.Success || res.Message == "" {
		t.Fatalf("start: %+v, %v", res, err)
	}
	args := rpc.args[0]
	if args["action"] != "start" || args["scenario"] != "urban" || args["duration"] != 30.0 {
		t.Fatalf("unexpected args %v", args)
	}
	if _, ok := args["trafficProfile"]; ok {
		t.Fatalf("empty traffic profile should be omitted: %v", args)
	}
}

func TestServiceWithoutRPCUsesREST(t *testing.T) {
	srv, st := newBackend(t)
	svc := NewService(nil, NewREST(srv.URL, nil), logging.Noop())

	if _, err := svc.ToggleAgent(context.Background(), "resource-allocation"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	for _, a := range st.Agents() {
		if a.ID == "resource-allocation" && a.State != model.AgentTraining {
			t.Fatalf("expected toggled agent in state, got %+v", a)
		}
	}
	if _, err := svc.NetworkStatus(context.Background()); err != nil {
		t.Fatalf("network status: %v", err)
	}
}
