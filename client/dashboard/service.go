package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/model"
)

// Tool and resource names served by the backend MCP endpoint.
const (
	toolNetworkInfo       = "get_network_info"
	toolAnalytics         = "get_analytics"
	toolControlExperiment = "control_experiment"
	resourceAgentStates   = "agents://states"
	resourceAgentRewards  = "agents://rewards"
)

// RPC is the MCP call surface, satisfied by *rpc.Client.
type RPC interface {
	CallTool(ctx context.Context, name string, args map[string]any, out any) error
	ReadResource(ctx context.Context, uri string, out any) error
}

// Service reads through the RPC channel first and falls back to REST. When
// both paths fail the joined error is returned; no placeholder data is
// substituted.
type Service struct {
	rpc  RPC
	rest *REST
	log  logging.Logger
	now  func() time.Time
}

// NewService combines both transports. A nil rpc makes every call use REST.
func NewService(rpc RPC, rest *REST, log logging.Logger) *Service {
	return &Service{rpc: rpc, rest: rest, log: logging.Component(log, "api-service"), now: time.Now}
}

type analyticsResult struct {
	Predictive []model.Prediction `json:"predictive"`
	Analytics  model.Analytics    `json:"analytics"`
}

// NetworkStatus returns topology and metrics.
func (s *Service) NetworkStatus(ctx context.Context) (model.NetworkStatus, error) {
	return withFallback(ctx, s, toolNetworkInfo,
		func() (out model.NetworkStatus, err error) {
			err = s.rpc.CallTool(ctx, toolNetworkInfo, nil, &out)
			return out, err
		},
		func() (model.NetworkStatus, error) { return s.rest.NetworkStatus(ctx) },
	)
}

// Agents returns the agent list.
func (s *Service) Agents(ctx context.Context) ([]model.Agent, error) {
	return withFallback(ctx, s, resourceAgentStates,
		func() (out []model.Agent, err error) {
			err = s.rpc.ReadResource(ctx, resourceAgentStates, &out)
			return out, err
		},
		func() ([]model.Agent, error) { return s.rest.Agents(ctx) },
	)
}

// ToggleAgent flips an agent between training and inference. It has no MCP
// equivalent.
func (s *Service) ToggleAgent(ctx context.Context, id string) (ToggleResponse, error) {
	return s.rest.ToggleAgent(ctx, id)
}

// RewardCurves returns agent training curves.
func (s *Service) RewardCurves(ctx context.Context) (model.RewardCurves, error) {
	return withFallback(ctx, s, resourceAgentRewards,
		func() (out model.RewardCurves, err error) {
			err = s.rpc.ReadResource(ctx, resourceAgentRewards, &out)
			return out, err
		},
		func() (model.RewardCurves, error) { return s.rest.RewardCurves(ctx) },
	)
}

// Predictions returns the digital twin forecast.
func (s *Service) Predictions(ctx context.Context) ([]model.Prediction, error) {
	return withFallback(ctx, s, toolAnalytics,
		func() ([]model.Prediction, error) {
			var out analyticsResult
			err := s.rpc.CallTool(ctx, toolAnalytics, nil, &out)
			return out.Predictive, err
		},
		func() ([]model.Prediction, error) { return s.rest.Predictions(ctx) },
	)
}

// Analytics returns the comparative analytics.
func (s *Service) Analytics(ctx context.Context) (model.Analytics, error) {
	return withFallback(ctx, s, toolAnalytics,
		func() (model.Analytics, error) {
			var out analyticsResult
			err := s.rpc.CallTool(ctx, toolAnalytics, nil, &out)
			return out.Analytics, err
		},
		func() (model.Analytics, error) { return s.rest.Analytics(ctx) },
	)
}

// ExportAnalytics returns analytics stamped with the export time.
func (s *Service) ExportAnalytics(ctx context.Context) (AnalyticsExport, error) {
	return withFallback(ctx, s, toolAnalytics,
		func() (AnalyticsExport, error) {
			var out analyticsResult
			if err := s.rpc.CallTool(ctx, toolAnalytics, nil, &out); err != nil {
				return AnalyticsExport{}, err
			}
			return AnalyticsExport{
				Success:    true,
				Data:       out.Analytics,
				ExportTime: s.now().UTC().Format(time.RFC3339Nano),
			}, nil
		},
		func() (AnalyticsExport, error) { return s.rest.ExportAnalytics(ctx) },
	)
}

// StartExperiment starts an experiment.
func (s *Service) StartExperiment(ctx context.Context, req ExperimentRequest) (ExperimentResponse, error) {
	return withFallback(ctx, s, toolControlExperiment,
		func() (out ExperimentResponse, err error) {
			args := map[string]any{"action": "start", "scenario": req.Scenario}
			if req.TrafficProfile != "" {
				args["trafficProfile"] = req.TrafficProfile
			}
			if req.Duration > 0 {
				args["duration"] = req.Duration
			}
			err = s.rpc.CallTool(ctx, toolControlExperiment, args, &out)
			return out, err
		},
		func() (ExperimentResponse, error) { return s.rest.StartExperiment(ctx, req) },
	)
}

// StopExperiment stops the running experiment.
func (s *Service) StopExperiment(ctx context.Context) (ExperimentResponse, error) {
	return withFallback(ctx, s, toolControlExperiment,
		func() (out ExperimentResponse, err error) {
			err = s.rpc.CallTool(ctx, toolControlExperiment, map[string]any{"action": "stop"}, &out)
			return out, err
		},
		func() (ExperimentResponse, error) { return s.rest.StopExperiment(ctx) },
	)
}

// SelectScenario records the active scenario.
func (s *Service) SelectScenario(ctx context.Context, id string) (ScenarioResponse, error) {
	return s.rest.SelectScenario(ctx, id)
}

// AutoConfigure starts the simulation.
func (s *Service) AutoConfigure(ctx context.Context) (SystemResponse, error) {
	return s.rest.AutoConfigure(ctx)
}

// DisconnectSystem stops the simulation.
func (s *Service) DisconnectSystem(ctx context.Context) (SystemResponse, error) {
	return s.rest.Disconnect(ctx)
}

// Rescue triggers the troubleshooting pass.
func (s *Service) Rescue(ctx context.Context) (RescueResponse, error) {
	return s.rest.Rescue(ctx)
}

func withFallback[T any](ctx context.Context, s *Service, op string, primary, secondary func() (T, error)) (T, error) {
	if s.rpc != nil {
		v, err := primary()
		if err == nil {
			return v, nil
		}
		s.log.Warn(ctx, "rpc call failed, falling back to REST", logging.String("op", op), logging.Err(err))
		fallback, ferr := secondary()
		if ferr == nil {
			return fallback, nil
		}
		var zero T
		return zero, fmt.Errorf("%s: %w", op, errors.Join(err, ferr))
	}
	return secondary()
}
