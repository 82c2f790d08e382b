// Package mcpserver exposes dashboard data and experiment control as MCP
// tools and resources over the SSE transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Chandru6607/6g-dashboard/internal/dashboard"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/observability"
	"github.com/Chandru6607/6g-dashboard/model"
)

const (
	ServerName    = "6G-Dashboard-MCP"
	ServerVersion = "1.0.0"

	// SSEPath opens a session; MessagePath receives JSON-RPC posts.
	SSEPath     = "/mcp"
	MessagePath = "/mcp/messages"
)

// Tool names.
const (
	ToolNetworkInfo       = "get_network_info"
	ToolAnalytics         = "get_analytics"
	ToolControlExperiment = "control_experiment"
)

// Resource URIs.
const (
	ResourceNetworkStatus   = "network://status"
	ResourceNetworkTopology = "network://topology"
	ResourceAgentStates     = "agents://states"
	ResourceAgentRewards    = "agents://rewards"
)

const jsonMIME = "application/json"

// Simulation is the dashboard surface read and driven by MCP clients.
type Simulation interface {
	NetworkStatus() model.NetworkStatus
	Metrics() model.NetworkMetrics
	Topology() model.Topology
	Agents() []model.Agent
	RewardCurves() model.RewardCurves
	Predictions() []model.Prediction
	Analytics() model.Analytics
	ControlExperiment(ctx context.Context, action string, req dashboard.ExperimentRequest) (string, error)
}

// MetricsRecorder counts tool and resource calls.
type MetricsRecorder interface {
	MCPCall(kind, name string, err error)
}

type noopMetrics struct{}

func (noopMetrics) MCPCall(string, string, error) {}

// Server wires Simulation into an MCP server and its SSE transport.
type Server struct {
	sim     Simulation
	log     logging.Logger
	metrics MetricsRecorder
	mcp     *server.MCPServer
	sse     *server.SSEServer
	baseURL string
}

// Option customises a Server.
type Option func(*Server)

// WithMetrics attaches a call recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithBaseURL sets the absolute URL advertised in the session endpoint
// event. Without it the endpoint is relative.
func WithBaseURL(u string) Option {
	return func(s *Server) { s.baseURL = u }
}

// New registers the dashboard tools and resources.
func New(sim Simulation, log logging.Logger, opts ...Option) *Server {
	s := &Server{
		sim:     sim,
		log:     logging.Component(log, "mcp"),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()

	sseOpts := []server.SSEOption{
		server.WithSSEEndpoint(SSEPath),
		server.WithMessageEndpoint(MessagePath),
		server.WithKeepAlive(true),
	}
	if s.baseURL != "" {
		sseOpts = append(sseOpts, server.WithBaseURL(s.baseURL))
	}
	s.sse = server.NewSSEServer(s.mcp, sseOpts...)
	return s
}

// SSEHandler serves GET /mcp.
func (s *Server) SSEHandler() http.Handler { return s.sse.SSEHandler() }

// MessageHandler serves POST /mcp/messages.
func (s *Server) MessageHandler() http.Handler { return s.sse.MessageHandler() }

// Mount registers both transport endpoints on mux.
func (s *Server) Mount(mux interface{ Mount(string, http.Handler) }) {
	mux.Mount("GET "+SSEPath, s.SSEHandler())
	mux.Mount("POST "+MessagePath, s.MessageHandler())
}

// Shutdown closes open SSE sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sse.Shutdown(ctx)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolNetworkInfo,
		mcp.WithDescription("Retrieve comprehensive network information (topology and metrics)"),
	), s.instrumentTool(ToolNetworkInfo, func(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
		return s.sim.NetworkStatus(), nil
	}))

	s.mcp.AddTool(mcp.NewTool(ToolAnalytics,
		mcp.WithDescription("Get predictive and performance analytics data"),
	), s.instrumentTool(ToolAnalytics, func(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
		return map[string]any{
			"predictive": s.sim.Predictions(),
			"analytics":  s.sim.Analytics(),
		}, nil
	}))

	s.mcp.AddTool(mcp.NewTool(ToolControlExperiment,
		mcp.WithDescription("Start or stop a 6G network experiment"),
		mcp.WithString("action", mcp.Required(), mcp.Enum("start", "stop"), mcp.Description("Experiment action")),
		mcp.WithString("scenario", mcp.Description("Scenario name")),
		mcp.WithString("trafficProfile", mcp.Description("Traffic profile")),
		mcp.WithNumber("duration", mcp.Description("Duration in seconds")),
	), s.instrumentTool(ToolControlExperiment, s.controlExperiment))
}

func (s *Server) controlExperiment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	args := req.GetArguments()
	action, _ := args["action"].(string)
	exp := dashboard.ExperimentRequest{}
	exp.Scenario, _ = args["scenario"].(string)
	exp.TrafficProfile, _ = args["trafficProfile"].(string)
	exp.Duration, _ = args["duration"].(float64)

	msg, err := s.sim.ControlExperiment(ctx, action, exp)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": msg}, nil
}

func (s *Server) registerResources() {
	s.addResource(ResourceNetworkStatus, "Network Status", "Real-time network performance metrics",
		func() any { return s.sim.Metrics() })
	s.addResource(ResourceNetworkTopology, "Network Topology", "Current graph of gNBs and UEs",
		func() any { return s.sim.Topology() })
	s.addResource(ResourceAgentStates, "Agent States", "Current state of RL agents in the network",
		func() any { return s.sim.Agents() })
	s.addResource(ResourceAgentRewards, "Agent Rewards", "Reward curves of the RL agents",
		func() any { return s.sim.RewardCurves() })
}

func (s *Server) addResource(uri, name, description string, read func() any) {
	res := mcp.NewResource(uri, name,
		mcp.WithResourceDescription(description),
		mcp.WithMIMEType(jsonMIME),
	)
	s.mcp.AddResource(res, func(ctx context.Context, req mcp.ReadResourceRequest) (_ []mcp.ResourceContents, err error) {
		ctx, span := observability.StartSpan(ctx, "mcp.resource", attribute.String("mcp.resource.uri", uri))
		defer func() {
			observability.EndSpan(span, err)
			s.metrics.MCPCall("resource", uri, err)
		}()

		text, err := encode(read())
		if err != nil {
			s.log.Error(ctx, "resource encode failed", logging.String("uri", uri), logging.Err(err))
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: text},
		}, nil
	})
}

type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// instrumentTool traces and counts a tool call and encodes its result as a
// single JSON text item.
func (s *Server) instrumentTool(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (_ *mcp.CallToolResult, err error) {
		ctx, span := observability.StartSpan(ctx, "mcp.tool", attribute.String("mcp.tool.name", name))
		defer func() {
			observability.EndSpan(span, err)
			s.metrics.MCPCall("tool", name, err)
		}()

		out, err := fn(ctx, req)
		if err != nil {
			level := s.log.Error
			if errors.Is(err, dashboard.ErrInvalidExperimentAction) {
				level = s.log.Warn
			}
			level(ctx, "tool call failed", logging.String("tool", name), logging.Err(err))
			return nil, err
		}
		text, err := encode(out)
		if err != nil {
			return nil, err
		}
		s.log.Debug(ctx, "tool call served", logging.String("tool", name))
		return mcp.NewToolResultText(text), nil
	}
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
