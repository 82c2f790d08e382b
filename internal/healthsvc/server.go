// Package healthsvc serves the standard gRPC health protocol. The overall
// server is always SERVING; the simulation service reports SERVING only
// while the broadcast loop is active.
package healthsvc

import (
	"context"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
)

// SimulationService is the health service name tracking the broadcast loop.
const SimulationService = "sixg.dashboard.Simulation"

const requestIDMetadataKey = "x-request-id"

// Server owns the gRPC server and its health registry.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    logging.Logger
}

// New builds the health server. The simulation service starts NOT_SERVING.
func New(log logging.Logger) *Server {
	log = logging.Component(log, "healthsvc")
	s := &Server{
		grpc: grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(requestIDUnaryServerInterceptor(log)),
		),
		health: health.NewServer(),
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SimulationService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetSimulationActive flips the simulation service status. It matches the
// activity observer signature of the dashboard service.
func (s *Server) SetSimulationActive(active bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SimulationService, status)
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "starting gRPC health server", logging.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// requestIDUnaryServerInterceptor takes request_id from inbound metadata or
// generates one, and attaches a per-call logger annotated with the method.
func requestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 && vals[0] != "" {
				ctx = logging.ContextWithRequestID(ctx, vals[0])
			}
		}
		ctx, _ = logging.EnsureRequestID(ctx)
		reqLog := base.With(logging.String("method", info.FullMethod))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		resp, err := handler(ctx, req)
		if err != nil {
			reqLog.Debug(ctx, "rpc failed", logging.Err(err))
		}
		return resp, err
	}
}
