package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/api"
	"github.com/Chandru6607/6g-dashboard/internal/config"
	"github.com/Chandru6607/6g-dashboard/internal/dashboard"
	"github.com/Chandru6607/6g-dashboard/internal/generator"
	"github.com/Chandru6607/6g-dashboard/internal/healthsvc"
	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/mcpserver"
	"github.com/Chandru6607/6g-dashboard/internal/observability"
	"github.com/Chandru6607/6g-dashboard/internal/realtime"
	"github.com/Chandru6607/6g-dashboard/internal/rescue"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
)

func main() {
	configPath := flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "Path to a YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP address for REST, WebSocket and MCP (overrides config)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the gRPC health server (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Separate HTTP address for Prometheus /metrics (overrides config)")
	snapshotPath := flag.String("snapshot", "", "Path of the state snapshot file (overrides config)")
	seed := flag.Int64("seed", 0, "Generator seed, 0 for time-based (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "grpc-addr":
			cfg.GRPCAddr = *grpcAddr
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "snapshot":
			cfg.SnapshotPath = *snapshotPath
		case "seed":
			cfg.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "dashboard server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the dashboard on lis until ctx is cancelled, then shuts every
// component down.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig(cfg.Tracing), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewDashboardCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := generator.New(seed)
	st := state.New(log, state.WithMetricsRecorder(collector))
	origins := config.NewOriginMatcher(cfg.AllowedOrigins)

	hub := realtime.NewHub(dashboard.NewSource(st, gen), log,
		realtime.WithCheckOrigin(origins.Allowed),
		realtime.WithMetrics(collector),
		realtime.WithEmitters(realtime.EmitterConfig(cfg.Emitters)),
	)

	health := healthsvc.New(log)

	svc := dashboard.New(st, gen, hub, log,
		dashboard.WithLoopPeriod(cfg.Simulation.LoopPeriod),
		dashboard.WithBaseContext(ctx),
		dashboard.WithActivityObserver(health.SetSimulationActive),
	)
	svc.RegisterInbound(hub)

	watchdog := rescue.New(st, hub, gen, rescue.NewSnapshotStore(cfg.SnapshotPath), log,
		rescue.WithPeriod(cfg.Simulation.WatchdogPeriod),
		rescue.WithHealProbability(cfg.Simulation.HealProbability),
		rescue.WithMetrics(collector),
	)
	if _, err := watchdog.Restore(ctx, svc); err != nil {
		log.Warn(ctx, "starting from a fresh state", logging.Err(err))
	}
	watchdog.Start(ctx)

	mcpSrv := mcpserver.New(svc, log, mcpserver.WithMetrics(collector))

	apiSrv := api.NewServer(svc, watchdog, log,
		api.WithMetrics(collector),
		api.WithTracing(),
		api.WithAllowedOrigins(origins.Allowed),
	)
	apiSrv.Mount("GET /ws", hub)
	mcpSrv.Mount(apiSrv)

	var metricsSrv *http.Server
	if cfg.MetricsAddr == "" {
		apiSrv.Mount("GET /metrics", collector.Handler())
	} else {
		metricsSrv = serveMetrics(cfg.MetricsAddr, collector, log)
	}

	errCh := make(chan error, 2)
	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			watchdog.Stop(context.Background())
			svc.Close()
			return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			if err := health.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("gRPC health server: %w", err)
			}
		}()
	}

	// No WriteTimeout: the MCP SSE stream stays open for the session.
	httpSrv := &http.Server{
		Handler:           apiSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	log.Info(ctx, "dashboard server listening",
		logging.String("http_addr", lis.Addr().String()),
		logging.String("grpc_addr", cfg.GRPCAddr),
		logging.String("snapshot", cfg.SnapshotPath),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down dashboard server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mcpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "mcp shutdown failed", logging.Err(err))
	}
	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown failed", logging.Err(err))
	}
	svc.Close()
	watchdog.Stop(shutdownCtx)
	health.Stop()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func serveMetrics(addr string, collector *observability.DashboardCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
