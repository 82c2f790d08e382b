// Package config loads dashboard server settings from YAML, environment
// variables and defaults, in increasing order of precedence: defaults, file,
// environment. Command-line flags are applied last by the binary.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCAddr       string   `yaml:"grpc_addr"`
	MetricsAddr    string   `yaml:"metrics_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SnapshotPath   string   `yaml:"snapshot_path"`
	Seed           int64    `yaml:"seed"`

	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Simulation SimulationConfig `yaml:"simulation"`
	Emitters   EmitterConfig    `yaml:"emitters"`
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig selects the OpenTelemetry exporter. Exporter is stdout or
// otlp; Endpoint is the OTLP gRPC collector address.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// SimulationConfig tunes the broadcast loop and the rescue watchdog.
type SimulationConfig struct {
	LoopPeriod      time.Duration `yaml:"loop_period"`
	WatchdogPeriod  time.Duration `yaml:"watchdog_period"`
	HealProbability float64       `yaml:"heal_probability"`
}

// EmitterConfig tunes the per-connection real-time emitters.
type EmitterConfig struct {
	Metrics      time.Duration `yaml:"metrics"`
	Agents       time.Duration `yaml:"agents"`
	Sync         time.Duration `yaml:"sync"`
	Throughput   time.Duration `yaml:"throughput"`
	TelemetryMin time.Duration `yaml:"telemetry_min"`
	TelemetryMax time.Duration `yaml:"telemetry_max"`
	AlertMin     time.Duration `yaml:"alert_min"`
	AlertMax     time.Duration `yaml:"alert_max"`
}

// DefaultAllowedOrigins covers local development servers and the hosting
// platforms the dashboard UI is deployed to.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"https://*.vercel.app",
	"https://*.netlify.app",
	"https://*.onrender.com",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:       ":3001",
		GRPCAddr:       ":50061",
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		SnapshotPath:   "data/state-snapshot.json",
		Log:            LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "6g-dashboard",
			SampleRatio: 1,
		},
		Simulation: SimulationConfig{
			LoopPeriod:      time.Second,
			WatchdogPeriod:  10 * time.Second,
			HealProbability: 0.7,
		},
		Emitters: DefaultEmitters(),
	}
}

// DefaultEmitters returns the per-connection emitter cadence.
func DefaultEmitters() EmitterConfig {
	return EmitterConfig{
		Metrics:      2 * time.Second,
		Agents:       5 * time.Second,
		Sync:         3 * time.Second,
		Throughput:   time.Second,
		TelemetryMin: 500 * time.Millisecond,
		TelemetryMax: 2 * time.Second,
		AlertMin:     5 * time.Second,
		AlertMax:     15 * time.Second,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys. Keys absent from data
// keep their current values.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. PORT sets the HTTP
// listen port for platforms that inject it.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if port := getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + port
	}
	setString(&c.HTTPAddr, getenv("DASHBOARD_HTTP_ADDR"))
	setString(&c.GRPCAddr, getenv("DASHBOARD_GRPC_ADDR"))
	setString(&c.MetricsAddr, getenv("DASHBOARD_METRICS_ADDR"))
	setString(&c.SnapshotPath, getenv("DASHBOARD_SNAPSHOT_PATH"))
	setString(&c.Log.Level, getenv("LOG_LEVEL"))
	setString(&c.Log.Format, getenv("LOG_FORMAT"))

	setString(&c.Tracing.Exporter, strings.ToLower(getenv("DASHBOARD_TRACING_EXPORTER")))
	setString(&c.Tracing.Endpoint, getenv("DASHBOARD_OTLP_ENDPOINT"))
	setString(&c.Tracing.ServiceName, getenv("DASHBOARD_TRACING_SERVICE_NAME"))
	if raw := getenv("DASHBOARD_TRACING_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("DASHBOARD_TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = enabled
	}
	if raw := getenv("DASHBOARD_TRACING_SAMPLE_RATIO"); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("DASHBOARD_TRACING_SAMPLE_RATIO: %w", err)
		}
		c.Tracing.SampleRatio = ratio
	}

	if raw := getenv("DASHBOARD_ALLOWED_ORIGINS"); raw != "" {
		c.AllowedOrigins = splitList(raw)
	}
	if raw := getenv("DASHBOARD_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("DASHBOARD_SEED: %w", err)
		}
		c.Seed = seed
	}
	for name, dst := range map[string]*time.Duration{
		"DASHBOARD_LOOP_PERIOD":     &c.Simulation.LoopPeriod,
		"DASHBOARD_WATCHDOG_PERIOD": &c.Simulation.WatchdogPeriod,
	} {
		if raw := getenv(name); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate checks cfg for values the server cannot run with.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must be set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Simulation.LoopPeriod <= 0 {
		return fmt.Errorf("simulation.loop_period must be positive, got %s", c.Simulation.LoopPeriod)
	}
	if c.Simulation.WatchdogPeriod <= 0 {
		return fmt.Errorf("simulation.watchdog_period must be positive, got %s", c.Simulation.WatchdogPeriod)
	}
	if p := c.Simulation.HealProbability; p < 0 || p > 1 {
		return fmt.Errorf("simulation.heal_probability must be between 0 and 1, got %v", p)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be stdout or otlp, got %q", c.Tracing.Exporter)
		}
	}
	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", r)
	}
	if err := c.Emitters.validate(); err != nil {
		return fmt.Errorf("emitters: %w", err)
	}
	for _, o := range c.AllowedOrigins {
		if strings.Count(o, "*") > 1 {
			return fmt.Errorf("allowed origin %q has more than one wildcard", o)
		}
	}
	return nil
}

func (e EmitterConfig) validate() error {
	for name, d := range map[string]time.Duration{
		"metrics":       e.Metrics,
		"agents":        e.Agents,
		"sync":          e.Sync,
		"throughput":    e.Throughput,
		"telemetry_min": e.TelemetryMin,
		"alert_min":     e.AlertMin,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if e.TelemetryMax < e.TelemetryMin {
		return fmt.Errorf("telemetry_max %s below telemetry_min %s", e.TelemetryMax, e.TelemetryMin)
	}
	if e.AlertMax < e.AlertMin {
		return fmt.Errorf("alert_max %s below alert_min %s", e.AlertMax, e.AlertMin)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
