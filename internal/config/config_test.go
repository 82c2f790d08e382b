package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	yaml := `
http_addr: ":8080"
allowed_origins:
  - https://dash.example.com
simulation:
  loop_period: 250ms
emitters:
  alert_min: 1s
  alert_max: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Simulation.LoopPeriod != 250*time.Millisecond {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Simulation.WatchdogPeriod != 10*time.Second || cfg.Emitters.Metrics != 2*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.Emitters.AlertMax != 2*time.Second {
		t.Fatalf("unexpected origins/emitters: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("htp_addr: \":1\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                      "9000",
		"DASHBOARD_ALLOWED_ORIGINS": "https://a.example.com, https://*.vercel.app",
		"DASHBOARD_SNAPSHOT_PATH":   "/tmp/snap.json",
		"DASHBOARD_LOOP_PERIOD":     "500ms",
		"DASHBOARD_SEED":            "42",
		"LOG_LEVEL":                 "debug",

		"DASHBOARD_TRACING_ENABLED":      "true",
		"DASHBOARD_TRACING_EXPORTER":     "OTLP",
		"DASHBOARD_TRACING_SAMPLE_RATIO": "0.25",
		"DASHBOARD_OTLP_ENDPOINT":        "collector:4317",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.SnapshotPath != "/tmp/snap.json" || cfg.Seed != 42 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Simulation.LoopPeriod != 500*time.Millisecond || cfg.Log.Level != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	tr := cfg.Tracing
	if !tr.Enabled || tr.Exporter != "otlp" || tr.SampleRatio != 0.25 || tr.Endpoint != "collector:4317" {
		t.Fatalf("tracing env not applied: %+v", tr)
	}
	if tr.ServiceName != "6g-dashboard" {
		t.Fatalf("service name = %q", tr.ServiceName)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://*.vercel.app" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}

	bad := Default()
	err := bad.ApplyEnv(func(k string) string {
		if k == "DASHBOARD_WATCHDOG_PERIOD" {
			return "soon"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "DASHBOARD_WATCHDOG_PERIOD") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":      func(c *Config) { c.HTTPAddr = "" },
		"log level":       func(c *Config) { c.Log.Level = "loud" },
		"loop period":     func(c *Config) { c.Simulation.LoopPeriod = 0 },
		"heal chance":     func(c *Config) { c.Simulation.HealProbability = 1.5 },
		"telemetry range": func(c *Config) { c.Emitters.TelemetryMax = time.Millisecond },
		"double wildcard": func(c *Config) { c.AllowedOrigins = []string{"https://*.*.app"} },
		"exporter":        func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" },
		"sample ratio":    func(c *Config) { c.Tracing.SampleRatio = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestOriginMatcher(t *testing.T) {
	m := NewOriginMatcher([]string{"http://localhost:5173", "https://*.vercel.app/"})
	cases := map[string]bool{
		"":                            true,
		"http://localhost:5173":       true,
		"https://my-dash.vercel.app":  true,
		"https://MY-DASH.vercel.app":  true,
		"https://.vercel.app":         false,
		"http://my-dash.vercel.app":   false,
		"https://vercel.app.evil.com": false,
		"http://localhost:3000":       false,
	}
	for origin, want := range cases {
		if got := m.Allowed(origin); got != want {
			t.Errorf("Allowed(%q) = %v, want %v", origin, got, want)
		}
	}

	if !NewOriginMatcher([]string{"*"}).Allowed("https://anything.example") {
		t.Fatalf("wildcard-all should allow everything")
	}
}
