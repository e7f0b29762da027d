package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Script.EntryPoint != "build_configuration" {
		t.Errorf("expected default entry point build_configuration, got %s", cfg.Script.EntryPoint)
	}
	if cfg.Script.VehicleEnv != "VEHICLE_NAME" {
		t.Errorf("expected default vehicle env VEHICLE_NAME, got %s", cfg.Script.VehicleEnv)
	}
}

func TestParse(t *testing.T) {
	data := `
script:
  entry_point: make_settings
  max_steps: 5000
  globals:
    fleet: north
    limits:
      speed: 80
output:
  format: json
history:
  enabled: true
  path: /tmp/history.db
watch:
  debounce: 1s
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Script.EntryPoint != "make_settings" {
		t.Errorf("expected entry point make_settings, got %s", cfg.Script.EntryPoint)
	}
	if cfg.Script.MaxSteps != 5000 {
		t.Errorf("expected max steps 5000, got %d", cfg.Script.MaxSteps)
	}
	if cfg.Script.VehicleEnv != "VEHICLE_NAME" {
		t.Errorf("expected vehicle env to keep its default, got %s", cfg.Script.VehicleEnv)
	}
	if cfg.Script.Globals["fleet"] != "north" {
		t.Errorf("expected global fleet=north, got %v", cfg.Script.Globals["fleet"])
	}
	limits, ok := cfg.Script.Globals["limits"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected limits to be a map, got %T", cfg.Script.Globals["limits"])
	}
	if limits["speed"] != 80 {
		t.Errorf("expected speed=80, got %v", limits["speed"])
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("expected json output, got %s", cfg.Output.Format)
	}
	if cfg.Output.Color != ColorAuto {
		t.Errorf("expected colour to keep its default, got %s", cfg.Output.Color)
	}
	if !cfg.History.Enabled || cfg.History.Path != "/tmp/history.db" {
		t.Errorf("unexpected history config: %+v", cfg.History)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Format != FormatText {
		t.Errorf("expected default output format, got %s", cfg.Output.Format)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("script:\n  entrypoint: x\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty entry point",
			mutate:    func(c *Config) { c.Script.EntryPoint = "" },
			wantField: "Script.EntryPoint",
		},
		{
			name:      "entry point not an identifier",
			mutate:    func(c *Config) { c.Script.EntryPoint = "build-configuration" },
			wantField: "Script.EntryPoint",
		},
		{
			name:      "empty vehicle env",
			mutate:    func(c *Config) { c.Script.VehicleEnv = "" },
			wantField: "Script.VehicleEnv",
		},
		{
			name:      "bad output format",
			mutate:    func(c *Config) { c.Output.Format = "xml" },
			wantField: "Output.Format",
		},
		{
			name:      "bad colour mode",
			mutate:    func(c *Config) { c.Output.Color = "sometimes" },
			wantField: "Output.Color",
		},
		{
			name: "history enabled without path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Path = ""
			},
			wantField: "History.Path",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Telemetry.LogLevel = "loud" },
			wantField: "Telemetry.LogLevel",
		},
		{
			name:      "otlp without endpoint",
			mutate:    func(c *Config) { c.Telemetry.TraceExporter = "otlp" },
			wantField: "Telemetry.TraceEndpoint",
		},
		{
			name:      "negative debounce",
			mutate:    func(c *Config) { c.Watch.Debounce = -time.Second },
			wantField: "Watch.Debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestValidate_HistoryDisabledWithoutPath(t *testing.T) {
	cfg := Default()
	cfg.History.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("history path is only required when enabled: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOG_LEVEL":            "DEBUG",
		"PROGSET_ENTRY_POINT":  "settings_for",
		"PROGSET_MAX_STEPS":    "100",
		"PROGSET_HISTORY":      "true",
		"PROGSET_HISTORY_PATH": "/var/lib/progset.db",
		"PROGSET_OUTPUT":       "yaml",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Telemetry.LogLevel)
	}
	if cfg.Script.EntryPoint != "settings_for" {
		t.Errorf("expected entry point settings_for, got %s", cfg.Script.EntryPoint)
	}
	if cfg.Script.MaxSteps != 100 {
		t.Errorf("expected max steps 100, got %d", cfg.Script.MaxSteps)
	}
	if !cfg.History.Enabled || cfg.History.Path != "/var/lib/progset.db" {
		t.Errorf("unexpected history config: %+v", cfg.History)
	}
	if cfg.Output.Format != FormatYAML {
		t.Errorf("expected yaml output, got %s", cfg.Output.Format)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "PROGSET_MAX_STEPS" {
			return "lots", true
		}
		return "", false
	}
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric PROGSET_MAX_STEPS")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PROGSET_OUTPUT", "")

	path := filepath.Join(t.TempDir(), "progset.yaml")
	if err := os.WriteFile(path, []byte("output:\n  color: never\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Color != ColorNever {
		t.Errorf("expected colour never, got %s", cfg.Output.Color)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Script.MaxSteps = 42
	cfg.Watch.Debounce = 750 * time.Millisecond

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "entry_point: build_configuration") {
		t.Errorf("expected entry_point in output:\n%s", data)
	}

	back, err := Parse(data)
	if err != nil {
		t.Fatalf("failed to parse marshalled config: %v", err)
	}
	if back.Script.MaxSteps != 42 || back.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("round trip lost fields: %+v", back)
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "warn"
	cfg.Telemetry.TraceExporter = "otlp"
	cfg.Telemetry.TraceEndpoint = "localhost:4317"
	cfg.Telemetry.TraceHeaders = map[string]string{"authorization": "token"}
	cfg.Telemetry.MetricsAddress = "localhost:9090"

	tc := cfg.TelemetryConfig("1.2.3")
	if err := tc.Validate(); err != nil {
		t.Fatalf("telemetry config should be valid: %v", err)
	}
	if tc.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", tc.ServiceVersion)
	}
	if tc.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", tc.Logging.Level)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("unexpected tracing config: %+v", tc.Tracing)
	}
	if tc.Tracing.Headers["authorization"] != "token" {
		t.Errorf("expected trace headers, got %v", tc.Tracing.Headers)
	}
	if tc.Logging.EnableCaller {
		t.Error("caller information is only added at debug level")
	}
	if tc.Metrics.ListenAddress != "localhost:9090" {
		t.Errorf("expected metrics address, got %s", tc.Metrics.ListenAddress)
	}

	cfg.Telemetry.LogLevel = "debug"
	if !cfg.TelemetryConfig("1.2.3").Logging.EnableCaller {
		t.Error("expected caller information at debug level")
	}
}
