package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/progset/pkg/telemetry"
)

// Output formats accepted by the run command.
const (
	FormatText = "text"
	FormatFlat = "flat"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the progset configuration file.
type Config struct {
	// Script controls how settings scripts are evaluated.
	Script ScriptConfig `yaml:"script"`

	// Output controls how settings trees are written.
	Output OutputConfig `yaml:"output"`

	// History controls the run history store.
	History HistoryConfig `yaml:"history"`

	// Watch controls the watch command.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry controls logging, tracing and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ScriptConfig configures script evaluation.
type ScriptConfig struct {
	// EntryPoint is the function called with (vehicle, component).
	EntryPoint string `yaml:"entry_point" validate:"required,starlark_ident"`

	// VehicleEnv names the environment variable holding the vehicle name.
	VehicleEnv string `yaml:"vehicle_env" validate:"required"`

	// MaxSteps bounds evaluator steps per run. Zero is unlimited.
	MaxSteps uint64 `yaml:"max_steps"`

	// Globals are predeclared in every script.
	Globals map[string]interface{} `yaml:"globals" validate:"dive,keys,starlark_ident,endkeys"`
}

// OutputConfig configures settings output.
type OutputConfig struct {
	// Format is text, flat, json or yaml.
	Format string `yaml:"format" validate:"required,oneof=text flat json yaml"`

	// Color is auto, always or never.
	Color string `yaml:"color" validate:"required,oneof=auto always never"`

	// IntegerKeyBrackets prints integer keys as [n] in text output.
	IntegerKeyBrackets bool `yaml:"integer_key_brackets"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// TelemetryConfig is the file form of telemetry.Config.
type TelemetryConfig struct {
	LogLevel       string            `yaml:"log_level" validate:"required,oneof=trace debug info warn error fatal disabled"`
	LogFormat      string            `yaml:"log_format" validate:"required,oneof=console json"`
	TraceExporter  string            `yaml:"trace_exporter" validate:"required,oneof=none stdout otlp"`
	TraceEndpoint  string            `yaml:"trace_endpoint" validate:"required_if=TraceExporter otlp"`
	TraceHeaders   map[string]string `yaml:"trace_headers,omitempty"`
	MetricsAddress string            `yaml:"metrics_address" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Script: ScriptConfig{
			EntryPoint: "build_configuration",
			VehicleEnv: "VEHICLE_NAME",
		},
		Output: OutputConfig{
			Format:             FormatText,
			Color:              ColorAuto,
			IntegerKeyBrackets: true,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    ".progset/history.db",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "console",
			TraceExporter: "none",
		},
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("starlark_ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	return v
}

// FieldError describes one invalid configuration field.
type FieldError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

// ValidationError lists every invalid field of a configuration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Message
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		out.Fields = append(out.Fields, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: fmt.Sprintf("%s failed %q (value %v)", field, fe.Tag(), fe.Value()),
		})
	}
	return out
}

// Load reads the configuration at path over the defaults, applies
// environment overrides and validates the result. An empty path returns the
// defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from PROGSET_* environment variables and
// LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Telemetry.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("PROGSET_ENTRY_POINT"); ok && v != "" {
		c.Script.EntryPoint = v
	}
	if v, ok := lookup("PROGSET_MAX_STEPS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PROGSET_MAX_STEPS %q: %w", v, err)
		}
		c.Script.MaxSteps = n
	}
	if v, ok := lookup("PROGSET_HISTORY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PROGSET_HISTORY %q: %w", v, err)
		}
		c.History.Enabled = b
	}
	if v, ok := lookup("PROGSET_HISTORY_PATH"); ok && v != "" {
		c.History.Path = v
	}
	if v, ok := lookup("PROGSET_OUTPUT"); ok && v != "" {
		c.Output.Format = v
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TelemetryConfig builds the telemetry configuration for version.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = c.Telemetry.LogLevel
	tc.Logging.Format = c.Telemetry.LogFormat
	tc.Logging.EnableCaller = c.Telemetry.LogLevel == "debug" || c.Telemetry.LogLevel == "trace"
	tc.Tracing.Enabled = c.Telemetry.TraceExporter != "none"
	tc.Tracing.Exporter = c.Telemetry.TraceExporter
	tc.Tracing.Endpoint = c.Telemetry.TraceEndpoint
	for k, v := range c.Telemetry.TraceHeaders {
		tc.Tracing.Headers[k] = v
	}
	tc.Metrics.ListenAddress = c.Telemetry.MetricsAddress
	return tc
}
