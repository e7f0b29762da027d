package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.starlark.net/starlark"

	"github.com/openfroyo/progset/pkg/settings"
	"github.com/openfroyo/progset/pkg/telemetry"
)

// DefaultEntryPoint is the function every settings script must define.
const DefaultEntryPoint = "build_configuration"

// Tracer starts spans. Both an OpenTelemetry trace.Tracer and a
// *telemetry.Tracer satisfy it.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Options configures a Runner.
type Options struct {
	// EntryPoint overrides DefaultEntryPoint.
	EntryPoint string

	// MaxSteps bounds evaluator execution steps per run. Zero is unlimited.
	MaxSteps uint64

	// Globals are predeclared for every script.
	Globals map[string]interface{}

	// Logger is the base logger. Nil discards output.
	Logger *telemetry.Logger

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer Tracer

	// Metrics may be nil.
	Metrics *telemetry.Metrics
}

// Runner evaluates settings scripts. It holds no evaluator state: every Run
// builds and discards its own Session, so a Runner may be shared by
// concurrent callers.
type Runner struct {
	entryPoint string
	maxSteps   uint64
	globals    map[string]interface{}
	logger     *telemetry.Logger
	tracer     Tracer
	metrics    *telemetry.Metrics
}

// Result is the outcome of a successful run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Script is the script path.
	Script string `json:"script"`

	// Vehicle and Component are the entry point arguments.
	Vehicle   string `json:"vehicle"`
	Component string `json:"component"`

	// Settings is the converted entry point result.
	Settings settings.Table `json:"settings"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	entry := opts.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/openfroyo/progset/pkg/engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Runner{
		entryPoint: entry,
		maxSteps:   opts.MaxSteps,
		globals:    opts.Globals,
		logger:     logger.NewComponentLogger("runner"),
		tracer:     tracer,
		metrics:    opts.Metrics,
	}
}

// EntryPoint returns the entry point name the runner calls.
func (r *Runner) EntryPoint() string {
	return r.entryPoint
}

// RunFile loads the script at path and runs it.
func (r *Runner) RunFile(ctx context.Context, path, vehicle, component string) (*Result, error) {
	script, err := LoadScript(path)
	if err != nil {
		r.metrics.RecordError(string(KindOf(err)))
		return nil, err
	}
	return r.Run(ctx, script, vehicle, component)
}

// Run evaluates script, calls the entry point with (vehicle, component) and
// converts its result.
//
// Cancelling ctx cancels the evaluator; the failure is reported with the
// kind of the phase that was interrupted. Without a deadline on ctx a script
// that never returns blocks Run indefinitely.
func (r *Runner) Run(ctx context.Context, script Script, vehicle, component string) (*Result, error) {
	started := time.Now()
	runID := uuid.New().String()

	ctx, span := r.tracer.Start(ctx, "settings.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("script.path", script.Name()),
		attribute.String("settings.vehicle", vehicle),
		attribute.String("settings.component", component),
		attribute.String("settings.entry_point", r.entryPoint),
	))
	defer span.End()

	logger := r.logger.WithRunID(runID).WithScript(script.Name())
	if id := telemetry.TraceID(ctx); id != "" {
		logger = logger.WithField("trace_id", id)
	}

	r.metrics.RecordRunStarted(r.entryPoint)
	logger.Debugf("Starting settings run for vehicle %q component %q", vehicle, component)

	table, err := r.run(ctx, logger, script, vehicle, component)
	duration := time.Since(started)
	if err != nil {
		kind := KindOf(err)
		r.metrics.RecordError(string(kind))
		r.metrics.RecordRunCompleted("failed", duration)
		telemetry.RecordError(span, err)
		logger.WithError(err).WithField("kind", string(kind)).Debug("Settings run failed")
		return nil, err
	}

	entries := table.Count()
	r.metrics.RecordEntries(entries)
	r.metrics.RecordRunCompleted("succeeded", duration)
	span.SetAttributes(attribute.Int("settings.entries", entries))
	telemetry.RecordSuccess(span)
	logger.Debugf("Settings run completed with %d entries in %s", entries, duration)

	return &Result{
		RunID:     runID,
		Script:    script.Name(),
		Vehicle:   vehicle,
		Component: component,
		Settings:  table,
		StartedAt: started,
		Duration:  duration,
	}, nil
}

func (r *Runner) run(ctx context.Context, logger *telemetry.Logger, script Script, vehicle, component string) (settings.Table, error) {
	session, err := r.open(ctx, logger, script)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	fn, err := r.entry(ctx, session, script)
	if err != nil {
		return nil, err
	}

	var result starlark.Value
	err = r.phase(ctx, "call", func(context.Context) error {
		v, err := session.Call(fn, vehicle, component)
		if err != nil {
			return newError(ErrorKindEntryPointCall,
				fmt.Sprintf("entry point %s failed", r.entryPoint), err).WithScript(script.Name())
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result == nil || result == starlark.None {
		return nil, newError(ErrorKindInvalidResult,
			fmt.Sprintf("entry point %s returned no value", r.entryPoint), nil).WithScript(script.Name())
	}
	if !IsComposite(result) {
		e := newError(ErrorKindInvalidResult,
			fmt.Sprintf("entry point %s must return a composite", r.entryPoint), nil).WithScript(script.Name())
		e.TypeName = result.Type()
		return nil, e
	}

	var table settings.Table
	err = r.phase(ctx, "convert", func(context.Context) error {
		t, err := Convert(result)
		if err != nil {
			if e, ok := err.(*Error); ok {
				return e.WithScript(script.Name())
			}
			return err
		}
		table = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// open creates a session bound to ctx and runs the script top level.
func (r *Runner) open(ctx context.Context, logger *telemetry.Logger, script Script) (*Session, error) {
	session, err := NewSession(SessionOptions{
		Name:     "progset:" + script.Name(),
		MaxSteps: r.maxSteps,
		Globals:  r.globals,
		Logger:   logger.Zerolog(),
	})
	if err != nil {
		if e, ok := err.(*Error); ok {
			return nil, e.WithScript(script.Name())
		}
		return nil, newError(ErrorKindEngineInit, "cannot create session", err).WithScript(script.Name())
	}

	session.Bind(ctx)

	err = r.phase(ctx, "load", func(context.Context) error {
		return session.Exec(script)
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// entry looks up the entry point and checks it is callable.
func (r *Runner) entry(_ context.Context, session *Session, script Script) (starlark.Value, error) {
	fn, ok := session.Global(r.entryPoint)
	if !ok {
		return nil, newError(ErrorKindEntryPointMissing,
			fmt.Sprintf("script does not define %s", r.entryPoint), nil).WithScript(script.Name())
	}
	if _, ok := fn.(starlark.Callable); !ok {
		e := newError(ErrorKindEntryPointMissing,
			fmt.Sprintf("%s is not callable", r.entryPoint), nil).WithScript(script.Name())
		e.TypeName = fn.Type()
		return nil, e
	}
	return fn, nil
}

// Check loads script and verifies that it defines a callable entry point,
// without calling it. It returns the names the script defines at top level.
func (r *Runner) Check(ctx context.Context, script Script) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "settings.check", trace.WithAttributes(
		attribute.String("script.path", script.Name()),
	))
	defer span.End()

	var names []string
	session, err := r.open(ctx, r.logger.WithScript(script.Name()), script)
	if err == nil {
		defer session.Close()
		_, err = r.entry(ctx, session, script)
		names = session.GlobalNames()
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span)
	return names, nil
}

// phase runs fn in a child span and records its duration.
func (r *Runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := r.tracer.Start(ctx, "settings."+name)
	defer span.End()

	err := fn(ctx)
	r.metrics.RecordPhase(name, time.Since(started))
	telemetry.RecordError(span, err)
	return err
}
