// Package telemetry provides logging, tracing and metrics for progset.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value that
// commands create at startup and pass to the engine.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	runner := engine.NewRunner(engine.Options{
//	    Logger:  tel.Logger.Zerolog(),
//	    Tracer:  tel.Tracer,
//	    Metrics: tel.Metrics,
//	})
//
// # Logging
//
// Logs go to stderr by default so stdout carries only settings output.
// Levels: trace, debug, info, warn, error, fatal, disabled.
//
// # Tracing
//
// Tracing is off by default. When enabled every run produces a
// settings.run span with settings.load, settings.call and settings.convert
// children. Exporters: stdout, otlp (gRPC), none.
//
// # Metrics
//
// Collected metrics, under the configured namespace:
//
//   - runs_started_total{entry_point}
//   - runs_completed_total{status}
//   - run_duration_seconds{status}
//   - phase_duration_seconds{phase}
//   - settings_entries
//   - errors_total{kind}
//   - active_runs
//
// Metrics are served over HTTP only when a listen address is configured,
// which is useful with the long-running watch command.
package telemetry
