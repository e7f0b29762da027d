package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/progset/pkg/config"
	"github.com/openfroyo/progset/pkg/engine"
	"github.com/openfroyo/progset/pkg/stores"
	"github.com/openfroyo/progset/pkg/telemetry"
)

// app holds what a command needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	log    *telemetry.Logger
	runner *engine.Runner
	store  stores.Store
}

// newApp loads the configuration and builds telemetry and the runner. The
// history store is opened only when withStore is set or history is enabled.
func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	zerolog.SetGlobalLevel(telemetry.ParseLogLevel(cfg.Telemetry.LogLevel))

	a := &app{
		cfg: cfg,
		tel: tel,
		log: tel.Logger,
		runner: engine.NewRunner(engine.Options{
			EntryPoint: cfg.Script.EntryPoint,
			MaxSteps:   cfg.Script.MaxSteps,
			Globals:    cfg.Script.Globals,
			Logger:     tel.Logger,
			Tracer:     tel.Tracer,
			Metrics:    tel.Metrics,
		}),
	}

	if withStore || cfg.History.Enabled {
		store, err := openStore(ctx, cfg.History.Path)
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, err
		}
		a.store = store
	}

	return a, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// close releases the store and flushes telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close history store")
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to shut down telemetry")
	}
}

// vehicle returns the vehicle name: the flag when given, otherwise the
// configured environment variable. An unset variable yields "".
func (a *app) vehicle(flag string) string {
	if flag != "" {
		return flag
	}
	v, ok := os.LookupEnv(a.cfg.Script.VehicleEnv)
	if !ok {
		a.log.Debugf("%s is not set, using empty vehicle name", a.cfg.Script.VehicleEnv)
	}
	return v
}

// record stores the outcome of one run in the history store, if enabled.
// History failures are logged, not returned.
func (a *app) record(ctx context.Context, script, vehicle, component string, started time.Time, res *engine.Result, runErr error) {
	if a.store == nil || !a.cfg.History.Enabled {
		return
	}

	run := &stores.Run{
		ID:         uuid.New().String(),
		ScriptPath: script,
		Vehicle:    vehicle,
		Component:  component,
		EntryPoint: a.runner.EntryPoint(),
		StartedAt:  started.UTC(),
	}
	if res != nil {
		run.ID = res.RunID
	}

	// The run context may already be cancelled; history still gets written.
	ctx = context.WithoutCancel(ctx)

	err := a.store.CreateRun(ctx, run)
	if err == nil {
		if runErr != nil {
			err = a.store.FailRun(ctx, run.ID, string(engine.KindOf(runErr)), runErr.Error(), time.Since(started))
		} else {
			err = a.store.CompleteRun(ctx, run.ID, res.Settings, res.Duration)
		}
	}
	logger := a.log.WithRunID(run.ID)
	if err != nil {
		logger.WithError(err).Warn("Failed to record run history")
		return
	}
	logger.Debug("Run recorded")
}
