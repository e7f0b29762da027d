package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/progset/pkg/settings"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate&_time_format=sqlite"
	if s.cfg.Path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	query := `
		INSERT INTO runs (
			id, script_path, vehicle, component, entry_point, status,
			error_kind, error, entries, duration_ms,
			started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ScriptPath,
		run.Vehicle,
		run.Component,
		run.EntryPoint,
		run.Status,
		run.ErrorKind,
		run.Error,
		run.Entries,
		run.Duration,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// CompleteRun marks a run succeeded and stores its settings snapshot in
// one transaction.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, table settings.Table, duration time.Duration) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	entries := table.Count()
	now := time.Now().UTC()

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := finishRun(ctx, tx, id, RunStatusSucceeded, nil, nil, entries, duration, now); err != nil {
		return err
	}
	if err := insertSnapshot(ctx, tx, id, data, entries, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// FailRun marks a run failed with the error kind and message.
func (s *SQLiteStore) FailRun(ctx context.Context, id string, kind, message string, duration time.Duration) error {
	var kindPtr *string
	if kind != "" {
		kindPtr = &kind
	}
	return finishRun(ctx, s.db, id, RunStatusFailed, kindPtr, &message, 0, duration, time.Now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func finishRun(ctx context.Context, db execer, id string, status RunStatus, kind, msg *string, entries int, duration time.Duration, now time.Time) error {
	query := `
		UPDATE runs
		SET status = ?, error_kind = ?, error = ?, entries = ?, duration_ms = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'running'
	`

	result, err := db.ExecContext(ctx, query,
		status, kind, msg, entries, duration.Milliseconds(), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: running run %s", ErrNotFound, id)
	}

	return nil
}

func insertSnapshot(ctx context.Context, db execer, runID string, data []byte, entries int, now time.Time) error {
	query := `
		INSERT INTO snapshots (run_id, settings, entries, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			settings = excluded.settings,
			entries = excluded.entries,
			created_at = excluded.created_at
	`

	if _, err := db.ExecContext(ctx, query, runID, string(data), entries, now); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

const runColumns = `
	id, script_path, vehicle, component, entry_point, status,
	error_kind, error, entries, duration_ms,
	started_at, completed_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.ScriptPath,
		&run.Vehicle,
		&run.Component,
		&run.EntryPoint,
		&run.Status,
		&run.ErrorKind,
		&run.Error,
		&run.Entries,
		&run.Duration,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	return run, err
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Vehicle != "" {
		where = append(where, "vehicle = ?")
		args = append(args, filter.Vehicle)
	}
	if filter.Component != "" {
		where = append(where, "component = ?")
		args = append(args, filter.Component)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and its snapshot
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}

	return nil
}

// SaveSnapshot stores table as the snapshot of runID, replacing any
// previous snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, table settings.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return insertSnapshot(ctx, s.db, runID, data, table.Count(), time.Now().UTC())
}

// GetSnapshot retrieves the snapshot of a run
func (s *SQLiteStore) GetSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	query := `
		SELECT run_id, settings, entries, created_at
		FROM snapshots
		WHERE run_id = ?
	`

	var (
		snap Snapshot
		data string
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&snap.RunID,
		&data,
		&snap.Entries,
		&snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot for run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &snap.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for run %s: %w", runID, err)
	}

	return &snap, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
