package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openfroyo/progset/pkg/settings"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the status of a settings run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded evaluation of a settings script.
type Run struct {
	ID          string     `json:"id"`
	ScriptPath  string     `json:"script_path"`
	Vehicle     string     `json:"vehicle"`
	Component   string     `json:"component"`
	EntryPoint  string     `json:"entry_point"`
	Status      RunStatus  `json:"status"`
	ErrorKind   *string    `json:"error_kind,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Entries     int        `json:"entries"`
	Duration    int64      `json:"duration_ms"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Snapshot is the settings tree produced by a successful run.
type Snapshot struct {
	RunID     string         `json:"run_id"`
	Settings  settings.Table `json:"settings"`
	Entries   int            `json:"entries"`
	CreatedAt time.Time      `json:"created_at"`
}

// RunFilter narrows ListRuns. Empty fields match everything.
type RunFilter struct {
	Vehicle   string
	Component string
	Status    RunStatus
	Limit     int
	Offset    int
}

// Store defines the interface for the run history
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, table settings.Table, duration time.Duration) error
	FailRun(ctx context.Context, id string, kind, message string, duration time.Duration) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, runID string, table settings.Table) error
	GetSnapshot(ctx context.Context, runID string) (*Snapshot, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
