// Package persistence holds the engine's records behind a storage-agnostic
// Store interface, with an in-memory implementation and a SQLite-backed one.
// All lifecycle rules (one-way terminal transitions, cancel semantics) are
// enforced here so every component observes the same state machine.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/memory"
)

// TaskFilter narrows ListTasks results. Zero values mean "no filter".
type TaskFilter struct {
	Status  engine.TaskStatus
	AgentID string
	OwnerID string
	Limit   int
	Offset  int
}

// AgentFilter narrows ListAgents results. Zero values mean "no filter".
type AgentFilter struct {
	Capability string
	Status     engine.AgentStatus
}

// TaskStore persists tasks and their lifecycle state.
type TaskStore interface {
	CreateTask(ctx context.Context, task *engine.Task) error
	GetTask(ctx context.Context, taskID string) (*engine.Task, error)

	// UpdateTaskStatus applies a status transition. Transitions out of a
	// terminal state return engine.ErrInvalidTransition. Result is stored
	// only with TaskCompleted, errMsg only with TaskFailed.
	UpdateTaskStatus(ctx context.Context, taskID string, status engine.TaskStatus, result map[string]any, errMsg string) (*engine.Task, error)

	// ListTasks returns tasks ordered newest-created-first.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*engine.Task, error)

	// CancelTask marks a non-terminal task cancelled. A terminal task
	// returns engine.ErrAlreadyTerminal.
	CancelTask(ctx context.Context, taskID string) (*engine.Task, error)
}

// AgentDirectory persists agent registration records.
type AgentDirectory interface {
	PutAgent(ctx context.Context, agent *engine.Agent) error
	GetAgent(ctx context.Context, agentID string) (*engine.Agent, error)
	ListAgents(ctx context.Context, filter AgentFilter) ([]*engine.Agent, error)
}

// WorkflowStore persists workflow records. SaveWorkflow upserts the full
// record (steps, results, status) and is used by the workflow engine after
// every step.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *engine.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*engine.Workflow, error)
	SaveWorkflow(ctx context.Context, wf *engine.Workflow) error
}

// Store is the full persistence surface consumed by the orchestration
// service. The memory.TurnStore part backs the conversational-memory
// provider.
type Store interface {
	TaskStore
	AgentDirectory
	WorkflowStore
	memory.TurnStore
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	locks *RecordLockManager
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Open SQLite with connection string for WAL mode, busy timeout
	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initSQLiteStore(ctx, db)
}

// NewSQLiteMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewSQLiteMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := "file::memory:?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return initSQLiteStore(ctx, db)
}

func initSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Allow 2 connections: one for primary queries, one for subqueries
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{
		db:    db,
		locks: NewRecordLockManager(),
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
