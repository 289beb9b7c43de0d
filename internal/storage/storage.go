// Package storage defines the interface for task storage backends.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// ErrNotInitialized is returned when a storage feature is used before the
// store has been opened or the schema created.
var ErrNotInitialized = errors.New("store not initialized")

// ErrMigrationsPending is returned when the store schema is behind the
// binary's registered migrations; commands refuse to run until migrate
// applies them, so queries never hit missing columns.
var ErrMigrationsPending = errors.New("schema migrations pending")

// Transaction exposes the subset of Storage operations that run inside a
// single database transaction, for workflows where several writes must
// land together (template apply, task creation with edges).
//
// All operations share one connection; changes are invisible to other
// connections until commit. If the callback returns an error or panics,
// the transaction rolls back; on nil return it commits. SQLite uses
// BEGIN IMMEDIATE so the write lock is taken up front, which serializes
// concurrent writers instead of deadlocking them mid-transaction.
type Transaction interface {
	// Task operations
	CreateTask(ctx context.Context, task *types.Task, actor string) error
	GetTask(ctx context.Context, id string) (*types.Task, error) // read-your-writes
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) error

	// Dependency operations
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error

	// Notification emission (atomic with the surrounding writes)
	Emit(ctx context.Context, n *types.Notification) error

	// Config / metadata
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)
}

// Storage defines the interface for task storage backends.
//
// Compound operations (CreateTask with dependencies, CompleteTask with its
// cascade, cascading DeleteTask) are atomic: they run in one transaction
// internally. Callers additionally hold the cross-process advisory lock
// around them so concurrent invocations serialize.
type Storage interface {
	// Tasks
	CreateTask(ctx context.Context, task *types.Task, deps []string, actor string) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	GetTaskDetail(ctx context.Context, id string) (*types.TaskDetail, error)
	ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error)

	// UpdateTask applies field updates. Recognized keys: "status" (string),
	// "priority" (string), "assignee" (string), "reopen" (bool, permits the
	// completed -> in_progress transition). Status changes are validated
	// against the transition table; manual moves to completed are rejected.
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) (*types.Task, error)

	CompleteTask(ctx context.Context, id string, actor string, opts types.CompleteOptions) (*types.CompletionResult, error)
	AssignTask(ctx context.Context, id, assignee, actor string) error

	// DeleteTask removes a task and everything referencing it. With cascade
	// it removes dependents transitively and returns every deleted id;
	// without, a task that has dependents fails with DependentsExist.
	DeleteTask(ctx context.Context, id string, cascade bool, actor string) ([]string, error)

	// ExportTasks returns the flattened view used by the export renderers.
	ExportTasks(ctx context.Context, filter types.TaskFilter) ([]*types.TaskExport, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error
	GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error)
	GetDependents(ctx context.Context, taskID string) ([]*types.Task, error)
	ValidateGraph(ctx context.Context) (*types.GraphReport, error)
	CriticalPath(ctx context.Context) (*types.CriticalPath, error)

	// Collaboration
	JoinTask(ctx context.Context, taskID, agentID, role string) error
	AddContext(ctx context.Context, entry *types.ContextEntry) (*types.ContextEntry, error)
	AddNote(ctx context.Context, note *types.PrivateNote) (*types.PrivateNote, error)
	GetContext(ctx context.Context, taskID, agentID string) (*types.TaskContext, error)

	// SyncPoint appends a sync entry to shared context and broadcasts a
	// sync_point notification in the same transaction.
	SyncPoint(ctx context.Context, taskID, agentID, checkpoint string) (*types.ContextEntry, error)

	// Discover appends a discovery entry and broadcasts a discovery
	// notification; impact is recorded with the entry, tags merge into the
	// task's tag set.
	Discover(ctx context.Context, taskID, agentID, message, impact string, tags []string) (*types.ContextEntry, error)

	// Notifications
	Emit(ctx context.Context, n *types.Notification) error
	Watch(ctx context.Context, agentID string, limit int) ([]*types.Notification, error)
	UnreadCount(ctx context.Context, agentID string) (int, error)

	// Core loop
	AddProgress(ctx context.Context, entry *types.ProgressEntry) (*types.ProgressEntry, error)
	GetProgress(ctx context.Context, taskID string) ([]*types.ProgressEntry, error)
	SetFeedback(ctx context.Context, fb *types.Feedback, actor string) error
	GetFeedback(ctx context.Context, taskID string) (*types.Feedback, error)
	Metrics(ctx context.Context, window string, since time.Time) (*types.Metrics, error)

	// Audit trail
	Events(ctx context.Context, taskID string, limit int) ([]*types.Event, error)

	// Statistics
	Statistics(ctx context.Context) (*types.Statistics, error)

	// Config
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	GetAllConfig(ctx context.Context) (map[string]string, error)
	DeleteConfig(ctx context.Context, key string) error

	// Metadata (internal state: schema fingerprints, binary version)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// RunInTransaction executes fn within a database transaction: commit on
	// nil, rollback on error or panic (the panic is re-raised).
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error

	// Path returns the database file path.
	Path() string

	// Session returns the per-invocation session id stamped on audit events.
	Session() string

	// UnderlyingDB exposes the raw connection pool for extensions that keep
	// their own tables in the same file. Bypasses the storage layer.
	UnderlyingDB() *sql.DB
}
