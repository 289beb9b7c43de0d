// Package taskmesh provides a minimal public API for extending tm with
// custom orchestration.
//
// Most extensions should go through the tm CLI's --json output. This
// package exports only the types and functions needed by Go extensions
// that want to use the storage layer directly: the store must already be
// initialized (tm init), and callers are expected to hold their own
// advisory lock around compound writes.
package taskmesh

import (
	"context"
	"path/filepath"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/types"
)

// Storage is the interface for task storage operations.
type Storage = storage.Storage

// Transaction provides atomic multi-operation support within a database
// transaction. Use Storage.RunInTransaction() to obtain one.
type Transaction = storage.Transaction

// Sentinel errors OpenStorage wraps; test with errors.Is.
var (
	ErrNotInitialized    = storage.ErrNotInitialized
	ErrMigrationsPending = storage.ErrMigrationsPending
)

// OpenStorage opens an existing, migrated task store. It refuses to
// create a database or run migrations; initialize stores with tm init.
func OpenStorage(ctx context.Context, dbPath string) (Storage, error) {
	return sqlite.Open(ctx, dbPath)
}

// FindStateDir walks up from the working directory looking for a
// .taskmesh directory. The boolean reports whether one was found; when
// false the returned path is the would-be location under the working
// directory.
func FindStateDir() (string, bool) {
	return config.FindStateDir()
}

// DBPathIn returns the task database path inside a state directory.
func DBPathIn(stateDir string) string {
	return filepath.Join(stateDir, config.DBFileName)
}

// Core types from internal/types
type (
	Task             = types.Task
	Status           = types.Status
	Priority         = types.Priority
	Dependency       = types.Dependency
	TaskFilter       = types.TaskFilter
	TaskDetail       = types.TaskDetail
	TaskExport       = types.TaskExport
	FileRef          = types.FileRef
	SuccessCriterion = types.SuccessCriterion
	ContextEntry     = types.ContextEntry
	ContextKind      = types.ContextKind
	PrivateNote      = types.PrivateNote
	Participant      = types.Participant
	TaskContext      = types.TaskContext
	Notification     = types.Notification
	NotificationKind = types.NotificationKind
	ProgressEntry    = types.ProgressEntry
	Feedback         = types.Feedback
	CompleteOptions  = types.CompleteOptions
	CompletionResult = types.CompletionResult
	ValidationReport = types.ValidationReport
	Metrics          = types.Metrics
	Event            = types.Event
	EventType        = types.EventType
	GraphReport      = types.GraphReport
	CriticalPath     = types.CriticalPath
	Statistics       = types.Statistics
)

// Status constants
const (
	StatusPending    = types.StatusPending
	StatusInProgress = types.StatusInProgress
	StatusCompleted  = types.StatusCompleted
	StatusBlocked    = types.StatusBlocked
	StatusCancelled  = types.StatusCancelled
)

// Priority constants
const (
	PriorityLow      = types.PriorityLow
	PriorityMedium   = types.PriorityMedium
	PriorityHigh     = types.PriorityHigh
	PriorityCritical = types.PriorityCritical
)

// Context kinds
const (
	ContextUpdate    = types.ContextUpdate
	ContextDiscovery = types.ContextDiscovery
	ContextDecision  = types.ContextDecision
	ContextSync      = types.ContextSync
)

// Notification kinds
const (
	NotifyTaskUnblocked = types.NotifyTaskUnblocked
	NotifyCompletion    = types.NotifyCompletion
	NotifyImpactReview  = types.NotifyImpactReview
	NotifySyncPoint     = types.NotifySyncPoint
	NotifyDiscovery     = types.NotifyDiscovery
	NotifyAssignment    = types.NotifyAssignment
	NotifyTruncated     = types.NotifyTruncated
)

// Event types
const (
	EventCreated           = types.EventCreated
	EventUpdated           = types.EventUpdated
	EventStatusChanged     = types.EventStatusChanged
	EventCompleted         = types.EventCompleted
	EventAssigned          = types.EventAssigned
	EventDeleted           = types.EventDeleted
	EventReopened          = types.EventReopened
	EventDependencyAdded   = types.EventDependencyAdded
	EventDependencyRemoved = types.EventDependencyRemoved
)
