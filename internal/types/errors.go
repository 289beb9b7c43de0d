package types

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy below is closed: every failure the core surfaces to
// callers is one of these types. The CLI maps them onto exit codes.

// ValidationError reports malformed or out-of-bounds input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Kind string // "task", "notification", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidTransitionError reports a disallowed status change.
type InvalidTransitionError struct {
	From Status
	To   Status
	Hint string
}

func (e *InvalidTransitionError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("cannot transition from %s to %s: %s", e.From, e.To, e.Hint)
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// UnknownDependencyError reports a dependency id that does not exist.
type UnknownDependencyError struct {
	ID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unknown dependency: task %s does not exist", e.ID)
}

// CycleError reports that an edge would create (or data contains) a cycle.
// Path holds the offending vertices in traversal order.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// DependentsExistError reports a delete blocked by dependent tasks.
type DependentsExistError struct {
	ID  string
	IDs []string
}

func (e *DependentsExistError) Error() string {
	return fmt.Sprintf("task %s has dependents %v (delete them first or use cascade)", e.ID, e.IDs)
}

// CriteriaUnmetError reports that success criteria blocked completion.
type CriteriaUnmetError struct {
	TaskID string
	Report *ValidationReport
}

func (e *CriteriaUnmetError) Error() string {
	unmet := 0
	for _, r := range e.Report.Results {
		if r.Status != CriterionPass {
			unmet++
		}
	}
	return fmt.Sprintf("task %s has %d unmet success criteria", e.TaskID, unmet)
}

// LockTimeoutError reports that the advisory lock could not be acquired
// within the bounded wait. HeldBy is the holder's pid when obtainable,
// zero otherwise.
type LockTimeoutError struct {
	Path   string
	HeldBy int
}

func (e *LockTimeoutError) Error() string {
	if e.HeldBy > 0 {
		return fmt.Sprintf("timed out waiting for lock %s (held by pid %d)", e.Path, e.HeldBy)
	}
	return fmt.Sprintf("timed out waiting for lock %s", e.Path)
}

// ErrBusy reports persistent database contention after the retry budget.
var ErrBusy = errors.New("store is busy")

// CorruptStoreError reports a failed integrity check at open. Recovery is
// never automatic; callers surface it and point at migrate rollback.
type CorruptStoreError struct {
	Path   string
	Detail string
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("store %s failed integrity check: %s", e.Path, e.Detail)
}

// StorageUnavailableError reports that the store cannot be opened at all:
// missing state directory, unwritable path, or absent schema.
type StorageUnavailableError struct {
	Path string
	Err  error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable at %s: %v", e.Path, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// PermissionDeniedError reports filesystem permission failures.
type PermissionDeniedError struct {
	Path string
	Err  error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Path)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// MigrationError reports a failed migration apply. The database has been
// rolled back; the pre-apply backup remains on disk.
type MigrationError struct {
	Version int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %03d failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// ErrIDExhausted reports that id generation kept colliding past its retry
// budget. Practically unreachable with 4 random bytes.
var ErrIDExhausted = errors.New("could not generate a unique task id")

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
