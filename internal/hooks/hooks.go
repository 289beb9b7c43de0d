// Package hooks is the event sink behind the CLI: it runs user hook
// scripts on task lifecycle events and projects filesystem mirrors of
// store state for external observers. Everything here is best-effort
// and post-commit; the database stays the source of truth.
package hooks

import (
	"os"
	"path/filepath"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// Event types delivered to hook scripts.
const (
	EventCreate   = "create"
	EventUpdate   = "update"
	EventComplete = "complete"
)

// Hook script names, looked up under <state-dir>/hooks/.
const (
	HookOnCreate   = "on_create"
	HookOnUpdate   = "on_update"
	HookOnComplete = "on_complete"
)

// Runner executes hook scripts. A script receives the task id and event
// name as arguments and the task JSON on stdin.
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner creates a runner over an explicit hooks directory.
func NewRunner(hooksDir string) *Runner {
	return &Runner{
		hooksDir: hooksDir,
		timeout:  10 * time.Second,
	}
}

// NewRunnerFromState creates a runner for the hooks directory under a
// state directory.
func NewRunnerFromState(stateDir string) *Runner {
	return NewRunner(filepath.Join(stateDir, "hooks"))
}

// Run executes the hook for an event if one is installed. It returns
// immediately; the script runs in the background and its outcome is
// discarded. TM_TEST_MODE suppresses execution entirely.
func (r *Runner) Run(event string, task *types.Task) {
	if testMode() {
		return
	}
	hookPath, ok := r.lookup(event)
	if !ok {
		return
	}
	go func() {
		_ = r.runHook(hookPath, event, task)
	}()
}

// RunSync executes the hook for an event and waits for it, returning
// the script's error. Missing or non-executable hooks are not errors.
func (r *Runner) RunSync(event string, task *types.Task) error {
	if testMode() {
		return nil
	}
	hookPath, ok := r.lookup(event)
	if !ok {
		return nil
	}
	return r.runHook(hookPath, event, task)
}

// HookExists reports whether an executable hook is installed for event.
func (r *Runner) HookExists(event string) bool {
	_, ok := r.lookup(event)
	return ok
}

// lookup resolves the script path for an event and checks that it is a
// plain executable file.
func (r *Runner) lookup(event string) (string, bool) {
	hookName := eventToHook(event)
	if hookName == "" {
		return "", false
	}
	hookPath := filepath.Join(r.hooksDir, hookName)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	if info.Mode()&0111 == 0 {
		return "", false
	}
	return hookPath, true
}

func eventToHook(event string) string {
	switch event {
	case EventCreate:
		return HookOnCreate
	case EventUpdate:
		return HookOnUpdate
	case EventComplete:
		return HookOnComplete
	default:
		return ""
	}
}

func testMode() bool {
	return os.Getenv("TM_TEST_MODE") != ""
}
