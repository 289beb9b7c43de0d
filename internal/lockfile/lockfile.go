// Package lockfile serializes compound store operations across processes.
//
// A single advisory flock on a sentinel file under the state directory
// guards any write that must see a consistent multi-row view: task
// creation with dependencies, complete with its cascade, cascading
// deletes, migrations, and config-file writes. Single-row reads and
// writes rely on the database's own transaction semantics.
package lockfile

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/types"
)

// DefaultTimeout is the bounded wait for lock acquisition; TM_LOCK_TIMEOUT
// (seconds) overrides it.
const DefaultTimeout = 5 * time.Second

// retryInterval is how often acquisition is retried while waiting.
const retryInterval = 50 * time.Millisecond

// Lock is a held advisory lock. Release it with Unlock.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Timeout resolves the advisory-lock wait from the environment.
func Timeout() time.Duration {
	raw := strings.TrimSpace(os.Getenv("TM_LOCK_TIMEOUT"))
	if raw == "" {
		return DefaultTimeout
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		debug.Logf("ignoring invalid TM_LOCK_TIMEOUT=%q", raw)
		return DefaultTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// Acquire takes the advisory lock at path, waiting up to timeout. On
// timeout it returns a LockTimeoutError carrying the holder's pid when
// the holder recorded one and is still alive.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, retryInterval)
	if err != nil && lockCtx.Err() == nil {
		// A real I/O failure, not a timeout.
		if os.IsPermission(err) {
			return nil, &types.PermissionDeniedError{Path: path, Err: err}
		}
		return nil, &types.StorageUnavailableError{Path: path, Err: err}
	}
	if !locked {
		return nil, &types.LockTimeoutError{Path: path, HeldBy: holderPID(path)}
	}

	l := &Lock{fl: fl, path: path}
	l.recordHolder()
	return l, nil
}

// Unlock releases the lock and clears the holder record.
func (l *Lock) Unlock() error {
	// Truncate before releasing so a waiter never reads our pid as a
	// live holder after we let go.
	_ = os.Truncate(l.path, 0)
	return l.fl.Unlock()
}

// Path returns the sentinel file path.
func (l *Lock) Path() string { return l.path }

// recordHolder writes our pid into the sentinel for diagnostics. Best
// effort: lock correctness never depends on it.
func (l *Lock) recordHolder() {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(l.path, []byte(pid+"\n"), 0o644); err != nil {
		debug.Logf("could not record lock holder pid: %v", err)
	}
}

// holderPID reads the pid recorded in the sentinel and checks the process
// is still alive. Returns zero when unknown or stale.
func holderPID(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0
	}
	if !processAlive(pid) {
		return 0
	}
	return pid
}
