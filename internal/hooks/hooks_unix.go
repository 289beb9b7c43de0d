//go:build unix

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/taskmesh/taskmesh/internal/types"
)

// runHook executes the hook and enforces the timeout. The script runs
// in its own process group so that on expiration the whole group is
// killed; killing only the immediate process would leave backgrounded
// descendants alive and still holding the caller.
func (r *Runner) runHook(hookPath, event string, task *types.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return err
	}

	// #nosec G204 -- hookPath resolves inside the state directory's hooks/
	cmd := exec.CommandContext(ctx, hookPath, task.ID, event)
	cmd.Stdin = bytes.NewReader(taskJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				return fmt.Errorf("kill process group: %w", err)
			}
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
