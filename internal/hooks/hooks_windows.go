//go:build windows

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/taskmesh/taskmesh/internal/types"
)

// runHook executes the hook and enforces the timeout. Windows lacks
// Unix process groups; on expiration only the started process is
// killed, so detached descendants may survive.
func (r *Runner) runHook(hookPath, event string, task *types.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, hookPath, task.ID, event)
	cmd.Stdin = bytes.NewReader(taskJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

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
			_ = cmd.Process.Kill()
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
