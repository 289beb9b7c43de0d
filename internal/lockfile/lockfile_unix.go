//go:build unix

package lockfile

import "golang.org/x/sys/unix"

// processAlive reports whether pid is a live process via a signal-0 probe.
// EPERM means the process exists but belongs to another user.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
