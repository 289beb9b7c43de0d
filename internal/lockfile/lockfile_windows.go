//go:build windows

package lockfile

import "os"

// processAlive reports whether pid is a live process. Windows has no
// signal-0 probe; FindProcess succeeding is the best signal available.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
