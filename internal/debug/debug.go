// Package debug provides verbose diagnostic logging gated by TM_DEBUG.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	sink    io.Writer
	enabled = os.Getenv("TM_DEBUG") != ""
)

// Enabled reports whether debug logging is on.
func Enabled() bool { return enabled }

// SetEnabled overrides the TM_DEBUG gate; used by tests and --verbose.
func SetEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

// AttachStateDir routes debug output to <stateDir>/debug.log in addition
// to stderr. The log rotates at 10 MB, keeps 3 backups, and prunes after
// 30 days.
func AttachStateDir(stateDir string) {
	mu.Lock()
	defer mu.Unlock()
	sink = &lumberjack.Logger{
		Filename:   filepath.Join(stateDir, "debug.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}
}

// Logf writes a formatted diagnostic line when debug logging is enabled.
// Output goes to stderr and, when a state dir is attached, the debug log.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprint(os.Stderr, msg)
	if sink != nil {
		_, _ = io.WriteString(sink, msg)
	}
}
