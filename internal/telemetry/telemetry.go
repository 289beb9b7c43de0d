// Package telemetry records feature usage as per-day JSON files under
// the state directory.
//
// Everything stays on the local filesystem: no network, no agent
// identity. Each day's events live in telemetry/<YYYY-MM-DD>.json as a
// JSON array. Writes are best effort; a telemetry failure never fails
// the operation that triggered it. Day files are capped at 1 MiB and
// files older than thirty days are pruned opportunistically on write.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/debug"
)

const (
	maxDayFileSize = 1 << 20
	retentionDays  = 30
	dayLayout      = "2006-01-02"
)

// Event is one recorded action. Session is a per-invocation random id,
// not an agent identity.
type Event struct {
	TS           time.Time       `json:"ts"`
	Session      string          `json:"session"`
	Feature      string          `json:"feature"`
	Action       string          `json:"action"`
	ContextFlags map[string]bool `json:"context_flags,omitempty"`
}

// Recorder appends events for one process invocation. The zero of
// *Recorder (nil) drops everything, so call sites never branch on the
// telemetry toggle.
type Recorder struct {
	dir     string
	session string
	now     func() time.Time
}

// New returns a Recorder writing under <stateDir>/telemetry, or nil
// when the telemetry feature is disabled.
func New(stateDir, session string) *Recorder {
	if !config.FeatureEnabled(config.FeatureTelemetry) {
		return nil
	}
	return &Recorder{
		dir:     filepath.Join(stateDir, config.TelemetryDirName),
		session: session,
		now:     time.Now,
	}
}

// Record appends one event to today's file. Failures are logged through
// debug and swallowed.
func (r *Recorder) Record(feature, action string, flags map[string]bool) {
	if r == nil {
		return
	}
	if err := r.record(feature, action, flags); err != nil {
		debug.Logf("telemetry record failed: %v", err)
	}
}

func (r *Recorder) record(feature, action string, flags map[string]bool) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return err
	}

	now := r.now().UTC()
	path := filepath.Join(r.dir, now.Format(dayLayout)+".json")

	if info, err := os.Stat(path); err == nil && info.Size() >= maxDayFileSize {
		// Day file is full; drop the event rather than grow unbounded.
		r.prune(now)
		return nil
	}

	events := r.readDay(path)
	events = append(events, Event{
		TS:           now,
		Session:      r.session,
		Feature:      feature,
		Action:       action,
		ContextFlags: flags,
	})

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}

	r.prune(now)
	return nil
}

// readDay loads the existing day file. A missing or corrupt file reads
// as empty; the next write replaces it wholesale.
func (r *Recorder) readDay(path string) []Event {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		debug.Logf("telemetry: resetting unreadable day file %s: %v", filepath.Base(path), err)
		return nil
	}
	return events
}

// prune removes day files older than the retention window. The date
// comes from the filename, so no clock faking is needed to test it.
func (r *Recorder) prune(now time.Time) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		day, err := time.Parse(dayLayout, name[:len(name)-len(".json")])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
				debug.Logf("telemetry prune failed for %s: %v", name, err)
			}
		}
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "telemetry-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
