package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/types"
)

// Projector renders filesystem mirrors of store state so external
// observers (editors, dashboards, other agents' tooling) can watch
// plain files instead of the database. Mirrors are projections only:
// they are rewritten after commits and may lag or go missing without
// affecting correctness.
//
// A nil Projector is valid and drops everything, same contract as
// telemetry.Recorder.
type Projector struct {
	stateDir string
}

// NewProjector returns a projector rooted at stateDir, or nil when
// minimal mode disables mirror output.
func NewProjector(stateDir string) *Projector {
	if config.MinimalMode() {
		return nil
	}
	return &Projector{stateDir: stateDir}
}

// Notify appends a notification to the recipient's mirror file.
// Broadcasts go to notifications/broadcast.md.
func (p *Projector) Notify(n *types.Notification) {
	if p == nil || n == nil {
		return
	}
	name := "broadcast"
	if !n.Broadcast() {
		name = safeName(n.Recipient)
	}
	dir := filepath.Join(p.stateDir, "notifications")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		debug.Logf("notification mirror: %v", err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- %s [%s]", n.CreatedAt.UTC().Format(time.RFC3339), n.Kind)
	if n.TaskID != "" {
		fmt.Fprintf(&b, " %s", n.TaskID)
	}
	fmt.Fprintf(&b, ": %s\n", n.Message)

	f, err := os.OpenFile(filepath.Join(dir, name+".md"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		debug.Logf("notification mirror: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		debug.Logf("notification mirror: %v", err)
	}
}

// Context rewrites the shared-context mirror for a task from its
// participants and shared log.
func (p *Projector) Context(tc *types.TaskContext) {
	if p == nil || tc == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Context: %s\n", tc.TaskID)

	if len(tc.Participants) > 0 {
		b.WriteString("\nParticipants:\n\n")
		for _, part := range tc.Participants {
			if part.Role != "" {
				fmt.Fprintf(&b, "- %s (%s) joined %s\n", part.AgentID, part.Role, part.JoinedAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintf(&b, "- %s joined %s\n", part.AgentID, part.JoinedAt.UTC().Format(time.RFC3339))
			}
		}
	}

	if len(tc.Shared) > 0 {
		b.WriteString("\n## Shared log\n\n")
		for _, e := range tc.Shared {
			fmt.Fprintf(&b, "- %s %s [%s]: %s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.AgentID, e.Kind, e.Message)
		}
	}

	dir := filepath.Join(p.stateDir, "context")
	p.write(dir, safeName(tc.TaskID)+".md", b.String())
}

// Notes rewrites an agent's private-note mirror for a task.
func (p *Projector) Notes(agentID string, tc *types.TaskContext) {
	if p == nil || tc == nil || agentID == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Notes: %s (%s)\n\n", tc.TaskID, agentID)
	for _, n := range tc.Private {
		fmt.Fprintf(&b, "- %s %s\n", n.CreatedAt.UTC().Format(time.RFC3339), n.Message)
	}

	dir := filepath.Join(p.stateDir, "agents", "notes", safeName(agentID))
	p.write(dir, safeName(tc.TaskID)+".md", b.String())
}

func (p *Projector) write(dir, name, content string) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		debug.Logf("mirror %s: %v", name, err)
		return
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		debug.Logf("mirror %s: %v", name, err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		debug.Logf("mirror %s: %v", name, err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		debug.Logf("mirror %s: %v", name, err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		debug.Logf("mirror %s: %v", name, err)
	}
}

// safeName maps an identifier to a filename, replacing anything that
// could escape the mirror directory.
func safeName(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	trimmed := strings.Trim(mapped, ".")
	if trimmed == "" {
		return "_"
	}
	return trimmed
}
