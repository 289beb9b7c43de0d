// Package enforce implements the orchestration gate consulted before
// any orchestrated operation runs.
//
// The gate inspects the invocation environment (identity, store
// presence, commander's-intent markers) and returns a verdict: allow,
// warn, or block. It never mutates state; acting on the verdict is the
// caller's job. At strict level a non-clean verdict converts to a
// BlockedError; at standard the CLI shows guidance and asks for
// confirmation; at advisory it proceeds and logs.
package enforce

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/taskmesh/taskmesh/internal/config"
)

// Decision is the gate's answer for one operation.
type Decision string

const (
	Allow Decision = "allow"
	Warn  Decision = "warn"
	Block Decision = "block"
)

// Category names a violated precondition.
type Category string

const (
	AgentIDMissing     Category = "agent_id_missing"
	StoreUninitialized Category = "store_uninitialized"
	NoIntentContext    Category = "no_intent_context"
	ExecutableNotFound Category = "executable_not_found"
	GraphInconsistent  Category = "graph_inconsistent"
)

// Violation pairs a category with actionable guidance.
type Violation struct {
	Category Category `json:"category"`
	Fix      string   `json:"fix"`
	Example  string   `json:"example"`
}

// Verdict is the gate's full answer: the decision plus the violations
// that informed it, machine-readable for the CLI to render.
type Verdict struct {
	Decision   Decision    `json:"decision"`
	Level      string      `json:"level"`
	Violations []Violation `json:"violations,omitempty"`
}

// Clean reports whether no preconditions were violated.
func (v Verdict) Clean() bool { return len(v.Violations) == 0 }

// BlockedError is returned when a strict-level gate refuses an
// operation. It carries the violations for structured rendering.
type BlockedError struct {
	Op         string
	Violations []Violation
}

func (e *BlockedError) Error() string {
	cats := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		cats[i] = string(v.Category)
	}
	return fmt.Sprintf("orchestration gate blocked %s: %s", e.Op, strings.Join(cats, ", "))
}

// guidance maps each category to its fix and a copy-pasteable example.
var guidance = map[Category]Violation{
	AgentIDMissing: {
		Category: AgentIDMissing,
		Fix:      "set TM_AGENT_ID or pass --agent so actions are attributable",
		Example:  "export TM_AGENT_ID=backend-agent",
	},
	StoreUninitialized: {
		Category: StoreUninitialized,
		Fix:      "initialize the task store in the project root",
		Example:  "tm init",
	},
	NoIntentContext: {
		Category: NoIntentContext,
		Fix:      "state intent in the description with WHY:, WHAT:, and DONE: markers",
		Example:  `tm add "fix login" -d "WHY: users locked out. WHAT: reset rate limiter. DONE: login succeeds."`,
	},
	ExecutableNotFound: {
		Category: ExecutableNotFound,
		Fix:      "install the tm binary somewhere on PATH",
		Example:  "go install github.com/taskmesh/taskmesh/cmd/tm@latest",
	},
	GraphInconsistent: {
		Category: GraphInconsistent,
		Fix:      "repair the dependency graph; deps validate lists each issue",
		Example:  "tm deps validate",
	},
}

// ViolationFor returns the guidance triple for a category.
func ViolationFor(c Category) Violation { return guidance[c] }

// intentOps are the operations whose descriptions must carry
// commander's-intent markers at standard level and above.
var intentOps = map[string]bool{
	"add":    true,
	"update": true,
}

var intentMarkers = []string{"WHY:", "WHAT:", "DONE:"}

// HasIntent reports whether a description carries at least one
// commander's-intent marker.
func HasIntent(description string) bool {
	for _, m := range intentMarkers {
		if strings.Contains(description, m) {
			return true
		}
	}
	return false
}

// Env captures the resolved invocation environment the gate judges.
type Env struct {
	// AgentID is the explicitly provided identity: the --agent flag or
	// TM_AGENT_ID. Empty means the caller fell back to "default".
	AgentID string
	// StateDir and DBPath are the resolved store locations.
	StateDir string
	DBPath   string
	// Level is the configured enforcement level.
	Level string
	// Forced activates the gate regardless of auto-detection.
	Forced bool
	// AutoDetect permits environment-based activation.
	AutoDetect bool
}

// EnvFromConfig builds the gate environment from the loaded
// configuration. agentFlag is the raw --agent value, dbFlag the raw
// --db value.
func EnvFromConfig(agentFlag, dbFlag string) Env {
	explicit := agentFlag
	if explicit == "" {
		explicit = config.GetString("agent-id")
	}
	dbPath := config.DBPath(dbFlag)
	return Env{
		AgentID:    explicit,
		StateDir:   config.StateDirFor(dbPath),
		DBPath:     dbPath,
		Level:      config.EnforcementLevel(),
		Forced:     config.GetBool("enforcement.enforced"),
		AutoDetect: config.GetBool("enforcement.auto_detect"),
	}
}

// Active reports whether the gate applies to this invocation: forced by
// configuration, or auto-detected from an explicit identity, an
// existing state directory, or a .claude directory in the project tree.
func (e Env) Active() bool {
	if e.Forced {
		return true
	}
	if !e.AutoDetect {
		return false
	}
	if e.AgentID != "" {
		return true
	}
	if dirExists(e.StateDir) {
		return true
	}
	return claudeDirPresent(e.StateDir)
}

// Check evaluates the gate for one operation. intent is the description
// text inspected for commander's-intent markers; pass "" for operations
// that carry none.
func Check(e Env, op, intent string) Verdict {
	verdict := Verdict{Decision: Allow, Level: e.Level}
	if !e.Active() {
		return verdict
	}

	if e.AgentID == "" {
		verdict.Violations = append(verdict.Violations, guidance[AgentIDMissing])
	}
	if !fileExists(e.DBPath) {
		verdict.Violations = append(verdict.Violations, guidance[StoreUninitialized])
	}
	if intentOps[op] && e.Level != config.EnforcementAdvisory && !HasIntent(intent) {
		verdict.Violations = append(verdict.Violations, guidance[NoIntentContext])
	}

	if len(verdict.Violations) == 0 {
		return verdict
	}
	if e.Level == config.EnforcementStrict {
		verdict.Decision = Block
	} else {
		verdict.Decision = Warn
	}
	return verdict
}

// ValidateInstall runs every precondition check, including the
// executable probe, for validate-orchestration. The result lists all
// violations found; an empty list means the environment is ready.
func ValidateInstall(e Env) []Violation {
	var violations []Violation
	if e.AgentID == "" {
		violations = append(violations, guidance[AgentIDMissing])
	}
	if !fileExists(e.DBPath) {
		violations = append(violations, guidance[StoreUninitialized])
	}
	if _, err := exec.LookPath("tm"); err != nil {
		violations = append(violations, guidance[ExecutableNotFound])
	}
	return violations
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// claudeDirPresent reports whether a .claude directory sits beside the
// state directory or in the working directory, the footprint of an
// agent-managed project. A .claude in the user's home does not count.
func claudeDirPresent(stateDir string) bool {
	if dirExists(filepath.Join(filepath.Dir(stateDir), ".claude")) {
		return true
	}
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	return dirExists(filepath.Join(cwd, ".claude"))
}
