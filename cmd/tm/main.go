// Command tm is the taskmesh CLI: a shared task board that lets several
// agents working on one codebase coordinate through a common SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/telemetry"
	"github.com/taskmesh/taskmesh/internal/ui"
)

// Runtime state shared by the command files. PersistentPreRun sets these
// once per invocation; commands treat them as read-only.
var (
	rootCtx    context.Context
	rootCancel context.CancelFunc

	store    storage.Storage
	actor    string
	dbPath   string
	stateDir string

	jsonOutput bool
	quietFlag  bool
	dbFlag     string
	agentFlag  string

	hookRunner *hooks.Runner
	projector  *hooks.Projector
	recorder   *telemetry.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "Shared task board for coordinating multiple agents",
	Long: `tm tracks tasks, dependencies, and shared context in a per-project
SQLite store so several agents (human or AI) can work one codebase
without stepping on each other.

State lives in the nearest .taskmesh/ directory, found by walking up
from the working directory. Start with:

  tm init
  tm add "Fix login bug" -p high
  tm list`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// storeless commands run before a store exists or against a broken one;
// they open (or create, or repair) the database themselves.
var storeless = map[string]bool{
	"init":                   true,
	"version":                true,
	"config":                 true,
	"migrate":                true,
	"validate-orchestration": true,
	"fix-orchestration":      true,
	"template":               true,
	"help":                   true,
	"completion":             true,
}

// needsStore reports whether PersistentPreRun should open the store for
// this command. Subcommands inherit their top-level command's answer.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil && c != rootCmd; c = c.Parent() {
		if storeless[c.Name()] {
			return false
		}
	}
	return cmd != rootCmd
}

func init() {
	// Assigned here rather than in the composite literal: the closure refers
	// to needsStore, which refers back to rootCmd, and that loop trips the
	// compiler's initialization-cycle check on the package-level var.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		debug.SetEnabled(os.Getenv("TM_DEBUG") != "")
		if !ui.ShouldUseColor() {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if err := config.Initialize(); err != nil {
			FatalError("loading config: %v", err)
		}

		dbPath = config.DBPath(dbFlag)
		stateDir = config.StateDirFor(dbPath)
		debug.AttachStateDir(stateDir)
		actor = config.ResolveAgent(agentFlag)

		hookRunner = hooks.NewRunnerFromState(stateDir)
		projector = hooks.NewProjector(stateDir)

		if !needsStore(cmd) {
			return
		}

		s, err := sqlite.Open(rootCtx, dbPath)
		if err != nil {
			fail(err)
		}
		store = s
		recorder = telemetry.New(stateDir, s.Session())
		trackVersion(rootCtx, s)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database file path (default: nearest .taskmesh/tasks.db)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "Acting agent identity (default: TM_AGENT_ID)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task lifecycle:"},
		&cobra.Group{ID: "collab", Title: "Collaboration:"},
		&cobra.Group{ID: "loop", Title: "Core loop:"},
		&cobra.Group{ID: "setup", Title: "Setup & maintenance:"},
	)
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	err := rootCmd.Execute()

	if store != nil {
		_ = store.Close()
	}

	if err != nil {
		// Commands exit through fail() themselves, so anything surfacing
		// here is cobra rejecting the invocation: unknown command, bad
		// flag, wrong argument count. That is input validation.
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
