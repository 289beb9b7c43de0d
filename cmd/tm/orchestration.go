package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/enforce"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var validateOrchestrationCmd = &cobra.Command{
	Use:     "validate-orchestration",
	GroupID: "setup",
	Short:   "Check the orchestration environment",
	Long: `Run every orchestration precondition check: agent identity, store
presence, the tm executable on PATH, and (when the store exists) a
full dependency-graph audit. Prints the violations with remediation
guidance; exits 1 if any are found.

fix-orchestration repairs what it can.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		env := enforce.EnvFromConfig(agentFlag, dbFlag)
		violations := enforce.ValidateInstall(env)

		// The graph audit needs an open store; skip it when the presence
		// check already failed.
		var graph *types.GraphReport
		if !hasCategory(violations, enforce.StoreUninitialized) {
			s, err := sqlite.Open(ctx, env.DBPath)
			if err != nil {
				fail(err)
			}
			graph, err = s.ValidateGraph(ctx)
			_ = s.Close()
			if err != nil {
				fail(err)
			}
			if !graph.Clean() {
				violations = append(violations, enforce.ViolationFor(enforce.GraphInconsistent))
			}
		}

		verdict := enforce.Verdict{
			Decision:   enforce.Allow,
			Level:      env.Level,
			Violations: violations,
		}
		if len(violations) > 0 {
			verdict.Decision = enforce.Warn
		}

		if jsonOutput {
			outputJSON(struct {
				enforce.Verdict
				Graph *types.GraphReport `json:"graph,omitempty"`
			}{verdict, graph})
		} else {
			fmt.Println(ui.RenderViolationsTable(&verdict, ui.GetWidth()))
			if graph != nil && !graph.Clean() {
				fmt.Println(ui.RenderGraphReport(graph, ui.GetWidth()))
			}
		}
		if len(violations) > 0 {
			os.Exit(1)
		}
	},
}

func hasCategory(violations []enforce.Violation, c enforce.Category) bool {
	for _, v := range violations {
		if v.Category == c {
			return true
		}
	}
	return false
}

var fixOrchestrationCmd = &cobra.Command{
	Use:     "fix-orchestration",
	GroupID: "setup",
	Short:   "Repair the orchestration environment",
	Long: `Fix what validate-orchestration flags: create the state directory and
store when missing, and record a persistent agent identity in
config.yaml when none is set. PATH problems are reported but not
touched.

--interactive confirms each repair before applying it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		interactive, _ := cmd.Flags().GetBool("interactive")

		env := enforce.EnvFromConfig(agentFlag, dbFlag)
		violations := enforce.ValidateInstall(env)
		if len(violations) == 0 {
			if jsonOutput {
				outputJSON(map[string]interface{}{"fixed": []string{}, "remaining": []enforce.Violation{}})
				return
			}
			fmt.Println(ui.RenderPass("✓") + " Nothing to fix.")
			return
		}

		var fixed []string
		var remaining []enforce.Violation

		for _, violation := range violations {
			switch violation.Category {
			case enforce.StoreUninitialized:
				if interactive && !confirmFix("Initialize the task store at "+env.DBPath+"?") {
					remaining = append(remaining, violation)
					continue
				}
				if err := initializeStore(ctx, env.DBPath); err != nil {
					fail(err)
				}
				fixed = append(fixed, string(violation.Category))

			case enforce.AgentIDMissing:
				id := promptAgentID(interactive)
				if id == "" {
					remaining = append(remaining, violation)
					continue
				}
				config.Set("agent-id", id)
				if err := config.Save(ctx, env.StateDir); err != nil {
					fail(err)
				}
				fixed = append(fixed, string(violation.Category))

			default:
				// executable_not_found needs a PATH change in the caller's
				// shell; nothing a subprocess can safely write.
				remaining = append(remaining, violation)
			}
		}

		if jsonOutput {
			if remaining == nil {
				remaining = []enforce.Violation{}
			}
			outputJSON(map[string]interface{}{"fixed": fixed, "remaining": remaining})
			return
		}
		for _, f := range fixed {
			fmt.Printf("%s Fixed %s\n", ui.RenderPass("✓"), f)
		}
		for _, r := range remaining {
			fmt.Printf("%s %s: %s\n", ui.RenderWarn("•"), r.Category, r.Fix)
		}
	},
}

// initializeStore creates the state directory, the database, and the
// schema, the same ground init covers.
func initializeStore(ctx context.Context, dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		if os.IsPermission(err) {
			return &types.PermissionDeniedError{Path: dir, Err: err}
		}
		return &types.StorageUnavailableError{Path: dir, Err: err}
	}
	return withLock(func() error {
		s, err := sqlite.New(ctx, dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		migrator := sqlite.NewMigrator(s, filepath.Join(dir, config.BackupsDirName))
		_, err = migrator.Apply(ctx)
		return err
	})
}

func confirmFix(question string) bool {
	answer := true
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Fix").
		Negative("Skip").
		Value(&answer).
		Run()
	return err == nil && answer
}

// promptAgentID asks for an identity to persist. Outside a terminal the
// only identity worth recording is one passed explicitly; persisting the
// "default" fallback would satisfy the check without naming anyone.
func promptAgentID(interactive bool) string {
	if !interactive || !ui.IsTerminal() {
		return agentFlag
	}
	var id string
	err := huh.NewInput().
		Title("Agent identity to record in config.yaml").
		Placeholder("e.g. backend-agent").
		Value(&id).
		Run()
	if err != nil {
		return ""
	}
	return id
}

func init() {
	fixOrchestrationCmd.Flags().Bool("interactive", false, "Confirm each repair before applying it")
	rootCmd.AddCommand(validateOrchestrationCmd)
	rootCmd.AddCommand(fixOrchestrationCmd)
}
