package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var depsCmd = &cobra.Command{
	Use:     "deps",
	GroupID: "tasks",
	Short:   "Manage and audit task dependencies",
	Long: `Add or remove dependency edges, render a task's dependency tree,
audit the whole graph, and compute the critical path.

Edges always point from a task to what it depends on. A task with any
incomplete dependency is blocked; completing the last dependency
unblocks it automatically.`,
}

var depsAddCmd = &cobra.Command{
	Use:   "add <id> <depends-on-id>",
	Short: "Add a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		if err := gate("deps", ""); err != nil {
			fail(err)
		}

		taskID, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		dependsOnID, err := resolveTaskID(ctx, args[1])
		if err != nil {
			fail(err)
		}

		dep := &types.Dependency{TaskID: taskID, DependsOnID: dependsOnID}
		err = withLock(func() error {
			return store.AddDependency(ctx, dep, actor)
		})
		if err != nil {
			fail(err)
		}

		task, err := store.GetTask(ctx, taskID)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		fmt.Printf("%s %s now depends on %s", ui.RenderPass("✓"), taskID, dependsOnID)
		if task.Status == types.StatusBlocked {
			fmt.Printf(" %s", ui.RenderWarn("(blocked)"))
		}
		fmt.Println()
	},
}

var depsRemoveCmd = &cobra.Command{
	Use:   "remove <id> <depends-on-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		if err := gate("deps", ""); err != nil {
			fail(err)
		}

		taskID, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		dependsOnID, err := resolveTaskID(ctx, args[1])
		if err != nil {
			fail(err)
		}

		err = withLock(func() error {
			return store.RemoveDependency(ctx, taskID, dependsOnID, actor)
		})
		if err != nil {
			fail(err)
		}

		task, err := store.GetTask(ctx, taskID)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		fmt.Printf("%s %s no longer depends on %s (%s)\n", ui.RenderPass("✓"), taskID, dependsOnID, task.Status)
	},
}

var depsTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Render a task's dependency tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := resolveTaskID(rootCtx, args[0])
		if err != nil {
			fail(err)
		}
		root, err := buildDepNode(id, map[string]bool{})
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(root)
			return
		}
		fmt.Println(ui.RenderDepTree(root))
	},
}

// buildDepNode loads a task and its dependency closure. seen guards
// against cycles that predate the cycle check (imported stores).
func buildDepNode(id string, seen map[string]bool) (*ui.DepNode, error) {
	task, err := store.GetTask(rootCtx, id)
	if err != nil {
		return nil, err
	}
	node := &ui.DepNode{Task: task}
	if seen[id] {
		return node, nil
	}
	seen[id] = true

	deps, err := store.GetDependencies(rootCtx, id)
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		child, err := buildDepNode(dep.ID, seen)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

var depsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Audit the dependency graph",
	Long: `Walk the whole dependency graph looking for anomalies: cycles,
edges referencing missing tasks, and blocked/pending statuses that
disagree with the edges. Exits 1 when anything is found.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		report, err := store.ValidateGraph(rootCtx)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(report)
		} else {
			fmt.Println(ui.RenderGraphReport(report, ui.GetWidth()))
		}
		if !report.Clean() {
			os.Exit(1)
		}
	},
}

var depsCriticalPathCmd = &cobra.Command{
	Use:   "critical-path",
	Short: "Show the longest estimated chain",
	Long: `Compute the dependency chain with the highest total estimated hours.
That chain bounds the schedule: no amount of parallelism finishes the
board faster than its critical path.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cp, err := store.CriticalPath(rootCtx)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(cp)
			return
		}
		fmt.Println(ui.RenderCriticalPath(cp, ui.GetWidth()))
	},
}

func init() {
	depsCmd.AddCommand(depsAddCmd, depsRemoveCmd, depsTreeCmd, depsValidateCmd, depsCriticalPathCmd)
	rootCmd.AddCommand(depsCmd)
}
