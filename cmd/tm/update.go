package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	GroupID: "tasks",
	Short:   "Update a task's status, priority, or assignee",
	Long: `Update a task.

Status changes follow the lifecycle: completion goes through the
complete command, blocked is only reachable from in_progress, and
blocked tasks unblock by finishing their dependencies rather than by
hand. Reopening a completed task requires --reopen together with
--status in_progress; its incomplete dependents become blocked again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		statusStr, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		reopen, _ := cmd.Flags().GetBool("reopen")

		updates := map[string]interface{}{}
		if statusStr != "" {
			updates["status"] = statusStr
		}
		if priority != "" {
			updates["priority"] = priority
		}
		if cmd.Flags().Changed("assignee") {
			updates["assignee"] = assignee
		}
		if len(updates) == 0 {
			fail(&types.ValidationError{Field: "update", Reason: "nothing to change: pass --status, --priority, or --assignee"})
		}
		if reopen {
			updates["reopen"] = true
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}

		// The intent gate inspects the task's own description: the work
		// item carries the WHY/WHAT/DONE context, not this invocation.
		current, err := store.GetTask(ctx, id)
		if err != nil {
			fail(err)
		}
		if err := gate("update", current.Description); err != nil {
			fail(err)
		}

		task, err := store.UpdateTask(ctx, current.ID, updates, actor)
		if err != nil {
			fail(err)
		}

		hookRunner.Run(hooks.EventUpdate, task)

		if jsonOutput {
			outputJSON(task)
			return
		}

		fmt.Printf("%s Updated %s", ui.RenderPass("✓"), task.ID)
		if statusStr != "" {
			fmt.Printf(" status=%s", task.Status)
		}
		if priority != "" {
			fmt.Printf(" priority=%s", task.Priority)
		}
		if cmd.Flags().Changed("assignee") {
			fmt.Printf(" assignee=%s", task.Assignee)
		}
		fmt.Println()
	},
}

func init() {
	updateCmd.Flags().StringP("status", "s", "", "New status (pending, in_progress, blocked, cancelled)")
	updateCmd.Flags().StringP("priority", "p", "", "New priority (low, medium, high, critical)")
	updateCmd.Flags().String("assignee", "", "New assignee (empty string unassigns)")
	updateCmd.Flags().Bool("reopen", false, "Allow reopening a completed task (with --status in_progress)")
	rootCmd.AddCommand(updateCmd)
}
