package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var assignCmd = &cobra.Command{
	Use:     "assign <id> <agent>",
	GroupID: "tasks",
	Short:   "Assign a task to an agent",
	Long: `Assign a task to an agent. The new assignee gets a notification
unless they assigned it to themselves. Pass "" as the agent to unassign.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		assignee := args[1]
		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}

		if err := gate("assign", ""); err != nil {
			fail(err)
		}

		task, err := store.UpdateTask(ctx, id, map[string]interface{}{"assignee": assignee}, actor)
		if err != nil {
			fail(err)
		}

		hookRunner.Run(hooks.EventUpdate, task)
		if assignee != "" && assignee != actor {
			projector.Notify(&types.Notification{
				Recipient: assignee,
				TaskID:    task.ID,
				Kind:      types.NotifyAssignment,
				Message:   fmt.Sprintf("%s assigned you %q (%s)", actor, task.Title, task.ID),
				CreatedAt: time.Now().UTC(),
			})
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		if assignee == "" {
			fmt.Printf("%s Unassigned %s\n", ui.RenderPass("✓"), task.ID)
			return
		}
		fmt.Printf("%s Assigned %s to %s\n", ui.RenderPass("✓"), task.ID, assignee)
	},
}

func init() {
	rootCmd.AddCommand(assignCmd)
}
