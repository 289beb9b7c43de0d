package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/ui"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	GroupID: "tasks",
	Short:   "Delete a task permanently",
	Long: `Delete a task and every row that references it: dependencies,
context, progress, notifications, feedback, and its event history.

A task with dependents cannot be deleted unless --cascade is given,
which removes the entire dependent closure. Deletion is permanent;
prefer cancelling (update --status cancelled) to keep the history.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		cascade, _ := cmd.Flags().GetBool("cascade")
		force, _ := cmd.Flags().GetBool("force")

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		task, err := store.GetTask(ctx, id)
		if err != nil {
			fail(err)
		}

		if !force && !jsonOutput && ui.IsTerminal() {
			question := fmt.Sprintf("Permanently delete %s: %s?", task.ID, task.Title)
			if cascade {
				question = fmt.Sprintf("Permanently delete %s and all its dependents?", task.ID)
			}
			confirmOrAbort(question)
		}

		var deleted []string
		err = withLock(func() error {
			var err error
			deleted, err = store.DeleteTask(ctx, task.ID, cascade, actor)
			return err
		})
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"deleted": deleted})
			return
		}
		fmt.Printf("%s Deleted %s", ui.RenderPass("✓"), deleted[0])
		if len(deleted) > 1 {
			fmt.Printf(" and %d dependent(s): %v", len(deleted)-1, deleted[1:])
		}
		fmt.Println()
	},
}

func init() {
	deleteCmd.Flags().Bool("cascade", false, "Also delete all dependent tasks")
	deleteCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}
