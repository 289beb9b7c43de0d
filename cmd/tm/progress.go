package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var progressCmd = &cobra.Command{
	Use:     "progress <id> <message>",
	GroupID: "loop",
	Short:   "Log progress on a task",
	Long: `Append a progress entry to a task. The log shows up in the show view
and in exports, so anyone picking the task up later can see how the
work unfolded without reading the whole shared context.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		if err := gate("progress", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		entry, err := store.AddProgress(ctx, &types.ProgressEntry{
			TaskID:  id,
			AgentID: actor,
			Message: args[1],
		})
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(entry)
			return
		}
		fmt.Printf("%s Progress logged on %s\n", ui.RenderPass("✓"), entry.TaskID)
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}
