package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <id> <checkpoint>",
	GroupID: "collab",
	Short:   "Announce a sync point to all agents",
	Long: `Mark a coordination checkpoint on a task: "schema frozen", "API
merged", "handing off to review". The checkpoint is appended to shared
context and broadcast, so agents sequencing their work against yours
know the moment to move.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		if err := gate("sync", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		entry, err := store.SyncPoint(ctx, id, actor, args[1])
		if err != nil {
			fail(err)
		}

		mirrorContext(entry.TaskID)
		projector.Notify(&types.Notification{
			TaskID:    entry.TaskID,
			Kind:      types.NotifySyncPoint,
			Message:   fmt.Sprintf("%s reached sync point %q on task %s", actor, args[1], entry.TaskID),
			CreatedAt: entry.CreatedAt,
		})

		if jsonOutput {
			outputJSON(entry)
			return
		}
		fmt.Printf("%s Sync point %q announced on %s\n", ui.RenderPass("✓"), args[1], entry.TaskID)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
