package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var discoverCmd = &cobra.Command{
	Use:     "discover <id> <message>",
	GroupID: "collab",
	Short:   "Record a discovery and broadcast it",
	Long: `Record something learned while working a task: a gotcha, a hidden
coupling, an assumption that turned out false. The discovery lands in
the task's shared context and every agent sees it on their next watch.

--impact describes who or what the finding affects; --tag merges tags
into the task so later searches surface it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		impact, _ := cmd.Flags().GetString("impact")
		tags, _ := cmd.Flags().GetStringArray("tag")

		if err := gate("discover", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		entry, err := store.Discover(ctx, id, actor, args[1], impact, tags)
		if err != nil {
			fail(err)
		}

		mirrorContext(entry.TaskID)
		projector.Notify(&types.Notification{
			TaskID:    entry.TaskID,
			Kind:      types.NotifyDiscovery,
			Message:   fmt.Sprintf("%s on task %s: %s", actor, entry.TaskID, args[1]),
			CreatedAt: entry.CreatedAt,
		})

		if jsonOutput {
			outputJSON(entry)
			return
		}
		fmt.Printf("%s Discovery recorded on %s and broadcast\n", ui.RenderPass("✓"), entry.TaskID)
	},
}

func init() {
	discoverCmd.Flags().String("impact", "", "Who or what the finding affects")
	discoverCmd.Flags().StringArray("tag", nil, "Tag to merge into the task (repeatable)")
	rootCmd.AddCommand(discoverCmd)
}
