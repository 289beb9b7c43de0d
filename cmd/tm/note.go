package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var noteCmd = &cobra.Command{
	Use:     "note <id> <message>",
	GroupID: "collab",
	Short:   "Add a private note to a task",
	Long: `Add a note on a task that only you can read back. Notes never appear
in other agents' context views; use share for anything teammates need.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		if err := gate("note", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		note, err := store.AddNote(ctx, &types.PrivateNote{
			TaskID:  id,
			AgentID: actor,
			Message: args[1],
		})
		if err != nil {
			fail(err)
		}

		mirrorNotes(note.TaskID)

		if jsonOutput {
			outputJSON(note)
			return
		}
		fmt.Printf("%s Noted on %s (private to %s)\n", ui.RenderPass("✓"), note.TaskID, actor)
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
