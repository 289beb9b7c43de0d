package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var shareCmd = &cobra.Command{
	Use:     "share <id> <message>",
	GroupID: "collab",
	Short:   "Append to a task's shared context",
	Long: `Append a message to a task's shared context log, visible to every
agent that reads the task. Use --type to classify the entry: update
(default), discovery, or decision.

For discoveries that should also notify other agents, prefer the
discover command, which broadcasts.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		kindStr, _ := cmd.Flags().GetString("type")

		kind := types.ContextKind(kindStr)
		if !kind.IsValid() || kind == types.ContextSync {
			fail(&types.ValidationError{
				Field:  "type",
				Reason: fmt.Sprintf("%q is not a context type (update, discovery, decision)", kindStr),
			})
		}

		if err := gate("share", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		entry, err := store.AddContext(ctx, &types.ContextEntry{
			TaskID:  id,
			AgentID: actor,
			Kind:    kind,
			Message: args[1],
		})
		if err != nil {
			fail(err)
		}

		mirrorContext(entry.TaskID)

		if jsonOutput {
			outputJSON(entry)
			return
		}
		fmt.Printf("%s Shared %s on %s\n", ui.RenderPass("✓"), entry.Kind, entry.TaskID)
	},
}

func init() {
	shareCmd.Flags().StringP("type", "t", "update", "Entry type: update, discovery, decision")
	rootCmd.AddCommand(shareCmd)
}
