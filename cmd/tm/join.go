package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <id>",
	GroupID: "collab",
	Short:   "Join a task as a participant",
	Long: `Register as a participant on a task. Participants show up in the
context view so agents can see who else is working the same item.

Joining is idempotent: joining again updates the role and nothing else.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		role, _ := cmd.Flags().GetString("role")

		if err := gate("join", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		if err := store.JoinTask(ctx, id, actor, role); err != nil {
			fail(err)
		}

		mirrorContext(id)

		if jsonOutput {
			outputJSON(map[string]string{"task_id": id, "agent_id": actor, "role": role})
			return
		}
		if role != "" {
			fmt.Printf("%s %s joined %s as %s\n", ui.RenderPass("✓"), actor, id, role)
			return
		}
		fmt.Printf("%s %s joined %s\n", ui.RenderPass("✓"), actor, id)
	},
}

func init() {
	joinCmd.Flags().String("role", "", "Role on this task (reviewer, implementer, ...)")
	rootCmd.AddCommand(joinCmd)
}
