package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var contextCmd = &cobra.Command{
	Use:     "context <id>",
	GroupID: "collab",
	Short:   "Show a task's shared context",
	Long: `Show everything shared on a task: participants, the shared context
log (updates, discoveries, decisions, sync points), and your own
private notes. Other agents' private notes are not included.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		formatStr, _ := cmd.Flags().GetString("format")

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		tc, err := store.GetContext(ctx, id, actor)
		if err != nil {
			fail(err)
		}

		if jsonOutput || formatStr == "json" {
			outputJSON(tc)
			return
		}

		md := ui.TaskContextMarkdown(tc, actor)
		switch formatStr {
		case "markdown":
			fmt.Print(md)
		case "", "human":
			fmt.Print(ui.RenderMarkdown(md, ui.GetWidth()))
		default:
			fail(&types.ValidationError{Field: "format", Reason: fmt.Sprintf("%q is not a context format (human, json, markdown)", formatStr)})
		}
	},
}

func init() {
	contextCmd.Flags().StringP("format", "f", "human", "Output format: human, json, markdown")
	rootCmd.AddCommand(contextCmd)
}
