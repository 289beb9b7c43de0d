package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "tasks",
	Short:   "Show a task in detail",
	Long: `Show one task with its dependencies, dependents, progress log, and
feedback. On a terminal the view renders as formatted markdown.

Task ids may be shortened to any unique prefix; this holds for every
command that takes an id.

--events appends the audit trail: every create, update, status change,
assignment, and completion with actor and timestamp.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		withEvents, _ := cmd.Flags().GetBool("events")
		formatStr, _ := cmd.Flags().GetString("format")

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		detail, err := store.GetTaskDetail(ctx, id)
		if err != nil {
			fail(err)
		}

		var events []*types.Event
		if withEvents {
			events, err = store.Events(ctx, detail.Task.ID, 0)
			if err != nil {
				fail(err)
			}
		}

		if jsonOutput || formatStr == "json" {
			if !withEvents {
				outputJSON(detail)
				return
			}
			outputJSON(struct {
				*types.TaskDetail
				Events []*types.Event `json:"events"`
			}{detail, events})
			return
		}

		md := ui.TaskDetailMarkdown(detail, events)
		if formatStr == "markdown" {
			fmt.Print(md)
			return
		}
		fmt.Print(ui.RenderMarkdown(md, ui.GetWidth()))
	},
}

func init() {
	showCmd.Flags().Bool("events", false, "Include the audit trail")
	showCmd.Flags().StringP("format", "f", "human", "Output format: human, json, markdown")
	rootCmd.AddCommand(showCmd)
}
