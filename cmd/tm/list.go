package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/export"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
	"github.com/taskmesh/taskmesh/internal/validation"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "tasks",
	Short:   "List tasks",
	Long: `List tasks on the board, oldest first.

Filters compose: --status and --assignee and --has-deps together return
their intersection. --format human renders a table; json prints the raw
task list; markdown, csv, and tsv reuse the export renderers.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		statusStr, _ := cmd.Flags().GetString("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		hasDeps, _ := cmd.Flags().GetBool("has-deps")
		limit, _ := cmd.Flags().GetInt("limit")
		formatStr, _ := cmd.Flags().GetString("format")

		filter := types.TaskFilter{
			Assignee: assignee,
			HasDeps:  hasDeps,
			Limit:    limit,
		}
		if statusStr != "" {
			status, err := validation.ValidateStatus(statusStr)
			if err != nil {
				fail(err)
			}
			filter.Status = status
		}

		if jsonOutput || formatStr == "json" {
			tasks, err := store.ListTasks(ctx, filter)
			if err != nil {
				fail(err)
			}
			if tasks == nil {
				tasks = []*types.Task{}
			}
			outputJSON(tasks)
			return
		}

		switch formatStr {
		case "", "human":
			tasks, err := store.ListTasks(ctx, filter)
			if err != nil {
				fail(err)
			}
			fmt.Println(ui.RenderTaskTable(tasks, ui.GetWidth()))
		default:
			format, err := export.ParseFormat(formatStr)
			if err != nil {
				fail(err)
			}
			exports, err := store.ExportTasks(ctx, filter)
			if err != nil {
				fail(err)
			}
			rendered, err := export.Render(exports, format)
			if err != nil {
				fail(err)
			}
			fmt.Print(string(rendered))
		}
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Filter by status (pending, in_progress, completed, blocked, cancelled)")
	listCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	listCmd.Flags().Bool("has-deps", false, "Only tasks that depend on other tasks")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of tasks (0 = no limit)")
	listCmd.Flags().StringP("format", "f", "human", "Output format: human, json, markdown, csv, tsv")
	rootCmd.AddCommand(listCmd)
}
