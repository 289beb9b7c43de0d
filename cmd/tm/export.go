package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/export"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
	"github.com/taskmesh/taskmesh/internal/validation"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "tasks",
	Short:   "Export tasks as JSON, Markdown, CSV, or TSV",
	Long: `Export the flattened task view for reports and spreadsheets.

JSON carries every observable field and round-trips through decoding.
CSV and TSV flatten tags and dependency ids into semicolon-joined
columns. Writes to stdout unless --output names a file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		formatStr, _ := cmd.Flags().GetString("format")
		statusStr, _ := cmd.Flags().GetString("status")
		outPath, _ := cmd.Flags().GetString("output")

		format, err := export.ParseFormat(formatStr)
		if err != nil {
			fail(err)
		}

		filter := types.TaskFilter{}
		if statusStr != "" {
			status, err := validation.ValidateStatus(statusStr)
			if err != nil {
				fail(err)
			}
			filter.Status = status
		}

		tasks, err := store.ExportTasks(ctx, filter)
		if err != nil {
			fail(err)
		}

		out, err := export.Render(tasks, format)
		if err != nil {
			fail(err)
		}

		if outPath == "" {
			os.Stdout.Write(out)
			return
		}
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			fail(&types.StorageUnavailableError{Path: outPath, Err: err})
		}
		if !quietFlag && !jsonOutput {
			fmt.Printf("%s Exported %d task(s) to %s\n", ui.RenderPass("✓"), len(tasks), outPath)
		}
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "Output format (json, markdown, csv, tsv)")
	exportCmd.Flags().StringP("status", "s", "", "Only export tasks with this status")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
