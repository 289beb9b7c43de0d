package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/timeparsing"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
	"github.com/taskmesh/taskmesh/internal/validation"
)

var addCmd = &cobra.Command{
	Use:     "add <title>",
	GroupID: "tasks",
	Short:   "Create a task",
	Long: `Create a task on the shared board.

Dependencies given with --depends-on must already exist; a task created
with unmet dependencies starts out blocked and unblocks automatically
when the last dependency completes.

Success criteria are a JSON array of objects:
  tm add "Ship search" --criteria '[{"criterion":"tests pass"},{"criterion":"fast search","measurable":"p95 < 200ms"}]'

Deadlines accept RFC3339 timestamps, plain dates, and natural phrases
like "tomorrow 17:00" or "in 3 days".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		deps, _ := cmd.Flags().GetStringArray("depends-on")
		files, _ := cmd.Flags().GetStringArray("file")
		tags, _ := cmd.Flags().GetStringArray("tag")
		criteriaJSON, _ := cmd.Flags().GetString("criteria")
		deadlineStr, _ := cmd.Flags().GetString("deadline")
		estimated, _ := cmd.Flags().GetFloat64("estimated-hours")
		reworkOf, _ := cmd.Flags().GetString("rework-of")

		if err := gate("add", description); err != nil {
			fail(err)
		}

		// Dependency prefixes resolve like positional ids; full-length ids
		// pass through so the store still reports unknown ones itself.
		for i, dep := range deps {
			resolved, err := resolveTaskID(ctx, dep)
			if err != nil {
				fail(err)
			}
			deps[i] = resolved
		}

		task := &types.Task{
			Title:       args[0],
			Description: description,
			Priority:    types.Priority(priority),
			Assignee:    assignee,
			Tags:        tags,
			ReworkOf:    reworkOf,
		}

		for _, f := range files {
			ref, err := validation.ParseFileRef(f)
			if err != nil {
				fail(err)
			}
			task.FileRefs = append(task.FileRefs, ref)
		}

		if criteriaJSON != "" {
			if !config.FeatureEnabled(config.FeatureSuccessCriteria) {
				warnDisabled(config.FeatureSuccessCriteria, "--criteria")
			} else {
				criteria, err := types.ParseCriteria(criteriaJSON)
				if err != nil {
					fail(err)
				}
				task.SuccessCriteria = criteria
				recorder.Record(config.FeatureSuccessCriteria, "set", nil)
			}
		}

		if deadlineStr != "" {
			if !config.FeatureEnabled(config.FeatureDeadlines) {
				warnDisabled(config.FeatureDeadlines, "--deadline")
			} else {
				deadline, err := timeparsing.ParseDeadline(deadlineStr, time.Now())
				if err != nil {
					fail(err)
				}
				task.Deadline = &deadline
				recorder.Record(config.FeatureDeadlines, "set", nil)
			}
		}

		if cmd.Flags().Changed("estimated-hours") {
			if !config.FeatureEnabled(config.FeatureTimeTracking) {
				warnDisabled(config.FeatureTimeTracking, "--estimated-hours")
			} else {
				task.EstimatedHours = &estimated
				recorder.Record(config.FeatureTimeTracking, "estimate", nil)
			}
		}

		err := withLock(func() error {
			return store.CreateTask(ctx, task, deps, actor)
		})
		if err != nil {
			fail(err)
		}

		hookRunner.Run(hooks.EventCreate, task)

		if jsonOutput {
			outputJSON(task)
			return
		}

		fmt.Printf("%s Created task %s: %s\n", ui.RenderPass("✓"), task.ID, task.Title)
		if task.Status == types.StatusBlocked {
			fmt.Printf("  %s blocked on %s\n", ui.RenderWarn("⏳"), strings.Join(deps, ", "))
		}
	},
}

// warnDisabled tells the caller a flag was ignored because its feature
// toggle is off. Quiet and JSON modes stay silent; the flag is dropped
// either way.
func warnDisabled(feature, flag string) {
	if quietFlag || jsonOutput {
		return
	}
	fmt.Fprintf(os.Stderr, "note: %s is disabled in config; ignoring %s\n", feature, flag)
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "Task description (WHY:/WHAT:/DONE: markers satisfy the intent check)")
	addCmd.Flags().StringP("priority", "p", "", "Priority: low, medium, high, critical (default medium)")
	addCmd.Flags().String("assignee", "", "Agent responsible for the task")
	addCmd.Flags().StringArray("depends-on", nil, "Task id this task depends on (repeatable)")
	addCmd.Flags().StringArray("file", nil, "File reference path[:line[:endline]] (repeatable)")
	addCmd.Flags().StringArray("tag", nil, "Tag (repeatable, max 16)")
	addCmd.Flags().String("criteria", "", "Success criteria as a JSON array")
	addCmd.Flags().String("deadline", "", "Deadline (RFC3339, date, or natural language)")
	addCmd.Flags().Float64("estimated-hours", 0, "Estimated effort in hours")
	addCmd.Flags().String("rework-of", "", "Id of the completed task this redoes")
	rootCmd.AddCommand(addCmd)
}
