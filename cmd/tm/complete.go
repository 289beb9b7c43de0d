package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var completeCmd = &cobra.Command{
	Use:     "complete <id>",
	GroupID: "tasks",
	Short:   "Mark a task completed and unblock its dependents",
	Long: `Complete a task.

Completing is idempotent: a second complete on the same task is a no-op.
Blocked dependents whose remaining dependencies are all done flip back to
pending, and their assignees are notified.

With --validate, each success criterion must be confirmed: interactively
at a terminal, or via --criteria-met with a comma-separated list of
1-based criterion numbers (or "all"). Unconfirmed criteria block the
completion unless --force is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		opts := types.CompleteOptions{}
		opts.Validate, _ = cmd.Flags().GetBool("validate")
		opts.Force, _ = cmd.Flags().GetBool("force")
		opts.ImpactReview, _ = cmd.Flags().GetBool("impact-review")
		opts.Summary, _ = cmd.Flags().GetString("summary")
		criteriaMet, _ := cmd.Flags().GetString("criteria-met")

		if cmd.Flags().Changed("actual-hours") {
			if !config.FeatureEnabled(config.FeatureTimeTracking) {
				warnDisabled(config.FeatureTimeTracking, "--actual-hours")
			} else {
				hours, _ := cmd.Flags().GetFloat64("actual-hours")
				opts.ActualHours = &hours
			}
		}
		if opts.Summary != "" && !config.FeatureEnabled(config.FeatureCompletionSummaries) {
			warnDisabled(config.FeatureCompletionSummaries, "--summary")
			opts.Summary = ""
		}
		if opts.Validate && !config.FeatureEnabled(config.FeatureSuccessCriteria) {
			warnDisabled(config.FeatureSuccessCriteria, "--validate")
			opts.Validate = false
		}

		if err := gate("complete", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		task, err := store.GetTask(ctx, id)
		if err != nil {
			fail(err)
		}

		if opts.Validate && len(task.SuccessCriteria) > 0 {
			answers, err := collectAnswers(task.SuccessCriteria, criteriaMet)
			if err != nil {
				fail(err)
			}
			opts.Answers = answers
		}

		var result *types.CompletionResult
		err = withLock(func() error {
			var err error
			result, err = store.CompleteTask(ctx, task.ID, actor, opts)
			return err
		})
		if err != nil {
			fail(err)
		}

		if result.AlreadyCompleted {
			if jsonOutput {
				outputJSON(result)
				return
			}
			fmt.Printf("Task %s is already completed.\n", result.Task.ID)
			return
		}

		hookRunner.Run(hooks.EventComplete, result.Task)
		mirrorCompletion(result, opts)
		recorder.Record("tasks", "complete", nil)
		if opts.Summary != "" {
			recorder.Record(config.FeatureCompletionSummaries, "set", nil)
		}
		if opts.Validate {
			recorder.Record(config.FeatureSuccessCriteria, "validate", map[string]bool{
				"forced": opts.Force && result.Report != nil && !result.Report.Passed(),
			})
		}
		if opts.ActualHours != nil {
			recorder.Record(config.FeatureTimeTracking, "actual", nil)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}

		fmt.Printf("%s Completed %s: %s\n", ui.RenderPass("✓"), result.Task.ID, result.Task.Title)
		if result.Report != nil {
			fmt.Print(ui.RenderCriteriaReport(result.Report, ui.GetWidth()))
			if !result.Report.Passed() {
				fmt.Fprintln(os.Stderr, ui.RenderWarn("note:"), "completed with unmet criteria (--force)")
			}
		}
		for _, u := range result.Unblocked {
			line := fmt.Sprintf("  unblocked %s: %s", u.ID, u.Title)
			if u.Assignee != "" {
				line += fmt.Sprintf(" (%s)", u.Assignee)
			}
			fmt.Println(ui.RenderMuted(line))
		}
	},
}

// collectAnswers resolves per-criterion confirmations. A --criteria-met
// list wins; otherwise a terminal prompts, and a non-terminal leaves
// everything unconfirmed for the store to report as manual.
func collectAnswers(criteria []types.SuccessCriterion, criteriaMet string) (map[int]bool, error) {
	if criteriaMet != "" {
		answers := make(map[int]bool, len(criteria))
		if strings.EqualFold(criteriaMet, "all") {
			for i := range criteria {
				answers[i] = true
			}
			return answers, nil
		}
		for _, part := range strings.Split(criteriaMet, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil || n < 1 || n > len(criteria) {
				return nil, &types.ValidationError{
					Field:  "criteria-met",
					Reason: fmt.Sprintf("%q is not a criterion number between 1 and %d", part, len(criteria)),
				}
			}
			answers[n-1] = true
		}
		return answers, nil
	}

	labels := make([]string, len(criteria))
	for i, c := range criteria {
		labels[i] = c.Criterion
		if c.Measurable != "" {
			labels[i] += " (" + c.Measurable + ")"
		}
	}
	return ui.ConfirmCriteria(labels)
}

// mirrorCompletion projects the notifications the store just emitted so
// file-based watchers see them without polling the database.
func mirrorCompletion(result *types.CompletionResult, opts types.CompleteOptions) {
	if projector == nil || result == nil {
		return
	}
	task := result.Task
	now := time.Now().UTC()

	msg := fmt.Sprintf("task %q (%s) completed by %s", task.Title, task.ID, actor)
	if task.Assignee != "" && task.Assignee != actor {
		projector.Notify(&types.Notification{
			Recipient: task.Assignee, TaskID: task.ID,
			Kind: types.NotifyCompletion, Message: msg, CreatedAt: now,
		})
	}
	projector.Notify(&types.Notification{
		TaskID: task.ID, Kind: types.NotifyCompletion, Message: msg, CreatedAt: now,
	})

	if opts.ImpactReview && len(task.FileRefs) > 0 {
		paths := make([]string, len(task.FileRefs))
		for i, ref := range task.FileRefs {
			paths[i] = ref.Path
		}
		projector.Notify(&types.Notification{
			TaskID: task.ID, Kind: types.NotifyImpactReview,
			Message:   fmt.Sprintf("task %s touched %s; review dependent work", task.ID, strings.Join(paths, ", ")),
			CreatedAt: now,
		})
	}

	for _, u := range result.Unblocked {
		umsg := fmt.Sprintf("task %q (%s) is unblocked and ready to start", u.Title, u.ID)
		if u.Assignee != "" {
			projector.Notify(&types.Notification{
				Recipient: u.Assignee, TaskID: u.ID,
				Kind: types.NotifyTaskUnblocked, Message: umsg, CreatedAt: now,
			})
		}
		projector.Notify(&types.Notification{
			TaskID: u.ID, Kind: types.NotifyTaskUnblocked, Message: umsg, CreatedAt: now,
		})
	}
}

func init() {
	completeCmd.Flags().Bool("validate", false, "Require success criteria confirmation before completing")
	completeCmd.Flags().String("criteria-met", "", "Comma-separated 1-based criterion numbers confirmed met, or \"all\"")
	completeCmd.Flags().Bool("force", false, "Complete even when criteria are unmet or unconfirmed")
	completeCmd.Flags().String("summary", "", "Completion summary (what shipped, where, gotchas)")
	completeCmd.Flags().Float64("actual-hours", 0, "Actual hours spent, for estimation accuracy")
	completeCmd.Flags().Bool("impact-review", false, "Broadcast an impact-review notice naming the task's files")
	rootCmd.AddCommand(completeCmd)
}
