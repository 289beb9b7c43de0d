package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/validation"
)

// CompleteTask marks a task completed, evaluates success criteria when
// asked, and releases dependents whose last unmet dependency this was.
// The status write, the cascade, and the notifications commit atomically.
// Completing an already-completed task is a reported no-op.
func (s *SQLiteStorage) CompleteTask(ctx context.Context, id, actor string, opts types.CompleteOptions) (*types.CompletionResult, error) {
	if err := validation.ValidateSummary(opts.Summary); err != nil {
		return nil, err
	}
	if err := validation.ValidateHours("actual-hours", opts.ActualHours); err != nil {
		return nil, err
	}

	var result *types.CompletionResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		if task.Status == types.StatusCompleted {
			result = &types.CompletionResult{Task: task, AlreadyCompleted: true}
			return nil
		}
		if task.Status != types.StatusPending && task.Status != types.StatusInProgress {
			hint := "resolve its dependencies first"
			if task.Status == types.StatusCancelled {
				hint = "reopen it first with update --status in_progress --reopen"
			}
			return &types.InvalidTransitionError{From: task.Status, To: types.StatusCompleted, Hint: hint}
		}

		var report *types.ValidationReport
		if opts.Validate && len(task.SuccessCriteria) > 0 {
			report = evaluateCriteria(task.SuccessCriteria, opts.Answers)
			if !report.Passed() && !opts.Force {
				return &types.CriteriaUnmetError{TaskID: id, Report: report}
			}
		}

		now := time.Now().UTC()
		from := task.Status
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = 'completed', completion_summary = ?, actual_hours = ?, updated_at = ?
			WHERE id = ?
		`, nullStr(opts.Summary), nullFloat(opts.ActualHours), now, id)
		if err != nil {
			return wrapDBError("complete task", err)
		}
		task.Status = types.StatusCompleted
		task.UpdatedAt = now
		if opts.Summary != "" {
			task.CompletionSummary = opts.Summary
		}
		if opts.ActualHours != nil {
			task.ActualHours = opts.ActualHours
		}

		if err := recordEvent(ctx, tx, &types.Event{
			TaskID:    id,
			EventType: types.EventCompleted,
			Actor:     actor,
			Session:   s.session,
			OldValue:  strPtr(string(from)),
			NewValue:  strPtr(string(types.StatusCompleted)),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		unblocked, err := s.cascadeUnblock(ctx, tx, id, actor, now)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("task %q (%s) completed by %s", task.Title, id, actor)
		if task.Assignee != "" && task.Assignee != actor {
			emitBestEffort(ctx, tx, &types.Notification{
				Recipient: task.Assignee,
				TaskID:    id,
				Kind:      types.NotifyCompletion,
				Message:   msg,
				CreatedAt: now,
			})
		}
		emitBestEffort(ctx, tx, &types.Notification{
			TaskID:    id,
			Kind:      types.NotifyCompletion,
			Message:   msg,
			CreatedAt: now,
		})

		if opts.ImpactReview && len(task.FileRefs) > 0 {
			paths := make([]string, len(task.FileRefs))
			for i, ref := range task.FileRefs {
				paths[i] = ref.Path
			}
			emitBestEffort(ctx, tx, &types.Notification{
				TaskID:    id,
				Kind:      types.NotifyImpactReview,
				Message:   fmt.Sprintf("task %s touched %s; review dependent work", id, strings.Join(paths, ", ")),
				CreatedAt: now,
			})
		}

		result = &types.CompletionResult{Task: task, Unblocked: unblocked, Report: report}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// evaluateCriteria builds the per-criterion report. Without an answer a
// criterion stays manual, which counts as unmet; automated checkers can
// slot in here later.
func evaluateCriteria(criteria []types.SuccessCriterion, answers map[int]bool) *types.ValidationReport {
	report := &types.ValidationReport{Results: make([]types.CriterionResult, len(criteria))}
	for i, c := range criteria {
		res := types.CriterionResult{Criterion: c.Criterion, Status: types.CriterionManual, Detail: "not confirmed"}
		if met, ok := answers[i]; ok {
			if met {
				res.Status = types.CriterionPass
				res.Detail = "confirmed"
			} else {
				res.Status = types.CriterionFail
				res.Detail = "reported unmet"
			}
		}
		report.Results[i] = res
	}
	return report
}
