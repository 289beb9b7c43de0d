package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/validation"
)

// AddProgress appends an advisory progress entry. Progress never changes
// task status.
func (s *SQLiteStorage) AddProgress(ctx context.Context, entry *types.ProgressEntry) (*types.ProgressEntry, error) {
	msg, err := validation.ValidateMessage(entry.Message)
	if err != nil {
		return nil, err
	}
	agentID, err := validation.ValidateAgentID(entry.AgentID)
	if err != nil {
		return nil, err
	}

	out := *entry
	out.Message = msg
	out.AgentID = agentID
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := taskExists(ctx, tx, out.TaskID)
		if err != nil {
			return err
		}
		if !exists {
			return &types.NotFoundError{Kind: "task", ID: out.TaskID}
		}
		if out.CreatedAt.IsZero() {
			out.CreatedAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO progress_entries (task_id, agent_id, message, created_at)
			VALUES (?, ?, ?, ?)
		`, out.TaskID, out.AgentID, out.Message, out.CreatedAt)
		if err != nil {
			return wrapDBError("insert progress entry", err)
		}
		out.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get progress id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProgress returns a task's progress log, oldest first.
func (s *SQLiteStorage) GetProgress(ctx context.Context, taskID string) ([]*types.ProgressEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_id, message, created_at
		FROM progress_entries
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load progress", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.ProgressEntry
	for rows.Next() {
		var e types.ProgressEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func scanFeedback(rs rowScanner) (*types.Feedback, error) {
	var fb types.Feedback
	var quality, timeliness sql.NullInt64
	if err := rs.Scan(&fb.TaskID, &quality, &timeliness, &fb.Notes, &fb.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	if quality.Valid {
		fb.Quality = int(quality.Int64)
	}
	if timeliness.Valid {
		fb.Timeliness = int(timeliness.Int64)
	}
	return &fb, nil
}

// nullScore maps an absent (zero) score to NULL.
func nullScore(score int) interface{} {
	if score == 0 {
		return nil
	}
	return score
}

// SetFeedback writes or replaces the single feedback record for a
// completed task.
func (s *SQLiteStorage) SetFeedback(ctx context.Context, fb *types.Feedback, actor string) error {
	if err := validation.ValidateScore("quality", fb.Quality); err != nil {
		return err
	}
	if err := validation.ValidateScore("timeliness", fb.Timeliness); err != nil {
		return err
	}
	if err := validation.ValidateFeedbackNote(fb.Notes); err != nil {
		return err
	}
	if fb.Quality == 0 && fb.Timeliness == 0 && fb.Notes == "" {
		return &types.ValidationError{Field: "feedback", Reason: "provide at least one of quality, timeliness, or note"}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := getTask(ctx, tx, fb.TaskID)
		if err != nil {
			return err
		}
		if task.Status != types.StatusCompleted {
			return &types.ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("feedback applies only to completed tasks; task %s is %s", task.ID, task.Status),
			}
		}
		if fb.CreatedAt.IsZero() {
			fb.CreatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO feedback (task_id, quality, timeliness, notes, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (task_id) DO UPDATE SET
				quality = excluded.quality,
				timeliness = excluded.timeliness,
				notes = excluded.notes,
				created_at = excluded.created_at
		`, fb.TaskID, nullScore(fb.Quality), nullScore(fb.Timeliness), fb.Notes, fb.CreatedAt)
		if err != nil {
			return wrapDBError("upsert feedback", err)
		}
		return nil
	})
}

// GetFeedback returns the feedback record for a task.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, taskID string) (*types.Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, quality, timeliness, notes, created_at
		FROM feedback WHERE task_id = ?
	`, taskID)
	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "feedback", ID: taskID}
	}
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// Metrics aggregates delivery quality over a window. A zero since means
// all-time. Averages are nil when no qualifying rows exist.
func (s *SQLiteStorage) Metrics(ctx context.Context, window string, since time.Time) (*types.Metrics, error) {
	m := &types.Metrics{Window: window}

	windowSQL := ""
	var args []interface{}
	if !since.IsZero() {
		windowSQL = " AND t.updated_at >= ?"
		args = append(args, since)
	}

	// Completed count and estimation accuracy in one pass.
	// #nosec G201 - windowSQL is a fixed clause, values are bound
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			AVG(CASE
				WHEN t.estimated_hours IS NOT NULL AND t.actual_hours IS NOT NULL
				THEN 1.0 - ABS(t.estimated_hours - t.actual_hours) / MAX(t.estimated_hours, t.actual_hours)
			END)
		FROM tasks t
		WHERE t.status = 'completed'%s
	`, windowSQL)
	var accuracy sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&m.CompletedTasks, &accuracy); err != nil {
		return nil, wrapDBError("aggregate completion metrics", err)
	}
	if accuracy.Valid {
		m.EstimationAccuracy = &accuracy.Float64
	}

	// #nosec G201 - windowSQL is a fixed clause, values are bound
	query = fmt.Sprintf(`
		SELECT COUNT(*), AVG(f.quality), AVG(f.timeliness)
		FROM feedback f
		JOIN tasks t ON t.id = f.task_id
		WHERE t.status = 'completed'%s
	`, windowSQL)
	var avgQuality, avgTimeliness sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&m.TasksWithFeedback, &avgQuality, &avgTimeliness); err != nil {
		return nil, wrapDBError("aggregate feedback metrics", err)
	}
	if avgQuality.Valid {
		m.AvgQuality = &avgQuality.Float64
	}
	if avgTimeliness.Valid {
		m.AvgTimeliness = &avgTimeliness.Float64
	}

	// Rework correlation: of the poorly-rated tasks, how many were
	// superseded by a task pointing back via rework_of.
	// #nosec G201 - windowSQL is a fixed clause, values are bound
	query = fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN f.task_id IN (
				SELECT rework_of FROM tasks WHERE rework_of IS NOT NULL
			) THEN 1 ELSE 0 END), 0)
		FROM feedback f
		JOIN tasks t ON t.id = f.task_id
		WHERE f.quality IS NOT NULL AND f.quality <= 2%s
	`, windowSQL)
	var lowRated, reworked int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&lowRated, &reworked); err != nil {
		return nil, wrapDBError("aggregate rework metrics", err)
	}
	if lowRated > 0 {
		share := float64(reworked) / float64(lowRated)
		m.ReworkCorrelation = &share
	}

	return m, nil
}
