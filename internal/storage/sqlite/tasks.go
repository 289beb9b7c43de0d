package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/validation"
)

// taskColumns is the SELECT list matching scanTask's argument order.
const taskColumns = `id, title, description, status, priority, assignee,
	created_at, updated_at, success_criteria, deadline, estimated_hours,
	actual_hours, completion_summary, rework_of`

const limitClause = " LIMIT ?"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var assignee, criteria, summary, rework sql.NullString
	var deadline sql.NullTime
	var est, act sql.NullFloat64

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &assignee,
		&t.CreatedAt, &t.UpdatedAt, &criteria, &deadline, &est, &act,
		&summary, &rework,
	)
	if err != nil {
		return nil, err
	}

	if assignee.Valid {
		t.Assignee = assignee.String
	}
	if criteria.Valid && criteria.String != "" {
		parsed, err := types.ParseCriteria(criteria.String)
		if err != nil {
			return nil, fmt.Errorf("stored criteria for %s are malformed: %w", t.ID, err)
		}
		t.SuccessCriteria = parsed
	}
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if est.Valid {
		v := est.Float64
		t.EstimatedHours = &v
	}
	if act.Valid {
		v := act.Float64
		t.ActualHours = &v
	}
	if summary.Valid {
		t.CompletionSummary = summary.String
	}
	if rework.Valid {
		t.ReworkOf = rework.String
	}
	return &t, nil
}

func placeholders(n int) string {
	return strings.TrimRight(strings.Repeat("?,", n), ",")
}

// getTask loads one task row plus its file refs and tags.
func getTask(ctx context.Context, q dbtx, id string) (*types.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}

	refs, err := fileRefsFor(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	t.FileRefs = refs[id]

	tags, err := tagsFor(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	t.Tags = tags[id]
	return t, nil
}

// taskExists is the cheap existence probe used before appends.
func taskExists(ctx context.Context, q dbtx, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&n); err != nil {
		return false, wrapDBError("check task existence", err)
	}
	return n > 0, nil
}

// fileRefsFor batch-loads file references for a set of task ids.
func fileRefsFor(ctx context.Context, q dbtx, ids []string) (map[string][]types.FileRef, error) {
	out := make(map[string][]types.FileRef)
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// #nosec G201 - only placeholders are formatted in
	query := fmt.Sprintf(`
		SELECT task_id, path, line_start, line_end
		FROM file_refs
		WHERE task_id IN (%s)
		ORDER BY id
	`, placeholders(len(ids)))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load file refs", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID string
		var ref types.FileRef
		var start, end sql.NullInt64
		if err := rows.Scan(&taskID, &ref.Path, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan file ref: %w", err)
		}
		if start.Valid {
			ref.LineStart = int(start.Int64)
		}
		if end.Valid {
			ref.LineEnd = int(end.Int64)
		}
		out[taskID] = append(out[taskID], ref)
	}
	return out, rows.Err()
}

// tagsFor batch-loads tag sets for a set of task ids.
func tagsFor(ctx context.Context, q dbtx, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// #nosec G201 - only placeholders are formatted in
	query := fmt.Sprintf(`
		SELECT task_id, tag FROM task_tags
		WHERE task_id IN (%s)
		ORDER BY tag
	`, placeholders(len(ids)))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load tags", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID, tag string
		if err := rows.Scan(&taskID, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[taskID] = append(out[taskID], tag)
	}
	return out, rows.Err()
}

// CreateTask validates, generates an id if needed, and writes the task,
// its edges, file refs, and tags in one transaction. The task starts
// blocked when any dependency is not completed, pending otherwise.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *types.Task, deps []string, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createTaskTx(ctx, tx, task, deps, actor)
	})
}

func (s *SQLiteStorage) createTaskTx(ctx context.Context, tx *sql.Tx, task *types.Task, deps []string, actor string) error {
	title, err := validation.ValidateTitle(task.Title)
	if err != nil {
		return err
	}
	task.Title = title

	priority, err := validation.ValidatePriority(string(task.Priority))
	if err != nil {
		return err
	}
	task.Priority = priority

	tags, err := validation.NormalizeTags(task.Tags)
	if err != nil {
		return err
	}
	task.Tags = tags

	if len(task.SuccessCriteria) > types.MaxCriteria {
		return &types.ValidationError{Field: "criteria", Reason: fmt.Sprintf("at most %d criteria allowed", types.MaxCriteria)}
	}
	if err := validation.ValidateHours("estimated-hours", task.EstimatedHours); err != nil {
		return err
	}
	for i, ref := range task.FileRefs {
		if strings.TrimSpace(ref.Path) == "" {
			return &types.ValidationError{Field: "file", Reason: "path is empty"}
		}
		if ref.LineStart < 0 || ref.LineEnd < 0 {
			return &types.ValidationError{Field: "file", Reason: "line numbers must be positive"}
		}
		if ref.LineEnd > 0 && ref.LineEnd < ref.LineStart {
			task.FileRefs[i].LineStart, task.FileRefs[i].LineEnd = ref.LineEnd, ref.LineStart
		}
	}

	if task.ID == "" {
		id, err := generateTaskID(ctx, tx)
		if err != nil {
			return err
		}
		task.ID = id
	} else if !isValidTaskID(task.ID) {
		return &types.ValidationError{Field: "id", Reason: "task ids are 8 hex characters"}
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	// Dedupe edges, reject self-dependency, and require every target.
	seen := make(map[string]bool, len(deps))
	blocked := false
	var edges []string
	for _, depID := range deps {
		depID = strings.TrimSpace(depID)
		if depID == "" || seen[depID] {
			continue
		}
		seen[depID] = true
		if depID == task.ID {
			return &types.CycleError{Path: []string{task.ID, task.ID}}
		}
		dep, err := getTask(ctx, tx, depID)
		if types.IsNotFound(err) {
			return &types.UnknownDependencyError{ID: depID}
		}
		if err != nil {
			return err
		}
		if !dep.Status.Satisfies() {
			blocked = true
		}
		edges = append(edges, depID)
	}

	if blocked {
		task.Status = types.StatusBlocked
	} else {
		task.Status = types.StatusPending
	}

	criteria, err := types.EncodeCriteria(task.SuccessCriteria)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, description, status, priority, assignee,
			created_at, updated_at, success_criteria, deadline,
			estimated_hours, actual_hours, completion_summary, rework_of
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.Title, task.Description, string(task.Status), string(task.Priority),
		nullStr(task.Assignee), task.CreatedAt, task.UpdatedAt, nullStr(criteria),
		nullTime(task.Deadline), nullFloat(task.EstimatedHours), nullFloat(task.ActualHours),
		nullStr(task.CompletionSummary), nullStr(task.ReworkOf),
	)
	if err != nil {
		return wrapDBError("insert task", err)
	}

	for _, depID := range edges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (task_id, depends_on_id, created_at, created_by)
			VALUES (?, ?, ?, ?)
		`, task.ID, depID, now, nullStr(actor))
		if err != nil {
			return wrapDBError("insert dependency", err)
		}
	}

	for _, ref := range task.FileRefs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO file_refs (task_id, path, line_start, line_end)
			VALUES (?, ?, ?, ?)
		`, task.ID, ref.Path, zeroNull(ref.LineStart), zeroNull(ref.LineEnd))
		if err != nil {
			return wrapDBError("insert file ref", err)
		}
	}

	for _, tag := range task.Tags {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_tags (task_id, tag) VALUES (?, ?)
		`, task.ID, tag)
		if err != nil {
			return wrapDBError("insert tag", err)
		}
	}

	return recordEvent(ctx, tx, &types.Event{
		TaskID:    task.ID,
		EventType: types.EventCreated,
		Actor:     actor,
		Session:   s.session,
		NewValue:  strPtr(task.Title),
		CreatedAt: now,
	})
}

// zeroNull maps 0 to NULL for optional integer columns.
func zeroNull(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func strPtr(s string) *string { return &s }

// GetTask returns one task by id.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return getTask(ctx, s.db, id)
}

// GetTaskDetail returns the full show view: the task, its graph
// neighborhood, the progress log, and feedback.
func (s *SQLiteStorage) GetTaskDetail(ctx context.Context, id string) (*types.TaskDetail, error) {
	task, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	deps, err := s.GetDependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	dependents, err := s.GetDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	progress, err := s.GetProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	feedback, err := s.GetFeedback(ctx, id)
	if err != nil && !types.IsNotFound(err) {
		return nil, err
	}

	return &types.TaskDetail{
		Task:         task,
		Dependencies: deps,
		Dependents:   dependents,
		Progress:     progress,
		Feedback:     feedback,
	}, nil
}

// ListTasks returns tasks matching the filter, oldest first. Filters
// combine with AND.
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, &types.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", filter.Status)}
		}
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Assignee != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.HasDeps {
		conds = append(conds, "EXISTS (SELECT 1 FROM dependencies d WHERE d.task_id = tasks.id)")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = limitClause
		args = append(args, filter.Limit)
	}

	// #nosec G201 - clauses assembled from constants, values are bound
	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY created_at ASC, id ASC%s`,
		taskColumns, where, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tasks", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*types.Task
	var ids []string
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list tasks", err)
	}

	refs, err := fileRefsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	tags, err := tagsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.FileRefs = refs[t.ID]
		t.Tags = tags[t.ID]
	}
	return tasks, nil
}

// UpdateTask applies recognized field updates and returns the task as
// written. Status changes go through the manual transition table;
// assignment changes notify the new assignee.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) (*types.Task, error) {
	var updated *types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := s.updateTaskTx(ctx, tx, id, updates, actor)
		if err != nil {
			return err
		}
		updated = t
		return nil
	})
	return updated, err
}

func stringUpdate(updates map[string]interface{}, key string) (string, bool, error) {
	raw, ok := updates[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, &types.ValidationError{Field: key, Reason: "expected a string value"}
	}
	return s, true, nil
}

func (s *SQLiteStorage) updateTaskTx(ctx context.Context, tx *sql.Tx, id string, updates map[string]interface{}, actor string) (*types.Task, error) {
	task, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	reopen := false
	if raw, ok := updates["reopen"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, &types.ValidationError{Field: "reopen", Reason: "expected a boolean value"}
		}
		reopen = b
	}

	now := time.Now().UTC()
	var sets []string
	var args []interface{}
	var events []*types.Event
	var notes []*types.Notification
	reopened := false

	if raw, ok, err := stringUpdate(updates, "status"); err != nil {
		return nil, err
	} else if ok {
		to, err := validation.ValidateStatus(raw)
		if err != nil {
			return nil, err
		}
		if err := validation.ValidateTransition(task.Status, to, reopen); err != nil {
			return nil, err
		}
		if to != task.Status {
			evType := types.EventStatusChanged
			if task.Status == types.StatusCompleted {
				evType = types.EventReopened
				reopened = true
			}
			events = append(events, &types.Event{
				TaskID:    id,
				EventType: evType,
				Actor:     actor,
				OldValue:  strPtr(string(task.Status)),
				NewValue:  strPtr(string(to)),
			})
			sets = append(sets, "status = ?")
			args = append(args, string(to))
			task.Status = to
		}
	}

	if raw, ok, err := stringUpdate(updates, "priority"); err != nil {
		return nil, err
	} else if ok {
		p, err := validation.ValidatePriority(raw)
		if err != nil {
			return nil, err
		}
		if p != task.Priority {
			events = append(events, &types.Event{
				TaskID:    id,
				EventType: types.EventUpdated,
				Actor:     actor,
				OldValue:  strPtr(string(task.Priority)),
				NewValue:  strPtr(string(p)),
			})
			sets = append(sets, "priority = ?")
			args = append(args, string(p))
			task.Priority = p
		}
	}

	if raw, ok, err := stringUpdate(updates, "assignee"); err != nil {
		return nil, err
	} else if ok {
		assignee, err := validation.ValidateAgentID(raw)
		if err != nil {
			return nil, err
		}
		if assignee != task.Assignee {
			events = append(events, &types.Event{
				TaskID:    id,
				EventType: types.EventAssigned,
				Actor:     actor,
				OldValue:  strPtr(task.Assignee),
				NewValue:  strPtr(assignee),
			})
			if assignee != "" && assignee != actor {
				notes = append(notes, &types.Notification{
					Recipient: assignee,
					TaskID:    id,
					Kind:      types.NotifyAssignment,
					Message:   fmt.Sprintf("%s assigned you %q (%s)", actor, task.Title, id),
				})
			}
			sets = append(sets, "assignee = ?")
			args = append(args, nullStr(assignee))
			task.Assignee = assignee
		}
	}

	if len(sets) == 0 {
		return task, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	// #nosec G201 - only constant column assignments are formatted in
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = ?`, strings.Join(sets, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, wrapDBError("update task", err)
	}
	task.UpdatedAt = now

	for _, ev := range events {
		ev.Session = s.session
		ev.CreatedAt = now
		if err := recordEvent(ctx, tx, ev); err != nil {
			return nil, err
		}
	}
	for _, n := range notes {
		n.CreatedAt = now
		emitBestEffort(ctx, tx, n)
	}

	// A reopened task's unmet status propagates: dependents that were
	// released by its completion go back to blocked.
	if reopened {
		if err := s.reblockDependents(ctx, tx, id, actor, now); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// AssignTask updates the assignee. Convenience wrapper over UpdateTask
// for callers that do not need the updated task back.
func (s *SQLiteStorage) AssignTask(ctx context.Context, id, assignee, actor string) error {
	_, err := s.UpdateTask(ctx, id, map[string]interface{}{"assignee": assignee}, actor)
	return err
}

// DeleteTask removes a task and all rows referencing it. Without cascade
// it refuses when dependents exist; with cascade it removes the dependent
// closure too and returns every deleted id, the requested one first.
func (s *SQLiteStorage) DeleteTask(ctx context.Context, id string, cascade bool, actor string) ([]string, error) {
	var deleted []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := taskExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return &types.NotFoundError{Kind: "task", ID: id}
		}

		dependents, err := dependentIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(dependents) > 0 && !cascade {
			return &types.DependentsExistError{ID: id, IDs: dependents}
		}

		doomed := []string{id}
		if cascade {
			closure, err := dependentClosure(ctx, tx, id)
			if err != nil {
				return err
			}
			doomed = append(doomed, closure...)
		}

		args := make([]interface{}, len(doomed))
		for i, d := range doomed {
			args[i] = d
		}

		// Notifications are weak references; everything else cascades
		// off the tasks delete through foreign keys.
		// #nosec G201 - only placeholders are formatted in
		cleanup := fmt.Sprintf(`DELETE FROM notifications WHERE task_id IN (%s)`, placeholders(len(doomed)))
		if _, err := tx.ExecContext(ctx, cleanup, args...); err != nil {
			return wrapDBError("delete notifications", err)
		}

		// #nosec G201 - only placeholders are formatted in
		del := fmt.Sprintf(`DELETE FROM tasks WHERE id IN (%s)`, placeholders(len(doomed)))
		if _, err := tx.ExecContext(ctx, del, args...); err != nil {
			return wrapDBError("delete tasks", err)
		}

		now := time.Now().UTC()
		for _, d := range doomed {
			err := recordEvent(ctx, tx, &types.Event{
				TaskID:    d,
				EventType: types.EventDeleted,
				Actor:     actor,
				Session:   s.session,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}

		deleted = doomed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ExportTasks returns the flattened export view for tasks matching filter.
func (s *SQLiteStorage) ExportTasks(ctx context.Context, filter types.TaskFilter) ([]*types.TaskExport, error) {
	tasks, err := s.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	exports := make([]*types.TaskExport, 0, len(tasks))
	if len(tasks) == 0 {
		return exports, nil
	}

	ids := make([]string, len(tasks))
	args := make([]interface{}, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		args[i] = t.ID
	}

	deps := make(map[string][]string)
	dependents := make(map[string][]string)
	// #nosec G201 - only placeholders are formatted in
	edgeQuery := fmt.Sprintf(`
		SELECT task_id, depends_on_id FROM dependencies
		WHERE task_id IN (%[1]s) OR depends_on_id IN (%[1]s)
		ORDER BY task_id, depends_on_id
	`, placeholders(len(ids)))
	edgeArgs := append(append([]interface{}{}, args...), args...)
	rows, err := s.db.QueryContext(ctx, edgeQuery, edgeArgs...)
	if err != nil {
		return nil, wrapDBError("load edges", err)
	}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		deps[from] = append(deps[from], to)
		dependents[to] = append(dependents[to], from)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load edges", err)
	}
	_ = rows.Close()

	progress := make(map[string][]*types.ProgressEntry)
	// #nosec G201 - only placeholders are formatted in
	progQuery := fmt.Sprintf(`
		SELECT id, task_id, agent_id, message, created_at
		FROM progress_entries WHERE task_id IN (%s)
		ORDER BY created_at ASC, id ASC
	`, placeholders(len(ids)))
	rows, err = s.db.QueryContext(ctx, progQuery, args...)
	if err != nil {
		return nil, wrapDBError("load progress", err)
	}
	for rows.Next() {
		var e types.ProgressEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &e.Message, &e.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		progress[e.TaskID] = append(progress[e.TaskID], &e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load progress", err)
	}
	_ = rows.Close()

	feedback := make(map[string]*types.Feedback)
	// #nosec G201 - only placeholders are formatted in
	fbQuery := fmt.Sprintf(`
		SELECT task_id, quality, timeliness, notes, created_at
		FROM feedback WHERE task_id IN (%s)
	`, placeholders(len(ids)))
	rows, err = s.db.QueryContext(ctx, fbQuery, args...)
	if err != nil {
		return nil, wrapDBError("load feedback", err)
	}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		feedback[fb.TaskID] = fb
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load feedback", err)
	}
	_ = rows.Close()

	for _, t := range tasks {
		sort.Strings(dependents[t.ID])
		exports = append(exports, &types.TaskExport{
			Task:       *t,
			Deps:       deps[t.ID],
			Dependents: dependents[t.ID],
			Progress:   progress[t.ID],
			Feedback:   feedback[t.ID],
		})
	}
	return exports, nil
}

// Statistics returns the status census in a single grouped query.
func (s *SQLiteStorage) Statistics(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) as pending,
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0) as in_progress,
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
			COALESCE(SUM(CASE WHEN status = 'blocked' THEN 1 ELSE 0 END), 0) as blocked,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
		FROM tasks
	`).Scan(
		&stats.TotalTasks, &stats.PendingTasks, &stats.InProgressTasks,
		&stats.CompletedTasks, &stats.BlockedTasks, &stats.CancelledTasks,
	)
	if err != nil {
		return nil, wrapDBError("get statistics", err)
	}
	return &stats, nil
}
