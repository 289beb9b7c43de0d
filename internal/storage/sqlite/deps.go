package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// dependencyIDs returns the ids a task directly depends on.
func dependencyIDs(ctx context.Context, q dbtx, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT depends_on_id FROM dependencies
		WHERE task_id = ?
		ORDER BY depends_on_id
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load dependencies", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// dependentIDs returns the ids that directly depend on a task.
func dependentIDs(ctx context.Context, q dbtx, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT task_id FROM dependencies
		WHERE depends_on_id = ?
		ORDER BY task_id
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load dependents", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dependent: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// dependentClosure returns every transitive dependent of taskID,
// excluding the task itself.
func dependentClosure(ctx context.Context, q dbtx, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE doomed(id) AS (
			SELECT task_id FROM dependencies WHERE depends_on_id = ?
			UNION
			SELECT d.task_id FROM dependencies d JOIN doomed ON d.depends_on_id = doomed.id
		)
		SELECT id FROM doomed ORDER BY id
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load dependent closure", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dependent closure: %w", err)
		}
		if id != taskID {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// unmetDependencyCount counts deps of taskID whose status does not satisfy.
func unmetDependencyCount(ctx context.Context, q dbtx, taskID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM dependencies d
		JOIN tasks dep ON dep.id = d.depends_on_id
		WHERE d.task_id = ? AND dep.status != 'completed'
	`, taskID).Scan(&n)
	if err != nil {
		return 0, wrapDBError("count unmet dependencies", err)
	}
	return n, nil
}

// findCyclePath searches for a dependency path from start to target,
// depth-first. A non-nil result means adding edge target -> start would
// close a cycle; the slice holds the vertices from start to target.
func findCyclePath(ctx context.Context, q dbtx, start, target string) ([]string, error) {
	adj := make(map[string][]string)
	loaded := make(map[string]bool)

	var dfs func(node string, path []string) ([]string, error)
	dfs = func(node string, path []string) ([]string, error) {
		path = append(path, node)
		if node == target {
			return path, nil
		}
		if !loaded[node] {
			deps, err := dependencyIDs(ctx, q, node)
			if err != nil {
				return nil, err
			}
			adj[node] = deps
			loaded[node] = true
		}
		for _, next := range adj[node] {
			seen := false
			for _, p := range path {
				if p == next {
					seen = true
					break
				}
			}
			if seen {
				continue
			}
			found, err := dfs(next, path)
			if err != nil || found != nil {
				return found, err
			}
		}
		return nil, nil
	}

	return dfs(start, nil)
}

// AddDependency inserts an edge after cycle and existence checks, blocking
// the dependent when the new dependency is not completed.
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.addDependencyTx(ctx, tx, dep, actor)
	})
}

func (s *SQLiteStorage) addDependencyTx(ctx context.Context, tx *sql.Tx, dep *types.Dependency, actor string) error {
	if dep.TaskID == dep.DependsOnID {
		return &types.CycleError{Path: []string{dep.TaskID, dep.TaskID}}
	}

	task, err := getTask(ctx, tx, dep.TaskID)
	if err != nil {
		return err
	}
	target, err := getTask(ctx, tx, dep.DependsOnID)
	if types.IsNotFound(err) {
		return &types.UnknownDependencyError{ID: dep.DependsOnID}
	}
	if err != nil {
		return err
	}

	// Reject the edge if the target can already reach the task.
	path, err := findCyclePath(ctx, tx, dep.DependsOnID, dep.TaskID)
	if err != nil {
		return err
	}
	if path != nil {
		cycle := append([]string{dep.TaskID}, path...)
		return &types.CycleError{Path: cycle}
	}

	now := time.Now().UTC()
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = now
	}
	if dep.CreatedBy == "" {
		dep.CreatedBy = actor
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO dependencies (task_id, depends_on_id, created_at, created_by)
		VALUES (?, ?, ?, ?)
	`, dep.TaskID, dep.DependsOnID, dep.CreatedAt, nullStr(dep.CreatedBy))
	if err != nil {
		return wrapDBError("insert dependency", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		// Edge already present; adding it again is a no-op.
		return nil
	}

	if err := recordEvent(ctx, tx, &types.Event{
		TaskID:    dep.TaskID,
		EventType: types.EventDependencyAdded,
		Actor:     actor,
		Session:   s.session,
		NewValue:  strPtr(dep.DependsOnID),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	// An unmet dependency pulls a pending task back to blocked.
	if !target.Status.Satisfies() && task.Status == types.StatusPending {
		return setStatusTx(ctx, tx, s.session, dep.TaskID, task.Status, types.StatusBlocked, actor, now)
	}
	return nil
}

// RemoveDependency deletes an edge and unblocks the task when the removed
// edge was its last unmet dependency.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.removeDependencyTx(ctx, tx, taskID, dependsOnID, actor)
	})
}

func (s *SQLiteStorage) removeDependencyTx(ctx context.Context, tx *sql.Tx, taskID, dependsOnID, actor string) error {
	task, err := getTask(ctx, tx, taskID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM dependencies WHERE task_id = ? AND depends_on_id = ?
	`, taskID, dependsOnID)
	if err != nil {
		return wrapDBError("delete dependency", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &types.NotFoundError{Kind: "dependency", ID: taskID + " -> " + dependsOnID}
	}

	now := time.Now().UTC()
	if err := recordEvent(ctx, tx, &types.Event{
		TaskID:    taskID,
		EventType: types.EventDependencyRemoved,
		Actor:     actor,
		Session:   s.session,
		OldValue:  strPtr(dependsOnID),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if task.Status != types.StatusBlocked {
		return nil
	}
	unmet, err := unmetDependencyCount(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if unmet > 0 {
		return nil
	}

	if err := setStatusTx(ctx, tx, s.session, taskID, task.Status, types.StatusPending, actor, now); err != nil {
		return err
	}
	emitUnblocked(ctx, tx, task, now)
	return nil
}

// setStatusTx writes an automatic (dependency-driven) status change with
// its audit event. Manual transitions go through updateTaskTx instead.
func setStatusTx(ctx context.Context, tx *sql.Tx, session, taskID string, from, to types.Status, actor string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, string(to), now, taskID)
	if err != nil {
		return wrapDBError("set status", err)
	}
	return recordEvent(ctx, tx, &types.Event{
		TaskID:    taskID,
		EventType: types.EventStatusChanged,
		Actor:     actor,
		Session:   session,
		OldValue:  strPtr(string(from)),
		NewValue:  strPtr(string(to)),
		CreatedAt: now,
	})
}

// emitUnblocked sends the task_unblocked pair: unicast to the assignee
// when there is one, and a broadcast for watchers.
func emitUnblocked(ctx context.Context, q dbtx, task *types.Task, now time.Time) {
	msg := fmt.Sprintf("task %q (%s) is unblocked and ready to start", task.Title, task.ID)
	if task.Assignee != "" {
		emitBestEffort(ctx, q, &types.Notification{
			Recipient: task.Assignee,
			TaskID:    task.ID,
			Kind:      types.NotifyTaskUnblocked,
			Message:   msg,
			CreatedAt: now,
		})
	}
	emitBestEffort(ctx, q, &types.Notification{
		TaskID:    task.ID,
		Kind:      types.NotifyTaskUnblocked,
		Message:   msg,
		CreatedAt: now,
	})
}

// cascadeUnblock flips every blocked dependent of completedID whose
// remaining dependencies are all completed to pending, inside the same
// transaction as the completion. Returns the tasks it released.
func (s *SQLiteStorage) cascadeUnblock(ctx context.Context, tx *sql.Tx, completedID, actor string, now time.Time) ([]*types.Task, error) {
	ids, err := dependentIDs(ctx, tx, completedID)
	if err != nil {
		return nil, err
	}

	var unblocked []*types.Task
	for _, id := range ids {
		dependent, err := getTask(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if dependent.Status != types.StatusBlocked {
			continue
		}
		unmet, err := unmetDependencyCount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if unmet > 0 {
			continue
		}

		if err := setStatusTx(ctx, tx, s.session, id, dependent.Status, types.StatusPending, actor, now); err != nil {
			return nil, err
		}
		dependent.Status = types.StatusPending
		dependent.UpdatedAt = now
		emitUnblocked(ctx, tx, dependent, now)
		unblocked = append(unblocked, dependent)
	}
	return unblocked, nil
}

// reblockDependents pulls pending dependents of a reopened task back to
// blocked so their status keeps reflecting the unmet dependency.
func (s *SQLiteStorage) reblockDependents(ctx context.Context, tx *sql.Tx, reopenedID, actor string, now time.Time) error {
	ids, err := dependentIDs(ctx, tx, reopenedID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		dependent, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if dependent.Status != types.StatusPending {
			continue
		}
		if err := setStatusTx(ctx, tx, s.session, id, dependent.Status, types.StatusBlocked, actor, now); err != nil {
			return err
		}
	}
	return nil
}

// tasksByIDs loads full task rows for a set of ids, ordered by created_at.
func (s *SQLiteStorage) tasksByIDs(ctx context.Context, ids []string) ([]*types.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// #nosec G201 - only placeholders are formatted in
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id IN (%s) ORDER BY created_at ASC, id ASC`,
		taskColumns, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load tasks", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetDependencies returns the tasks that taskID depends on.
func (s *SQLiteStorage) GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error) {
	exists, err := taskExists(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &types.NotFoundError{Kind: "task", ID: taskID}
	}
	ids, err := dependencyIDs(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	return s.tasksByIDs(ctx, ids)
}

// GetDependents returns the tasks that depend on taskID.
func (s *SQLiteStorage) GetDependents(ctx context.Context, taskID string) ([]*types.Task, error) {
	exists, err := taskExists(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &types.NotFoundError{Kind: "task", ID: taskID}
	}
	ids, err := dependentIDs(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	return s.tasksByIDs(ctx, ids)
}

// ValidateGraph audits the whole dependency graph: cycles, dangling
// edges, and statuses that disagree with the blocked-iff-unmet rule.
// Anomalies should never occur in normal operation.
func (s *SQLiteStorage) ValidateGraph(ctx context.Context) (*types.GraphReport, error) {
	report := &types.GraphReport{}

	statuses := make(map[string]types.Status)
	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM tasks`)
	if err != nil {
		return nil, wrapDBError("load tasks for audit", err)
	}
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan task status: %w", err)
		}
		statuses[id] = types.Status(status)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load tasks for audit", err)
	}
	_ = rows.Close()
	report.Tasks = len(statuses)

	adj := make(map[string][]string)
	rows, err = s.db.QueryContext(ctx, `SELECT task_id, depends_on_id FROM dependencies ORDER BY task_id, depends_on_id`)
	if err != nil {
		return nil, wrapDBError("load edges for audit", err)
	}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		report.Edges++
		if _, ok := statuses[from]; !ok {
			report.Issues = append(report.Issues, &types.GraphIssue{
				Kind:   types.GraphIssueDanglingEdge,
				TaskID: from,
				Detail: fmt.Sprintf("edge %s -> %s references missing task %s", from, to, from),
			})
			continue
		}
		if _, ok := statuses[to]; !ok {
			report.Issues = append(report.Issues, &types.GraphIssue{
				Kind:   types.GraphIssueDanglingEdge,
				TaskID: to,
				Detail: fmt.Sprintf("edge %s -> %s references missing task %s", from, to, to),
			})
			continue
		}
		adj[from] = append(adj[from], to)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load edges for audit", err)
	}
	_ = rows.Close()

	// Color DFS over the whole graph; gray back-edges mark cycles.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(statuses))
	var stack []string

	var visit func(node string) []string
	visit = func(node string) []string {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range adj[node] {
			switch color[next] {
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			case gray:
				// Slice the current stack from the repeated vertex.
				for i, v := range stack {
					if v == next {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, next)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
		return nil
	}

	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] != white {
			continue
		}
		stack = stack[:0]
		if cycle := visit(id); cycle != nil {
			report.Issues = append(report.Issues, &types.GraphIssue{
				Kind:   types.GraphIssueCycle,
				TaskID: cycle[0],
				Path:   cycle,
				Detail: "dependency cycle detected",
			})
		}
	}

	// Status audit: blocked tasks need an unmet dep, open tasks must not
	// have one. Completed and cancelled tasks are exempt.
	for _, id := range ids {
		status := statuses[id]
		if status == types.StatusCompleted || status == types.StatusCancelled {
			continue
		}
		unmet := 0
		for _, dep := range adj[id] {
			if !statuses[dep].Satisfies() {
				unmet++
			}
		}
		switch {
		case status == types.StatusBlocked && unmet == 0:
			report.Issues = append(report.Issues, &types.GraphIssue{
				Kind:   types.GraphIssueWrongStatus,
				TaskID: id,
				Detail: "blocked but all dependencies are completed",
			})
		case status == types.StatusPending && unmet > 0:
			report.Issues = append(report.Issues, &types.GraphIssue{
				Kind:   types.GraphIssueWrongStatus,
				TaskID: id,
				Detail: fmt.Sprintf("pending with %d unmet dependencies", unmet),
			})
		}
	}

	return report, nil
}

// CriticalPath returns the longest dependency chain weighted by
// estimated_hours, in execution order. Read-only reporting; tasks
// without an estimate weigh zero.
func (s *SQLiteStorage) CriticalPath(ctx context.Context) (*types.CriticalPath, error) {
	hours := make(map[string]float64)
	rows, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(estimated_hours, 0) FROM tasks`)
	if err != nil {
		return nil, wrapDBError("load tasks for critical path", err)
	}
	for rows.Next() {
		var id string
		var h float64
		if err := rows.Scan(&id, &h); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		hours[id] = h
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load tasks for critical path", err)
	}
	_ = rows.Close()

	adj := make(map[string][]string)
	rows, err = s.db.QueryContext(ctx, `SELECT task_id, depends_on_id FROM dependencies ORDER BY task_id, depends_on_id`)
	if err != nil {
		return nil, wrapDBError("load edges for critical path", err)
	}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		adj[from] = append(adj[from], to)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load edges for critical path", err)
	}
	_ = rows.Close()

	// Memoized longest chain ending at each node, following edges toward
	// dependencies. A cycle would recurse forever, so carry an on-stack
	// guard and skip back-edges; ValidateGraph reports those separately.
	memo := make(map[string]float64, len(hours))
	next := make(map[string]string, len(hours))
	onStack := make(map[string]bool)

	var longest func(id string) float64
	longest = func(id string) float64 {
		if v, ok := memo[id]; ok {
			return v
		}
		onStack[id] = true
		best := 0.0
		bestNext := ""
		deps := append([]string{}, adj[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if onStack[dep] {
				continue
			}
			if v := longest(dep); v > best || (v == best && bestNext == "") {
				best = v
				bestNext = dep
			}
		}
		onStack[id] = false
		memo[id] = hours[id] + best
		if bestNext != "" {
			next[id] = bestNext
		}
		return memo[id]
	}

	ids := make([]string, 0, len(hours))
	for id := range hours {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestStart := ""
	bestTotal := -1.0
	for _, id := range ids {
		if v := longest(id); v > bestTotal {
			bestTotal = v
			bestStart = id
		}
	}

	result := &types.CriticalPath{}
	if bestStart == "" {
		return result, nil
	}
	result.TotalHours = bestTotal

	// Chain runs start -> ... -> deepest dependency; execution order is
	// the reverse.
	var chain []string
	for id := bestStart; id != ""; id = next[id] {
		chain = append(chain, id)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	tasks, err := s.tasksByIDs(ctx, chain)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, id := range chain {
		if t, ok := byID[id]; ok {
			result.Tasks = append(result.Tasks, t)
		}
	}
	return result, nil
}
