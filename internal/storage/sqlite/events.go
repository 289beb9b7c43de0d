package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// recordEvent appends one row to the audit log. Events carry no foreign
// key to tasks so they survive deletion as tombstone records.
func recordEvent(ctx context.Context, q dbtx, ev *types.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO events (task_id, event_type, actor, session, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.TaskID, string(ev.EventType), ev.Actor, nullStr(ev.Session),
		ev.OldValue, ev.NewValue, ev.CreatedAt)
	if err != nil {
		return wrapDBError("record event", err)
	}
	return nil
}

// Events returns the audit trail for a task, oldest first. The task does
// not have to exist anymore, so deleted tasks keep a readable history.
func (s *SQLiteStorage) Events(ctx context.Context, taskID string, limit int) ([]*types.Event, error) {
	query := `
		SELECT id, task_id, event_type, actor, session, old_value, new_value, created_at
		FROM events
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC`
	args := []interface{}{taskID}
	if limit > 0 {
		query += limitClause
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(rs rowScanner) (*types.Event, error) {
	var ev types.Event
	var eventType string
	var actor, session sql.NullString
	if err := rs.Scan(&ev.ID, &ev.TaskID, &eventType, &actor, &session,
		&ev.OldValue, &ev.NewValue, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	ev.EventType = types.EventType(eventType)
	if actor.Valid {
		ev.Actor = actor.String
	}
	if session.Valid {
		ev.Session = session.String
	}
	return &ev, nil
}
