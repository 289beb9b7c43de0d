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

// JoinTask records an agent's participation in a task. Joining twice is
// allowed and updates the role.
func (s *SQLiteStorage) JoinTask(ctx context.Context, taskID, agentID, role string) error {
	agentID, err := validation.ValidateAgentID(agentID)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := taskExists(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !exists {
			return &types.NotFoundError{Kind: "task", ID: taskID}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_participants (task_id, agent_id, role, joined_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (task_id, agent_id) DO UPDATE SET role = excluded.role
		`, taskID, agentID, role, time.Now().UTC())
		if err != nil {
			return wrapDBError("join task", err)
		}
		return nil
	})
}

// AddContext appends an entry to a task's shared context log and returns
// it with its assigned id and timestamp.
func (s *SQLiteStorage) AddContext(ctx context.Context, entry *types.ContextEntry) (*types.ContextEntry, error) {
	if !entry.Kind.IsValid() {
		return nil, &types.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown context type %q", entry.Kind)}
	}
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
		return insertContextEntry(ctx, tx, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func insertContextEntry(ctx context.Context, tx *sql.Tx, entry *types.ContextEntry) error {
	exists, err := taskExists(ctx, tx, entry.TaskID)
	if err != nil {
		return err
	}
	if !exists {
		return &types.NotFoundError{Kind: "task", ID: entry.TaskID}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO context_entries (task_id, agent_id, kind, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.TaskID, entry.AgentID, string(entry.Kind), entry.Message, entry.CreatedAt)
	if err != nil {
		return wrapDBError("insert context entry", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get entry id: %w", err)
	}
	return nil
}

// AddNote appends a private note. Notes are scoped to their author and
// never appear in another agent's context view.
func (s *SQLiteStorage) AddNote(ctx context.Context, note *types.PrivateNote) (*types.PrivateNote, error) {
	msg, err := validation.ValidateMessage(note.Message)
	if err != nil {
		return nil, err
	}
	agentID, err := validation.ValidateAgentID(note.AgentID)
	if err != nil {
		return nil, err
	}

	out := *note
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
			INSERT INTO private_notes (task_id, agent_id, message, created_at)
			VALUES (?, ?, ?, ?)
		`, out.TaskID, out.AgentID, out.Message, out.CreatedAt)
		if err != nil {
			return wrapDBError("insert private note", err)
		}
		out.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get note id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContext assembles the collaboration view for a task: every shared
// entry in chronological order, the caller's own private notes, and the
// participant roster.
func (s *SQLiteStorage) GetContext(ctx context.Context, taskID, agentID string) (*types.TaskContext, error) {
	exists, err := taskExists(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &types.NotFoundError{Kind: "task", ID: taskID}
	}

	tc := &types.TaskContext{TaskID: taskID}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_id, kind, message, created_at
		FROM context_entries
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load context entries", err)
	}
	for rows.Next() {
		var e types.ContextEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &kind, &e.Message, &e.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan context entry: %w", err)
		}
		e.Kind = types.ContextKind(kind)
		tc.Shared = append(tc.Shared, &e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load context entries", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_id, message, created_at
		FROM private_notes
		WHERE task_id = ? AND agent_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID, agentID)
	if err != nil {
		return nil, wrapDBError("load private notes", err)
	}
	for rows.Next() {
		var n types.PrivateNote
		if err := rows.Scan(&n.ID, &n.TaskID, &n.AgentID, &n.Message, &n.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan private note: %w", err)
		}
		tc.Private = append(tc.Private, &n)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("load private notes", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT task_id, agent_id, role, joined_at
		FROM task_participants
		WHERE task_id = ?
		ORDER BY joined_at ASC, agent_id ASC
	`, taskID)
	if err != nil {
		return nil, wrapDBError("load participants", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p types.Participant
		if err := rows.Scan(&p.TaskID, &p.AgentID, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		tc.Participants = append(tc.Participants, &p)
	}
	return tc, rows.Err()
}

// SyncPoint records a named checkpoint in shared context and broadcasts
// it so other agents can align on it.
func (s *SQLiteStorage) SyncPoint(ctx context.Context, taskID, agentID, checkpoint string) (*types.ContextEntry, error) {
	msg, err := validation.ValidateMessage(checkpoint)
	if err != nil {
		return nil, err
	}
	agentID, err = validation.ValidateAgentID(agentID)
	if err != nil {
		return nil, err
	}

	entry := &types.ContextEntry{
		TaskID:  taskID,
		AgentID: agentID,
		Kind:    types.ContextSync,
		Message: msg,
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertContextEntry(ctx, tx, entry); err != nil {
			return err
		}
		emitBestEffort(ctx, tx, &types.Notification{
			TaskID:    taskID,
			Kind:      types.NotifySyncPoint,
			Message:   fmt.Sprintf("%s reached sync point %q on task %s", agentID, msg, taskID),
			CreatedAt: entry.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Discover records a discovery in shared context, merges any tags into
// the task's tag set, and broadcasts the finding.
func (s *SQLiteStorage) Discover(ctx context.Context, taskID, agentID, message, impact string, tags []string) (*types.ContextEntry, error) {
	msg, err := validation.ValidateMessage(message)
	if err != nil {
		return nil, err
	}
	agentID, err = validation.ValidateAgentID(agentID)
	if err != nil {
		return nil, err
	}
	tags, err = validation.NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	stored := msg
	if impact = strings.TrimSpace(impact); impact != "" {
		stored = msg + "\nimpact: " + impact
	}

	entry := &types.ContextEntry{
		TaskID:  taskID,
		AgentID: agentID,
		Kind:    types.ContextDiscovery,
		Message: stored,
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertContextEntry(ctx, tx, entry); err != nil {
			return err
		}
		for _, tag := range tags {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO task_tags (task_id, tag) VALUES (?, ?)
			`, taskID, tag)
			if err != nil {
				return wrapDBError("merge discovery tag", err)
			}
		}
		emitBestEffort(ctx, tx, &types.Notification{
			TaskID:    taskID,
			Kind:      types.NotifyDiscovery,
			Message:   fmt.Sprintf("%s on task %s: %s", agentID, taskID, msg),
			CreatedAt: entry.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
