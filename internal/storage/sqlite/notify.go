package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/types"
)

// notificationCap bounds how many notifications a single task may
// accumulate. Once reached, further ones are dropped and a single
// truncation marker is recorded so readers know history is incomplete.
const notificationCap = 100

// emitNotification inserts a notification, enforcing the per-task cap.
// Notifications without a task id (system-wide broadcasts) are uncapped.
func emitNotification(ctx context.Context, q dbtx, n *types.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if n.TaskID != "" {
		var count int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM notifications WHERE task_id = ?
		`, n.TaskID).Scan(&count)
		if err != nil {
			return wrapDBError("count notifications", err)
		}
		if count >= notificationCap {
			return markTruncated(ctx, q, n.TaskID, n.CreatedAt)
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (recipient, task_id, kind, message, created_at, read_flag)
		VALUES (?, ?, ?, ?, ?, 0)
	`, nullStr(n.Recipient), nullStr(n.TaskID), string(n.Kind), n.Message, n.CreatedAt)
	if err != nil {
		return wrapDBError("insert notification", err)
	}
	return nil
}

// markTruncated records the one-per-task truncation marker.
func markTruncated(ctx context.Context, q dbtx, taskID string, now time.Time) error {
	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE task_id = ? AND kind = ?
	`, taskID, string(types.NotifyTruncated)).Scan(&exists)
	if err != nil {
		return wrapDBError("check truncation marker", err)
	}
	if exists > 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO notifications (recipient, task_id, kind, message, created_at, read_flag)
		VALUES (NULL, ?, ?, ?, ?, 0)
	`, taskID, string(types.NotifyTruncated),
		fmt.Sprintf("notification limit reached for task %s; older activity is not individually recorded", taskID), now)
	if err != nil {
		return wrapDBError("insert truncation marker", err)
	}
	return nil
}

// emitBestEffort sends a notification without failing the surrounding
// operation. A task update must not be rolled back because its
// notification could not be written.
func emitBestEffort(ctx context.Context, q dbtx, n *types.Notification) {
	if err := emitNotification(ctx, q, n); err != nil {
		debug.Logf("notification emit failed (task=%s kind=%s): %v", n.TaskID, n.Kind, err)
	}
}

// Emit records a notification on its own transaction.
func (s *SQLiteStorage) Emit(ctx context.Context, n *types.Notification) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return emitNotification(ctx, tx, n)
	})
}

// Watch returns the unread notifications visible to an agent, oldest
// first, and marks them read in the same transaction. Unicast rows flip
// their read flag; broadcast reads are tracked per agent so one agent
// consuming a broadcast does not hide it from the others.
func (s *SQLiteStorage) Watch(ctx context.Context, agentID string, limit int) ([]*types.Notification, error) {
	var result []*types.Notification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			SELECT id, recipient, task_id, kind, message, created_at, read_flag
			FROM notifications
			WHERE (recipient = ? AND read_flag = 0)
			   OR (recipient IS NULL AND id NOT IN (
					SELECT notification_id FROM notification_reads WHERE agent_id = ?))
			ORDER BY created_at ASC, id ASC`
		args := []interface{}{agentID, agentID}
		if limit > 0 {
			query += limitClause
			args = append(args, limit)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return wrapDBError("load notifications", err)
		}

		var unicast, broadcast []int64
		result = nil
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				_ = rows.Close()
				return err
			}
			if n.Broadcast() {
				broadcast = append(broadcast, n.ID)
			} else {
				unicast = append(unicast, n.ID)
			}
			result = append(result, n)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return wrapDBError("load notifications", err)
		}
		_ = rows.Close()

		if len(unicast) > 0 {
			args := make([]interface{}, len(unicast))
			for i, id := range unicast {
				args[i] = id
			}
			// #nosec G201 - only placeholders are formatted in
			query := fmt.Sprintf(`UPDATE notifications SET read_flag = 1 WHERE id IN (%s)`,
				placeholders(len(unicast)))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return wrapDBError("mark notifications read", err)
			}
		}
		for _, id := range broadcast {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO notification_reads (notification_id, agent_id, read_at)
				VALUES (?, ?, ?)
			`, id, agentID, time.Now().UTC())
			if err != nil {
				return wrapDBError("mark broadcast read", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnreadCount reports how many notifications Watch would return for an
// agent, without consuming them.
func (s *SQLiteStorage) UnreadCount(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE (recipient = ? AND read_flag = 0)
		   OR (recipient IS NULL AND id NOT IN (
				SELECT notification_id FROM notification_reads WHERE agent_id = ?))
	`, agentID, agentID).Scan(&n)
	if err != nil {
		return 0, wrapDBError("count unread notifications", err)
	}
	return n, nil
}

func scanNotification(rs rowScanner) (*types.Notification, error) {
	var n types.Notification
	var recipient, taskID sql.NullString
	var kind string
	var readFlag int
	if err := rs.Scan(&n.ID, &recipient, &taskID, &kind, &n.Message, &n.CreatedAt, &readFlag); err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	if recipient.Valid {
		n.Recipient = recipient.String
	}
	if taskID.Valid {
		n.TaskID = taskID.String
	}
	n.Kind = types.NotificationKind(kind)
	n.Read = readFlag != 0
	return &n, nil
}
