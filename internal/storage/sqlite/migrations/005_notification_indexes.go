package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// applyNotificationIndexes covers the watch query (unread by recipient)
// and per-task cleanup/cap scans.
func applyNotificationIndexes(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read ON notifications(recipient, read_flag, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_task ON notifications(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_reads_agent ON notification_reads(agent_id)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create notification index: %w", err)
		}
	}
	return nil
}
