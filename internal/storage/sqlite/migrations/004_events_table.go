package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// applyEventsTable adds the audit trail. task_id carries no foreign key so
// events outlive deleted tasks as tombstone records.
func applyEventsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
		    id INTEGER PRIMARY KEY AUTOINCREMENT,
		    task_id TEXT NOT NULL,
		    event_type TEXT NOT NULL,
		    actor TEXT NOT NULL,
		    session TEXT,
		    old_value TEXT,
		    new_value TEXT,
		    created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events index: %w", err)
	}
	return nil
}
