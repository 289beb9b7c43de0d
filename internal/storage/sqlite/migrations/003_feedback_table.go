package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// applyFeedbackTable adds the one-row-per-task feedback store. Scores are
// 1-5; NULL means the dimension was not scored.
func applyFeedbackTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feedback (
		    task_id TEXT PRIMARY KEY,
		    quality INTEGER CHECK(quality IS NULL OR (quality >= 1 AND quality <= 5)),
		    timeliness INTEGER CHECK(timeliness IS NULL OR (timeliness >= 1 AND timeliness <= 5)),
		    notes TEXT NOT NULL DEFAULT '',
		    created_at DATETIME NOT NULL,
		    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create feedback table: %w", err)
	}
	return nil
}
