package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// applyCoreLoopColumns adds the nullable task columns behind success
// criteria, deadlines, time tracking, summaries, and rework links.
// Pre-migration rows stay valid: every column defaults to NULL.
func applyCoreLoopColumns(ctx context.Context, tx *sql.Tx) error {
	columns := []struct {
		name string
		ddl  string
	}{
		{"success_criteria", `ALTER TABLE tasks ADD COLUMN success_criteria TEXT`},
		{"deadline", `ALTER TABLE tasks ADD COLUMN deadline DATETIME`},
		{"estimated_hours", `ALTER TABLE tasks ADD COLUMN estimated_hours REAL`},
		{"actual_hours", `ALTER TABLE tasks ADD COLUMN actual_hours REAL`},
		{"completion_summary", `ALTER TABLE tasks ADD COLUMN completion_summary TEXT`},
		{"rework_of", `ALTER TABLE tasks ADD COLUMN rework_of TEXT`},
	}

	for _, col := range columns {
		exists, err := columnExists(ctx, tx, "tasks", col.name)
		if err != nil {
			return fmt.Errorf("failed to probe tasks.%s: %w", col.name, err)
		}
		if exists {
			continue
		}
		if _, err := tx.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("failed to add tasks.%s: %w", col.name, err)
		}
	}

	return nil
}
