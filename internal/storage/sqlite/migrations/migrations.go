// Package migrations holds the ordered, forward-only schema steps.
//
// Each step runs inside the same transaction that records its version in
// schema_migrations, so a failed step leaves no trace. Steps are written
// idempotently (IF NOT EXISTS, pragma_table_info probes) as a second line
// of defense; the manager additionally skips recorded versions.
package migrations

import (
	"context"
	"database/sql"
)

// Step is one numbered schema change.
type Step struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// All returns every migration in apply order. Versions are contiguous
// starting at 1; new steps append only.
func All() []Step {
	return []Step{
		{Version: 1, Name: "initial_schema", Apply: applyInitialSchema},
		{Version: 2, Name: "core_loop_columns", Apply: applyCoreLoopColumns},
		{Version: 3, Name: "feedback_table", Apply: applyFeedbackTable},
		{Version: 4, Name: "events_table", Apply: applyEventsTable},
		{Version: 5, Name: "notification_indexes", Apply: applyNotificationIndexes},
	}
}

// Latest returns the highest known migration version.
func Latest() int {
	all := All()
	return all[len(all)-1].Version
}

// columnExists probes a table for a column by name.
func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var name string
	err := tx.QueryRowContext(ctx, `
		SELECT name FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
