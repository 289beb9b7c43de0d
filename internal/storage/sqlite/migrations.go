// Package sqlite - versioned schema migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite/migrations"
	"github.com/taskmesh/taskmesh/internal/types"
)

// Migrator applies the forward-only migration sequence to a store.
// Callers hold the advisory lock across Status/Apply so concurrent
// migrate runs serialize; a second run sees the versions recorded by
// the first and does nothing.
type Migrator struct {
	store     *SQLiteStorage
	backupDir string
}

// NewMigrator returns a Migrator writing file backups into backupDir.
func NewMigrator(store *SQLiteStorage, backupDir string) *Migrator {
	return &Migrator{store: store, backupDir: backupDir}
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version   int       `json:"version"`
	Name      string    `json:"name,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// PendingMigration is a registered step not yet applied.
type PendingMigration struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

// MigrationStatus reports applied and pending versions.
type MigrationStatus struct {
	Applied []AppliedMigration `json:"applied"`
	Pending []PendingMigration `json:"pending"`
}

// ApplyResult describes one migration that Apply ran.
type ApplyResult struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Backup  string `json:"backup"`
}

// ensureMigrationTable bootstraps schema_migrations so Status works on a
// fresh database before any step has run.
func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.store.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    version INTEGER PRIMARY KEY,
		    applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// appliedVersions returns the recorded version set.
func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.store.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, wrapDBError("read schema_migrations", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var raw string
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations row: %w", err)
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			// Tolerate foreign timestamp formats; the version is what matters.
			at = time.Time{}
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Status lists applied versions and the registered steps still pending.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string)
	status := &MigrationStatus{}
	for _, step := range migrations.All() {
		names[step.Version] = step.Name
		if _, ok := applied[step.Version]; !ok {
			status.Pending = append(status.Pending, PendingMigration{Version: step.Version, Name: step.Name})
		}
	}

	for version, at := range applied {
		status.Applied = append(status.Applied, AppliedMigration{
			Version:   version,
			Name:      names[version],
			AppliedAt: at,
		})
	}
	sort.Slice(status.Applied, func(i, j int) bool {
		return status.Applied[i].Version < status.Applied[j].Version
	})
	return status, nil
}

// Apply runs every pending migration in order. Each version gets a file
// backup first, then the step and its schema_migrations record commit in
// one transaction. The first failure stops the run; committed versions
// stay applied, the failed one leaves no trace beyond its backup.
func (m *Migrator) Apply(ctx context.Context) ([]ApplyResult, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var results []ApplyResult
	for _, step := range migrations.All() {
		if _, ok := applied[step.Version]; ok {
			continue
		}

		backup, err := m.backup(ctx, step.Version)
		if err != nil {
			return results, &types.MigrationError{Version: step.Version, Err: err}
		}
		debug.Logf("migration %03d (%s): backup at %s", step.Version, step.Name, backup)

		err = m.store.withTx(ctx, func(tx *sql.Tx) error {
			if err := step.Apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				step.Version, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("failed to record version: %w", err)
			}
			return nil
		})
		if err != nil {
			return results, &types.MigrationError{Version: step.Version, Err: err}
		}

		results = append(results, ApplyResult{Version: step.Version, Name: step.Name, Backup: backup})
	}
	return results, nil
}

// backup checkpoints the WAL and copies the database file into the backup
// directory. Returns the backup path.
func (m *Migrator) backup(ctx context.Context, version int) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	// Fold WAL content into the main file so the copy is self-contained.
	if _, err := m.store.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return "", fmt.Errorf("failed to checkpoint before backup: %w", err)
	}

	ts := time.Now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("tasks_backup_%s_%03d.db", ts, version)
	dst := filepath.Join(m.backupDir, name)

	if err := copyFile(m.store.path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// RestoreLatestBackup replaces the live database with the newest backup.
// The store must be closed first: the caller owns that, along with the
// advisory lock. The backup file itself is preserved.
func RestoreLatestBackup(dbPath, backupDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(backupDir, "tasks_backup_*.db"))
	if err != nil {
		return "", fmt.Errorf("failed to list backups: %w", err)
	}
	if len(matches) == 0 {
		return "", &types.StorageUnavailableError{Path: backupDir, Err: fmt.Errorf("no backups found")}
	}
	// Names embed a UTC timestamp, so the lexicographic max is the newest.
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	// Copy to a sibling temp file, then rename over the live DB so the
	// replacement is atomic and the backup survives.
	tmp := dbPath + ".restore"
	if err := copyFile(latest, tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to swap in backup: %w", err)
	}

	// Journal sidecars belong to the replaced file; drop them.
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	return latest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return out.Close()
}
