// Package sqlite implements the storage interfaces on an embedded SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite/migrations"
	"github.com/taskmesh/taskmesh/internal/types"
)

// Busy retry budget: 50 ms initial, doubled per attempt, capped at 2 s,
// at most 5 attempts.
const (
	busyRetryBase = 50 * time.Millisecond
	busyRetryCap  = 2 * time.Second
	busyRetryMax  = 5
)

// SQLiteStorage implements storage.Storage on a single database file.
type SQLiteStorage struct {
	db      *sql.DB
	path    string
	session string
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// connString builds the driver DSN. Pragmas ride along on every connection
// in the pool; _txlock=immediate makes BeginTx take the write lock up front.
func connString(path string) string {
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(path)
	b.WriteString("?_pragma=busy_timeout(5000)")
	b.WriteString("&_pragma=journal_mode(WAL)")
	b.WriteString("&_pragma=foreign_keys(ON)")
	b.WriteString("&_pragma=synchronous(NORMAL)")
	b.WriteString("&_txlock=immediate")
	b.WriteString("&_time_format=sqlite")
	return b.String()
}

// New opens the task store at dbPath, creating the file if needed. The
// schema is not created here; migrations own that (run by init/migrate).
// The file's integrity is verified before first use and a CorruptStore
// error is surfaced rather than silently repairing anything.
func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsPermission(err) {
			return nil, &types.PermissionDeniedError{Path: dir, Err: err}
		}
		return nil, &types.StorageUnavailableError{Path: dir, Err: err}
	}

	db, err := sql.Open("sqlite3", connString(dbPath))
	if err != nil {
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if os.IsPermission(err) {
			return nil, &types.PermissionDeniedError{Path: dbPath, Err: err}
		}
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: err}
	}

	var verdict string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&verdict); err != nil {
		_ = db.Close()
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: err}
	}
	if verdict != "ok" {
		_ = db.Close()
		return nil, &types.CorruptStoreError{Path: dbPath, Detail: verdict}
	}

	return &SQLiteStorage{
		db:      db,
		path:    dbPath,
		session: uuid.NewString(),
	}, nil
}

// Open is New for an existing store: it refuses to create the file and
// requires the schema to be present, so commands other than init get a
// clear "not initialized" failure instead of an empty database.
func Open(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsPermission(err) {
			return nil, &types.PermissionDeniedError{Path: dbPath, Err: err}
		}
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: storage.ErrNotInitialized}
	}

	s, err := New(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	present, err := s.schemaPresent(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if !present {
		_ = s.Close()
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: storage.ErrNotInitialized}
	}

	behind, err := s.migrationsPending(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if behind {
		_ = s.Close()
		return nil, &types.StorageUnavailableError{Path: dbPath, Err: storage.ErrMigrationsPending}
	}
	return s, nil
}

// migrationsPending reports whether the schema is behind this binary's
// registered migrations.
func (s *SQLiteStorage) migrationsPending(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n == 0 {
		return true, nil
	}

	var latest sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&latest)
	if err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return !latest.Valid || int(latest.Int64) < migrations.Latest(), nil
}

// schemaPresent reports whether the base schema has been created.
func (s *SQLiteStorage) schemaPresent(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'tasks'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

// Close closes the underlying connection pool.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.path }

// Session returns the per-invocation session id stamped on audit events.
func (s *SQLiteStorage) Session() string { return s.session }

// UnderlyingDB exposes the raw pool for extensions. Bypasses this layer.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB { return s.db }

// dbtx is the intersection of *sql.DB and *sql.Tx that the shared query
// helpers need, so single-statement ops and transactional ops reuse them.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// isBusyError reports whether err is SQLite contention rather than a real
// failure. The driver surfaces these as strings, so match on them.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// wrapDBError annotates a database failure with the operation that hit it,
// converting contention into the shared Busy error.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		return fmt.Errorf("%s: %w", op, types.ErrBusy)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// withTx runs fn inside a single transaction: commit on nil, rollback on
// error or panic. Contention retries the whole transaction with backoff
// (the rolled-back attempt left no trace), then surfaces Busy.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	delay := busyRetryBase
	var err error
	for attempt := 1; attempt <= busyRetryMax; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isBusyError(err) {
			return err
		}
		debug.Logf("transaction busy (attempt %d/%d), retrying in %v", attempt, busyRetryMax, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > busyRetryCap {
			delay = busyRetryCap
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", types.ErrBusy)
}

func (s *SQLiteStorage) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// RunInTransaction exposes withTx through the storage.Transaction surface.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&txStorage{tx: tx, store: s})
	})
}

// txStorage adapts a live *sql.Tx to storage.Transaction by delegating to
// the same helpers the storage-level methods use.
type txStorage struct {
	tx    *sql.Tx
	store *SQLiteStorage
}

var _ storage.Transaction = (*txStorage)(nil)

func (t *txStorage) CreateTask(ctx context.Context, task *types.Task, actor string) error {
	return t.store.createTaskTx(ctx, t.tx, task, nil, actor)
}

func (t *txStorage) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return getTask(ctx, t.tx, id)
}

func (t *txStorage) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	_, err := t.store.updateTaskTx(ctx, t.tx, id, updates, actor)
	return err
}

func (t *txStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return t.store.addDependencyTx(ctx, t.tx, dep, actor)
}

func (t *txStorage) RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	return t.store.removeDependencyTx(ctx, t.tx, taskID, dependsOnID, actor)
}

func (t *txStorage) Emit(ctx context.Context, n *types.Notification) error {
	return emitNotification(ctx, t.tx, n)
}

func (t *txStorage) SetConfig(ctx context.Context, key, value string) error {
	return setKV(ctx, t.tx, "config", key, value)
}

func (t *txStorage) GetConfig(ctx context.Context, key string) (string, error) {
	return getKV(ctx, t.tx, "config", key)
}

func (t *txStorage) SetMetadata(ctx context.Context, key, value string) error {
	return setKV(ctx, t.tx, "metadata", key, value)
}

func (t *txStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	return getKV(ctx, t.tx, "metadata", key)
}

// setKV upserts into one of the two key/value tables.
func setKV(ctx context.Context, q dbtx, table, key, value string) error {
	// #nosec G201 - table is one of two compile-time constants
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, table)
	if _, err := q.ExecContext(ctx, query, key, value); err != nil {
		return wrapDBError(fmt.Sprintf("set %s %q", table, key), err)
	}
	return nil
}

// getKV reads from one of the two key/value tables; missing keys read as "".
func getKV(ctx context.Context, q dbtx, table, key string) (string, error) {
	// #nosec G201 - table is one of two compile-time constants
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, table)
	var value string
	err := q.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapDBError(fmt.Sprintf("get %s %q", table, key), err)
	}
	return value, nil
}

// SetConfig stores a configuration key in the database.
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	return setKV(ctx, s.db, "config", key, value)
}

// GetConfig reads a configuration key; missing keys read as empty.
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	return getKV(ctx, s.db, "config", key)
}

// GetAllConfig returns every configuration key/value pair.
func (s *SQLiteStorage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, wrapDBError("list config", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// DeleteConfig removes a configuration key. Missing keys are a no-op.
func (s *SQLiteStorage) DeleteConfig(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key); err != nil {
		return wrapDBError(fmt.Sprintf("delete config %q", key), err)
	}
	return nil
}

// SetMetadata stores an internal state key (schema fingerprints, versions).
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	return setKV(ctx, s.db, "metadata", key, value)
}

// GetMetadata reads an internal state key; missing keys read as empty.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	return getKV(ctx, s.db, "metadata", key)
}

// nullStr maps "" to NULL for nullable text columns.
func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullFloat maps nil to NULL for nullable numeric columns.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullTime maps nil to NULL for nullable timestamp columns.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
