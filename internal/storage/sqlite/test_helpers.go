package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

// testEnv provides a test environment with common setup and helpers.
// Use newTestEnv(t) to create a test environment with automatic cleanup.
type testEnv struct {
	t     *testing.T
	Store *SQLiteStorage
	Ctx   context.Context
}

// newTestEnv creates a new test environment with a migrated store.
// The store is automatically cleaned up when the test completes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t, "")
	return &testEnv{
		t:     t,
		Store: store,
		Ctx:   context.Background(),
	}
}

// CreateTask creates a test task with the given title and defaults.
// Returns the created task with ID populated.
func (e *testEnv) CreateTask(title string) *types.Task {
	e.t.Helper()
	return e.CreateTaskDeps(title)
}

// CreateTaskDeps creates a test task depending on the given tasks.
func (e *testEnv) CreateTaskDeps(title string, deps ...*types.Task) *types.Task {
	e.t.Helper()
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	task := &types.Task{Title: title}
	if err := e.Store.CreateTask(e.Ctx, task, ids, "test-agent"); err != nil {
		e.t.Fatalf("CreateTask(%q) failed: %v", title, err)
	}
	return task
}

// CreateTaskWith creates a test task with specified attributes.
func (e *testEnv) CreateTaskWith(title string, priority types.Priority, assignee string) *types.Task {
	e.t.Helper()
	task := &types.Task{
		Title:    title,
		Priority: priority,
		Assignee: assignee,
	}
	if err := e.Store.CreateTask(e.Ctx, task, nil, "test-agent"); err != nil {
		e.t.Fatalf("CreateTask(%q) failed: %v", title, err)
	}
	return task
}

// AddDep adds a dependency edge (task depends on dependsOn).
func (e *testEnv) AddDep(task, dependsOn *types.Task) {
	e.t.Helper()
	dep := &types.Dependency{
		TaskID:      task.ID,
		DependsOnID: dependsOn.ID,
	}
	if err := e.Store.AddDependency(e.Ctx, dep, "test-agent"); err != nil {
		e.t.Fatalf("AddDependency(%s -> %s) failed: %v", task.ID, dependsOn.ID, err)
	}
}

// Complete marks the task completed with default options.
func (e *testEnv) Complete(task *types.Task) *types.CompletionResult {
	e.t.Helper()
	res, err := e.Store.CompleteTask(e.Ctx, task.ID, "test-agent", types.CompleteOptions{})
	if err != nil {
		e.t.Fatalf("CompleteTask(%s) failed: %v", task.ID, err)
	}
	return res
}

// Start moves a pending task to in_progress.
func (e *testEnv) Start(task *types.Task) {
	e.t.Helper()
	_, err := e.Store.UpdateTask(e.Ctx, task.ID, map[string]interface{}{"status": "in_progress"}, "test-agent")
	if err != nil {
		e.t.Fatalf("UpdateTask(%s -> in_progress) failed: %v", task.ID, err)
	}
}

// Status reloads the task and returns its current status.
func (e *testEnv) Status(task *types.Task) types.Status {
	e.t.Helper()
	got, err := e.Store.GetTask(e.Ctx, task.ID)
	if err != nil {
		e.t.Fatalf("GetTask(%s) failed: %v", task.ID, err)
	}
	return got.Status
}

// AssertStatus asserts the task's stored status.
func (e *testEnv) AssertStatus(task *types.Task, want types.Status) {
	e.t.Helper()
	if got := e.Status(task); got != want {
		e.t.Errorf("task %s (%s) status = %s, want %s", task.ID, task.Title, got, want)
	}
}

// newTestStore creates a migrated SQLiteStorage on a temp file.
//
// Each test gets its own database file under t.TempDir(); the shared
// ":memory:" database would leak state between tests in the same
// process. Pass a custom dbPath to override.
func newTestStore(t *testing.T, dbPath string) *SQLiteStorage {
	t.Helper()

	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "tasks.db")
	}

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	mig := NewMigrator(store, filepath.Join(filepath.Dir(dbPath), "backups"))
	if _, err := mig.Apply(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return store
}
