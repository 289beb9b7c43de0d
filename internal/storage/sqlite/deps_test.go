package sqlite

import (
	"errors"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestAddDependencyRejectsSelf(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Solo")
	err := env.Store.AddDependency(env.Ctx, &types.Dependency{
		TaskID: task.ID, DependsOnID: task.ID,
	}, "test-agent")

	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)
	c := env.CreateTaskDeps("C", b)

	// a -> c would close a -> c -> b -> a.
	err := env.Store.AddDependency(env.Ctx, &types.Dependency{
		TaskID: a.ID, DependsOnID: c.ID,
	}, "test-agent")

	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cerr.Path) < 3 {
		t.Errorf("expected cycle path with the offending vertices, got %v", cerr.Path)
	}
	if cerr.Path[0] != a.ID || cerr.Path[len(cerr.Path)-1] != a.ID {
		t.Errorf("expected path to start and end at %s, got %v", a.ID, cerr.Path)
	}
}

func TestAddDependencyUnknownTarget(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Lonely")
	err := env.Store.AddDependency(env.Ctx, &types.Dependency{
		TaskID: task.ID, DependsOnID: "deadbeef",
	}, "test-agent")

	var uerr *types.UnknownDependencyError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
}

func TestAddDependencyBlocksPendingTask(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTask("B")
	env.AssertStatus(b, types.StatusPending)

	env.AddDep(b, a)
	env.AssertStatus(b, types.StatusBlocked)
}

func TestAddDependencyOnCompletedKeepsPending(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	env.Complete(a)
	b := env.CreateTask("B")

	env.AddDep(b, a)
	env.AssertStatus(b, types.StatusPending)
}

func TestAddDependencyTwiceIsNoop(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)

	env.AddDep(b, a)

	deps, err := env.Store.GetDependencies(env.Ctx, b.ID)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 1 {
		t.Errorf("expected a single edge, got %d", len(deps))
	}
}

func TestRemoveDependencyUnblocks(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTask("B")
	c := env.CreateTaskDeps("C", a, b)
	env.AssertStatus(c, types.StatusBlocked)

	if err := env.Store.RemoveDependency(env.Ctx, c.ID, a.ID, "test-agent"); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	env.AssertStatus(c, types.StatusBlocked)

	if err := env.Store.RemoveDependency(env.Ctx, c.ID, b.ID, "test-agent"); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	env.AssertStatus(c, types.StatusPending)
}

func TestRemoveDependencyMissingEdge(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTask("B")

	err := env.Store.RemoveDependency(env.Ctx, a.ID, b.ID, "test-agent")
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for missing edge, got %v", err)
	}
}

func TestCompleteCascadeUnblocksChain(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTaskWith("A", types.PriorityMedium, "alice")
	b := &types.Task{Title: "B", Assignee: "bob"}
	if err := env.Store.CreateTask(env.Ctx, b, []string{a.ID}, "test-agent"); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	env.AssertStatus(b, types.StatusBlocked)

	res := env.Complete(a)
	if len(res.Unblocked) != 1 || res.Unblocked[0].ID != b.ID {
		t.Fatalf("expected completion to unblock %s, got %+v", b.ID, res.Unblocked)
	}
	env.AssertStatus(b, types.StatusPending)

	// The released assignee hears about it directly.
	notes, err := env.Store.Watch(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	var sawUnblocked bool
	for _, n := range notes {
		if n.Kind == types.NotifyTaskUnblocked && n.TaskID == b.ID && !n.Broadcast() {
			sawUnblocked = true
		}
	}
	if !sawUnblocked {
		t.Error("expected unicast task_unblocked notification for bob")
	}
}

func TestCompleteCascadeWaitsForAllDeps(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTask("B")
	c := env.CreateTaskDeps("C", a, b)

	env.Complete(a)
	env.AssertStatus(c, types.StatusBlocked)

	env.Complete(b)
	env.AssertStatus(c, types.StatusPending)
}

func TestCancelledDependencyDoesNotSatisfy(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)

	_, err := env.Store.UpdateTask(env.Ctx, a.ID, map[string]interface{}{"status": "cancelled"}, "test-agent")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Cancelling is not completing: the dependent stays blocked until the
	// edge is removed or the dependency is finished for real.
	env.AssertStatus(b, types.StatusBlocked)
}

func TestGetDependenciesAndDependents(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTask("B")
	c := env.CreateTaskDeps("C", a, b)

	deps, err := env.Store.GetDependencies(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("expected 2 dependencies, got %d", len(deps))
	}

	dependents, err := env.Store.GetDependents(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("GetDependents failed: %v", err)
	}
	if len(dependents) != 1 || dependents[0].ID != c.ID {
		t.Errorf("expected dependent %s, got %+v", c.ID, dependents)
	}

	if _, err := env.Store.GetDependencies(env.Ctx, "0badf00d"); !types.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestValidateGraphClean(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)
	env.CreateTaskDeps("C", b)

	report, err := env.Store.ValidateGraph(env.Ctx)
	if err != nil {
		t.Fatalf("ValidateGraph failed: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean graph, got issues: %+v", report.Issues)
	}
	if report.Tasks != 3 || report.Edges != 2 {
		t.Errorf("expected 3 tasks / 2 edges, got %d / %d", report.Tasks, report.Edges)
	}
}

func TestValidateGraphFindsInjectedCycle(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)

	// Bypass prevention and wire a -> b directly.
	_, err := env.Store.db.ExecContext(env.Ctx, `
		INSERT INTO dependencies (task_id, depends_on_id, created_at) VALUES (?, ?, datetime('now'))
	`, a.ID, b.ID)
	if err != nil {
		t.Fatalf("raw insert failed: %v", err)
	}

	report, err := env.Store.ValidateGraph(env.Ctx)
	if err != nil {
		t.Fatalf("ValidateGraph failed: %v", err)
	}

	var cycles int
	for _, issue := range report.Issues {
		if issue.Kind == types.GraphIssueCycle {
			cycles++
			if len(issue.Path) < 3 {
				t.Errorf("expected cycle path, got %v", issue.Path)
			}
		}
	}
	if cycles == 0 {
		t.Error("expected a cycle issue in the report")
	}
}

func TestValidateGraphFindsWrongStatus(t *testing.T) {
	env := newTestEnv(t)

	a := env.CreateTask("A")
	b := env.CreateTaskDeps("B", a)

	// Force b to pending behind the engine's back.
	if _, err := env.Store.db.ExecContext(env.Ctx,
		`UPDATE tasks SET status = 'pending' WHERE id = ?`, b.ID); err != nil {
		t.Fatalf("raw update failed: %v", err)
	}

	report, err := env.Store.ValidateGraph(env.Ctx)
	if err != nil {
		t.Fatalf("ValidateGraph failed: %v", err)
	}

	var found bool
	for _, issue := range report.Issues {
		if issue.Kind == types.GraphIssueWrongStatus && issue.TaskID == b.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected wrong_status issue for %s, got %+v", b.ID, report.Issues)
	}
}

func TestCriticalPathPicksHeaviestChain(t *testing.T) {
	env := newTestEnv(t)

	mk := func(title string, hours float64, deps ...*types.Task) *types.Task {
		ids := make([]string, len(deps))
		for i, d := range deps {
			ids[i] = d.ID
		}
		task := &types.Task{Title: title, EstimatedHours: &hours}
		if err := env.Store.CreateTask(env.Ctx, task, ids, "test-agent"); err != nil {
			t.Fatalf("CreateTask(%q) failed: %v", title, err)
		}
		return task
	}

	// Two chains off a shared root: root(2) <- mid(3) <- top(1) = 6
	// versus root(2) <- side(1) = 3.
	root := mk("root", 2)
	mid := mk("mid", 3, root)
	top := mk("top", 1, mid)
	mk("side", 1, root)

	cp, err := env.Store.CriticalPath(env.Ctx)
	if err != nil {
		t.Fatalf("CriticalPath failed: %v", err)
	}
	if cp.TotalHours != 6 {
		t.Errorf("expected total 6 hours, got %v", cp.TotalHours)
	}
	if len(cp.Tasks) != 3 {
		t.Fatalf("expected 3 tasks on the path, got %d", len(cp.Tasks))
	}
	want := []string{root.ID, mid.ID, top.ID}
	for i, task := range cp.Tasks {
		if task.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], task.ID)
		}
	}
}

func TestCriticalPathEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	cp, err := env.Store.CriticalPath(env.Ctx)
	if err != nil {
		t.Fatalf("CriticalPath failed: %v", err)
	}
	if len(cp.Tasks) != 0 || cp.TotalHours != 0 {
		t.Errorf("expected empty path, got %+v", cp)
	}
}
