package sqlite

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestProgressAppendsAdvisory(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Logged")
	env.Start(task)

	for _, msg := range []string{"started", "halfway", "almost"} {
		if _, err := env.Store.AddProgress(env.Ctx, &types.ProgressEntry{
			TaskID: task.ID, AgentID: "alice", Message: msg,
		}); err != nil {
			t.Fatalf("AddProgress(%q) failed: %v", msg, err)
		}
	}

	entries, err := env.Store.GetProgress(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "started" || entries[2].Message != "almost" {
		t.Errorf("expected chronological order, got %+v", entries)
	}

	// Progress never moves status.
	env.AssertStatus(task, types.StatusInProgress)
}

func TestProgressUnknownTask(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Store.AddProgress(env.Ctx, &types.ProgressEntry{
		TaskID: "0badf00d", AgentID: "alice", Message: "ghost",
	})
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFeedbackRequiresCompletedStatus(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Unfinished")
	err := env.Store.SetFeedback(env.Ctx, &types.Feedback{
		TaskID: task.ID, Quality: 4,
	}, "alice")
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	env.Complete(task)
	if err := env.Store.SetFeedback(env.Ctx, &types.Feedback{
		TaskID: task.ID, Quality: 4, Timeliness: 5, Notes: "solid work",
	}, "alice"); err != nil {
		t.Fatalf("SetFeedback after completion failed: %v", err)
	}

	fb, err := env.Store.GetFeedback(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if fb.Quality != 4 || fb.Timeliness != 5 || fb.Notes != "solid work" {
		t.Errorf("feedback round-trip mismatch: %+v", fb)
	}
}

func TestFeedbackUpsertsSingleRecord(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Reviewed twice")
	env.Complete(task)

	if err := env.Store.SetFeedback(env.Ctx, &types.Feedback{TaskID: task.ID, Quality: 2}, "alice"); err != nil {
		t.Fatalf("SetFeedback failed: %v", err)
	}
	if err := env.Store.SetFeedback(env.Ctx, &types.Feedback{TaskID: task.ID, Quality: 5, Notes: "fixed"}, "alice"); err != nil {
		t.Fatalf("second SetFeedback failed: %v", err)
	}

	fb, err := env.Store.GetFeedback(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if fb.Quality != 5 || fb.Notes != "fixed" {
		t.Errorf("expected replacement, got %+v", fb)
	}

	var count int
	if err := env.Store.db.QueryRowContext(env.Ctx,
		`SELECT COUNT(*) FROM feedback WHERE task_id = ?`, task.ID).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one feedback row, got %d", count)
	}
}

func TestFeedbackValidation(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Scored")
	env.Complete(task)

	tests := []struct {
		name string
		fb   *types.Feedback
	}{
		{"quality out of range", &types.Feedback{TaskID: task.ID, Quality: 6}},
		{"timeliness out of range", &types.Feedback{TaskID: task.ID, Timeliness: -1}},
		{"empty feedback", &types.Feedback{TaskID: task.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Store.SetFeedback(env.Ctx, tt.fb, "alice")
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestGetFeedbackMissing(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Unreviewed")
	_, err := env.Store.GetFeedback(env.Ctx, task.ID)
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMetricsAggregation(t *testing.T) {
	env := newTestEnv(t)

	mk := func(title string, est, act float64) *types.Task {
		task := &types.Task{Title: title, EstimatedHours: &est}
		if err := env.Store.CreateTask(env.Ctx, task, nil, "test-agent"); err != nil {
			t.Fatalf("CreateTask(%q) failed: %v", title, err)
		}
		if _, err := env.Store.CompleteTask(env.Ctx, task.ID, "alice", types.CompleteOptions{
			ActualHours: &act,
		}); err != nil {
			t.Fatalf("CompleteTask(%q) failed: %v", title, err)
		}
		return task
	}

	// accuracy: 1-|4-5|/5 = 0.8 and 1-|2-2|/2 = 1.0; mean 0.9.
	t1 := mk("estimated well", 4, 5)
	mk("estimated perfectly", 2, 2)

	if err := env.Store.SetFeedback(env.Ctx, &types.Feedback{TaskID: t1.ID, Quality: 2, Timeliness: 4}, "alice"); err != nil {
		t.Fatalf("SetFeedback failed: %v", err)
	}

	// A rework task pointing back at the poorly-rated one.
	rework := &types.Task{Title: "redo it", ReworkOf: t1.ID}
	if err := env.Store.CreateTask(env.Ctx, rework, nil, "test-agent"); err != nil {
		t.Fatalf("CreateTask(rework) failed: %v", err)
	}

	m, err := env.Store.Metrics(env.Ctx, "all", time.Time{})
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}

	if m.CompletedTasks != 2 {
		t.Errorf("expected 2 completed, got %d", m.CompletedTasks)
	}
	if m.TasksWithFeedback != 1 {
		t.Errorf("expected 1 with feedback, got %d", m.TasksWithFeedback)
	}
	if m.AvgQuality == nil || *m.AvgQuality != 2 {
		t.Errorf("expected avg quality 2, got %v", m.AvgQuality)
	}
	if m.AvgTimeliness == nil || *m.AvgTimeliness != 4 {
		t.Errorf("expected avg timeliness 4, got %v", m.AvgTimeliness)
	}
	if m.EstimationAccuracy == nil || math.Abs(*m.EstimationAccuracy-0.9) > 1e-9 {
		t.Errorf("expected estimation accuracy 0.9, got %v", m.EstimationAccuracy)
	}
	if m.ReworkCorrelation == nil || *m.ReworkCorrelation != 1 {
		t.Errorf("expected rework correlation 1.0, got %v", m.ReworkCorrelation)
	}
}

func TestMetricsWindowFilters(t *testing.T) {
	env := newTestEnv(t)

	old := env.CreateTask("Ancient")
	env.Complete(old)
	recent := env.CreateTask("Fresh")
	env.Complete(recent)

	// Age the first completion out of the window.
	if _, err := env.Store.db.ExecContext(env.Ctx,
		`UPDATE tasks SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, -2, 0), old.ID); err != nil {
		t.Fatalf("raw update failed: %v", err)
	}

	m, err := env.Store.Metrics(env.Ctx, "week", time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if m.CompletedTasks != 1 {
		t.Errorf("expected 1 completed inside the window, got %d", m.CompletedTasks)
	}
	if m.Window != "week" {
		t.Errorf("expected window label propagated, got %q", m.Window)
	}

	all, err := env.Store.Metrics(env.Ctx, "all", time.Time{})
	if err != nil {
		t.Fatalf("Metrics(all) failed: %v", err)
	}
	if all.CompletedTasks != 2 {
		t.Errorf("expected 2 completed all-time, got %d", all.CompletedTasks)
	}
}

func TestMetricsEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	m, err := env.Store.Metrics(env.Ctx, "all", time.Time{})
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if m.CompletedTasks != 0 || m.TasksWithFeedback != 0 {
		t.Errorf("expected zero counts, got %+v", m)
	}
	if m.AvgQuality != nil || m.EstimationAccuracy != nil || m.ReworkCorrelation != nil {
		t.Errorf("expected nil averages on empty store, got %+v", m)
	}
}
