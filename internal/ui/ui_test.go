package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"a longer title than fits", 10, "a longe..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
		{"abc", -5, ""},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestDeadlineCellMarksOverdue(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	overdue := &types.Task{Status: types.StatusInProgress, Deadline: &past}
	if cell := deadlineCell(overdue); !strings.Contains(cell, "!") {
		t.Errorf("overdue open task should be marked, got %q", cell)
	}

	done := &types.Task{Status: types.StatusCompleted, Deadline: &past}
	if cell := deadlineCell(done); strings.Contains(cell, "!") {
		t.Errorf("completed task should not be marked overdue, got %q", cell)
	}

	upcoming := &types.Task{Status: types.StatusPending, Deadline: &future}
	if cell := deadlineCell(upcoming); strings.Contains(cell, "!") {
		t.Errorf("future deadline should not be marked, got %q", cell)
	}

	if cell := deadlineCell(&types.Task{Status: types.StatusPending}); cell != "" {
		t.Errorf("nil deadline should render empty, got %q", cell)
	}
}

func TestRenderTaskTableListsTasks(t *testing.T) {
	tasks := []*types.Task{
		{ID: "ab12cd34", Title: "Fix login flow", Status: types.StatusInProgress, Priority: types.PriorityHigh, Assignee: "alice"},
		{ID: "ef56ab78", Title: "Write docs", Status: types.StatusPending, Priority: types.PriorityLow},
	}
	out := RenderTaskTable(tasks, 100)

	for _, want := range []string{"ab12cd34", "Fix login flow", "alice", "ef56ab78", "in_progress"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTaskTableEmpty(t *testing.T) {
	out := RenderTaskTable(nil, 80)
	if !strings.Contains(out, "No tasks match.") {
		t.Errorf("empty table unexpected: %q", out)
	}
}

func TestTaskDetailMarkdown(t *testing.T) {
	deadline := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	est := 3.0
	old := "pending"
	next := "in_progress"
	d := &types.TaskDetail{
		Task: &types.Task{
			ID:              "ab12cd34",
			Title:           "Fix login",
			Description:     "WHY: users locked out.",
			Status:          types.StatusInProgress,
			Priority:        types.PriorityHigh,
			Assignee:        "alice",
			CreatedAt:       deadline.Add(-48 * time.Hour),
			UpdatedAt:       deadline.Add(-24 * time.Hour),
			Deadline:        &deadline,
			EstimatedHours:  &est,
			Tags:            []string{"auth"},
			SuccessCriteria: []types.SuccessCriterion{{Criterion: "login works", Measurable: "e2e green"}},
		},
		Dependencies: []*types.Task{{ID: "cc33dd44", Title: "Schema migration", Status: types.StatusCompleted}},
		Progress:     []*types.ProgressEntry{{AgentID: "alice", Message: "halfway", CreatedAt: deadline.Add(-2 * time.Hour)}},
	}
	events := []*types.Event{
		{EventType: types.EventStatusChanged, Actor: "alice", OldValue: &old, NewValue: &next, CreatedAt: deadline.Add(-20 * time.Hour)},
	}

	md := TaskDetailMarkdown(d, events)

	for _, want := range []string{
		"# ab12cd34: Fix login",
		"**Status:** in_progress",
		"WHY: users locked out.",
		"## Success criteria",
		"- [ ] login works (e2e green)",
		"## Depends on",
		"cc33dd44 Schema migration (completed)",
		"## Progress",
		"halfway",
		"## History",
		"status_changed by **alice**: pending → in_progress",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("detail markdown missing %q", want)
		}
	}
}

func TestBuildDepTreeNesting(t *testing.T) {
	root := &DepNode{
		Task: &types.Task{ID: "aa000001", Title: "Release", Status: types.StatusBlocked},
		Children: []*DepNode{
			{
				Task: &types.Task{ID: "aa000002", Title: "Build", Status: types.StatusPending},
				Children: []*DepNode{
					{Task: &types.Task{ID: "aa000003", Title: "Design", Status: types.StatusCompleted}},
				},
			},
		},
	}

	out := RenderDepTree(root)
	for _, want := range []string{"aa000001 Release", "aa000002 Build", "aa000003 Design"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "aa000001") > strings.Index(out, "aa000003") {
		t.Error("root should render before leaf")
	}
}

func TestRenderDepTreeEmpty(t *testing.T) {
	if out := RenderDepTree(nil); !strings.Contains(out, "No dependencies.") {
		t.Errorf("unexpected empty render: %q", out)
	}
}

func TestRenderCriticalPath(t *testing.T) {
	est1, est2 := 4.0, 2.5
	cp := &types.CriticalPath{
		Tasks: []*types.Task{
			{ID: "aa000001", Title: "Design", Status: types.StatusCompleted, EstimatedHours: &est1},
			{ID: "aa000002", Title: "Build", Status: types.StatusPending, EstimatedHours: &est2},
		},
		TotalHours: 6.5,
	}
	out := RenderCriticalPath(cp, 100)
	for _, want := range []string{"aa000001", "aa000002", "6.5 estimated hours", "2 tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("critical path missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWatchBox(t *testing.T) {
	now := time.Now()
	out := RenderWatchBox("alice", []*types.Notification{
		{Kind: types.NotifyTaskUnblocked, TaskID: "ab12cd34", Message: "unblocked", CreatedAt: now},
		{Kind: types.NotifyCompletion, Message: "done", CreatedAt: now},
	}, false)

	for _, want := range []string{"Watch: alice", "[task_unblocked]", "unblocked", "(ab12cd34)", "[broadcast]"} {
		if !strings.Contains(out, want) {
			t.Errorf("watch box missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWatchBoxEmpty(t *testing.T) {
	out := RenderWatchBox("alice", nil, false)
	if !strings.Contains(out, "No new notifications.") {
		t.Errorf("empty watch box unexpected:\n%s", out)
	}
}

func TestRenderMetricsTable(t *testing.T) {
	q := 4.2
	acc := 0.85
	m := &types.Metrics{
		Window:             "month",
		CompletedTasks:     12,
		TasksWithFeedback:  5,
		AvgQuality:         &q,
		EstimationAccuracy: &acc,
	}
	out := RenderMetricsTable(m, 80)
	for _, want := range []string{"month", "12", "4.2/5", "85%", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatisticsTable(t *testing.T) {
	out := RenderStatisticsTable(&types.Statistics{TotalTasks: 3, PendingTasks: 2, CompletedTasks: 1}, 60)
	for _, want := range []string{"Pending", "Completed", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("statistics table missing %q:\n%s", want, out)
		}
	}
}
