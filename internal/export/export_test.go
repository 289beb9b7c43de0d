package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

func sampleTasks() []*types.TaskExport {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := created.AddDate(0, 0, 7)
	est := 4.5
	return []*types.TaskExport{
		{
			Task: types.Task{
				ID:             "aa11bb22",
				Title:          "Fix login, then \"verify\"",
				Description:    "WHY: users locked out.",
				Status:         types.StatusInProgress,
				Priority:       types.PriorityHigh,
				Assignee:       "alice",
				CreatedAt:      created,
				UpdatedAt:      created,
				Tags:           []string{"auth", "bug"},
				Deadline:       &deadline,
				EstimatedHours: &est,
			},
			Deps:       []string{"cc33dd44"},
			Dependents: []string{"ee55ff66"},
			Progress: []*types.ProgressEntry{
				{ID: 1, TaskID: "aa11bb22", AgentID: "alice", Message: "halfway", CreatedAt: created.Add(time.Hour)},
			},
			Feedback: &types.Feedback{TaskID: "aa11bb22", Quality: 4, Notes: "solid"},
		},
		{
			Task: types.Task{
				ID:        "cc33dd44",
				Title:     "Prepare fixtures",
				Status:    types.StatusCompleted,
				Priority:  types.PriorityMedium,
				CreatedAt: created.Add(-time.Hour),
				UpdatedAt: created,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"json", FormatJSON, true},
		{"", FormatJSON, true},
		{"JSON", FormatJSON, true},
		{"md", FormatMarkdown, true},
		{"markdown", FormatMarkdown, true},
		{"csv", FormatCSV, true},
		{"tsv", FormatTSV, true},
		{"xml", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseFormat(%q) should fail", tc.in)
		}
	}
}

func TestJSONRoundTrips(t *testing.T) {
	tasks := sampleTasks()

	data, err := Render(tasks, FormatJSON)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded []*types.TaskExport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(decoded))
	}
	got := decoded[0]
	if got.ID != "aa11bb22" || got.Title != tasks[0].Title {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 4.5 {
		t.Fatal("estimated hours lost in round trip")
	}
	if got.Deadline == nil || !got.Deadline.Equal(*tasks[0].Deadline) {
		t.Fatal("deadline lost in round trip")
	}
	if len(got.Deps) != 1 || got.Deps[0] != "cc33dd44" {
		t.Fatal("deps lost in round trip")
	}
	if got.Feedback == nil || got.Feedback.Quality != 4 {
		t.Fatal("feedback lost in round trip")
	}
	if len(got.Progress) != 1 || got.Progress[0].Message != "halfway" {
		t.Fatal("progress lost in round trip")
	}
}

func TestJSONEmptyIsArray(t *testing.T) {
	data, err := Render(nil, FormatJSON)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("empty export should be [], got %q", data)
	}
}

func TestCSVQuotingAndColumns(t *testing.T) {
	data, err := Render(sampleTasks(), FormatCSV)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("output is not parseable CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || len(rows[0]) != len(csvHeader) {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	// The title with a comma and quotes must survive CSV quoting.
	if rows[1][1] != `Fix login, then "verify"` {
		t.Fatalf("title mangled: %q", rows[1][1])
	}
	if rows[1][10] != "auth;bug" {
		t.Fatalf("tags column unexpected: %q", rows[1][10])
	}
	if rows[2][7] != "" || rows[2][8] != "" {
		t.Fatal("unset deadline and hours should render empty")
	}
}

func TestTSVUsesTabs(t *testing.T) {
	data, err := Render(sampleTasks(), FormatTSV)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	first := strings.SplitN(string(data), "\n", 2)[0]
	if !strings.Contains(first, "\t") {
		t.Fatal("TSV header should be tab-separated")
	}
	if cols := strings.Split(first, "\t"); len(cols) != len(csvHeader) {
		t.Fatalf("expected %d columns, got %d", len(csvHeader), len(cols))
	}
}

func TestMarkdownRendersSections(t *testing.T) {
	data, err := Render(sampleTasks(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# Task Export",
		"## In Progress (1)",
		"## Completed (1)",
		"### aa11bb22:",
		"- Depends on: cc33dd44",
		"- Blocks: ee55ff66",
		"WHY: users locked out.",
		"Feedback: quality 4, timeliness -",
		"halfway",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	// Status sections follow lifecycle order, not input order.
	if strings.Index(out, "## In Progress") > strings.Index(out, "## Completed") {
		t.Error("in_progress section should precede completed")
	}
}

func TestMarkdownEmpty(t *testing.T) {
	data, err := Render(nil, FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(data), "No tasks.") {
		t.Fatalf("empty markdown unexpected: %q", data)
	}
}
