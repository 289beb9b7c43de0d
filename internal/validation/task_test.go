package validation

import (
	"strings"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		want    string
		wantErr bool
	}{
		{name: "plain title passes", title: "Fix login bug", want: "Fix login bug"},
		{name: "surrounding whitespace trimmed", title: "  Fix login bug  ", want: "Fix login bug"},
		{name: "empty returns error", title: "", wantErr: true},
		{name: "whitespace-only returns error", title: "   \t ", wantErr: true},
		{name: "exactly max length passes", title: strings.Repeat("a", MaxTitleLength), want: strings.Repeat("a", MaxTitleLength)},
		{name: "over max length returns error", title: strings.Repeat("a", MaxTitleLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTitle(tt.title)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ValidateTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePriority(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    types.Priority
		wantErr bool
	}{
		{name: "empty defaults to medium", in: "", want: types.PriorityMedium},
		{name: "whitespace defaults to medium", in: "  ", want: types.PriorityMedium},
		{name: "high passes", in: "high", want: types.PriorityHigh},
		{name: "case-insensitive", in: "CRITICAL", want: types.PriorityCritical},
		{name: "unknown returns error", in: "urgent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePriority(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePriority() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ValidatePriority() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	for _, s := range types.ValidStatuses {
		got, err := ValidateStatus(string(s))
		if err != nil {
			t.Errorf("ValidateStatus(%q) unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ValidateStatus(%q) = %q", s, got)
		}
	}
	if _, err := ValidateStatus("done"); err == nil {
		t.Error("ValidateStatus(done) expected error")
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "nil passes through", in: nil, want: nil},
		{name: "lowercased and trimmed", in: []string{" Backend ", "API"}, want: []string{"backend", "api"}},
		{name: "duplicates collapse", in: []string{"db", "DB", " db "}, want: []string{"db"}},
		{name: "empty entries dropped", in: []string{"", "  ", "x"}, want: []string{"x"}},
		{name: "over cap returns error", in: manyTags(MaxTags + 1), wantErr: true},
		{name: "cap after dedupe passes", in: append(manyTags(MaxTags), "tag0"), want: manyTags(MaxTags)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTags(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeTags() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NormalizeTags()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func manyTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = "tag" + string(rune('0'+i%10)) + strings.Repeat("x", i/10)
	}
	return tags
}

func TestParseFileRef(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantPath  string
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "bare path", in: "src/auth.go", wantPath: "src/auth.go"},
		{name: "single line", in: "src/auth.go:42", wantPath: "src/auth.go", wantStart: 42},
		{name: "range", in: "src/auth.go:10:20", wantPath: "src/auth.go", wantStart: 10, wantEnd: 20},
		{name: "inverted range normalized", in: "src/auth.go:20:10", wantPath: "src/auth.go", wantStart: 10, wantEnd: 20},
		{name: "empty returns error", in: "", wantErr: true},
		{name: "no path component", in: ":10", wantErr: true},
		{name: "non-numeric line", in: "a.go:abc", wantErr: true},
		{name: "zero line", in: "a.go:0", wantErr: true},
		{name: "negative line", in: "a.go:-5", wantErr: true},
		{name: "too many parts", in: "a.go:1:2:3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseFileRef(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFileRef() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if ref.Path != tt.wantPath || ref.LineStart != tt.wantStart || ref.LineEnd != tt.wantEnd {
				t.Errorf("ParseFileRef() = %+v, want {%s %d %d}", ref, tt.wantPath, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestValidateSummary(t *testing.T) {
	if err := ValidateSummary(""); err != nil {
		t.Errorf("empty summary should pass (feature unused): %v", err)
	}
	if err := ValidateSummary("too short"); err == nil {
		t.Error("short summary should fail")
	}
	if err := ValidateSummary(strings.Repeat("x", MinSummaryLength)); err != nil {
		t.Errorf("minimum-length summary should pass: %v", err)
	}
	if err := ValidateSummary(strings.Repeat("x", MaxSummaryLength+1)); err == nil {
		t.Error("oversized summary should fail")
	}
}

func TestValidateScore(t *testing.T) {
	for score, ok := range map[int]bool{0: true, 1: true, 5: true, 6: false, -1: false} {
		err := ValidateScore("quality", score)
		if ok && err != nil {
			t.Errorf("ValidateScore(%d) unexpected error: %v", score, err)
		}
		if !ok && err == nil {
			t.Errorf("ValidateScore(%d) expected error", score)
		}
	}
}

func TestValidateHours(t *testing.T) {
	if err := ValidateHours("estimated_hours", nil); err != nil {
		t.Errorf("nil hours should pass: %v", err)
	}
	neg := -1.0
	if err := ValidateHours("estimated_hours", &neg); err == nil {
		t.Error("negative hours should fail")
	}
	zero := 0.0
	if err := ValidateHours("estimated_hours", &zero); err != nil {
		t.Errorf("zero hours should pass: %v", err)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    types.Status
		to      types.Status
		reopen  bool
		wantErr bool
	}{
		{name: "same status is a no-op", from: types.StatusPending, to: types.StatusPending},
		{name: "pending to in_progress", from: types.StatusPending, to: types.StatusInProgress},
		{name: "pending to cancelled", from: types.StatusPending, to: types.StatusCancelled},
		{name: "in_progress back to pending", from: types.StatusInProgress, to: types.StatusPending},
		{name: "in_progress to blocked", from: types.StatusInProgress, to: types.StatusBlocked},
		{name: "cancelled reopens to pending", from: types.StatusCancelled, to: types.StatusPending},
		{name: "blocked to cancelled", from: types.StatusBlocked, to: types.StatusCancelled},

		{name: "manual completion rejected", from: types.StatusInProgress, to: types.StatusCompleted, wantErr: true},
		{name: "manual completion rejected even from pending", from: types.StatusPending, to: types.StatusCompleted, wantErr: true},
		{name: "completed frozen without reopen", from: types.StatusCompleted, to: types.StatusInProgress, wantErr: true},
		{name: "completed reopens with flag", from: types.StatusCompleted, to: types.StatusInProgress, reopen: true},
		{name: "completed to pending rejected even with flag", from: types.StatusCompleted, to: types.StatusPending, reopen: true, wantErr: true},
		{name: "pending to blocked is engine-only", from: types.StatusPending, to: types.StatusBlocked, wantErr: true},
		{name: "blocked to pending is engine-only", from: types.StatusBlocked, to: types.StatusPending, wantErr: true},
		{name: "blocked to in_progress rejected", from: types.StatusBlocked, to: types.StatusInProgress, wantErr: true},
		{name: "cancelled to in_progress rejected", from: types.StatusCancelled, to: types.StatusInProgress, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.reopen)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%s -> %s, reopen=%t) error = %v, wantErr %v",
					tt.from, tt.to, tt.reopen, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAgentID(t *testing.T) {
	if _, err := ValidateAgentID("  "); err == nil {
		t.Error("blank agent should fail")
	}
	got, err := ValidateAgentID(" backend-agent ")
	if err != nil || got != "backend-agent" {
		t.Errorf("ValidateAgentID = %q, %v", got, err)
	}
}

func TestValidateMessage(t *testing.T) {
	if _, err := ValidateMessage("\n\t"); err == nil {
		t.Error("blank message should fail")
	}
	got, err := ValidateMessage(" schema frozen ")
	if err != nil || got != "schema frozen" {
		t.Errorf("ValidateMessage = %q, %v", got, err)
	}
}
