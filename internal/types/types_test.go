package types

import (
	"strings"
	"testing"
)

func TestStatusSatisfies(t *testing.T) {
	for _, s := range ValidStatuses {
		want := s == StatusCompleted
		if got := s.Satisfies(); got != want {
			t.Errorf("Satisfies(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestFileRefString(t *testing.T) {
	tests := []struct {
		ref  FileRef
		want string
	}{
		{FileRef{Path: "internal/app.go"}, "internal/app.go"},
		{FileRef{Path: "internal/app.go", LineStart: 42}, "internal/app.go:42"},
		{FileRef{Path: "internal/app.go", LineStart: 42, LineEnd: 58}, "internal/app.go:42:58"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantN   int
		wantErr bool
	}{
		{name: "empty string", raw: "", wantN: 0},
		{name: "whitespace only", raw: "  \n", wantN: 0},
		{name: "single criterion", raw: `[{"criterion":"tests pass"}]`, wantN: 1},
		{name: "with measurable", raw: `[{"criterion":"latency","measurable":"p99 under 100ms"}]`, wantN: 1},
		{name: "not an array", raw: `{"criterion":"tests pass"}`, wantErr: true},
		{name: "blank criterion", raw: `[{"criterion":"  "}]`, wantErr: true},
		{name: "over length cap", raw: `[{"criterion":"` + strings.Repeat("x", MaxCriterionLength+1) + `"}]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCriteria(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCriteria() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.wantN {
				t.Errorf("ParseCriteria() returned %d criteria, want %d", len(got), tt.wantN)
			}
		})
	}
}

func TestParseCriteriaCap(t *testing.T) {
	var items []string
	for i := 0; i <= MaxCriteria; i++ {
		items = append(items, `{"criterion":"c"}`)
	}
	raw := "[" + strings.Join(items, ",") + "]"
	if _, err := ParseCriteria(raw); err == nil {
		t.Fatalf("expected error for %d criteria", MaxCriteria+1)
	}
}

func TestEncodeCriteriaRoundTrip(t *testing.T) {
	in := []SuccessCriterion{
		{Criterion: "tests pass"},
		{Criterion: "latency", Measurable: "p99 under 100ms"},
	}
	encoded, err := EncodeCriteria(in)
	if err != nil {
		t.Fatalf("EncodeCriteria() error = %v", err)
	}
	out, err := ParseCriteria(encoded)
	if err != nil {
		t.Fatalf("ParseCriteria() error = %v", err)
	}
	if len(out) != len(in) || out[1].Measurable != in[1].Measurable {
		t.Errorf("round trip mismatch: %+v", out)
	}

	empty, err := EncodeCriteria(nil)
	if err != nil || empty != "" {
		t.Errorf("EncodeCriteria(nil) = %q, %v; want empty string", empty, err)
	}
}

func TestNotificationBroadcast(t *testing.T) {
	n := Notification{Recipient: ""}
	if !n.Broadcast() {
		t.Error("empty recipient should broadcast")
	}
	n.Recipient = "agent-1"
	if n.Broadcast() {
		t.Error("addressed notification should not broadcast")
	}
}
