package sqlite

import (
	"errors"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestIsValidTaskID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"a1b2c3d4", true},
		{"00000000", true},
		{"deadbeef", true},
		{"DEADBEEF", false}, // uppercase
		{"a1b2c3d", false},  // short
		{"a1b2c3d45", false},
		{"g1b2c3d4", false}, // non-hex
		{"", false},
	}
	for _, tt := range tests {
		if got := isValidTaskID(tt.id); got != tt.valid {
			t.Errorf("isValidTaskID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestGenerateTaskIDsAreUnique(t *testing.T) {
	env := newTestEnv(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := generateTaskID(env.Ctx, env.Store.db)
		if err != nil {
			t.Fatalf("generateTaskID failed: %v", err)
		}
		if !isValidTaskID(id) {
			t.Fatalf("generated id %q is not 8 lowercase hex chars", id)
		}
		if seen[id] {
			t.Fatalf("generated duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestCreateAcceptsPresetID(t *testing.T) {
	env := newTestEnv(t)

	task := &types.Task{ID: "cafe0001", Title: "Has id"}
	if err := env.Store.CreateTask(env.Ctx, task, nil, "test-agent"); err != nil {
		t.Fatalf("CreateTask with preset id failed: %v", err)
	}
	got, err := env.Store.GetTask(env.Ctx, "cafe0001")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "Has id" {
		t.Fatalf("preset id resolved to the wrong task: %+v", got)
	}

	bad := &types.Task{ID: "NOT-HEX!", Title: "Bad id"}
	err = env.Store.CreateTask(env.Ctx, bad, nil, "test-agent")
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for malformed preset id, got %v", err)
	}
}
