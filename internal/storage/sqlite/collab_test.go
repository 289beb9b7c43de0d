package sqlite

import (
	"errors"
	"strings"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestJoinTaskIdempotentUpsert(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Team effort")
	if err := env.Store.JoinTask(env.Ctx, task.ID, "alice", "reviewer"); err != nil {
		t.Fatalf("JoinTask failed: %v", err)
	}
	if err := env.Store.JoinTask(env.Ctx, task.ID, "alice", "implementer"); err != nil {
		t.Fatalf("second JoinTask failed: %v", err)
	}

	tc, err := env.Store.GetContext(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if len(tc.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(tc.Participants))
	}
	if tc.Participants[0].Role != "implementer" {
		t.Errorf("expected role updated to implementer, got %q", tc.Participants[0].Role)
	}
}

func TestJoinTaskNotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.Store.JoinTask(env.Ctx, "0badf00d", "alice", "")
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestShareAppendsChronologically(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Shared work")
	for _, msg := range []string{"first", "second", "third"} {
		entry, err := env.Store.AddContext(env.Ctx, &types.ContextEntry{
			TaskID:  task.ID,
			AgentID: "alice",
			Kind:    types.ContextUpdate,
			Message: msg,
		})
		if err != nil {
			t.Fatalf("AddContext(%q) failed: %v", msg, err)
		}
		if entry.ID == 0 || entry.CreatedAt.IsZero() {
			t.Errorf("expected id and timestamp assigned, got %+v", entry)
		}
	}

	tc, err := env.Store.GetContext(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if len(tc.Shared) != 3 {
		t.Fatalf("expected 3 shared entries, got %d", len(tc.Shared))
	}
	for i, want := range []string{"first", "second", "third"} {
		if tc.Shared[i].Message != want {
			t.Errorf("position %d: expected %q, got %q", i, want, tc.Shared[i].Message)
		}
	}
}

func TestShareRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Typed")
	_, err := env.Store.AddContext(env.Ctx, &types.ContextEntry{
		TaskID:  task.ID,
		AgentID: "alice",
		Kind:    "rumor",
		Message: "heard it through the grapevine",
	})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPrivateNotesInvisibleToOthers(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Secrets")
	if _, err := env.Store.AddNote(env.Ctx, &types.PrivateNote{
		TaskID:  task.ID,
		AgentID: "alice",
		Message: "my private plan",
	}); err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}

	aliceView, err := env.Store.GetContext(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("GetContext(alice) failed: %v", err)
	}
	if len(aliceView.Private) != 1 || aliceView.Private[0].Message != "my private plan" {
		t.Errorf("expected alice to see her note, got %+v", aliceView.Private)
	}

	bobView, err := env.Store.GetContext(env.Ctx, task.ID, "bob")
	if err != nil {
		t.Fatalf("GetContext(bob) failed: %v", err)
	}
	if len(bobView.Private) != 0 {
		t.Errorf("expected bob to see no private notes, got %+v", bobView.Private)
	}
	if len(bobView.Shared) != 0 {
		t.Errorf("private notes must not leak into shared context, got %+v", bobView.Shared)
	}
}

func TestSyncPointBroadcasts(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Checkpointed")
	entry, err := env.Store.SyncPoint(env.Ctx, task.ID, "alice", "api-frozen")
	if err != nil {
		t.Fatalf("SyncPoint failed: %v", err)
	}
	if entry.Kind != types.ContextSync {
		t.Errorf("expected sync entry kind, got %s", entry.Kind)
	}

	notes, err := env.Store.Watch(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	var found bool
	for _, n := range notes {
		if n.Kind == types.NotifySyncPoint && strings.Contains(n.Message, "api-frozen") {
			found = true
		}
	}
	if !found {
		t.Error("expected sync_point broadcast naming the checkpoint")
	}
}

func TestDiscoverRecordsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Spelunking")
	entry, err := env.Store.Discover(env.Ctx, task.ID, "alice",
		"the cache layer swallows errors", "affects retry logic", []string{"Cache", "bug"})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if entry.Kind != types.ContextDiscovery {
		t.Errorf("expected discovery kind, got %s", entry.Kind)
	}
	if !strings.Contains(entry.Message, "affects retry logic") {
		t.Errorf("expected impact folded into the entry, got %q", entry.Message)
	}

	// Tags merge into the task.
	got, err := env.Store.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	tagSet := make(map[string]bool)
	for _, tag := range got.Tags {
		tagSet[tag] = true
	}
	if !tagSet["cache"] || !tagSet["bug"] {
		t.Errorf("expected discovery tags merged, got %v", got.Tags)
	}

	notes, err := env.Store.Watch(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	var found bool
	for _, n := range notes {
		if n.Kind == types.NotifyDiscovery && n.TaskID == task.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected discovery broadcast")
	}
}

func TestContextNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Store.GetContext(env.Ctx, "0badf00d", "alice")
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
