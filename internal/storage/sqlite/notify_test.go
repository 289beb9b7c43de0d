package sqlite

import (
	"fmt"
	"testing"

	"github.com/taskmesh/taskmesh/internal/types"
)

func TestWatchConsumesUnicastOnce(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Noisy")
	if err := env.Store.Emit(env.Ctx, &types.Notification{
		Recipient: "alice",
		TaskID:    task.ID,
		Kind:      types.NotifyCompletion,
		Message:   "done",
	}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	first, err := env.Store.Watch(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(first))
	}

	second, err := env.Store.Watch(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected watch to mark read, got %d on second call", len(second))
	}
}

func TestWatchDoesNotLeakOtherAgentsUnicast(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Private line")
	if err := env.Store.Emit(env.Ctx, &types.Notification{
		Recipient: "alice",
		TaskID:    task.ID,
		Kind:      types.NotifyCompletion,
		Message:   "for alice only",
	}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	notes, err := env.Store.Watch(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("bob should not see alice's unicast, got %d", len(notes))
	}

	// Alice's copy is still unread.
	n, err := env.Store.UnreadCount(env.Ctx, "alice")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected alice to still have 1 unread, got %d", n)
	}
}

func TestBroadcastReadPerAgent(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Town crier")
	if err := env.Store.Emit(env.Ctx, &types.Notification{
		TaskID:  task.ID,
		Kind:    types.NotifyDiscovery,
		Message: "hear ye",
	}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	aliceNotes, err := env.Store.Watch(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Watch(alice) failed: %v", err)
	}
	if len(aliceNotes) != 1 {
		t.Fatalf("expected alice to see the broadcast, got %d", len(aliceNotes))
	}

	// Alice consuming it does not hide it from bob.
	bobNotes, err := env.Store.Watch(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Watch(bob) failed: %v", err)
	}
	if len(bobNotes) != 1 {
		t.Fatalf("expected bob to see the broadcast, got %d", len(bobNotes))
	}

	// But alice only sees it once.
	again, err := env.Store.Watch(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Watch(alice) failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected no repeat for alice, got %d", len(again))
	}
}

func TestWatchOrderingAndLimit(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Ordered")
	for i := 0; i < 5; i++ {
		if err := env.Store.Emit(env.Ctx, &types.Notification{
			Recipient: "alice",
			TaskID:    task.ID,
			Kind:      types.NotifyCompletion,
			Message:   fmt.Sprintf("event %d", i),
		}); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
	}

	notes, err := env.Store.Watch(env.Ctx, "alice", 3)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("expected limit 3, got %d", len(notes))
	}
	for i := 0; i < 3; i++ {
		if notes[i].Message != fmt.Sprintf("event %d", i) {
			t.Errorf("position %d: expected oldest-first ordering, got %q", i, notes[i].Message)
		}
	}

	rest, err := env.Store.Watch(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("expected the remaining 2, got %d", len(rest))
	}
}

func TestNotificationCapWritesSingleMarker(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Flooded")
	for i := 0; i < notificationCap+25; i++ {
		if err := env.Store.Emit(env.Ctx, &types.Notification{
			Recipient: "alice",
			TaskID:    task.ID,
			Kind:      types.NotifyCompletion,
			Message:   fmt.Sprintf("spam %d", i),
		}); err != nil {
			t.Fatalf("Emit %d failed: %v", i, err)
		}
	}

	var total, markers int
	if err := env.Store.db.QueryRowContext(env.Ctx,
		`SELECT COUNT(*) FROM notifications WHERE task_id = ?`, task.ID).Scan(&total); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if err := env.Store.db.QueryRowContext(env.Ctx,
		`SELECT COUNT(*) FROM notifications WHERE task_id = ? AND kind = ?`,
		task.ID, string(types.NotifyTruncated)).Scan(&markers); err != nil {
		t.Fatalf("marker count failed: %v", err)
	}

	if markers != 1 {
		t.Errorf("expected exactly one truncation marker, got %d", markers)
	}
	if total != notificationCap+1 {
		t.Errorf("expected %d rows (cap + marker), got %d", notificationCap+1, total)
	}
}

func TestUnreadCount(t *testing.T) {
	env := newTestEnv(t)

	task := env.CreateTask("Counted")
	for i := 0; i < 3; i++ {
		if err := env.Store.Emit(env.Ctx, &types.Notification{
			Recipient: "alice", TaskID: task.ID, Kind: types.NotifyCompletion, Message: "x",
		}); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
	}
	if err := env.Store.Emit(env.Ctx, &types.Notification{
		TaskID: task.ID, Kind: types.NotifyDiscovery, Message: "broadcast",
	}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	n, err := env.Store.UnreadCount(env.Ctx, "alice")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 unread for alice, got %d", n)
	}

	if _, err := env.Store.Watch(env.Ctx, "alice", 0); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	n, err = env.Store.UnreadCount(env.Ctx, "alice")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 unread after watch, got %d", n)
	}
}
