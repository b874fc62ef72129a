package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ollamamq/ollamamq/internal/bridge"
	"github.com/ollamamq/ollamamq/internal/queue"
)

func newJob(user string) *queue.Job {
	br := bridge.New(1)
	return &queue.Job{
		User:     user,
		Producer: br.Producer(),
		Ctx:      context.Background(),
	}
}

// TestRegistry_RoundRobin_ABCABC verifies strict round-robin ordering
// across users with equal backlogs.
func TestRegistry_RoundRobin_ABCABC(t *testing.T) {
	r := New()
	now := time.Now()

	for _, u := range []string{"a", "b", "c"} {
		r.Enqueue(u, newJob(u), now)
		r.Enqueue(u, newJob(u), now)
	}

	var order []string
	for i := 0; i < 6; i++ {
		user, _, ok := r.TakeNext()
		if !ok {
			t.Fatalf("expected a job at iteration %d", i)
		}
		order = append(order, user)
	}

	want := []string{"a", "b", "c", "a", "b", "c"}
	for i, u := range want {
		if order[i] != u {
			t.Errorf("expected order %v, got %v", want, order)
			break
		}
	}
}

// TestRegistry_UnequalBacklog_SkipsExhaustedUsers verifies a user with no
// pending jobs is skipped without stalling the rotation.
func TestRegistry_UnequalBacklog_SkipsExhaustedUsers(t *testing.T) {
	r := New()
	now := time.Now()

	r.Enqueue("a", newJob("a"), now)
	r.Enqueue("b", newJob("b"), now)
	r.Enqueue("b", newJob("b"), now)

	first, _, _ := r.TakeNext()
	second, _, _ := r.TakeNext()
	third, _, ok := r.TakeNext()

	if first != "a" || second != "b" {
		t.Fatalf("expected a then b, got %s then %s", first, second)
	}
	if !ok || third != "b" {
		t.Fatalf("expected b again (a exhausted), got %s ok=%v", third, ok)
	}

	if _, _, ok := r.TakeNext(); ok {
		t.Fatal("expected no more jobs once both queues drained")
	}
}

// TestRegistry_TakeNext_EmptyRegistry_ReturnsFalse verifies take_next on an
// empty registry returns ok=false rather than blocking.
func TestRegistry_TakeNext_EmptyRegistry_ReturnsFalse(t *testing.T) {
	r := New()
	if _, _, ok := r.TakeNext(); ok {
		t.Fatal("expected ok=false on an empty registry")
	}
}

// TestRegistry_GCIdle_RemovesOnlyStaleEmptyQueues verifies idle GC reaps a
// user only once both idle and past the threshold, leaving active users
// and fresh idle users untouched.
func TestRegistry_GCIdle_RemovesOnlyStaleEmptyQueues(t *testing.T) {
	r := New()
	past := time.Now().Add(-time.Hour)
	recent := time.Now()

	r.Enqueue("stale", newJob("stale"), past)
	_, _, _ = r.TakeNext()
	r.OnJobCompleted("stale", past)

	r.Enqueue("fresh", newJob("fresh"), recent)
	_, _, _ = r.TakeNext()
	r.OnJobCompleted("fresh", recent)

	r.Enqueue("busy", newJob("busy"), recent)
	r.Enqueue("busy", newJob("busy"), recent)
	_, _, _ = r.TakeNext() // leaves one pending job for busy, not idle

	removed := r.GCIdle(time.Now(), 30*time.Minute)

	if len(removed) != 1 || removed[0] != "stale" {
		t.Errorf("expected only 'stale' removed, got %v", removed)
	}

	snap := r.Snapshot()
	users := make(map[string]bool)
	for _, s := range snap {
		users[s.User] = true
	}
	if users["stale"] {
		t.Error("expected stale user removed from snapshot")
	}
	if !users["fresh"] || !users["busy"] {
		t.Error("expected fresh and busy users to remain")
	}
}

// TestRegistry_RecordOutcome_UpdatesCounters verifies RecordOutcome routes
// to the correct per-user cumulative counter.
func TestRegistry_RecordOutcome_UpdatesCounters(t *testing.T) {
	r := New()
	now := time.Now()

	r.Enqueue("alice", newJob("alice"), now)
	r.TakeNext()
	r.RecordOutcome("alice", OutcomeCompleted, now)
	r.OnJobCompleted("alice", now)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one user in snapshot, got %d", len(snap))
	}
	if snap[0].TotalCompleted != 1 {
		t.Errorf("expected TotalCompleted=1, got %d", snap[0].TotalCompleted)
	}
}

// TestRegistry_DrainAll_ReturnsEveryPendingJob verifies DrainAll empties
// every user queue regardless of rotation cursor position.
func TestRegistry_DrainAll_ReturnsEveryPendingJob(t *testing.T) {
	r := New()
	now := time.Now()

	r.Enqueue("a", newJob("a"), now)
	r.Enqueue("a", newJob("a"), now)
	r.Enqueue("b", newJob("b"), now)

	drained := r.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained jobs, got %d", len(drained))
	}
	if _, _, ok := r.TakeNext(); ok {
		t.Fatal("expected registry empty after DrainAll")
	}
}
