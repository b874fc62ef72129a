// Package registry implements the queue registry: the mapping from user
// identity to user queue, the round-robin rotation order, and idle
// garbage collection.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/ollamamq/ollamamq/internal/metrics"
	"github.com/ollamamq/ollamamq/internal/queue"
)

// Registry owns every user queue and the ring of currently-active users
// consulted by the round-robin scheduler. A single mutex protects all of
// it; critical sections are short (map lookups and scans of the rotation
// ring or the user map).
type Registry struct {
	mu sync.Mutex

	queues map[string]*queue.UserQueue

	// rotation is the ring of active users (at least one pending or
	// executing job). cursor indexes the next user take_next should serve.
	rotation []string
	cursor   int

	// notify is signalled (without blocking, coalescing repeats) on every
	// enqueue, waking a parked scheduler.
	notify chan struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		queues:  make(map[string]*queue.UserQueue),
		notify:  make(chan struct{}, 1),
	}
}

// NotifyChan returns the channel the scheduler parks on between ticks.
func (r *Registry) NotifyChan() <-chan struct{} {
	return r.notify
}

func (r *Registry) wake() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Enqueue finds or creates the user's queue, pushes the job, and ensures
// the user is present in the rotation order (appended at the tail if
// newly active).
func (r *Registry) Enqueue(user string, job *queue.Job, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[user]
	if !ok {
		q = queue.NewUserQueue(now)
		r.queues[user] = q
	}
	wasActive := !q.IsIdle() || r.inRotation(user)
	q.Push(job, now)

	if !wasActive {
		r.rotation = append(r.rotation, user)
		metrics.ActiveUsersGauge.Set(float64(len(r.rotation)))
	}
	r.wake()
}

func (r *Registry) inRotation(user string) bool {
	for _, u := range r.rotation {
		if u == user {
			return true
		}
	}
	return false
}

// TakeNext advances the rotation pointer to the next user with a pending
// job and pops one job from them. Returns ok=false if no user is active.
//
// After a job is popped from user U, the cursor advances to the user
// after U regardless of whether U still has pending jobs -- this is what
// gives strict round-robin fairness across users with unequal backlogs.
func (r *Registry) TakeNext() (user string, job *queue.Job, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.rotation)
	if n == 0 {
		return "", nil, false
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		idx := (r.cursor + i) % len(r.rotation)
		u := r.rotation[idx]
		q, exists := r.queues[u]
		if !exists {
			continue
		}
		j := q.Pop(now)
		if j == nil {
			continue
		}
		q.MarkExecuting(j)
		r.cursor = (idx + 1) % len(r.rotation)
		return u, j, true
	}
	return "", nil, false
}

// OnJobCompleted clears the executing slot for user. If the queue is now
// idle it is dropped from the rotation order but left in the registry
// (gc_idle reaps it once the idle threshold elapses).
func (r *Registry) OnJobCompleted(user string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[user]
	if !ok {
		return
	}
	q.ClearExecuting(now)

	if q.IsIdle() {
		r.removeFromRotation(user)
	}
}

func (r *Registry) removeFromRotation(user string) {
	for i, u := range r.rotation {
		if u != user {
			continue
		}
		r.rotation = append(r.rotation[:i], r.rotation[i+1:]...)
		if r.cursor > i {
			r.cursor--
		}
		if len(r.rotation) > 0 {
			r.cursor = r.cursor % len(r.rotation)
		} else {
			r.cursor = 0
		}
		metrics.ActiveUsersGauge.Set(float64(len(r.rotation)))
		return
	}
}

// GCIdle removes user queues that are idle and whose last-activity is
// older than threshold, dropping them from the rotation order too.
func (r *Registry) GCIdle(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for user, q := range r.queues {
		if !q.IsIdle() {
			continue
		}
		if now.Sub(q.LastActivity()) < threshold {
			continue
		}
		delete(r.queues, user)
		r.removeFromRotation(user)
		removed = append(removed, user)
	}
	return removed
}

// UserSnapshot is one row of the stats view's per-user listing.
type UserSnapshot struct {
	User           string
	PendingDepth   int
	TotalEnqueued  int64
	TotalCompleted int64
	TotalCancelled int64
	TotalFailed    int64
	LastActivity   time.Time
	Executing      bool
}

// Snapshot produces a consistent per-user view: active users in rotation
// order, then idle users still held in the registry. It is
// read-only: calling it back-to-back with no intervening mutation yields
// identical results (modulo monotonic time fields, which do not change on
// a read).
func (r *Registry) Snapshot() []UserSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Idle users not yet reaped by GCIdle follow the active ones, sorted by
	// name so back-to-back snapshots stay identical.
	var idle []string
	for user := range r.queues {
		if !r.inRotation(user) {
			idle = append(idle, user)
		}
	}
	sort.Strings(idle)
	order := append(append([]string(nil), r.rotation...), idle...)

	out := make([]UserSnapshot, 0, len(order))
	for _, user := range order {
		q, ok := r.queues[user]
		if !ok {
			continue
		}
		c := q.Counters()
		out = append(out, UserSnapshot{
			User:           user,
			PendingDepth:   q.Len(),
			TotalEnqueued:  c.TotalEnqueued,
			TotalCompleted: c.TotalCompleted,
			TotalCancelled: c.TotalCancelled,
			TotalFailed:    c.TotalFailed,
			LastActivity:   q.LastActivity(),
			Executing:      q.Executing() != nil,
		})
	}
	return out
}

// RecordOutcome applies a terminal outcome (completed/cancelled/failed) to
// the user's cumulative counters. It does not touch the executing slot;
// callers pair it with OnJobCompleted.
func (r *Registry) RecordOutcome(user string, outcome Outcome, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[user]
	if !ok {
		return
	}
	switch outcome {
	case OutcomeCompleted:
		q.RecordCompleted(now)
	case OutcomeCancelled:
		q.RecordCancelled(now)
	case OutcomeFailed:
		q.RecordFailed(now)
	}
}

// Outcome classifies how a job's execution ended, for counter bookkeeping.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// DrainAll pops every remaining job from every user queue, in rotation
// order, without regard to the round-robin cursor. Used during shutdown
// to emit a terminal Cancelled event on each abandoned job's bridge.
func (r *Registry) DrainAll() []*queue.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var drained []*queue.Job
	for _, user := range r.rotation {
		q, ok := r.queues[user]
		if !ok {
			continue
		}
		for {
			j := q.Pop(now)
			if j == nil {
				break
			}
			drained = append(drained, j)
		}
	}
	return drained
}
