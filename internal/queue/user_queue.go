package queue

import (
	"container/list"
	"time"
)

// Counters holds the cumulative per-user job outcome tallies.
type Counters struct {
	TotalEnqueued  int64
	TotalCompleted int64
	TotalCancelled int64
	TotalFailed    int64
}

// UserQueue is the FIFO of pending jobs for one user identity, plus
// activity metadata and cumulative counters. Callers are responsible for
// synchronizing access (the registry holds a single mutex over all user
// queues).
type UserQueue struct {
	pending      *list.List
	lastActivity time.Time
	executing    *Job
	counters     Counters
}

// NewUserQueue creates an empty user queue with last-activity set to now.
func NewUserQueue(now time.Time) *UserQueue {
	return &UserQueue{
		pending:      list.New(),
		lastActivity: now,
	}
}

// Push appends a job to the tail and refreshes last-activity.
func (q *UserQueue) Push(job *Job, now time.Time) {
	q.pending.PushBack(job)
	q.counters.TotalEnqueued++
	q.lastActivity = now
}

// Pop removes and returns the head job, or nil if empty. It refreshes
// last-activity so a busy user is never mistaken for idle between pops.
func (q *UserQueue) Pop(now time.Time) *Job {
	front := q.pending.Front()
	if front == nil {
		return nil
	}
	q.pending.Remove(front)
	q.lastActivity = now
	return front.Value.(*Job)
}

// Len reports the number of pending (not yet dispatched) jobs.
func (q *UserQueue) Len() int {
	return q.pending.Len()
}

// MarkExecuting records the job currently being served by the scheduler.
func (q *UserQueue) MarkExecuting(job *Job) {
	q.executing = job
}

// ClearExecuting clears the currently-executing slot.
func (q *UserQueue) ClearExecuting(now time.Time) {
	q.executing = nil
	q.lastActivity = now
}

// Executing returns the currently-executing job, or nil.
func (q *UserQueue) Executing() *Job {
	return q.executing
}

// IsIdle reports whether the queue has no pending jobs and nothing executing.
func (q *UserQueue) IsIdle() bool {
	return q.pending.Len() == 0 && q.executing == nil
}

// LastActivity returns the timestamp of the most recent enqueue, pop,
// completion or recorded outcome for this user.
func (q *UserQueue) LastActivity() time.Time {
	return q.lastActivity
}

// Counters returns a snapshot of the cumulative counters.
func (q *UserQueue) Counters() Counters {
	return q.counters
}

// RecordCompleted increments the completed counter and refreshes last-activity.
func (q *UserQueue) RecordCompleted(now time.Time) {
	q.counters.TotalCompleted++
	q.lastActivity = now
}

// RecordCancelled increments the cancelled counter and refreshes last-activity.
func (q *UserQueue) RecordCancelled(now time.Time) {
	q.counters.TotalCancelled++
	q.lastActivity = now
}

// RecordFailed increments the failed counter and refreshes last-activity.
func (q *UserQueue) RecordFailed(now time.Time) {
	q.counters.TotalFailed++
	q.lastActivity = now
}
