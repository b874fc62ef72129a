// Package stats assembles the read-only snapshot consumed by the
// dashboard and the /stats HTTP endpoint.
package stats

import (
	"time"

	"go.uber.org/atomic"
)

// Global holds the dispatcher-wide cumulative counters, updated atomically
// from the enqueue API and the scheduler.
type Global struct {
	StartedAt time.Time

	seen      atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64
	failed    atomic.Int64
}

// NewGlobal creates a Global counters block with StartedAt set to now.
func NewGlobal() *Global {
	return &Global{StartedAt: time.Now()}
}

// IncSeen records one more accepted enqueue.
func (g *Global) IncSeen() { g.seen.Inc() }

// IncCompleted records one more successfully completed job.
func (g *Global) IncCompleted() { g.completed.Inc() }

// IncCancelled records one more cancelled job.
func (g *Global) IncCancelled() { g.cancelled.Inc() }

// IncFailed records one more failed job.
func (g *Global) IncFailed() { g.failed.Inc() }

// GlobalCounters is a point-in-time read of the cumulative totals.
type GlobalCounters struct {
	Seen      int64
	Completed int64
	Cancelled int64
	Failed    int64
}

// Snapshot reads the current counter values.
func (g *Global) Snapshot() GlobalCounters {
	return GlobalCounters{
		Seen:      g.seen.Load(),
		Completed: g.completed.Load(),
		Cancelled: g.cancelled.Load(),
		Failed:    g.failed.Load(),
	}
}
