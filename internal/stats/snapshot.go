package stats

import (
	"time"

	"github.com/ollamamq/ollamamq/internal/registry"
)

// InFlightView describes the job currently executing, if any.
type InFlightView struct {
	Active bool
	User   string
	Seq    int64
}

// Snapshot is the full point-in-time view of dispatcher state, consumed
// by the dashboard and the /stats endpoint.
type Snapshot struct {
	StartedAt time.Time
	Uptime    time.Duration
	Global    GlobalCounters
	InFlight  InFlightView
	Users     []registry.UserSnapshot
}

// InFlightSource abstracts the scheduler's in-flight accessor so this
// package does not import scheduler (which already imports registry),
// avoiding an import cycle.
type InFlightSource interface {
	InFlightUser() (user string, seq int64, active bool)
}

// Build assembles a consistent snapshot from the registry, the global
// counters, and the scheduler's in-flight view.
func Build(reg *registry.Registry, global *Global, sched InFlightSource) Snapshot {
	now := time.Now()
	user, seq, active := sched.InFlightUser()
	return Snapshot{
		StartedAt: global.StartedAt,
		Uptime:    now.Sub(global.StartedAt),
		Global:    global.Snapshot(),
		InFlight:  InFlightView{Active: active, User: user, Seq: seq},
		Users:     reg.Snapshot(),
	}
}
