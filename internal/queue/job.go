// Package queue implements the per-user FIFO of pending jobs.
package queue

import (
	"context"
	"time"

	"github.com/ollamamq/ollamamq/internal/bridge"
)

// Job represents one queued request forwarded to the backend.
type Job struct {
	// Seq is a monotonically assigned sequence number, used for stable
	// ordering and logging.
	Seq int64

	// User is the identity this job belongs to.
	User string

	// Path is the upstream path to forward to, one of the supported
	// endpoints (/api/generate, /api/chat, /v1/chat/completions, /v1/completions).
	Path string

	// Body is the already-buffered request body.
	Body []byte

	// Producer is the bridge producer this job's worker writes to.
	Producer *bridge.Producer

	// Ctx is cancelled when the client disconnects (its HTTP request
	// context is done) or the job is abandoned before dispatch.
	Ctx context.Context

	// CreatedAt records when the job was enqueued.
	CreatedAt time.Time
}

// ClientGone reports whether the job's originating client has already
// disconnected, without blocking.
func (j *Job) ClientGone() bool {
	select {
	case <-j.Ctx.Done():
		return true
	default:
		return false
	}
}
