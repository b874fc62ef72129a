// Package bridge implements the bounded byte channel that connects the
// scheduler's streaming copy loop to the HTTP response body draining it.
package bridge

import (
	"context"
)

// EndStatus is the terminal status carried by the single End event every
// bridge emits exactly once.
type EndStatus int

const (
	// StatusOK indicates the backend stream completed normally.
	StatusOK EndStatus = iota
	// StatusUpstreamError indicates a transport failure or non-2xx backend response.
	StatusUpstreamError
	// StatusTimeout indicates the total-call timeout elapsed.
	StatusTimeout
	// StatusCancelled indicates the client disconnected or shutdown was requested.
	StatusCancelled
)

func (s EndStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUpstreamError:
		return "upstream_error"
	case StatusTimeout:
		return "timeout"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// End carries the terminal status plus any diagnostic detail (HTTP status
// code and a bounded body prefix for StatusUpstreamError).
type End struct {
	Status EndStatus
	Code   int
	Detail string
}

// event is the tagged union sent over the bridge's channel: either a Chunk
// of bytes or exactly one terminal End.
type event struct {
	chunk []byte
	end   *End
}

// DefaultCapacity is the bridge channel's buffer size. It is deliberately
// small: a slow client must exert backpressure on the worker's copy loop
// rather than let the dispatcher buffer unboundedly.
const DefaultCapacity = 4

// Bridge is a bounded channel pair: a Producer (owned by the scheduler
// while a job executes) and a Consumer (owned by the HTTP handler
// streaming the response body).
type Bridge struct {
	events chan event
}

// New creates a bridge with the given capacity. A capacity of 0 or less
// falls back to DefaultCapacity.
func New(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bridge{events: make(chan event, capacity)}
}

// Producer returns the producer side of the bridge.
func (b *Bridge) Producer() *Producer {
	return &Producer{events: b.events}
}

// Consumer returns the consumer side of the bridge.
func (b *Bridge) Consumer() *Consumer {
	return &Consumer{events: b.events}
}

// Producer is the worker-owned send side of a Bridge.
type Producer struct {
	events chan event
}

// SendChunk forwards a chunk of backend bytes to the consumer. It blocks
// when the channel is full (backpressure) and returns an error if ctx is
// done first -- the worker must treat this as the consumer having gone
// away (client disconnect) and cancel the backend call.
func (p *Producer) SendChunk(ctx context.Context, data []byte) error {
	// Copy the chunk: the caller's buffer is typically reused across reads.
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case p.events <- event{chunk: buf}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEnd sends the single terminal event for this bridge and closes the
// channel. Calling it more than once panics, since it signals a violation
// of the "exactly one terminal End" invariant.
func (p *Producer) SendEnd(end End) {
	p.events <- event{end: &end}
	close(p.events)
}

// Consumer is the HTTP-handler-owned receive side of a Bridge.
type Consumer struct {
	events chan event
}

// Next blocks for the next chunk or the terminal End. ok is false only
// after the terminal event has already been delivered and consumed.
func (c *Consumer) Next() (chunk []byte, end *End, ok bool) {
	ev, open := <-c.events
	if !open {
		return nil, nil, false
	}
	if ev.end != nil {
		return nil, ev.end, true
	}
	return ev.chunk, nil, true
}
