// Package scheduler implements the round-robin worker: the single logical
// task that drains the queue registry against the backend, one job at a
// time.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ollamamq/ollamamq/internal/backend"
	"github.com/ollamamq/ollamamq/internal/bridge"
	"github.com/ollamamq/ollamamq/internal/metrics"
	"github.com/ollamamq/ollamamq/internal/queue"
	"github.com/ollamamq/ollamamq/internal/registry"
	"github.com/ollamamq/ollamamq/internal/stats"
)

// Config controls the scheduler's timing behavior.
type Config struct {
	// CallTimeout bounds a single backend call, from POST start to stream end.
	CallTimeout time.Duration
	// IdleThreshold is how long a user queue may sit idle before GC reaps it.
	IdleThreshold time.Duration
	// GCInterval is the minimum spacing between idle-GC sweeps.
	GCInterval time.Duration
}

// InFlight describes the job currently executing, if any.
type InFlight struct {
	User string
	Seq  int64
}

// Scheduler is the single worker draining the registry against the backend.
type Scheduler struct {
	reg     *registry.Registry
	backend *backend.Client
	cfg     Config
	log     *zap.Logger
	global  *stats.Global

	shutdown context.Context
	cancel   context.CancelFunc

	inFlight atomic.Value // stores *InFlight, nil when idle

	done chan struct{}

	lastGC time.Time
}

// New constructs a scheduler. It does not start running until Run is called.
func New(reg *registry.Registry, client *backend.Client, cfg Config, log *zap.Logger, global *stats.Global) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		reg:      reg,
		backend:  client,
		cfg:      cfg,
		log:      log,
		global:   global,
		shutdown: ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.inFlight.Store((*InFlight)(nil))
	return s
}

// InFlight returns the job currently executing, or nil if the scheduler is idle.
func (s *Scheduler) InFlight() *InFlight {
	return s.inFlight.Load().(*InFlight)
}

// InFlightUser implements stats.InFlightSource.
func (s *Scheduler) InFlightUser() (user string, seq int64, active bool) {
	inf := s.InFlight()
	if inf == nil {
		return "", 0, false
	}
	return inf.User, inf.Seq, true
}

// Shutdown raises the global shutdown signal: the in-flight job (if any)
// is cancelled, remaining queued jobs are drained with a Cancelled
// terminal event, and the run loop exits once current work settles.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the scheduler's main loop. It blocks until Shutdown is called (or
// its internal shutdown context is otherwise cancelled).
func (s *Scheduler) Run() {
	defer close(s.done)

	notify := s.reg.NotifyChan()
	ticker := time.NewTicker(tickInterval(s.cfg.GCInterval))
	defer ticker.Stop()

	for {
		if s.shutdown.Err() != nil {
			s.drainOnShutdown()
			return
		}

		user, job, ok := s.reg.TakeNext()
		if !ok {
			s.maybeGC()
			select {
			case <-notify:
			case <-ticker.C:
			case <-s.shutdown.Done():
			}
			continue
		}

		s.execute(user, job)
		s.maybeGC()
	}
}

func tickInterval(configured time.Duration) time.Duration {
	if configured <= 0 {
		return time.Second
	}
	return configured
}

func (s *Scheduler) maybeGC() {
	now := time.Now()
	if now.Sub(s.lastGC) < tickInterval(s.cfg.GCInterval) {
		return
	}
	s.lastGC = now
	threshold := s.cfg.IdleThreshold
	if threshold <= 0 {
		threshold = 60 * time.Second
	}
	removed := s.reg.GCIdle(now, threshold)
	for _, user := range removed {
		s.log.Info("idle user removed", zap.String("user", user))
	}
}

func (s *Scheduler) execute(user string, job *queue.Job) {
	now := time.Now()

	// Early cancellation: the client may have disconnected while queued.
	if job.ClientGone() {
		job.Producer.SendEnd(bridge.End{Status: bridge.StatusCancelled})
		s.reg.RecordOutcome(user, registry.OutcomeCancelled, now)
		s.reg.OnJobCompleted(user, now)
		metrics.CancelledCounter.Inc()
		s.global.IncCancelled()
		s.log.Info("job skipped: client gone before dispatch",
			zap.String("user", user), zap.Int64("seq", job.Seq))
		return
	}

	inf := &InFlight{User: user, Seq: job.Seq}
	s.inFlight.Store(inf)
	metrics.InFlightGauge.Set(1)
	defer func() {
		s.inFlight.Store((*InFlight)(nil))
		metrics.InFlightGauge.Set(0)
	}()

	callTimeout := s.cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 300 * time.Second
	}

	callCtx, callCancel := mergeContexts(job.Ctx, s.shutdown)
	defer callCancel()
	callCtx, timeoutCancel := context.WithTimeout(callCtx, callTimeout)
	defer timeoutCancel()

	s.log.Info("dispatching", zap.String("user", user), zap.Int64("seq", job.Seq), zap.String("path", job.Path))

	outcome := s.backend.Execute(callCtx, job.Path, job.Body, func(chunk []byte) error {
		return job.Producer.SendChunk(callCtx, chunk)
	})

	end, regOutcome := translate(outcome)
	job.Producer.SendEnd(end)

	completedAt := time.Now()
	s.reg.RecordOutcome(user, regOutcome, completedAt)
	s.reg.OnJobCompleted(user, completedAt)

	switch regOutcome {
	case registry.OutcomeCompleted:
		metrics.CompletedCounter.Inc()
		s.global.IncCompleted()
	case registry.OutcomeCancelled:
		metrics.CancelledCounter.Inc()
		s.global.IncCancelled()
	case registry.OutcomeFailed:
		metrics.FailedCounter.Inc()
		s.global.IncFailed()
	}

	s.log.Info("dispatch finished",
		zap.String("user", user), zap.Int64("seq", job.Seq),
		zap.String("outcome", outcome.String()), zap.Duration("elapsed", completedAt.Sub(now)))
}

func translate(outcome backend.Outcome) (bridge.End, registry.Outcome) {
	switch outcome.Status {
	case backend.OutcomeOK:
		return bridge.End{Status: bridge.StatusOK}, registry.OutcomeCompleted
	case backend.OutcomeTimeout:
		return bridge.End{Status: bridge.StatusTimeout}, registry.OutcomeFailed
	case backend.OutcomeCancelled:
		return bridge.End{Status: bridge.StatusCancelled}, registry.OutcomeCancelled
	default:
		detail := outcome.Detail
		if detail == "" {
			detail = outcome.ErrText
		}
		return bridge.End{Status: bridge.StatusUpstreamError, Code: outcome.Code, Detail: detail}, registry.OutcomeFailed
	}
}

// drainOnShutdown emits a Cancelled terminal on every job still queued
// across all users. It does not touch an in-flight job: Run calls it only
// between executions, and Shutdown already cancelled s.shutdown, which is
// part of every call's merged context, so an in-flight execute() call
// unwinds on its own before Run gets here.
func (s *Scheduler) drainOnShutdown() {
	for _, job := range s.reg.DrainAll() {
		job.Producer.SendEnd(bridge.End{Status: bridge.StatusCancelled})
		metrics.CancelledCounter.Inc()
		s.global.IncCancelled()
	}
}

// mergeContexts returns a context that is done as soon as either parent is
// done. Its Err is always context.Canceled, whichever parent fired.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		case <-stop:
		}
		cancel()
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}
