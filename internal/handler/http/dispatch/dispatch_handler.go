// Package dispatch implements the enqueue API: the HTTP entry point that
// builds a job, registers it with the scheduler, and streams the backend
// response back to the client as it arrives.
package dispatch

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ollamamq/ollamamq/internal/bridge"
	"github.com/ollamamq/ollamamq/internal/metrics"
	"github.com/ollamamq/ollamamq/internal/queue"
	"github.com/ollamamq/ollamamq/internal/registry"
	"github.com/ollamamq/ollamamq/internal/stats"
)

// seqCounter assigns each job a monotonically increasing sequence number,
// used for FIFO ordering within a user and for log correlation.
var seqCounter atomic.Int64

// Handler handles the four supported generate/chat endpoints, constructor
// injection pattern: no global state beyond the package-level seq counter,
// which is intentionally process-wide.
type Handler struct {
	reg          *registry.Registry
	global       *stats.Global
	log          *zap.Logger
	bufferSize   int
	shuttingDown *atomic.Bool
}

// NewHandler constructs a dispatch handler. shuttingDown is shared with the
// app's shutdown sequence: once set, Handle rejects new enqueues with 503.
func NewHandler(reg *registry.Registry, global *stats.Global, log *zap.Logger, bufferSize int, shuttingDown *atomic.Bool) *Handler {
	return &Handler{
		reg:          reg,
		global:       global,
		log:          log,
		bufferSize:   bufferSize,
		shuttingDown: shuttingDown,
	}
}

// Handle serves POST /api/generate, /api/chat, /v1/chat/completions and
// /v1/completions. It validates X-User-ID, buffers the request body,
// enqueues a job, and streams the resulting bridge to the response body.
func (h *Handler) Handle(c echo.Context) error {
	if h.shuttingDown.Load() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "dispatcher shutting down"})
	}

	user := c.Request().Header.Get("X-User-ID")
	if user == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing X-User-ID header"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}

	br := bridge.New(h.bufferSize)
	job := &queue.Job{
		Seq:       seqCounter.Inc(),
		User:      user,
		Path:      c.Request().URL.Path,
		Body:      body,
		Producer:  br.Producer(),
		Ctx:       c.Request().Context(),
		CreatedAt: time.Now(),
	}

	h.reg.Enqueue(user, job, job.CreatedAt)
	h.global.IncSeen()
	metrics.RequestsSeenCounter.Inc()

	h.log.Info("enqueued", zap.String("user", user), zap.Int64("seq", job.Seq), zap.String("path", job.Path))

	return h.stream(c, br.Consumer())
}

// stream drains the bridge consumer directly onto the response writer,
// flushing after each chunk so the client observes backend output as it
// arrives rather than buffered until completion.
func (h *Handler) stream(c echo.Context, consumer *bridge.Consumer) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp.WriteHeader(http.StatusOK)

	flusher, _ := resp.Writer.(http.Flusher)

	for {
		chunk, end, ok := consumer.Next()
		if !ok {
			return nil
		}
		if end != nil {
			if end.Status != bridge.StatusOK {
				h.log.Info("stream ended early",
					zap.String("status", end.Status.String()), zap.Int("code", end.Code))
			}
			return nil
		}
		if len(chunk) == 0 {
			continue
		}
		if _, werr := resp.Write(chunk); werr != nil {
			return nil
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
