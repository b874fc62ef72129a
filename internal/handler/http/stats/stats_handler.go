// Package statshttp exposes the dispatcher's read-only snapshot as a JSON
// HTTP endpoint, the scripting-friendly counterpart to the terminal
// dashboard.
package statshttp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ollamamq/ollamamq/internal/registry"
	"github.com/ollamamq/ollamamq/internal/stats"
)

// Handler serves GET /stats.
type Handler struct {
	reg    *registry.Registry
	global *stats.Global
	sched  stats.InFlightSource
}

// NewHandler constructs a stats handler over the live registry, global
// counters, and scheduler in-flight view.
func NewHandler(reg *registry.Registry, global *stats.Global, sched stats.InFlightSource) *Handler {
	return &Handler{reg: reg, global: global, sched: sched}
}

// HandleStats serves the current snapshot as JSON.
func (h *Handler) HandleStats(c echo.Context) error {
	snap := stats.Build(h.reg, h.global, h.sched)
	return c.JSON(http.StatusOK, snap)
}

// SetupRoutes registers the /stats route.
func (h *Handler) SetupRoutes(e *echo.Echo) {
	e.GET("/stats", h.HandleStats)
}
