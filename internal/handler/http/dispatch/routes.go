package dispatch

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers the four supported generate/chat endpoints.
func (h *Handler) SetupRoutes(e *echo.Echo) {
	e.POST("/api/generate", h.Handle)
	e.POST("/api/chat", h.Handle)
	e.POST("/v1/chat/completions", h.Handle)
	e.POST("/v1/completions", h.Handle)
}
