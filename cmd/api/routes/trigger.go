package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/cmd/api/container"
	"github.com/getflowline/flowline/cmd/api/handlers"
)

// RegisterTriggerRoutes registers the workflow trigger route. Optional
// middleware (rate limiting) applies to the trigger route only.
func RegisterTriggerRoutes(e *echo.Echo, c *container.Container, mw ...echo.MiddlewareFunc) {
	h := handlers.NewTriggerHandler(c.Components, c.WorkflowService)

	e.POST("/api/v1/trigger", h.TriggerWorkflow, mw...) // POST /api/v1/trigger
}
