package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/cmd/api/container"
	"github.com/getflowline/flowline/cmd/api/handlers"
)

// RegisterRunRoutes registers run read routes
func RegisterRunRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRunHandler(c.Components, c.WorkflowService)

	runs := e.Group("/api/v1/runs")
	{
		runs.GET("/:uuid", h.GetRun) // GET /api/v1/runs/{run_uuid}
		runs.GET("", h.ListRuns)     // GET /api/v1/runs?limit=50&cursor=<uuid>
	}
}
