package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/cmd/api/container"
	"github.com/getflowline/flowline/cmd/api/handlers"
)

// RegisterWorkflowRoutes registers workflow definition routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c.Components, c.WorkflowService)

	workflows := e.Group("/api/v1/workflows")
	{
		workflows.POST("", h.CreateWorkflow)    // POST /api/v1/workflows
		workflows.GET("/:uuid", h.GetWorkflow)  // GET /api/v1/workflows/{uuid}
	}
}
