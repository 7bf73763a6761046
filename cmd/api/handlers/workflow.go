package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/service"
)

// WorkflowHandler handles workflow definition requests
type WorkflowHandler struct {
	components  *bootstrap.Components
	workflowSvc *service.WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(components *bootstrap.Components, workflowSvc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		components:  components,
		workflowSvc: workflowSvc,
	}
}

// CreateWorkflow stores a new workflow definition
// POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(c echo.Context) error {
	var workflow models.WorkflowDefinition
	if err := c.Bind(&workflow); err != nil {
		// Schema problems surface as 422, same as validation failures
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	uuid, err := h.workflowSvc.CreateWorkflow(c.Request().Context(), &workflow)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, ve.Error())
		}

		h.components.Logger.Error("failed to create workflow", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create workflow")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Workflow created successfully",
		"workflow_id": uuid,
	})
}

// GetWorkflow retrieves a workflow definition by UUID
// GET /api/v1/workflows/:uuid
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	uuid := c.Param("uuid")

	workflow, err := h.workflowSvc.GetWorkflow(c.Request().Context(), uuid)
	if err != nil {
		if errors.Is(err, service.ErrWorkflowNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}

		h.components.Logger.Error("failed to get workflow", "workflow_id", uuid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get workflow")
	}

	return c.JSON(http.StatusOK, workflow)
}
