package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/service"
)

// TriggerRequest asks for an asynchronous execution of a stored workflow
type TriggerRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Payload    map[string]any `json:"payload"`
}

// TriggerHandler handles workflow trigger requests
type TriggerHandler struct {
	components  *bootstrap.Components
	workflowSvc *service.WorkflowService
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(components *bootstrap.Components, workflowSvc *service.WorkflowService) *TriggerHandler {
	return &TriggerHandler{
		components:  components,
		workflowSvc: workflowSvc,
	}
}

// TriggerWorkflow creates a pending run and enqueues it for the worker
// fleet. Responds before execution starts; poll GET /api/v1/runs/:uuid
// for progress.
// POST /api/v1/trigger
func (h *TriggerHandler) TriggerWorkflow(c echo.Context) error {
	var req TriggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.WorkflowID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "workflow_id is required")
	}

	runID, err := h.workflowSvc.TriggerWorkflow(c.Request().Context(), req.WorkflowID, req.Payload)
	if err != nil {
		if errors.Is(err, service.ErrWorkflowNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}

		h.components.Logger.Error("failed to trigger workflow", "workflow_id", req.WorkflowID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"status": "triggered",
	})
}
