package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/service"
)

// RunHandler handles workflow run requests
type RunHandler struct {
	components  *bootstrap.Components
	workflowSvc *service.WorkflowService
}

// NewRunHandler creates a new run handler
func NewRunHandler(components *bootstrap.Components, workflowSvc *service.WorkflowService) *RunHandler {
	return &RunHandler{
		components:  components,
		workflowSvc: workflowSvc,
	}
}

// GetRun retrieves a workflow run by UUID
// GET /api/v1/runs/:uuid
func (h *RunHandler) GetRun(c echo.Context) error {
	uuid := c.Param("uuid")

	run, err := h.workflowSvc.GetRun(c.Request().Context(), uuid)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}

		h.components.Logger.Error("failed to get run", "run_id", uuid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}

	return c.JSON(http.StatusOK, run)
}

// ListRuns pages through runs ordered by UUID
// GET /api/v1/runs?limit=50&cursor=<uuid>
func (h *RunHandler) ListRuns(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}
	cursor := c.QueryParam("cursor")
	limit = h.workflowSvc.PageLimit(limit)

	runs, next, err := h.workflowSvc.ListRuns(c.Request().Context(), limit, cursor)
	if err != nil {
		h.components.Logger.Error("failed to list runs", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":       runs,
		"next_cursor": next,
		"limit":       limit,
	})
}
