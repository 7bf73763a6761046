package engine

import (
	"context"
	"fmt"

	"github.com/getflowline/flowline/common/connector"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/repository"
)

// Engine drives workflow runs to a terminal state, one step at a time
type Engine struct {
	workflowRepo *repository.WorkflowRepository
	runRepo      *repository.RunRepository
	registry     *connector.Registry
	log          *logger.Logger
}

// EngineOpts contains options for creating an Engine
type EngineOpts struct {
	WorkflowRepo *repository.WorkflowRepository
	RunRepo      *repository.RunRepository
	Registry     *connector.Registry
	Logger       *logger.Logger
}

// NewEngine creates a new execution engine
func NewEngine(opts *EngineOpts) *Engine {
	return &Engine{
		workflowRepo: opts.WorkflowRepo,
		runRepo:      opts.RunRepo,
		registry:     opts.Registry,
		log:          opts.Logger,
	}
}

// ExecuteRun executes the run identified by runID: loads the definition,
// walks its steps in order and persists the run after every transition.
// A step failure fails the run and stops execution; later steps never
// start. Business failures land on the run itself, the returned error is
// reserved for storage faults.
//
// Re-executing a terminal run is a no-op, so redelivered trigger events
// are safe.
func (e *Engine) ExecuteRun(ctx context.Context, runID string) error {
	log := e.log.WithRunID(runID)

	run, found, err := e.runRepo.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if !found {
		log.Warn("run not found, nothing to execute")
		return nil
	}

	if run.IsTerminal() {
		log.Info("run already finished, skipping", "status", run.Status)
		return nil
	}

	workflow, found, err := e.workflowRepo.Get(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	if !found {
		log.Error("workflow not found", "workflow_id", run.WorkflowID)
		run.MarkFailed(fmt.Sprintf("Workflow %s not found", run.WorkflowID))
		return e.runRepo.Save(ctx, run)
	}

	log.Info("starting workflow run",
		"workflow_id", run.WorkflowID,
		"workflow", workflow.Name,
		"steps", len(workflow.Steps),
	)

	run.Status = models.RunRunning
	if err := e.runRepo.Save(ctx, run); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	execCtx := connector.Context{"payload": run.Payload}

	for _, step := range workflow.Steps {
		result := e.executeStep(ctx, log, step, execCtx)
		run.RecordStep(result)

		if result.Status == models.StepFailed {
			run.MarkFailed(result.Error)
			if err := e.runRepo.Save(ctx, run); err != nil {
				return fmt.Errorf("mark failed: %w", err)
			}
			log.Error("workflow run failed", "step", step.Name, "error", result.Error)
			return nil
		}

		if err := e.runRepo.Save(ctx, run); err != nil {
			return fmt.Errorf("save step result: %w", err)
		}

		if result.Output != nil {
			execCtx[step.Name] = result.Output
		}
	}

	run.MarkSuccess()
	if err := e.runRepo.Save(ctx, run); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}

	log.Info("workflow run completed successfully")
	return nil
}

// executeStep runs a single step and returns its result; connector errors
// become a FAILED result, never a returned error
func (e *Engine) executeStep(ctx context.Context, log *logger.Logger, step models.Step, execCtx connector.Context) *models.StepResult {
	result := &models.StepResult{
		StepName:  step.Name,
		Status:    models.StepRunning,
		StartedAt: models.NowUTC(),
	}

	log.Info("executing step", "step", step.Name, "type", step.Type)

	output, err := e.registry.Execute(ctx, step, execCtx)
	result.CompletedAt = models.NowUTC()

	if err != nil {
		log.Error("step failed", "step", step.Name, "error", err)
		result.Status = models.StepFailed
		result.Error = err.Error()
		return result
	}

	result.Status = models.StepSuccess
	result.Output = output
	return result
}
