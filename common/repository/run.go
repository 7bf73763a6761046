package repository

import (
	"context"
	"fmt"

	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/storage"
)

// RunRepository handles persistence operations for workflow runs
type RunRepository struct {
	store storage.Store[*models.WorkflowRun]
}

// NewRunRepository creates a new run repository
func NewRunRepository(store storage.Store[*models.WorkflowRun]) *RunRepository {
	return &RunRepository{store: store}
}

// Create persists a new run and returns its assigned UUID
func (r *RunRepository) Create(ctx context.Context, run *models.WorkflowRun) (string, error) {
	uuid, err := r.store.Create(ctx, run)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return uuid, nil
}

// Get retrieves a run by UUID. The bool reports existence.
func (r *RunRepository) Get(ctx context.Context, uuid string) (*models.WorkflowRun, bool, error) {
	run, found, err := r.store.Get(ctx, uuid)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get run: %w", err)
	}
	return run, found, nil
}

// Save overwrites the run identified by its own UUID. The engine calls
// this after every state transition, so a vanished run is an error here
// rather than a silent no-op.
func (r *RunRepository) Save(ctx context.Context, run *models.WorkflowRun) error {
	updated, err := r.store.Update(ctx, run.UUID, run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if !updated {
		return fmt.Errorf("failed to save run: run %s no longer exists", run.UUID)
	}
	return nil
}

// Delete removes a run; false when absent
func (r *RunRepository) Delete(ctx context.Context, uuid string) (bool, error) {
	deleted, err := r.store.Delete(ctx, uuid)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	return deleted, nil
}

// List returns every stored run
func (r *RunRepository) List(ctx context.Context) ([]*models.WorkflowRun, error) {
	runs, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ListPage returns up to limit runs after the cursor, ordered by UUID,
// plus the cursor for the next page ("" when this is the last page)
func (r *RunRepository) ListPage(ctx context.Context, limit int, cursor string) ([]*models.WorkflowRun, string, error) {
	runs, next, err := r.store.ListPage(ctx, limit, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, next, nil
}
