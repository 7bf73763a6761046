package repository

import (
	"context"
	"fmt"

	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/storage"
)

// WorkflowRepository handles persistence operations for workflow definitions
type WorkflowRepository struct {
	store storage.Store[*models.WorkflowDefinition]
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(store storage.Store[*models.WorkflowDefinition]) *WorkflowRepository {
	return &WorkflowRepository{store: store}
}

// Create persists a new workflow definition and returns its assigned UUID
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowDefinition) (string, error) {
	uuid, err := r.store.Create(ctx, workflow)
	if err != nil {
		return "", fmt.Errorf("failed to create workflow: %w", err)
	}
	return uuid, nil
}

// Get retrieves a workflow definition by UUID. The bool reports existence.
func (r *WorkflowRepository) Get(ctx context.Context, uuid string) (*models.WorkflowDefinition, bool, error) {
	workflow, found, err := r.store.Get(ctx, uuid)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get workflow: %w", err)
	}
	return workflow, found, nil
}

// Update overwrites an existing workflow definition; false when absent
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.WorkflowDefinition) (bool, error) {
	updated, err := r.store.Update(ctx, workflow.UUID, workflow)
	if err != nil {
		return false, fmt.Errorf("failed to update workflow: %w", err)
	}
	return updated, nil
}

// Delete removes a workflow definition; false when absent
func (r *WorkflowRepository) Delete(ctx context.Context, uuid string) (bool, error) {
	deleted, err := r.store.Delete(ctx, uuid)
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}
	return deleted, nil
}

// List returns every stored workflow definition
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	workflows, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}
