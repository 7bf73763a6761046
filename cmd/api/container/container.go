package container

import (
	"fmt"

	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/connector"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/repository"
	"github.com/getflowline/flowline/common/service"
	"github.com/getflowline/flowline/common/storage"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	WorkflowStore storage.Store[*models.WorkflowDefinition]
	RunStore      storage.Store[*models.WorkflowRun]

	WorkflowRepo *repository.WorkflowRepository
	RunRepo      *repository.RunRepository

	Registry        *connector.Registry
	WorkflowService *service.WorkflowService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	storeOpts := storage.FromConfig(components.Config, components.DB, components.Logger)

	workflowStore, err := storage.NewWorkflowStore(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow store: %w", err)
	}

	runStore, err := storage.NewRunStore(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}

	workflowRepo := repository.NewWorkflowRepository(workflowStore)
	runRepo := repository.NewRunRepository(runStore)

	registry := connector.NewRegistry(components.Logger)

	workflowService := service.NewWorkflowService(&service.WorkflowServiceOpts{
		WorkflowRepo: workflowRepo,
		RunRepo:      runRepo,
		Registry:     registry,
		Cache:        components.Cache,
		Producer:     components.Bus,
		Config:       components.Config,
		Logger:       components.Logger,
	})

	return &Container{
		Components:      components,
		WorkflowStore:   workflowStore,
		RunStore:        runStore,
		WorkflowRepo:    workflowRepo,
		RunRepo:         runRepo,
		Registry:        registry,
		WorkflowService: workflowService,
	}, nil
}
