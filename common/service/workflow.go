package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getflowline/flowline/common/cache"
	"github.com/getflowline/flowline/common/config"
	"github.com/getflowline/flowline/common/connector"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/queue"
	"github.com/getflowline/flowline/common/repository"
)

// MaxPageLimit caps the page size a caller may request
const MaxPageLimit = 200

var (
	// ErrWorkflowNotFound is returned when the requested definition does not exist
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound is returned when the requested run does not exist
	ErrRunNotFound = errors.New("run not found")
)

// ValidationError rejects a workflow definition that must not be stored
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow: %s %s", e.Field, e.Reason)
}

// WorkflowService is the business surface behind the REST API: create and
// fetch definitions, trigger runs, read run state. Reads go through the
// cache when one is configured; cache trouble degrades to storage.
type WorkflowService struct {
	workflowRepo *repository.WorkflowRepository
	runRepo      *repository.RunRepository
	registry     *connector.Registry
	cache        cache.Cache
	producer     queue.Producer
	cfg          *config.Config
	log          *logger.Logger
}

// WorkflowServiceOpts contains options for creating a WorkflowService
type WorkflowServiceOpts struct {
	WorkflowRepo *repository.WorkflowRepository
	RunRepo      *repository.RunRepository
	Registry     *connector.Registry
	Cache        cache.Cache
	Producer     queue.Producer
	Config       *config.Config
	Logger       *logger.Logger
}

// NewWorkflowService creates a new workflow service with options pattern
func NewWorkflowService(opts *WorkflowServiceOpts) *WorkflowService {
	return &WorkflowService{
		workflowRepo: opts.WorkflowRepo,
		runRepo:      opts.RunRepo,
		registry:     opts.Registry,
		cache:        opts.Cache,
		producer:     opts.Producer,
		cfg:          opts.Config,
		log:          opts.Logger,
	}
}

// Validate checks a definition against the connector registry before it
// is accepted for storage
func (s *WorkflowService) Validate(workflow *models.WorkflowDefinition) error {
	if strings.TrimSpace(workflow.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(workflow.Steps) == 0 {
		return &ValidationError{Field: "steps", Reason: "must contain at least one step"}
	}

	seen := make(map[string]struct{}, len(workflow.Steps))
	for i, step := range workflow.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if strings.TrimSpace(step.Name) == "" {
			return &ValidationError{Field: field + ".name", Reason: "must not be empty"}
		}
		if _, dup := seen[step.Name]; dup {
			return &ValidationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate step name %q", step.Name)}
		}
		seen[step.Name] = struct{}{}

		if _, err := s.registry.Get(step.Type); err != nil {
			return &ValidationError{Field: field + ".type", Reason: fmt.Sprintf("unknown connector type %q", step.Type)}
		}
		if step.Type == models.ConnectorWebhook && (step.Webhook == nil || step.Webhook.URL == "") {
			return &ValidationError{Field: field + ".config.url", Reason: "webhook steps require a url"}
		}
	}

	return nil
}

// CreateWorkflow validates and persists a new definition, returning its UUID
func (s *WorkflowService) CreateWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) (string, error) {
	if err := s.Validate(workflow); err != nil {
		return "", err
	}

	uuid, err := s.workflowRepo.Create(ctx, workflow)
	if err != nil {
		return "", err
	}

	s.cachePut(ctx, cache.WorkflowKey(uuid), workflow, s.cfg.Cache.WorkflowTTL)

	s.log.Info("workflow created",
		"workflow_id", uuid,
		"name", workflow.Name,
		"steps", len(workflow.Steps),
	)

	return uuid, nil
}

// GetWorkflow fetches a definition, cache first
func (s *WorkflowService) GetWorkflow(ctx context.Context, uuid string) (*models.WorkflowDefinition, error) {
	var cached models.WorkflowDefinition
	if s.cacheGet(ctx, cache.WorkflowKey(uuid), &cached) {
		return &cached, nil
	}

	workflow, found, err := s.workflowRepo.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWorkflowNotFound
	}

	s.cachePut(ctx, cache.WorkflowKey(uuid), workflow, s.cfg.Cache.WorkflowTTL)
	return workflow, nil
}

// GetRun fetches a run, cache first
func (s *WorkflowService) GetRun(ctx context.Context, uuid string) (*models.WorkflowRun, error) {
	var cached models.WorkflowRun
	if s.cacheGet(ctx, cache.RunKey(uuid), &cached) {
		return &cached, nil
	}

	run, found, err := s.runRepo.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrRunNotFound
	}

	s.cachePut(ctx, cache.RunKey(uuid), run, s.cfg.Cache.RunTTL)
	return run, nil
}

// PageLimit clamps a requested page size: non-positive requests fall back
// to the configured default, oversized ones are capped at MaxPageLimit
func (s *WorkflowService) PageLimit(requested int) int {
	if requested < 1 {
		return s.cfg.Storage.DefaultPageLimit
	}
	if requested > MaxPageLimit {
		return MaxPageLimit
	}
	return requested
}

// ListRuns pages through runs ordered by UUID
func (s *WorkflowService) ListRuns(ctx context.Context, limit int, cursor string) ([]*models.WorkflowRun, string, error) {
	return s.runRepo.ListPage(ctx, s.PageLimit(limit), cursor)
}

// TriggerWorkflow creates a pending run for the definition and publishes a
// trigger event for the worker fleet. When publishing fails the run is
// marked FAILED before the error is returned, so the caller can still
// inspect it.
func (s *WorkflowService) TriggerWorkflow(ctx context.Context, workflowUUID string, payload map[string]any) (string, error) {
	if _, err := s.GetWorkflow(ctx, workflowUUID); err != nil {
		return "", err
	}

	run := models.NewWorkflowRun(workflowUUID, payload)
	runID, err := s.runRepo.Create(ctx, run)
	if err != nil {
		return "", err
	}

	event := models.WorkflowTriggerEvent{
		RunID:      runID,
		WorkflowID: workflowUUID,
		Payload:    payload,
	}

	if err := s.producer.Send(ctx, s.cfg.Queue.TriggerTopic, runID, event); err != nil {
		s.log.Error("failed to publish trigger event", "run_id", runID, "error", err)

		run.MarkFailed(fmt.Sprintf("Failed to queue workflow: %v", err))
		if saveErr := s.runRepo.Save(ctx, run); saveErr != nil {
			s.log.Error("failed to record enqueue failure", "run_id", runID, "error", saveErr)
		}

		return "", fmt.Errorf("failed to queue workflow: %w", err)
	}

	s.log.Info("workflow triggered", "workflow_id", workflowUUID, "run_id", runID)
	return runID, nil
}

// cacheGet loads a cached entity into out; any miss, decode problem or
// backend fault reports false so the caller falls through to storage
func (s *WorkflowService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}

	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed, using storage", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("cache entry undecodable, using storage", "key", key, "error", err)
		return false
	}

	return true
}

// cachePut stores an entity's JSON form; failures are logged, never surfaced
func (s *WorkflowService) cachePut(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache write skipped", "key", key, "error", err)
		return
	}

	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}
