package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/getflowline/flowline/common/db"
	"github.com/getflowline/flowline/common/models"
)

// InitSchema creates the workflow tables and indexes. Statements are
// idempotent so every service can run this at startup.
func InitSchema(ctx context.Context, database *db.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflow_definitions (
			uuid        TEXT PRIMARY KEY,
			id          TEXT NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			steps       JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			uuid         TEXT PRIMARY KEY,
			workflow_id  TEXT NOT NULL,
			status       TEXT NOT NULL,
			payload      JSONB,
			started_at   TEXT NOT NULL DEFAULT '',
			completed_at TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			step_results JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow_id ON workflow_runs (workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_status ON workflow_runs (status)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_status_started ON workflow_runs (status, started_at)`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}

	return nil
}

// PostgresWorkflowStore persists workflow definitions in the
// workflow_definitions table, steps as JSONB.
type PostgresWorkflowStore struct {
	db           *db.DB
	defaultLimit int
}

// NewPostgresWorkflowStore wraps an existing connection pool
func NewPostgresWorkflowStore(database *db.DB, defaultLimit int) *PostgresWorkflowStore {
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	return &PostgresWorkflowStore{db: database, defaultLimit: defaultLimit}
}

// Get returns the definition and whether it exists
func (s *PostgresWorkflowStore) Get(ctx context.Context, id string) (*models.WorkflowDefinition, bool, error) {
	query := `
		SELECT uuid, id, name, description, steps
		FROM workflow_definitions
		WHERE uuid = $1
	`

	wf := &models.WorkflowDefinition{}
	var stepsJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(&wf.UUID, &wf.ID, &wf.Name, &wf.Description, &stepsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get workflow: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
		return nil, false, fmt.Errorf("failed to decode workflow steps: %w", err)
	}

	return wf, true, nil
}

// Create assigns a fresh UUID and inserts the definition
func (s *PostgresWorkflowStore) Create(ctx context.Context, wf *models.WorkflowDefinition) (string, error) {
	id := uuid.NewString()
	wf.SetUUID(id)

	stepsJSON, err := json.Marshal(wf.Steps)
	if err != nil {
		return "", fmt.Errorf("failed to encode workflow steps: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (uuid, id, name, description, steps)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.db.Exec(ctx, query, wf.UUID, wf.ID, wf.Name, wf.Description, stepsJSON); err != nil {
		return "", fmt.Errorf("failed to create workflow: %w", err)
	}

	return id, nil
}

// Update overwrites an existing definition; false when absent
func (s *PostgresWorkflowStore) Update(ctx context.Context, id string, wf *models.WorkflowDefinition) (bool, error) {
	wf.SetUUID(id)

	stepsJSON, err := json.Marshal(wf.Steps)
	if err != nil {
		return false, fmt.Errorf("failed to encode workflow steps: %w", err)
	}

	query := `
		UPDATE workflow_definitions
		SET id = $2, name = $3, description = $4, steps = $5
		WHERE uuid = $1
	`

	tag, err := s.db.Exec(ctx, query, id, wf.ID, wf.Name, wf.Description, stepsJSON)
	if err != nil {
		return false, fmt.Errorf("failed to update workflow: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes a definition; false when absent
func (s *PostgresWorkflowStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflow_definitions WHERE uuid = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAll returns every definition
func (s *PostgresWorkflowStore) ListAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT uuid, id, name, description, steps
		FROM workflow_definitions
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// ListPage pages through definitions ordered ascending by uuid
func (s *PostgresWorkflowStore) ListPage(ctx context.Context, limit int, cursor string) ([]*models.WorkflowDefinition, string, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	query := `
		SELECT uuid, id, name, description, steps
		FROM workflow_definitions
		WHERE ($2 = '' OR uuid > $2)
		ORDER BY uuid ASC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit+1, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	items, err := collectWorkflows(rows)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[len(items)-1].UUID
	}

	return items, next, nil
}

// Close is a no-op; the pool is owned by the caller
func (s *PostgresWorkflowStore) Close(ctx context.Context) error { return nil }

func collectWorkflows(rows pgx.Rows) ([]*models.WorkflowDefinition, error) {
	var out []*models.WorkflowDefinition

	for rows.Next() {
		wf := &models.WorkflowDefinition{}
		var stepsJSON []byte

		if err := rows.Scan(&wf.UUID, &wf.ID, &wf.Name, &wf.Description, &stepsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode workflow steps: %w", err)
		}

		out = append(out, wf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return out, nil
}

// PostgresRunStore persists workflow runs in the workflow_runs table,
// payload and step_results as JSONB.
type PostgresRunStore struct {
	db           *db.DB
	defaultLimit int
}

// NewPostgresRunStore wraps an existing connection pool
func NewPostgresRunStore(database *db.DB, defaultLimit int) *PostgresRunStore {
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	return &PostgresRunStore{db: database, defaultLimit: defaultLimit}
}

// Get returns the run and whether it exists
func (s *PostgresRunStore) Get(ctx context.Context, id string) (*models.WorkflowRun, bool, error) {
	query := `
		SELECT uuid, workflow_id, status, payload, started_at, completed_at, error, step_results
		FROM workflow_runs
		WHERE uuid = $1
	`

	run := &models.WorkflowRun{}
	var payloadJSON, resultsJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(
		&run.UUID,
		&run.WorkflowID,
		&run.Status,
		&payloadJSON,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&resultsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get run: %w", err)
	}

	if err := decodeRunJSON(run, payloadJSON, resultsJSON); err != nil {
		return nil, false, err
	}

	return run, true, nil
}

// Create assigns a fresh UUID and inserts the run
func (s *PostgresRunStore) Create(ctx context.Context, run *models.WorkflowRun) (string, error) {
	id := uuid.NewString()
	run.SetUUID(id)

	payloadJSON, resultsJSON, err := encodeRunJSON(run)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO workflow_runs (uuid, workflow_id, status, payload, started_at, completed_at, error, step_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.Exec(
		ctx,
		query,
		run.UUID,
		run.WorkflowID,
		run.Status,
		payloadJSON,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		resultsJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	return id, nil
}

// Update overwrites an existing run; false when absent
func (s *PostgresRunStore) Update(ctx context.Context, id string, run *models.WorkflowRun) (bool, error) {
	run.SetUUID(id)

	payloadJSON, resultsJSON, err := encodeRunJSON(run)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE workflow_runs
		SET workflow_id = $2, status = $3, payload = $4, started_at = $5,
		    completed_at = $6, error = $7, step_results = $8
		WHERE uuid = $1
	`

	tag, err := s.db.Exec(
		ctx,
		query,
		id,
		run.WorkflowID,
		run.Status,
		payloadJSON,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		resultsJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update run: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes a run; false when absent
func (s *PostgresRunStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflow_runs WHERE uuid = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAll returns every run
func (s *PostgresRunStore) ListAll(ctx context.Context) ([]*models.WorkflowRun, error) {
	query := `
		SELECT uuid, workflow_id, status, payload, started_at, completed_at, error, step_results
		FROM workflow_runs
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListPage pages through runs ordered ascending by uuid
func (s *PostgresRunStore) ListPage(ctx context.Context, limit int, cursor string) ([]*models.WorkflowRun, string, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	query := `
		SELECT uuid, workflow_id, status, payload, started_at, completed_at, error, step_results
		FROM workflow_runs
		WHERE ($2 = '' OR uuid > $2)
		ORDER BY uuid ASC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit+1, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	items, err := collectRuns(rows)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[len(items)-1].UUID
	}

	return items, next, nil
}

// Close is a no-op; the pool is owned by the caller
func (s *PostgresRunStore) Close(ctx context.Context) error { return nil }

func collectRuns(rows pgx.Rows) ([]*models.WorkflowRun, error) {
	var out []*models.WorkflowRun

	for rows.Next() {
		run := &models.WorkflowRun{}
		var payloadJSON, resultsJSON []byte

		err := rows.Scan(
			&run.UUID,
			&run.WorkflowID,
			&run.Status,
			&payloadJSON,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&resultsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := decodeRunJSON(run, payloadJSON, resultsJSON); err != nil {
			return nil, err
		}

		out = append(out, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return out, nil
}

func encodeRunJSON(run *models.WorkflowRun) (payload, results []byte, err error) {
	payload, err = json.Marshal(run.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode run payload: %w", err)
	}
	results, err = json.Marshal(run.StepResults)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode step results: %w", err)
	}
	return payload, results, nil
}

func decodeRunJSON(run *models.WorkflowRun, payload, results []byte) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &run.Payload); err != nil {
			return fmt.Errorf("failed to decode run payload: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.StepResults); err != nil {
			return fmt.Errorf("failed to decode step results: %w", err)
		}
	}
	return nil
}
