package models

import (
	"encoding/json"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RunStatus is the lifecycle state of a workflow run
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	// Reserved. Accepted on reads, never produced by the engine.
	RunPaused RunStatus = "paused"
)

// Terminal reports whether the status is final
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

// StepStatus is the lifecycle state of a single step inside a run
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	// Reserved. Accepted on reads, never produced by the engine.
	StepSkipped StepStatus = "skipped"
)

// DelayOutput is what a delay step produces
type DelayOutput struct {
	Duration int    `json:"duration"`
	Message  string `json:"message"`
}

// WebhookOutput is what a webhook step produces.
// ResponseData holds decoded JSON when the response says application/json,
// otherwise the raw body string.
type WebhookOutput struct {
	StatusCode   int    `json:"status_code"`
	ResponseData any    `json:"response_data"`
	URL          string `json:"url"`
	Method       string `json:"method"`
}

// StepOutput is the tagged union of connector outputs. On the wire the
// variant fields sit flat next to the tag:
// {"type":"delay","duration":1,"message":"Delayed for 1 seconds"}
type StepOutput struct {
	Type ConnectorType

	Delay   *DelayOutput
	Webhook *WebhookOutput
}

// MarshalJSON flattens the active variant next to the type tag
func (o StepOutput) MarshalJSON() ([]byte, error) {
	switch o.Type {
	case ConnectorDelay:
		return json.Marshal(struct {
			Type ConnectorType `json:"type"`
			*DelayOutput
		}{o.Type, o.Delay})
	case ConnectorWebhook:
		return json.Marshal(struct {
			Type ConnectorType `json:"type"`
			*WebhookOutput
		}{o.Type, o.Webhook})
	default:
		return nil, fmt.Errorf("unknown connector type: %q", o.Type)
	}
}

// UnmarshalJSON selects the variant from the type tag
func (o *StepOutput) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type ConnectorType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	o.Type = tag.Type
	o.Delay = nil
	o.Webhook = nil

	switch tag.Type {
	case ConnectorDelay:
		var out DelayOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		o.Delay = &out
	case ConnectorWebhook:
		var out WebhookOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		o.Webhook = &out
	default:
		return fmt.Errorf("unknown connector type: %q", tag.Type)
	}

	return nil
}

// StepResult records one step's execution inside a run
type StepResult struct {
	StepName    string      `json:"step_name"`
	Status      StepStatus  `json:"status"`
	Output      *StepOutput `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   string      `json:"started_at,omitempty"`
	CompletedAt string      `json:"completed_at,omitempty"`
}

// StepResults maps step name to its result, preserving insertion order
// through JSON round trips so readers see steps in execution order.
type StepResults = orderedmap.OrderedMap[string, *StepResult]

// WorkflowRun is one execution of a workflow definition
type WorkflowRun struct {
	// Server-assigned storage key
	UUID string `db:"uuid" json:"uuid"`

	// WorkflowDefinition.UUID this run executes
	WorkflowID string `db:"workflow_id" json:"workflow_id"`

	Status  RunStatus      `db:"status" json:"status"`
	Payload map[string]any `db:"payload" json:"payload,omitempty"`

	StartedAt   string `db:"started_at" json:"started_at,omitempty"`
	CompletedAt string `db:"completed_at" json:"completed_at,omitempty"`

	// Run-level error, set only on FAILED
	Error string `db:"error" json:"error,omitempty"`

	StepResults *StepResults `db:"step_results" json:"step_results"`
}

// NewWorkflowRun builds a pending run for the given definition
func NewWorkflowRun(workflowID string, payload map[string]any) *WorkflowRun {
	return &WorkflowRun{
		WorkflowID:  workflowID,
		Status:      RunPending,
		Payload:     payload,
		StartedAt:   NowUTC(),
		StepResults: orderedmap.New[string, *StepResult](),
	}
}

// GetUUID returns the storage key
func (r *WorkflowRun) GetUUID() string { return r.UUID }

// SetUUID assigns the storage key
func (r *WorkflowRun) SetUUID(id string) { r.UUID = id }

// IsTerminal reports whether the run already finished
func (r *WorkflowRun) IsTerminal() bool { return r.Status.Terminal() }

// RecordStep upserts a step result. A repeated name replaces the earlier
// entry in place, keeping its original position.
func (r *WorkflowRun) RecordStep(result *StepResult) {
	if r.StepResults == nil {
		r.StepResults = orderedmap.New[string, *StepResult]()
	}
	r.StepResults.Set(result.StepName, result)
}

// StepResult looks up a recorded step by name
func (r *WorkflowRun) StepResult(name string) (*StepResult, bool) {
	if r.StepResults == nil {
		return nil, false
	}
	return r.StepResults.Get(name)
}

// MarkFailed moves the run to FAILED with the given error
func (r *WorkflowRun) MarkFailed(errMsg string) {
	r.Status = RunFailed
	r.Error = errMsg
	r.CompletedAt = NowUTC()
}

// MarkSuccess moves the run to SUCCESS
func (r *WorkflowRun) MarkSuccess() {
	r.Status = RunSuccess
	r.CompletedAt = NowUTC()
}

// NowUTC returns the current instant as an ISO-8601 UTC string, the
// format used for all run and step timestamps.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
