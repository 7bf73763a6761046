package models

// WorkflowTriggerEvent asks a worker to execute a run. Published to the
// trigger topic with the run UUID as the message key.
type WorkflowTriggerEvent struct {
	RunID      string         `json:"run_id"`
	WorkflowID string         `json:"workflow_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// WorkflowCompletedEvent announces a finished run on the completed topic.
// Error is present only when Status is failed.
type WorkflowCompletedEvent struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}
