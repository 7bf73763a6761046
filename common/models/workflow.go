package models

import (
	"encoding/json"
	"fmt"
)

// ConnectorType identifies which connector executes a step
type ConnectorType string

const (
	ConnectorDelay   ConnectorType = "delay"
	ConnectorWebhook ConnectorType = "webhook"
)

// DelayConfig configures a delay step
type DelayConfig struct {
	// Sleep duration in seconds
	Duration int `json:"duration"`
}

// WebhookConfig configures an outbound HTTP call
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

// Step is one unit of work inside a workflow definition.
// On the wire it is a tagged union: {"name": ..., "type": ..., "config": {...}}
// with the config variant selected by type.
type Step struct {
	Name string
	Type ConnectorType

	// Exactly one of the following is set, matching Type
	Delay   *DelayConfig
	Webhook *WebhookConfig
}

type stepEnvelope struct {
	Name   string          `json:"name"`
	Type   ConnectorType   `json:"type"`
	Config json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the step envelope and its typed config.
// Config defaults follow the connector: delay.duration=1, webhook.method=POST.
func (s *Step) UnmarshalJSON(data []byte) error {
	var env stepEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	s.Name = env.Name
	s.Type = env.Type
	s.Delay = nil
	s.Webhook = nil

	raw := env.Config
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch env.Type {
	case ConnectorDelay:
		cfg := DelayConfig{Duration: 1}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("decode delay config for step %q: %w", env.Name, err)
		}
		s.Delay = &cfg
	case ConnectorWebhook:
		cfg := WebhookConfig{Method: "POST"}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("decode webhook config for step %q: %w", env.Name, err)
		}
		s.Webhook = &cfg
	default:
		return fmt.Errorf("unknown connector type: %q", env.Type)
	}

	return nil
}

// MarshalJSON re-wraps the typed config into the envelope form
func (s Step) MarshalJSON() ([]byte, error) {
	var cfg any
	switch s.Type {
	case ConnectorDelay:
		if s.Delay == nil {
			cfg = DelayConfig{Duration: 1}
		} else {
			cfg = s.Delay
		}
	case ConnectorWebhook:
		if s.Webhook == nil {
			cfg = WebhookConfig{Method: "POST"}
		} else {
			cfg = s.Webhook
		}
	default:
		return nil, fmt.Errorf("unknown connector type: %q", s.Type)
	}

	return json.Marshal(stepEnvelope{
		Name:   s.Name,
		Type:   s.Type,
		Config: mustRaw(cfg),
	})
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Config variants are plain data; this cannot fail at runtime
		panic(err)
	}
	return b
}

// WorkflowDefinition is the stored description of a workflow.
// Steps execute strictly in slice order.
type WorkflowDefinition struct {
	// Server-assigned storage key
	UUID string `db:"uuid" json:"uuid"`

	// Caller-supplied logical identifier
	ID string `db:"id" json:"id"`

	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Steps       []Step `db:"steps" json:"steps"`
}

// GetUUID returns the storage key
func (w *WorkflowDefinition) GetUUID() string { return w.UUID }

// SetUUID assigns the storage key
func (w *WorkflowDefinition) SetUUID(id string) { w.UUID = id }
