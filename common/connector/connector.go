package connector

import (
	"context"
	"fmt"

	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
)

// Context carries the trigger payload (under "payload") and the outputs
// of completed steps (under their step names). Connectors read it, never
// write it; the engine owns mutation.
type Context map[string]any

// Connector executes one step kind
type Connector interface {
	Type() models.ConnectorType
	Execute(ctx context.Context, step models.Step, execCtx Context) (*models.StepOutput, error)
}

// Registry maps connector types to implementations. The set is closed at
// construction; steps referencing anything else fail dispatch.
type Registry struct {
	connectors map[models.ConnectorType]Connector
	log        *logger.Logger
}

// NewRegistry builds the registry with the delay and webhook connectors
func NewRegistry(log *logger.Logger) *Registry {
	r := &Registry{
		connectors: make(map[models.ConnectorType]Connector),
		log:        log,
	}

	r.register(NewDelayConnector(log))
	r.register(NewWebhookConnector(log))

	return r
}

func (r *Registry) register(c Connector) {
	r.connectors[c.Type()] = c
}

// Get looks up the connector for a type
func (r *Registry) Get(t models.ConnectorType) (Connector, error) {
	c, ok := r.connectors[t]
	if !ok {
		return nil, fmt.Errorf("unknown connector type: %q", t)
	}
	return c, nil
}

// Execute dispatches the step to its connector
func (r *Registry) Execute(ctx context.Context, step models.Step, execCtx Context) (*models.StepOutput, error) {
	c, err := r.Get(step.Type)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, step, execCtx)
}

// Types lists the registered connector types
func (r *Registry) Types() []models.ConnectorType {
	out := make([]models.ConnectorType, 0, len(r.connectors))
	for t := range r.connectors {
		out = append(out, t)
	}
	return out
}
