package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
)

// DelayConnector pauses the run for a configured number of seconds
type DelayConnector struct {
	log *logger.Logger
}

// NewDelayConnector creates a delay connector
func NewDelayConnector(log *logger.Logger) *DelayConnector {
	return &DelayConnector{log: log}
}

// Type returns the connector type tag
func (c *DelayConnector) Type() models.ConnectorType {
	return models.ConnectorDelay
}

// Execute sleeps for config.duration seconds, honoring ctx cancellation
func (c *DelayConnector) Execute(ctx context.Context, step models.Step, execCtx Context) (*models.StepOutput, error) {
	duration := 1 // Default 1 second
	if step.Delay != nil {
		duration = step.Delay.Duration
	}

	c.log.Info("delaying", "step", step.Name, "duration_seconds", duration)

	timer := time.NewTimer(time.Duration(duration) * time.Second)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &models.StepOutput{
		Type: models.ConnectorDelay,
		Delay: &models.DelayOutput{
			Duration: duration,
			Message:  fmt.Sprintf("Delayed for %d seconds", duration),
		},
	}, nil
}
