package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getflowline/flowline/common/models"
)

func TestDelayZeroDuration(t *testing.T) {
	c := NewDelayConnector(quietLogger())
	step := models.Step{
		Name:  "wait",
		Type:  models.ConnectorDelay,
		Delay: &models.DelayConfig{Duration: 0},
	}

	start := time.Now()
	out, err := c.Execute(context.Background(), step, Context{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	require.NotNil(t, out.Delay)
	assert.Equal(t, 0, out.Delay.Duration)
	assert.Equal(t, "Delayed for 0 seconds", out.Delay.Message)
	assert.Equal(t, models.ConnectorDelay, out.Type)
}

func TestDelayHonorsCancellation(t *testing.T) {
	c := NewDelayConnector(quietLogger())
	step := models.Step{
		Name:  "wait",
		Type:  models.ConnectorDelay,
		Delay: &models.DelayConfig{Duration: 30},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, step, Context{})
	require.ErrorIs(t, err, context.Canceled)
}
