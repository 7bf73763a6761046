package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getflowline/flowline/common/cache"
	"github.com/getflowline/flowline/common/config"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/queue"
)

func quietLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func memoryConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "flowline-test", Port: 8080},
		Storage: config.StorageConfig{Type: "memory", DefaultPageLimit: 50},
		Cache: config.CacheConfig{
			Enabled:     true,
			Type:        "memory",
			WorkflowTTL: time.Minute,
			RunTTL:      10 * time.Second,
		},
		Queue: config.QueueConfig{
			Type:           "memory",
			TriggerTopic:   "workflow.trigger",
			CompletedTopic: "workflow.completed",
			ConsumerGroup:  "workflow-workers",
		},
	}
}

func TestSetupMemoryStack(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()

	components, err := Setup(ctx, "flowline-test",
		WithCustomConfig(cfg),
		WithCustomLogger(quietLogger()),
	)
	require.NoError(t, err)

	assert.Same(t, cfg, components.Config)
	assert.Nil(t, components.DB, "memory storage needs no database")
	assert.Nil(t, components.Telemetry)
	assert.IsType(t, &queue.MemoryBus{}, components.Bus)
	assert.IsType(t, &cache.MemoryCache{}, components.Cache)

	assert.NoError(t, components.Health(ctx))
	assert.NoError(t, components.Shutdown(ctx))
}

func TestSetupSkipsDisabledComponents(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Cache.Enabled = false

	components, err := Setup(ctx, "flowline-test",
		WithCustomConfig(cfg),
		WithCustomLogger(quietLogger()),
		WithoutQueue(),
	)
	require.NoError(t, err)
	defer components.Shutdown(ctx)

	assert.Nil(t, components.Bus)
	assert.Nil(t, components.Cache)
}

func TestSetupUnknownQueueType(t *testing.T) {
	cfg := memoryConfig()
	cfg.Queue.Type = "rabbitmq"

	_, err := Setup(context.Background(), "flowline-test",
		WithCustomConfig(cfg),
		WithCustomLogger(quietLogger()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown queue type")
}

func TestSetupRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("CACHE_TYPE", "memory")
	t.Setenv("QUEUE_TYPE", "rabbitmq")

	_, err := Setup(context.Background(), "flowline-test",
		WithCustomLogger(quietLogger()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestShutdownRunsCleanupsInReverse(t *testing.T) {
	components := &Components{Logger: quietLogger()}

	var order []string
	components.addCleanup(func() error {
		order = append(order, "first registered")
		return nil
	})
	components.addCleanup(func() error {
		order = append(order, "second registered")
		return nil
	})

	require.NoError(t, components.Shutdown(context.Background()))
	assert.Equal(t, []string{"second registered", "first registered"}, order)
}

func TestShutdownCollectsErrors(t *testing.T) {
	components := &Components{Logger: quietLogger()}

	ran := false
	components.addCleanup(func() error {
		ran = true
		return nil
	})
	components.addCleanup(func() error { return assert.AnError })

	err := components.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown errors")
	assert.True(t, ran, "a failing cleanup must not stop the rest")
}

func TestMustSetupPanicsOnFailure(t *testing.T) {
	cfg := memoryConfig()
	cfg.Queue.Type = "rabbitmq"

	assert.Panics(t, func() {
		MustSetup(context.Background(), "flowline-test",
			WithCustomConfig(cfg),
			WithCustomLogger(quietLogger()),
		)
	})
}
