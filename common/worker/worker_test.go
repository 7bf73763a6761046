package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getflowline/flowline/common/connector"
	"github.com/getflowline/flowline/common/engine"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/queue"
	"github.com/getflowline/flowline/common/repository"
	"github.com/getflowline/flowline/common/storage"
)

const (
	testTriggerTopic   = "workflow.trigger"
	testCompletedTopic = "workflow.completed"
)

func quietLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

type workerEnv struct {
	worker       *Worker
	bus          *queue.MemoryBus
	workflowRepo *repository.WorkflowRepository
	runRepo      *repository.RunRepository
	runStore     *storage.MemoryStore[*models.WorkflowRun]
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	log := quietLogger()
	workflowStore := storage.NewMemoryStore[*models.WorkflowDefinition](50)
	runStore := storage.NewMemoryStore[*models.WorkflowRun](50)
	workflowRepo := repository.NewWorkflowRepository(workflowStore)
	runRepo := repository.NewRunRepository(runStore)
	bus := queue.NewMemoryBus(log)

	eng := engine.NewEngine(&engine.EngineOpts{
		WorkflowRepo: workflowRepo,
		RunRepo:      runRepo,
		Registry:     connector.NewRegistry(log),
		Logger:       log,
	})

	w := NewWorker(&WorkerOpts{
		Engine:         eng,
		RunRepo:        runRepo,
		Consumer:       bus.Consumer(testTriggerTopic, "workflow-workers"),
		Producer:       bus,
		CompletedTopic: testCompletedTopic,
		Logger:         log,
	})

	return &workerEnv{
		worker:       w,
		bus:          bus,
		workflowRepo: workflowRepo,
		runRepo:      runRepo,
		runStore:     runStore,
	}
}

// seedRun stores a one-delay-step definition and a pending run for it
func (env *workerEnv) seedRun(t *testing.T) (workflowID, runID string) {
	t.Helper()
	ctx := context.Background()

	workflowID, err := env.workflowRepo.Create(ctx, &models.WorkflowDefinition{
		ID:   "wf-test",
		Name: "test workflow",
		Steps: []models.Step{
			{Name: "wait", Type: models.ConnectorDelay, Delay: &models.DelayConfig{Duration: 0}},
		},
	})
	require.NoError(t, err)

	runID, err = env.runRepo.Create(ctx, models.NewWorkflowRun(workflowID, nil))
	require.NoError(t, err)
	return workflowID, runID
}

func triggerMessage(t *testing.T, event models.WorkflowTriggerEvent) queue.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return queue.Message{Topic: testTriggerTopic, Key: event.RunID, Value: value}
}

func receiveCompleted(t *testing.T, bus *queue.MemoryBus) models.WorkflowCompletedEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got queue.Message
	received := make(chan struct{})
	go func() {
		_ = bus.Consumer(testCompletedTopic, "test").Run(ctx, func(ctx context.Context, msg queue.Message) error {
			got = msg
			close(received)
			cancel()
			return nil
		})
	}()

	select {
	case <-received:
	case <-ctx.Done():
		t.Fatal("no completion event received")
	}

	var event models.WorkflowCompletedEvent
	require.NoError(t, json.Unmarshal(got.Value, &event))
	assert.Equal(t, event.RunID, got.Key, "completion events are keyed by run id")
	return event
}

func expectNoCompleted(t *testing.T, bus *queue.MemoryBus) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	received := make(chan struct{})
	go func() {
		_ = bus.Consumer(testCompletedTopic, "test").Run(ctx, func(ctx context.Context, msg queue.Message) error {
			close(received)
			cancel()
			return nil
		})
	}()

	select {
	case <-received:
		t.Fatal("unexpected completion event")
	case <-ctx.Done():
	}
}

func TestHandleMessageExecutesRun(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	workflowID, runID := env.seedRun(t)

	msg := triggerMessage(t, models.WorkflowTriggerEvent{RunID: runID, WorkflowID: workflowID})
	require.NoError(t, env.worker.handleMessage(ctx, msg))

	run, found, err := env.runRepo.Get(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RunSuccess, run.Status)

	completed := receiveCompleted(t, env.bus)
	assert.Equal(t, runID, completed.RunID)
	assert.Equal(t, workflowID, completed.WorkflowID)
	assert.Equal(t, models.RunSuccess, completed.Status)
	assert.Empty(t, completed.Error)
}

func TestHandleMessageMalformedEvent(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	msg := queue.Message{Topic: testTriggerTopic, Key: "junk", Value: []byte("{not json")}
	require.NoError(t, env.worker.handleMessage(ctx, msg), "malformed events are dropped, not retried")

	runs, err := env.runRepo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	expectNoCompleted(t, env.bus)
}

func TestHandleMessageMissingRun(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	msg := triggerMessage(t, models.WorkflowTriggerEvent{RunID: "ghost", WorkflowID: "wf-1"})
	require.NoError(t, env.worker.handleMessage(ctx, msg))

	completed := receiveCompleted(t, env.bus)
	assert.Equal(t, models.RunFailed, completed.Status)
	assert.Equal(t, "Run ghost not found", completed.Error)
}

func TestHandleMessageWorkflowMissing(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	runID, err := env.runRepo.Create(ctx, models.NewWorkflowRun("ghost-workflow", nil))
	require.NoError(t, err)

	msg := triggerMessage(t, models.WorkflowTriggerEvent{RunID: runID, WorkflowID: "ghost-workflow"})
	require.NoError(t, env.worker.handleMessage(ctx, msg))

	run, found, err := env.runRepo.Get(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, "Workflow ghost-workflow not found", run.Error)

	completed := receiveCompleted(t, env.bus)
	assert.Equal(t, models.RunFailed, completed.Status)
	assert.Equal(t, "Workflow ghost-workflow not found", completed.Error)
}

func TestHandleMessageStorageFaultBubbles(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	workflowID, runID := env.seedRun(t)

	require.NoError(t, env.runStore.Close(ctx))

	msg := triggerMessage(t, models.WorkflowTriggerEvent{RunID: runID, WorkflowID: workflowID})
	err := env.worker.handleMessage(ctx, msg)
	require.Error(t, err, "storage faults must surface so the event is redelivered")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestHandleMessagePublishFailureStillAcks(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	workflowID, runID := env.seedRun(t)

	require.NoError(t, env.bus.Close())

	msg := triggerMessage(t, models.WorkflowTriggerEvent{RunID: runID, WorkflowID: workflowID})
	require.NoError(t, env.worker.handleMessage(ctx, msg), "a lost completion event must not fail the message")

	run, found, err := env.runRepo.Get(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RunSuccess, run.Status, "the stored run stays authoritative")
}

func TestWorkerRunEndToEnd(t *testing.T) {
	env := newWorkerEnv(t)
	workflowID, runID := env.seedRun(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.worker.Run(ctx) }()

	event := models.WorkflowTriggerEvent{RunID: runID, WorkflowID: workflowID}
	require.NoError(t, env.bus.Send(ctx, testTriggerTopic, runID, event))

	completed := receiveCompleted(t, env.bus)
	assert.Equal(t, runID, completed.RunID)
	assert.Equal(t, models.RunSuccess, completed.Status)

	run, found, err := env.runRepo.Get(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RunSuccess, run.Status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
