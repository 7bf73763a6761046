package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getflowline/flowline/common/engine"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/queue"
	"github.com/getflowline/flowline/common/repository"
)

// Worker consumes trigger events, drives run execution through the engine
// and announces terminal states on the completed topic
type Worker struct {
	engine         *engine.Engine
	runRepo        *repository.RunRepository
	consumer       queue.Consumer
	producer       queue.Producer
	completedTopic string
	log            *logger.Logger
}

// WorkerOpts contains options for creating a Worker
type WorkerOpts struct {
	Engine         *engine.Engine
	RunRepo        *repository.RunRepository
	Consumer       queue.Consumer
	Producer       queue.Producer
	CompletedTopic string
	Logger         *logger.Logger
}

// NewWorker creates a new workflow worker
func NewWorker(opts *WorkerOpts) *Worker {
	return &Worker{
		engine:         opts.Engine,
		runRepo:        opts.RunRepo,
		consumer:       opts.Consumer,
		producer:       opts.Producer,
		completedTopic: opts.CompletedTopic,
		log:            opts.Logger,
	}
}

// Run blocks consuming trigger events until the context is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("workflow worker started, waiting for trigger events")
	return w.consumer.Run(ctx, w.handleMessage)
}

// Close releases the consumer
func (w *Worker) Close() error {
	return w.consumer.Close()
}

// handleMessage processes one trigger event. Malformed events are dropped
// with their offset committed; storage faults bubble up so the event stays
// uncommitted and gets redelivered, which the engine tolerates.
func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) error {
	var event models.WorkflowTriggerEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.log.Error("dropping malformed trigger event",
			"topic", msg.Topic,
			"key", msg.Key,
			"error", err,
		)
		return nil
	}

	log := w.log.WithRunID(event.RunID)
	log.Info("processing trigger event", "workflow_id", event.WorkflowID)

	if err := w.engine.ExecuteRun(ctx, event.RunID); err != nil {
		log.Error("run execution hit a storage fault", "error", err)
		return err
	}

	run, found, err := w.runRepo.Get(ctx, event.RunID)
	if err != nil {
		return fmt.Errorf("reload run: %w", err)
	}

	completed := models.WorkflowCompletedEvent{
		RunID:      event.RunID,
		WorkflowID: event.WorkflowID,
	}
	if !found {
		completed.Status = models.RunFailed
		completed.Error = fmt.Sprintf("Run %s not found", event.RunID)
	} else {
		completed.Status = run.Status
		if run.Status == models.RunFailed {
			completed.Error = run.Error
		}
	}

	// The stored run stays authoritative; a lost completion event only
	// affects downstream listeners
	if err := w.producer.Send(ctx, w.completedTopic, event.RunID, completed); err != nil {
		log.Error("failed to publish completion event", "error", err)
		return nil
	}

	log.Info("workflow completed", "status", completed.Status)
	return nil
}
