package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/connector"
	"github.com/getflowline/flowline/common/engine"
	"github.com/getflowline/flowline/common/repository"
	"github.com/getflowline/flowline/common/storage"
	"github.com/getflowline/flowline/common/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap common components (config, logger, db, bus)
	components, err := bootstrap.Setup(ctx, "flowline-worker",
		bootstrap.WithoutCache(),
		bootstrap.WithDBInitHook(storage.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	w, err := buildWorker(components)
	if err != nil {
		components.Logger.Error("failed to initialize worker", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	errChan := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	components.Logger.Info("flowline-worker started",
		"trigger_topic", components.Config.Queue.TriggerTopic,
		"group", components.Config.Queue.ConsumerGroup,
	)

	waitForShutdown(cancel, errChan, done, components)
}

// buildWorker wires storage, engine and bus endpoints into the consumer loop
func buildWorker(components *bootstrap.Components) (*worker.Worker, error) {
	storeOpts := storage.FromConfig(components.Config, components.DB, components.Logger)

	workflowStore, err := storage.NewWorkflowStore(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow store: %w", err)
	}

	runStore, err := storage.NewRunStore(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}

	workflowRepo := repository.NewWorkflowRepository(workflowStore)
	runRepo := repository.NewRunRepository(runStore)
	registry := connector.NewRegistry(components.Logger)

	eng := engine.NewEngine(&engine.EngineOpts{
		WorkflowRepo: workflowRepo,
		RunRepo:      runRepo,
		Registry:     registry,
		Logger:       components.Logger,
	})

	queueCfg := components.Config.Queue
	return worker.NewWorker(&worker.WorkerOpts{
		Engine:         eng,
		RunRepo:        runRepo,
		Consumer:       components.Bus.Consumer(queueCfg.TriggerTopic, queueCfg.ConsumerGroup),
		Producer:       components.Bus,
		CompletedTopic: queueCfg.CompletedTopic,
		Logger:         components.Logger,
	}), nil
}

// waitForShutdown blocks until the loop fails or a shutdown signal
// arrives, then waits for the in-flight handler to drain
func waitForShutdown(cancel context.CancelFunc, errChan chan error, done chan struct{}, components *bootstrap.Components) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		components.Logger.Error("worker failed", "error", err)
		cancel()
		os.Exit(1)
	case sig := <-sigChan:
		components.Logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		components.Logger.Warn("worker did not stop in time")
	}
}
