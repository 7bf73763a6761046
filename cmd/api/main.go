package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/getflowline/flowline/cmd/api/container"
	"github.com/getflowline/flowline/cmd/api/routes"
	"github.com/getflowline/flowline/common/bootstrap"
	"github.com/getflowline/flowline/common/engine"
	flowmiddleware "github.com/getflowline/flowline/common/middleware"
	"github.com/getflowline/flowline/common/ratelimit"
	"github.com/getflowline/flowline/common/server"
	"github.com/getflowline/flowline/common/storage"
	"github.com/getflowline/flowline/common/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap common components (config, logger, db, bus, cache)
	components, err := bootstrap.Setup(ctx, "flowline-api",
		bootstrap.WithDBInitHook(storage.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap flowline-api: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)

	// The trigger limiter shares one Redis window across API instances;
	// its client is separate from the cache so disabling the cache does
	// not disable limiting.
	var triggerMW []echo.MiddlewareFunc
	if cfg := components.Config; cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Cache.RedisPassword,
		})
		defer rdb.Close()

		limiter := ratelimit.NewLimiter(rdb, components.Logger)
		triggerMW = append(triggerMW,
			flowmiddleware.TriggerRateLimit(limiter, int64(cfg.RateLimit.TriggerPerMinute)))

		components.Logger.Info("trigger rate limiting enabled",
			"per_minute", cfg.RateLimit.TriggerPerMinute,
			"redis", cfg.RedisAddr(),
		)
	}

	registerRoutes(e, serviceContainer, triggerMW...)

	// With the in-memory queue there is no worker fleet; execution runs
	// inside this process off the same stores.
	if components.Config.Queue.Type == "memory" {
		w := startInProcessWorker(ctx, serviceContainer)
		defer w.Close()
	}

	srv := server.New("flowline-api", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(ctx); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"service": "flowline-api",
				"error":   err.Error(),
			})
		}

		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "flowline-api",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container, triggerMW ...echo.MiddlewareFunc) {
	routes.RegisterWorkflowRoutes(e, serviceContainer)
	routes.RegisterTriggerRoutes(e, serviceContainer, triggerMW...)
	routes.RegisterRunRoutes(e, serviceContainer)
}

// startInProcessWorker runs the consumer loop next to the API, sharing its
// stores, for the single-process deployment
func startInProcessWorker(ctx context.Context, c *container.Container) *worker.Worker {
	components := c.Components

	eng := engine.NewEngine(&engine.EngineOpts{
		WorkflowRepo: c.WorkflowRepo,
		RunRepo:      c.RunRepo,
		Registry:     c.Registry,
		Logger:       components.Logger,
	})

	queueCfg := components.Config.Queue
	w := worker.NewWorker(&worker.WorkerOpts{
		Engine:         eng,
		RunRepo:        c.RunRepo,
		Consumer:       components.Bus.Consumer(queueCfg.TriggerTopic, queueCfg.ConsumerGroup),
		Producer:       components.Bus,
		CompletedTopic: queueCfg.CompletedTopic,
		Logger:         components.Logger,
	})

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			components.Logger.Error("in-process worker stopped", "error", err)
		}
	}()

	components.Logger.Info("running in single-process mode",
		"trigger_topic", queueCfg.TriggerTopic,
	)

	return w
}
