package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/getflowline/flowline/common/cache"
	"github.com/getflowline/flowline/common/config"
	"github.com/getflowline/flowline/common/db"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/queue"
	"github.com/getflowline/flowline/common/telemetry"
)

// Setup initializes all service components in dependency order:
// config, logger, database, message bus, cache, telemetry.
// This is the main entry point for all services.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database. Only the postgres storage backend needs one.
	if !options.skipDB && components.Config.Storage.Type == "postgres" {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(ctx, components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize message bus
	if !options.skipQueue {
		components.Logger.Info("initializing message bus",
			"type", components.Config.Queue.Type,
		)

		switch components.Config.Queue.Type {
		case "kafka":
			components.Bus = queue.NewKafkaBus(components.Config.Queue.Brokers, components.Logger)
		case "memory":
			components.Bus = queue.NewMemoryBus(components.Logger)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown queue type: %s", components.Config.Queue.Type)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing message bus")
			return components.Bus.Close()
		})
	}

	// 5. Initialize cache
	if !options.skipCache && components.Config.Cache.Enabled {
		components.Logger.Info("initializing cache",
			"type", components.Config.Cache.Type,
		)

		switch components.Config.Cache.Type {
		case "redis":
			client := redis.NewClient(&redis.Options{
				Addr:     components.Config.RedisAddr(),
				Password: components.Config.Cache.RedisPassword,
			})

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := client.Ping(pingCtx).Err(); err != nil {
				// Reads degrade to storage per operation, so an
				// unreachable redis is not fatal at boot.
				components.Logger.Warn("redis unreachable at startup",
					"addr", components.Config.RedisAddr(),
					"error", err,
				)
			}
			cancel()

			components.Cache = cache.NewRedisCache(client, components.Logger)
		case "memory":
			components.Cache = cache.NewMemoryCache(components.Logger)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown cache type: %s", components.Config.Cache.Type)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 6. Initialize telemetry
	if !options.skipTelemetry && components.Config.Telemetry.Enabled {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
		} else {
			components.addCleanup(func() error {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return components.Telemetry.Shutdown(shutdownCtx)
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"bus", components.Bus != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error.
// Useful for services that can't recover from initialization failure.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
