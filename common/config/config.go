package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type             string // "postgres", "file" or "memory"
	DataDir          string // root directory for the file backend
	DefaultPageLimit int
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// CacheConfig holds read-through cache settings
type CacheConfig struct {
	Enabled       bool
	Type          string // "redis" for production, "memory" for single-process
	RedisHost     string
	RedisPort     int
	RedisPassword string
	WorkflowTTL   time.Duration
	RunTTL        time.Duration
}

// QueueConfig holds message bus settings
type QueueConfig struct {
	Type           string // "kafka" for production, "memory" for single-process
	Brokers        []string
	ConsumerGroup  string
	TriggerTopic   string
	CompletedTopic string
}

// RateLimitConfig holds trigger rate limiting settings. Disabled by
// default; enabling it requires a reachable Redis.
type RateLimitConfig struct {
	Enabled          bool
	TriggerPerMinute int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	Enabled   bool
	PprofPort int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Storage: StorageConfig{
			Type:             getEnv("STORAGE_TYPE", "postgres"),
			DataDir:          getEnv("DATA_DIR", "./data"),
			DefaultPageLimit: getEnvInt("DEFAULT_PAGE_LIMIT", 50),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "flowline"),
			User:        getEnv("POSTGRES_USER", "flowline"),
			Password:    getEnv("POSTGRES_PASSWORD", "flowline"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 10),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("CACHE_ENABLED", true),
			Type:          getEnv("CACHE_TYPE", "redis"),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnvInt("REDIS_PORT", 6379),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			WorkflowTTL:   getEnvDuration("CACHE_WORKFLOW_TTL", 60*time.Second),
			RunTTL:        getEnvDuration("CACHE_RUN_TTL", 10*time.Second),
		},
		Queue: QueueConfig{
			Type:           getEnv("QUEUE_TYPE", "kafka"),
			Brokers:        getEnvSlice("KAFKA_BOOTSTRAP_SERVERS", []string{"kafka:9092"}),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "workflow-workers"),
			TriggerTopic:   getEnv("KAFKA_TOPIC_WORKFLOW_TRIGGER", "workflow.trigger"),
			CompletedTopic: getEnv("KAFKA_TOPIC_WORKFLOW_COMPLETED", "workflow.completed"),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getEnvBool("RATE_LIMIT_ENABLED", false),
			TriggerPerMinute: getEnvInt("RATE_LIMIT_TRIGGER_PER_MIN", 120),
		},
		Telemetry: TelemetryConfig{
			Enabled:   getEnvBool("TELEMETRY_ENABLED", false),
			PprofPort: getEnvInt("TELEMETRY_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}

	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Storage.Type {
	case "postgres", "file", "memory":
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}

	switch c.Queue.Type {
	case "kafka", "memory":
	default:
		return fmt.Errorf("unknown queue type: %q", c.Queue.Type)
	}

	switch c.Cache.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown cache type: %q", c.Cache.Type)
	}

	if c.Storage.Type == "postgres" && c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Queue.Type == "kafka" && len(c.Queue.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Storage.DefaultPageLimit < 1 {
		return fmt.Errorf("default page limit must be positive")
	}

	if c.RateLimit.Enabled && c.RateLimit.TriggerPerMinute < 1 {
		return fmt.Errorf("trigger rate limit must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the host:port address of the cache
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Cache.RedisHost, c.Cache.RedisPort)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
