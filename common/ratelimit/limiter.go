package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/getflowline/flowline/common/logger"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Trigger limits are configured per minute, so the window is fixed.
const windowSeconds = 60

// GlobalTriggerKey is the counter shared by every trigger request.
const GlobalTriggerKey = "ratelimit:trigger:global"

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the window resets (0 if allowed)
}

// Limiter enforces fixed-window trigger limits using Redis + Lua. The
// script increments and checks in one round trip, so API instances
// behind a load balancer share a single counter.
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	log    *logger.Logger
}

// NewLimiter creates a limiter with the embedded Lua script.
func NewLimiter(client *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{
		redis:  client,
		script: redis.NewScript(rateLimitScript),
		log:    log.WithComponent("ratelimit"),
	}
}

// CheckTrigger checks the service-wide trigger limit.
func (l *Limiter) CheckTrigger(ctx context.Context, limit int64) (*Result, error) {
	return l.check(ctx, GlobalTriggerKey, limit)
}

// check executes the rate limit Lua script.
func (l *Limiter) check(ctx context.Context, key string, limit int64) (*Result, error) {
	raw, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSeconds).Result()
	if err != nil {
		l.log.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Parse result array: {allowed, current_count, limit, retry_after}
	fields, ok := raw.([]interface{})
	if !ok || len(fields) != 4 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", raw)
	}

	result := &Result{
		Allowed:           fields[0].(int64) == 1,
		CurrentCount:      fields[1].(int64),
		Limit:             fields[2].(int64),
		RetryAfterSeconds: fields[3].(int64),
	}

	if !result.Allowed {
		l.log.Warn("rate limit exceeded",
			"key", key,
			"current", result.CurrentCount,
			"limit", result.Limit,
			"retry_after", result.RetryAfterSeconds)
	}

	return result, nil
}

// CurrentCount returns the counter value without incrementing it.
func (l *Limiter) CurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// Reset clears a counter so the next check starts a fresh window.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, key).Err()
}
