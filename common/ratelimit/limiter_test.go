package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getflowline/flowline/common/logger"
)

func quietLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewLimiter(client, quietLogger()), mr
}

func TestCheckTriggerAllowsUnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := limiter.CheckTrigger(ctx, 3)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(i), result.CurrentCount)
		assert.Equal(t, int64(3), result.Limit)
		assert.Equal(t, int64(0), result.RetryAfterSeconds)
	}
}

func TestCheckTriggerDeniesOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.CheckTrigger(ctx, 2)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.CheckTrigger(ctx, 2)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(3), result.CurrentCount)
	assert.Greater(t, result.RetryAfterSeconds, int64(0))
	assert.LessOrEqual(t, result.RetryAfterSeconds, int64(60))
}

func TestCheckTriggerWindowResets(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	result, err := limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	mr.FastForward(61 * time.Second)

	result, err = limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.CurrentCount)
}

func TestCurrentCount(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	count, err := limiter.CurrentCount(ctx, GlobalTriggerKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "missing key reads as zero")

	for i := 0; i < 2; i++ {
		_, err := limiter.CheckTrigger(ctx, 10)
		require.NoError(t, err)
	}

	count, err = limiter.CurrentCount(ctx, GlobalTriggerKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestResetClearsWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	result, err := limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, GlobalTriggerKey))

	result, err = limiter.CheckTrigger(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.CurrentCount)
}

func TestCheckTriggerSurfacesRedisError(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	mr.Close()

	result, err := limiter.CheckTrigger(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limit check failed")
	assert.Nil(t, result)
}
