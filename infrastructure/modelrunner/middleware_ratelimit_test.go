package modelrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/time/rate"
)

func TestRateLimitMiddleware_AllowsBurstRequests(t *testing.T) {
	// Given a limiter with a burst of 3
	mock := NewMockCoreModel()
	middleware := RateLimitMiddleware(rate.Limit(1), 3)
	wrapped := middleware(mock)

	// When making requests within the burst
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := wrapped.Invoke(context.Background(), "test prompt")
		require.NoError(t, err, "request %d should succeed", i+1)
	}

	// Then they should not be delayed
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst requests should not be rate limited")
	assert.Equal(t, 3, mock.GetCallCount(), "all requests should reach the model")
}

func TestRateLimitMiddleware_PacesRequestsBeyondBurst(t *testing.T) {
	// Given a limiter allowing 20 requests per second with no burst headroom
	mock := NewMockCoreModel()
	middleware := RateLimitMiddleware(rate.Limit(20), 1)
	wrapped := middleware(mock)

	// When making two requests back to back
	for i := 0; i < 2; i++ {
		_, err := wrapped.Invoke(context.Background(), "test prompt")
		require.NoError(t, err, "request %d should succeed", i+1)
	}

	// Then the second request should wait for a token (~50ms at 20 rps)
	gap := mock.GetTimeBetweenCalls(0, 1)
	require.NotNil(t, gap, "should record both calls")
	assert.Greater(t, gap.Milliseconds(), int64(30), "second request should be paced")
}

func TestRateLimitMiddleware_FailsWhenContextExpiresBeforeToken(t *testing.T) {
	// Given a limiter whose next token arrives long after the deadline
	mock := NewMockCoreModel()
	middleware := RateLimitMiddleware(rate.Limit(0.1), 1)
	wrapped := middleware(mock)

	// Consume the only available token.
	_, err := wrapped.Invoke(context.Background(), "test prompt")
	require.NoError(t, err, "first request should succeed")

	// When making a request with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = wrapped.Invoke(ctx, "test prompt")

	// Then it should fail without reaching the model
	require.Error(t, err, "request should fail")
	assert.Contains(t, err.Error(), "rate limit", "error should identify the rate limiter")
	assert.Equal(t, 1, mock.GetCallCount(), "second request should never reach the model")
}

func TestRateLimitMiddleware_SharesLimiterAcrossWrappedModels(t *testing.T) {
	// Given one middleware wrapping two models
	middleware := RateLimitMiddleware(rate.Limit(1), 1)
	first := NewMockCoreModel()
	second := NewMockCoreModel()
	wrappedFirst := middleware(first)
	wrappedSecond := middleware(second)

	// When the first model consumes the only token
	_, err := wrappedFirst.Invoke(context.Background(), "test prompt")
	require.NoError(t, err, "first request should succeed")

	// Then the second model is paced by the same bucket
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = wrappedSecond.Invoke(ctx, "test prompt")
	require.Error(t, err, "second model should share the exhausted bucket")
	assert.Equal(t, 0, second.GetCallCount(), "request should never reach the second model")
}

func TestRateLimitMiddleware_PassesThroughGetModel(t *testing.T) {
	mock := NewMockCoreModel()
	middleware := RateLimitMiddleware(rate.Limit(100), 10)
	wrapped := middleware(mock)

	assert.Equal(t, "test-model", wrapped.GetModel(), "should pass through GetModel")
}

func TestRateLimitMiddleware_PreservesPromptAndContext(t *testing.T) {
	mock := NewMockCoreModel()
	middleware := RateLimitMiddleware(rate.Limit(100), 10)
	wrapped := middleware(mock)

	ctx := context.WithValue(context.Background(), testContextKey, "test-value")
	_, err := wrapped.Invoke(ctx, "test prompt")

	require.NoError(t, err, "request should succeed")
	assert.Equal(t, "test prompt", mock.LastPrompt, "prompt should be preserved")
	require.Len(t, mock.Contexts, 1, "should record the context")
	assert.Equal(t, "test-value", mock.Contexts[0].Value(testContextKey),
		"context value should be preserved")
}
