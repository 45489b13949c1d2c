package modelrunner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rubriq/appraise/internal/domain"
)

// retryModel retries failed invocations with exponential backoff.
// Transient failures are common at evaluation scale, where thousands of
// prompts hit a provider in quick succession.
type retryModel struct {
	next       CoreModel
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed invocations
// with exponential backoff and jitter. maxRetries counts retries, not
// total attempts: a request is tried at most maxRetries+1 times.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreModel) CoreModel {
		return &retryModel{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// Invoke executes the invocation with retry logic. Errors classified as
// non-retryable stop the loop immediately, as does context cancellation.
func (r *retryModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		prediction, err := r.next.Invoke(ctx, prompt)
		if err == nil {
			return prediction, nil
		}

		lastErr = err
		attempts = attempt + 1

		if !isRetryable(err) || ctx.Err() != nil {
			break
		}

		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return domain.Prediction{}, ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
			// Continue to next attempt.
		}
	}

	return domain.Prediction{}, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// isRetryable reports whether an error is worth another attempt.
// Classified provider errors answer for themselves; unclassified errors
// are assumed transient.
func isRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}
	return true
}

func (r *retryModel) calculateDelay(attempt int) time.Duration {
	// Exponential backoff with jitter.
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(r.baseDelay) * float64(multiplier))

	// Add jitter (±25%)
	// #nosec G404 - Using weak RNG is acceptable for jitter calculation
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	return delay
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryModel) GetModel() string { return r.next.GetModel() }
