package modelrunner

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/rubriq/appraise/internal/domain"
)

// rateLimitedModel paces invocations with a token bucket so parallel
// evaluation runs stay inside provider rate limits.
type rateLimitedModel struct {
	next    CoreModel
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces a token bucket
// rate limit. The limit parameter sets sustained requests per second;
// burst allows temporary spikes above it. The limiter is shared across
// every runner the middleware wraps, so one chain can pace a whole
// worker pool.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreModel) CoreModel {
		return &rateLimitedModel{
			next:    next,
			limiter: limiter,
		}
	}
}

// Invoke blocks until the limiter grants a token, then forwards the
// invocation.
func (r *rateLimitedModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Prediction{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Invoke(ctx, prompt)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedModel) GetModel() string { return r.next.GetModel() }
