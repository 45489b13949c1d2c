// Package modelrunner provides provider-backed implementations of
// ports.ModelRunner for the models under evaluation.
//
// The package abstracts multiple inference providers (OpenAI, Anthropic,
// Google) behind the small CoreModel interface and composes
// cross-cutting concerns through a middleware chain, so evaluations can
// switch providers or add rate limiting, retries, metrics, and tracing
// without touching algorithm code.
//
// Basic usage:
//
//	runner, err := modelrunner.NewClient("openai", modelrunner.Config{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	prediction, err := runner.Predict(ctx, "What is the capital of France?")
//
// With middleware:
//
//	runner, err := modelrunner.NewClient("anthropic", modelrunner.Config{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-haiku",
//	    Middleware: []modelrunner.Middleware{
//	        modelrunner.RateLimitMiddleware(20, 40),
//	        modelrunner.RetryMiddleware(3, time.Second, 30*time.Second),
//	    },
//	})
package modelrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// DefaultMaxTokens bounds response length when the caller does not set
// one. Evaluation responses are short; this is headroom, not a target.
const DefaultMaxTokens = 1024

// CoreModel is the minimal surface an inference provider must
// implement. Middleware wraps any conforming implementation.
type CoreModel interface {
	// Invoke sends one prompt to the provider and returns its
	// prediction. The prediction's log probability is set only when the
	// provider exposes token log probabilities and the client asked for
	// them.
	Invoke(ctx context.Context, prompt string) (domain.Prediction, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Middleware wraps a CoreModel to add cross-cutting behavior such as
// rate limiting, retries, metrics, or tracing.
type Middleware func(CoreModel) CoreModel

// Config holds the settings for constructing a provider-backed runner.
type Config struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model names the provider model to invoke.
	Model string

	// BaseURL overrides the provider's default endpoint. Leave empty to
	// use the default.
	BaseURL string

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	// MaxTokens caps the response length. Zero means DefaultMaxTokens.
	MaxTokens int

	// Temperature pins the sampling temperature. Nil keeps the
	// provider default; evaluations that need reproducible outputs
	// should pin it to zero.
	Temperature *float64

	// LogProbs requests per-token log probabilities where the provider
	// supports them (currently OpenAI only).
	LogProbs bool

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

var _ ports.ModelRunner = (*Client)(nil)

// Client adapts a middleware-wrapped CoreModel to ports.ModelRunner.
type Client struct {
	core CoreModel
}

// NewClient creates a runner for the named provider type. The provider
// must have been registered; openai, anthropic, and google register
// themselves at package load.
func NewClient(providerType string, config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first entry is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core}, nil
}

// Predict implements ports.ModelRunner.
func (c *Client) Predict(ctx context.Context, prompt string) (domain.Prediction, error) {
	return c.core.Invoke(ctx, prompt)
}

// Model returns the configured model name of the underlying provider.
func (c *Client) Model() string { return c.core.GetModel() }

// ProviderFactory creates a CoreModel from configuration. The signature
// lets the provider registry construct providers without knowing their
// concrete types.
type ProviderFactory func(Config) (CoreModel, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider factory under the
// given type name, replacing any existing registration.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// maxTokensOrDefault resolves the configured token cap.
func maxTokensOrDefault(maxTokens int) int {
	if maxTokens > 0 {
		return maxTokens
	}
	return DefaultMaxTokens
}

// clamp restricts a float64 value to a provider's supported range.
func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
