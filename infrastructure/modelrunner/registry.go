package modelrunner

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rubriq/appraise/internal/ports"
)

// Registry manages runners across multiple providers with shared
// default settings. Runners are created lazily from environment-held
// API keys and cached per provider/model pair, so repeated evaluations
// against the same model reuse one client.
//
// Usage:
//
//	registry, err := modelrunner.NewRegistry(modelrunner.RegistryConfig{
//	    DefaultProvider: "openai",
//	    Providers:       modelrunner.DefaultProviders,
//	})
//	runner, err := registry.GetRunner("openai/gpt-4o-mini")
//	runner, err := registry.GetRunner("anthropic") // provider's default model
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// runners caches "provider/model" keys to their runner instances.
	runners map[string]ports.ModelRunner
	// defaultProvider is used when a spec names no provider.
	defaultProvider string
	// defaultMiddleware is applied to every runner the registry creates.
	defaultMiddleware []Middleware
	// defaultTimeout bounds requests for every runner the registry creates.
	defaultTimeout time.Duration
	// defaultTemperature pins sampling for every runner the registry
	// creates. Nil keeps provider defaults.
	defaultTemperature *float64
	// logProbs requests log probabilities from providers that support them.
	logProbs bool

	mu sync.RWMutex
}

// ProviderConfig holds provider-specific configuration, overriding
// registry defaults for one provider.
type ProviderConfig struct {
	// Type names the provider implementation (openai, anthropic, google).
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when a spec names only the provider.
	DefaultModel string
	// SupportedModels lists the models this provider accepts. Empty
	// means any model is allowed.
	SupportedModels []string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// Middleware is applied after the registry's default middleware.
	Middleware []Middleware
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defines the available providers.
	Providers map[string]ProviderConfig
	// DefaultProvider is used when a spec names no provider.
	DefaultProvider string
	// DefaultTimeout bounds requests for all created runners.
	DefaultTimeout time.Duration
	// DefaultTemperature pins sampling temperature for all created
	// runners. Evaluations that require deterministic output set it to
	// zero.
	DefaultTemperature *float64
	// LogProbs requests token log probabilities from providers that
	// support them.
	LogProbs bool
	// DefaultMiddleware is applied to all created runners.
	DefaultMiddleware []Middleware
}

// DefaultProviders holds standard configurations for the built-in
// providers. Applications can use it as-is or copy and adjust it.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
		SupportedModels: []string{
			"gpt-4.1", "gpt-4.1-mini",
			"gpt-4o", "gpt-4o-mini",
			"gpt-3.5-turbo",
		},
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
		SupportedModels: []string{
			"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
		},
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
		SupportedModels: []string{
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
			"gemini-1.5-pro", "gemini-1.5-flash",
		},
	},
}

// NewRegistry creates a registry from the given configuration. The
// default provider must appear in the providers map.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, exists := config.Providers[config.DefaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:          config.Providers,
		runners:            make(map[string]ports.ModelRunner),
		defaultProvider:    config.DefaultProvider,
		defaultMiddleware:  config.DefaultMiddleware,
		defaultTimeout:     config.DefaultTimeout,
		defaultTemperature: config.DefaultTemperature,
		logProbs:           config.LogProbs,
	}, nil
}

// GetDefaultRunner returns a runner for the default provider's default
// model.
func (r *Registry) GetDefaultRunner() (ports.ModelRunner, error) {
	providerConfig := r.providers[r.defaultProvider]
	return r.GetRunner(r.defaultProvider + "/" + providerConfig.DefaultModel)
}

// GetRunner retrieves a runner by specification. Supported formats:
//
//   - "provider": the provider's default model
//   - "provider/model": that exact model
//
// Runners are created on first request and cached for reuse.
func (r *Registry) GetRunner(spec string) (ports.ModelRunner, error) {
	if spec == "" {
		return nil, fmt.Errorf("runner specification cannot be empty; use GetDefaultRunner for the default provider")
	}

	provider, model := r.parseSpec(spec)
	key := cacheKey(provider, model)

	r.mu.RLock()
	if runner, exists := r.runners[key]; exists {
		r.mu.RUnlock()
		return runner, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if runner, exists := r.runners[key]; exists {
		return runner, nil
	}

	runner, err := r.createRunner(provider, model)
	if err != nil {
		return nil, err
	}

	r.runners[key] = runner
	return runner, nil
}

// RegisterRunner installs a pre-built runner under the given
// specification, replacing any cached one. It lets applications route
// specs to custom implementations, such as local models or test
// doubles.
func (r *Registry) RegisterRunner(spec string, runner ports.ModelRunner) error {
	if spec == "" {
		return fmt.Errorf("runner specification cannot be empty")
	}
	if runner == nil {
		return fmt.Errorf("runner cannot be nil")
	}

	provider, model := r.parseSpec(spec)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[cacheKey(provider, model)] = runner
	return nil
}

// parseSpec splits "provider/model" into its parts. A bare provider
// resolves to that provider's default model.
func (r *Registry) parseSpec(spec string) (provider, model string) {
	parts := strings.SplitN(spec, "/", 2)
	provider = parts[0]

	if len(parts) > 1 {
		model = parts[1]
	} else if providerConfig, ok := r.providers[provider]; ok {
		model = providerConfig.DefaultModel
	}

	return
}

func cacheKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

// createRunner builds a runner for the given provider and model,
// reading the API key from the provider's environment variable.
func (r *Registry) createRunner(provider, model string) (ports.ModelRunner, error) {
	providerConfig, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if len(providerConfig.SupportedModels) > 0 && !isModelSupported(model, providerConfig.SupportedModels) {
		return nil, fmt.Errorf("%w: model %q is not supported by provider %q (supported: %v)",
			ErrInvalidModel, model, provider, providerConfig.SupportedModels)
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", providerConfig.EnvVar, provider)
	}

	config := Config{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     providerConfig.BaseURL,
		Timeout:     r.defaultTimeout,
		Temperature: r.defaultTemperature,
		LogProbs:    r.logProbs,
	}

	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}

func isModelSupported(model string, supportedModels []string) bool {
	for _, supported := range supportedModels {
		if model == supported {
			return true
		}
	}
	return false
}
