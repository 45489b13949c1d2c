package modelrunner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rubriq/appraise/internal/domain"
)

// AnthropicDefaultModel is used when the configuration names no model.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicModel)
}

// anthropicModel implements CoreModel for Anthropic's Messages API.
// Anthropic does not expose token log probabilities, so predictions
// from this provider never carry one.
type anthropicModel struct {
	providerBase
	client          anthropic.Client
	maxTokens       int
	temperature     *float64
	errorClassifier *ErrorClassifier
}

func newAnthropicModel(config Config) (CoreModel, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retry policy lives in RetryMiddleware; the SDK's built-in retries
	// are disabled so the two never stack.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		validated, err := validateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validated))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	return &anthropicModel{
		providerBase:    providerBase{model: model},
		client:          anthropic.NewClient(opts...),
		maxTokens:       maxTokensOrDefault(config.MaxTokens),
		temperature:     config.Temperature,
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// Invoke sends the prompt as a single-turn message and concatenates the
// text blocks of the response.
func (p *anthropicModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if p.temperature != nil {
		params.Temperature = anthropic.Float(clamp(*p.temperature, 0.0, 1.0))
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return domain.Prediction{}, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}

	response := text.String()
	if response == "" {
		return domain.Prediction{}, ErrEmptyResponse
	}

	return domain.Prediction{Output: &response}, nil
}

// handleError classifies errors from the Anthropic API.
func (p *anthropicModel) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, apiErr.Error(), err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
