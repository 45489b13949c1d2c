package modelrunner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rubriq/appraise/internal/domain"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIModel)
}

// openAIModel implements CoreModel for OpenAI's chat completion API.
// It is the only built-in provider that can report log probabilities.
type openAIModel struct {
	providerBase
	client          *openai.Client
	maxTokens       int
	temperature     *float64
	logProbs        bool
	errorClassifier *ErrorClassifier
}

func newOpenAIModel(config Config) (CoreModel, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validated, err := validateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validated
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIModel{
		providerBase:    providerBase{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		maxTokens:       maxTokensOrDefault(config.MaxTokens),
		temperature:     config.Temperature,
		logProbs:        config.LogProbs,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// Invoke sends the prompt as a single-turn chat completion and extracts
// the first choice. When log probabilities were requested, the
// prediction carries the mean log probability across response tokens.
func (p *openAIModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: p.maxTokens,
		LogProbs:  p.logProbs,
	}
	if p.temperature != nil {
		req.Temperature = requestTemperature(*p.temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Prediction{}, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return domain.Prediction{}, ErrNoResponseChoice
	}

	choice := resp.Choices[0]
	prediction := domain.Prediction{Output: &choice.Message.Content}
	if p.logProbs {
		if mean, ok := meanTokenLogProb(choice.LogProbs); ok {
			prediction.LogProbability = &mean
		}
	}
	return prediction, nil
}

// requestTemperature converts a pinned temperature to the request
// field. The client library omits zero-valued temperatures from the
// request body, so an exact zero is nudged to the smallest positive
// float32 to keep it on the wire.
func requestTemperature(t float64) float32 {
	t = clamp(t, 0.0, 2.0)
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// meanTokenLogProb averages the per-token log probabilities of a
// choice. It reports false when the response carried none.
func meanTokenLogProb(logProbs *openai.LogProbs) (float64, bool) {
	if logProbs == nil || len(logProbs.Content) == 0 {
		return 0, false
	}
	var sum float64
	for _, token := range logProbs.Content {
		sum += token.LogProb
	}
	return sum / float64(len(logProbs.Content)), true
}

// handleError classifies errors from the OpenAI API, distinguishing
// context cancellation, structured API errors, and everything else.
func (p *openAIModel) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
