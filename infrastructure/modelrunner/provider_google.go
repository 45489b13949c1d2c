package modelrunner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/rubriq/appraise/internal/domain"
)

// GoogleDefaultModel is used when the configuration names no model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleModel)
}

// googleModel implements CoreModel for Google's Gemini API. Gemini does
// not expose token log probabilities through the generate API, so
// predictions from this provider never carry one.
type googleModel struct {
	providerBase
	client          *genai.Client
	maxTokens       int
	temperature     *float64
	errorClassifier *ErrorClassifier
}

func newGoogleModel(config Config) (CoreModel, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleModel{
		providerBase:    providerBase{model: model},
		client:          client,
		maxTokens:       maxTokensOrDefault(config.MaxTokens),
		temperature:     config.Temperature,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// Invoke sends the prompt as single-turn user content and returns the
// concatenated text of the response candidates.
func (p *googleModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	generationConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: responseTokenLimit(p.maxTokens),
	}
	if p.temperature != nil {
		generationConfig.Temperature = genai.Ptr(float32(clamp(*p.temperature, 0.0, 2.0)))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, generationConfig)
	if err != nil {
		return domain.Prediction{}, p.handleError(err)
	}

	text := resp.Text()
	if text == "" {
		return domain.Prediction{}, ErrEmptyResponse
	}

	return domain.Prediction{Output: &text}, nil
}

// responseTokenLimit converts the configured cap to the int32 the
// Gemini API expects.
func responseTokenLimit(maxTokens int) int32 {
	if maxTokens > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(maxTokens)
}

// handleError classifies errors from the Gemini API. Content policy
// blocks are surfaced as their own category so callers can tell a
// filtered prompt apart from a failed request.
func (p *googleModel) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// containsContentPolicyError reports whether a Google API error stems
// from a content policy violation.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if apiErr.Message != "" {
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "safety") ||
			strings.Contains(lower, "policy") ||
			strings.Contains(lower, "blocked") {
			return true
		}
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	return false
}
