package bertscore

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/rubriq/appraise/internal/ports"
)

// GoogleDefaultEmbeddingModel is the Gemini embedding model used when
// none is configured.
const GoogleDefaultEmbeddingModel = "text-embedding-004"

// GoogleEmbedderConfig configures a Gemini-backed embedder.
type GoogleEmbedderConfig struct {
	// APIKey authenticates requests to the Gemini API.
	APIKey string

	// Model selects the embedding model. Empty means
	// GoogleDefaultEmbeddingModel.
	Model string
}

// GoogleEmbedder embeds texts with the Gemini embedding API.
type GoogleEmbedder struct {
	client *genai.Client
	model  string
}

var _ Embedder = (*GoogleEmbedder)(nil)

// NewGoogleEmbedder creates an embedder backed by the Gemini API.
func NewGoogleEmbedder(config GoogleEmbedderConfig) (*GoogleEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultEmbeddingModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &GoogleEmbedder{client: client, model: model}, nil
}

// GoogleEmbedderFactory returns an EmbedderFactory for use with
// NewScorerPool, building one GoogleEmbedder per pool worker.
func GoogleEmbedderFactory(config GoogleEmbedderConfig) EmbedderFactory {
	return func() (Embedder, error) {
		return NewGoogleEmbedder(config)
	}
}

// Embed returns the embedding vector for the given text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("google embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("google embedding response contained no values")
	}

	raw := resp.Embeddings[0].Values
	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
	}
	return vector, nil
}

// NewGoogleScorerPool is a convenience constructor wiring a Gemini
// embedder factory into a scorer pool.
func NewGoogleScorerPool(workers int, config GoogleEmbedderConfig) (ports.SimilarityScorer, error) {
	return NewScorerPool(workers, GoogleEmbedderFactory(config))
}
