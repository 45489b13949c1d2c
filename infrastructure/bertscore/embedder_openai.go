package bertscore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rubriq/appraise/internal/ports"
)

// OpenAIDefaultEmbeddingModel is the embedding model used when none is
// configured.
const OpenAIDefaultEmbeddingModel = openai.SmallEmbedding3

// OpenAIEmbedderConfig configures an OpenAI-backed embedder.
type OpenAIEmbedderConfig struct {
	// APIKey authenticates requests to the OpenAI API.
	APIKey string

	// Model selects the embedding model. Empty means
	// OpenAIDefaultEmbeddingModel.
	Model openai.EmbeddingModel

	// BaseURL overrides the default API endpoint, for proxies or
	// compatible servers.
	BaseURL string

	// Timeout bounds each embedding request. Zero means no timeout.
	Timeout time.Duration
}

// OpenAIEmbedder embeds texts with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
func NewOpenAIEmbedder(config OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultEmbeddingModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// OpenAIEmbedderFactory returns an EmbedderFactory for use with
// NewScorerPool, building one OpenAIEmbedder per pool worker.
func OpenAIEmbedderFactory(config OpenAIEmbedderConfig) EmbedderFactory {
	return func() (Embedder, error) {
		return NewOpenAIEmbedder(config)
	}
}

// Embed returns the embedding vector for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
	}
	return vector, nil
}

// NewOpenAIScorerPool is a convenience constructor wiring an OpenAI
// embedder factory into a scorer pool.
func NewOpenAIScorerPool(workers int, config OpenAIEmbedderConfig) (ports.SimilarityScorer, error) {
	return NewScorerPool(workers, OpenAIEmbedderFactory(config))
}
