// Package bertscore provides the embedding-based similarity scorer used
// by the BertScore transforms. Texts are embedded by a provider-backed
// Embedder and compared by cosine similarity; embedding calls run on a
// fixed pool of long-lived workers so each worker pays the embedder
// construction cost exactly once.
package bertscore

import (
	"context"
	"errors"
	"math"

	"github.com/rubriq/appraise/internal/domain"
)

// ErrEmptyAPIKey indicates that an embedding provider API key was
// required but not provided.
var ErrEmptyAPIKey = errors.New("API key cannot be empty")

// Embedder produces a fixed-dimension vector embedding of a text.
// Implementations must be safe for use from a single worker goroutine;
// the pool never shares one embedder between workers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFactory builds one Embedder. The scorer pool invokes it once
// per worker at construction, so expensive setup (clients, sessions)
// happens exactly workers times for the lifetime of the pool.
type EmbedderFactory func() (Embedder, error)

// cosineSimilarity computes the cosine of the angle between two
// embedding vectors. The vectors must have the same dimension and
// non-zero magnitude; violations indicate a broken embedder.
func cosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.NewInternalError(
			"embedding dimensions do not match: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, domain.NewInternalError("embedder returned an empty vector")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, domain.NewInternalError("embedder returned a zero vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
