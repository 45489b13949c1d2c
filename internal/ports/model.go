package ports

import (
	"context"

	"github.com/rubriq/appraise/internal/domain"
)

// ModelRunner defines the interface for invoking the model under evaluation.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing, and must be safe for concurrent
// use since the dataset engine invokes them from many rows at once.
type ModelRunner interface {
	// Predict sends a composed prompt to the model and returns its
	// prediction. Either field of the prediction may be nil when the
	// provider does not produce it; callers decide which parts they need.
	//
	// The context parameter allows for cancellation and deadline
	// propagation. Implementations should surface provider errors rather
	// than retrying internally; retry policy belongs to middleware.
	Predict(ctx context.Context, prompt string) (domain.Prediction, error)
}

// SimilarityScorer defines the interface for semantic similarity scoring
// between a reference text and a candidate text.
// Scores are in [0, 1] where 1 means semantically identical.
// Calls are synchronous and side-effect-free, so callers may retry them
// independently.
type SimilarityScorer interface {
	// Score computes the semantic similarity of candidate against reference.
	Score(ctx context.Context, reference, candidate string) (float64, error)

	// Close releases any long-lived resources held by the scorer, such as
	// pooled embedding workers. After Close, Score returns ErrPoolClosed.
	Close() error
}
