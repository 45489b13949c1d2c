package testutils

import (
	"context"
	"sync"

	"github.com/rubriq/appraise/internal/ports"
)

// ScoreCall records one reference/candidate pair passed to a scorer.
type ScoreCall struct {
	Reference string
	Candidate string
}

// MockSimilarityScorer implements the SimilarityScorer interface with a
// configurable score function. It records every call so tests can assert
// pairing order, and is safe for concurrent use.
type MockSimilarityScorer struct {
	mu     sync.Mutex
	calls  []ScoreCall
	closed bool
	score  func(reference, candidate string) (float64, error)
}

// NewMockSimilarityScorer creates a scorer returning a fixed score for
// every pair.
func NewMockSimilarityScorer(score float64) *MockSimilarityScorer {
	return &MockSimilarityScorer{
		score: func(string, string) (float64, error) { return score, nil },
	}
}

// NewMockSimilarityScorerFunc creates a scorer backed by fn.
func NewMockSimilarityScorerFunc(fn func(reference, candidate string) (float64, error)) *MockSimilarityScorer {
	return &MockSimilarityScorer{score: fn}
}

// Score implements ports.SimilarityScorer by delegating to the configured
// score function and recording the call.
func (m *MockSimilarityScorer) Score(ctx context.Context, reference, candidate string) (float64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ports.ErrPoolClosed
	}
	m.calls = append(m.calls, ScoreCall{Reference: reference, Candidate: candidate})
	m.mu.Unlock()

	return m.score(reference, candidate)
}

// Close implements ports.SimilarityScorer. Subsequent Score calls return
// ports.ErrPoolClosed, mirroring pooled scorer behavior.
func (m *MockSimilarityScorer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns a copy of the reference/candidate pairs scored so far, in
// call order.
func (m *MockSimilarityScorer) Calls() []ScoreCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ScoreCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Verify interface compliance at compile time.
var _ ports.SimilarityScorer = (*MockSimilarityScorer)(nil)
