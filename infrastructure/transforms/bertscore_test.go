package transforms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/testutils"
)

func TestNewBertScore(t *testing.T) {
	scorer := testutils.NewMockSimilarityScorer(0.9)

	tests := []struct {
		name          string
		referenceKeys []string
		candidateKeys []string
		outputKeys    []string
		expectedError string
	}{
		{
			name:          "valid configuration",
			referenceKeys: []string{"target"},
			candidateKeys: []string{"output"},
			outputKeys:    []string{"bert_score"},
		},
		{
			name:          "repeated reference key",
			referenceKeys: []string{"target", "target"},
			candidateKeys: []string{"output_0", "output_1"},
			outputKeys:    []string{"score_0", "score_1"},
		},
		{
			name:          "mismatched reference and candidate lengths",
			referenceKeys: []string{"target"},
			candidateKeys: []string{"output_0", "output_1"},
			outputKeys:    []string{"score_0", "score_1"},
			expectedError: "reference_keys has 1 elements while candidate_keys has 2 elements",
		},
		{
			name:          "mismatched output length",
			referenceKeys: []string{"target", "target"},
			candidateKeys: []string{"output_0", "output_1"},
			outputKeys:    []string{"score_0"},
			expectedError: "output_keys has 1 elements while candidate_keys has 2 elements",
		},
		{
			name:          "duplicate candidate keys",
			referenceKeys: []string{"target", "target"},
			candidateKeys: []string{"output_0", "output_0"},
			outputKeys:    []string{"score_0", "score_1"},
			expectedError: `duplicate key "output_0" in candidate_keys`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBertScore(tt.referenceKeys, tt.candidateKeys, tt.outputKeys, scorer)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewBertScore_NilScorer(t *testing.T) {
	_, err := NewBertScore([]string{"target"}, []string{"output"}, []string{"score"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilScorer)
}

func TestBertScore_Apply(t *testing.T) {
	scorer := testutils.NewMockSimilarityScorer(0.9)
	transform, err := NewBertScore(
		[]string{"model_output", "model_output"},
		[]string{"perturbed_0", "perturbed_1"},
		[]string{"score_0", "score_1"},
		scorer,
	)
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{
		"model_output": "the original answer",
		"perturbed_0":  "the first variant",
		"perturbed_1":  "the second variant",
	})

	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	for _, key := range []string{"score_0", "score_1"} {
		value, ok := domain.Number(got, key)
		require.True(t, ok)
		assert.InDelta(t, 0.9, value, 1e-9)
	}

	// Pairs must be scored as (reference, candidate) in declaration order.
	assert.Equal(t, []testutils.ScoreCall{
		{Reference: "the original answer", Candidate: "the first variant"},
		{Reference: "the original answer", Candidate: "the second variant"},
	}, scorer.Calls())
}

func TestBertScore_Apply_ScorerError(t *testing.T) {
	scorerErr := errors.New("embedding backend unavailable")
	scorer := testutils.NewMockSimilarityScorerFunc(func(string, string) (float64, error) {
		return 0, scorerErr
	})

	transform, err := NewBertScore([]string{"target"}, []string{"output"}, []string{"score"}, scorer)
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{"target": "a", "output": "b"})
	_, err = transform.Apply(context.Background(), record)
	require.Error(t, err)
	assert.ErrorIs(t, err, scorerErr)
}

// TestBertScoreDissimilarity_Apply pins the pooled dissimilarity formula:
// one minus the mean of the input scores.
func TestBertScoreDissimilarity_Apply(t *testing.T) {
	transform, err := NewBertScoreDissimilarity([]string{"a", "b", "c", "d"}, "dissimilarity")
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{"a": 0.1, "b": 0.2, "c": 0.3, "d": 0.4})
	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	value, ok := domain.Number(got, "dissimilarity")
	require.True(t, ok)
	assert.InDelta(t, 0.75, value, 1e-9)
}

// Out-of-range inputs propagate unclamped, mirroring the upstream metric.
func TestBertScoreDissimilarity_Apply_NoClamping(t *testing.T) {
	transform, err := NewBertScoreDissimilarity([]string{"a", "b"}, "dissimilarity")
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{"a": 1.5, "b": 2.5})
	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	value, ok := domain.Number(got, "dissimilarity")
	require.True(t, ok)
	assert.InDelta(t, -1.0, value, 1e-9)
}

func TestNewBertScoreDissimilarity_NoKeys(t *testing.T) {
	_, err := NewBertScoreDissimilarity(nil, "dissimilarity")
	require.Error(t, err)

	var configErr *domain.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, err.Error(), "input_keys cannot be empty")
}

func TestBertScoreDissimilarity_Apply_MissingKey(t *testing.T) {
	transform, err := NewBertScoreDissimilarity([]string{"a", "b"}, "dissimilarity")
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"a": 0.5}))
	require.Error(t, err)
	assert.Equal(t, `missing required input key "b" for transform "bertscore_dissimilarity"`, err.Error())
}
