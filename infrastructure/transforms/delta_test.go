package transforms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/internal/domain"
)

func TestNewMeanDelta(t *testing.T) {
	tests := []struct {
		name          string
		originalKey   string
		perturbedKeys []string
		outputKey     string
		expectedError string
	}{
		{
			name:          "valid configuration",
			originalKey:   "score",
			perturbedKeys: []string{"score_p0", "score_p1"},
			outputKey:     "delta",
		},
		{
			name:          "single perturbed key",
			originalKey:   "score",
			perturbedKeys: []string{"score_p0"},
			outputKey:     "delta",
		},
		{
			name:          "no perturbed keys",
			originalKey:   "score",
			perturbedKeys: []string{},
			outputKey:     "delta",
			expectedError: "perturbed_keys cannot be empty",
		},
		{
			name:          "empty original key",
			originalKey:   "",
			perturbedKeys: []string{"score_p0"},
			outputKey:     "delta",
			expectedError: "input_keys cannot contain an empty key",
		},
		{
			name:          "original key repeated in perturbed keys",
			originalKey:   "score",
			perturbedKeys: []string{"score"},
			outputKey:     "delta",
			expectedError: `duplicate key "score" in input_keys`,
		},
		{
			name:          "empty output key",
			originalKey:   "score",
			perturbedKeys: []string{"score_p0"},
			outputKey:     "",
			expectedError: "output_keys cannot contain an empty key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := NewMeanDelta(tt.originalKey, tt.perturbedKeys, tt.outputKey)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)

				var configErr *domain.ConfigError
				assert.ErrorAs(t, err, &configErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, append([]string{tt.originalKey}, tt.perturbedKeys...), delta.InputKeys())
			assert.Equal(t, []string{tt.outputKey}, delta.OutputKeys())
		})
	}
}

func TestMeanDelta_Apply(t *testing.T) {
	tests := []struct {
		name          string
		values        map[string]any
		perturbedKeys []string
		expected      float64
	}{
		{
			name:          "unchanged scores give zero delta",
			values:        map[string]any{"acc": 1.0, "acc_p0": 1.0, "acc_p1": 1.0},
			perturbedKeys: []string{"acc_p0", "acc_p1"},
			expected:      0.0,
		},
		{
			name:          "one of two perturbations flips the score",
			values:        map[string]any{"acc": 1.0, "acc_p0": 0.0, "acc_p1": 1.0},
			perturbedKeys: []string{"acc_p0", "acc_p1"},
			expected:      0.5,
		},
		{
			name:          "deltas are absolute",
			values:        map[string]any{"acc": 0.0, "acc_p0": 1.0},
			perturbedKeys: []string{"acc_p0"},
			expected:      1.0,
		},
		{
			name:          "fractional scores",
			values:        map[string]any{"acc": 0.5, "acc_p0": 0.2, "acc_p1": 0.9},
			perturbedKeys: []string{"acc_p0", "acc_p1"},
			expected:      0.35,
		},
		{
			name:          "mixed numeric types",
			values:        map[string]any{"acc": 1, "acc_p0": 0.5, "acc_p1": int64(0)},
			perturbedKeys: []string{"acc_p0", "acc_p1"},
			expected:      0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := NewMeanDelta("acc", tt.perturbedKeys, "delta")
			require.NoError(t, err)

			got, err := delta.Apply(context.Background(), domain.NewRecord(tt.values))
			require.NoError(t, err)

			value, ok := domain.Number(got, "delta")
			require.True(t, ok)
			assert.InDelta(t, tt.expected, value, 1e-9)
		})
	}
}

func TestMeanDelta_Apply_MissingKey(t *testing.T) {
	delta, err := NewMeanDelta("acc", []string{"acc_p0"}, "delta")
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{"acc": 1.0})
	got, err := delta.Apply(context.Background(), record)
	require.Error(t, err)

	var missingErr *domain.MissingKeyError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, `missing required input key "acc_p0" for transform "mean_delta"`, err.Error())
	assert.Equal(t, 0, got.Len())
}

func TestMeanDelta_Apply_NonNumericValue(t *testing.T) {
	delta, err := NewMeanDelta("acc", []string{"acc_p0"}, "delta")
	require.NoError(t, err)

	_, err = delta.Apply(context.Background(), domain.NewRecord(map[string]any{
		"acc":    1.0,
		"acc_p0": "flipped",
	}))
	require.Error(t, err)

	var internalErr *domain.InternalError
	require.ErrorAs(t, err, &internalErr)
	assert.Contains(t, err.Error(), `requires a numeric value for key "acc_p0"`)
}

func TestMeanDelta_Apply_PassesThroughOtherKeys(t *testing.T) {
	delta, err := NewMeanDelta("acc", []string{"acc_p0"}, "delta")
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{"acc": 1.0, "acc_p0": 0.0, "category": "brief"})
	got, err := delta.Apply(context.Background(), record)
	require.NoError(t, err)

	category, ok := domain.Get[string](got, "category")
	require.True(t, ok)
	assert.Equal(t, "brief", category)
	assert.False(t, record.Has("delta"))
	assert.True(t, got.Has("delta"))
}
