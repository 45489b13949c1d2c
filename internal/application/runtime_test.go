package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/infrastructure/dataset"
	"github.com/rubriq/appraise/infrastructure/transforms"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/testutils"
)

func TestValidateDataset(t *testing.T) {
	tests := []struct {
		name          string
		rows          []map[string]any
		required      []string
		expectedError string
	}{
		{
			name:     "all columns present",
			rows:     []map[string]any{{"model_input": "q", "target_output": "a"}},
			required: []string{"model_input", "target_output"},
		},
		{
			name:     "no required columns",
			rows:     []map[string]any{{"anything": 1.0}},
			required: nil,
		},
		{
			name:          "missing column",
			rows:          []map[string]any{{"model_input": "q"}},
			required:      []string{"model_input", "target_output"},
			expectedError: "Missing required column: target_output, for evaluate() method",
		},
		{
			name:          "empty dataset misses everything",
			rows:          nil,
			required:      []string{"model_input"},
			expectedError: "Missing required column: model_input, for evaluate() method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDataset(dataset.FromRecords(tt.rows), tt.required)
			if tt.expectedError != "" {
				require.Error(t, err)
				var configErr *domain.ConfigError
				require.ErrorAs(t, err, &configErr)
				assert.Equal(t, tt.expectedError, err.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateDataset_ColumnPresentOnSomeRowsOnly(t *testing.T) {
	// Column presence is a dataset-level property: a column carried by
	// any row counts as present.
	ds := dataset.FromRecords([]map[string]any{
		{"model_input": "q1", "category": "a"},
		{"model_input": "q2"},
	})

	assert.NoError(t, ValidateDataset(ds, []string{"model_input", "category"}))
}

func TestGeneratePromptColumn(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{
		{"model_input": "What is 2+2?"},
		{"model_input": "Name a prime."},
	})

	got, err := GeneratePromptColumn(
		context.Background(), ds,
		"Answer briefly: $model_input", "model_input", "prompt")
	require.NoError(t, err)

	rows, err := got.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	prompt, ok := domain.Get[string](rows[0], "prompt")
	require.True(t, ok)
	assert.Equal(t, "Answer briefly: What is 2+2?", prompt)

	// Original input stays alongside the composed prompt.
	input, ok := domain.Get[string](rows[0], "model_input")
	require.True(t, ok)
	assert.Equal(t, "What is 2+2?", input)
}

func TestGeneratePromptColumn_CustomInputColumn(t *testing.T) {
	// The placeholder name is fixed regardless of which column feeds it.
	ds := dataset.FromRecords([]map[string]any{{"perturbed_input": "hello"}})

	got, err := GeneratePromptColumn(
		context.Background(), ds,
		"$model_input", "perturbed_input", "perturbed_prompt")
	require.NoError(t, err)

	rows, err := got.Rows(context.Background())
	require.NoError(t, err)
	prompt, ok := domain.Get[string](rows[0], "perturbed_prompt")
	require.True(t, ok)
	assert.Equal(t, "hello", prompt)
}

func TestGenerateModelPredictions(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{
		{"prompt": "p1"},
		{"prompt": "p2"},
	})
	runner := testutils.NewEchoModelRunner()

	got, err := GenerateModelPredictions(
		context.Background(), ds, runner, "prompt", "model_output", "")
	require.NoError(t, err)

	rows, err := got.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	output, ok := domain.Get[string](rows[0], "model_output")
	require.True(t, ok)
	assert.Equal(t, "echo: p1", output)
	assert.Equal(t, 2, runner.CallCount())
}

func TestGenerateModelPredictions_WithLogProbColumn(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{{"prompt": "p1"}})
	runner := testutils.NewMockModelRunner(func(_ int, prompt string) (domain.Prediction, error) {
		return domain.Prediction{
			Output:         testutils.Ptr("out:" + prompt),
			LogProbability: testutils.Ptr(-0.25),
		}, nil
	})

	got, err := GenerateModelPredictions(
		context.Background(), ds, runner, "prompt", "model_output", "model_log_probability")
	require.NoError(t, err)

	rows, err := got.Rows(context.Background())
	require.NoError(t, err)

	logProb, ok := domain.Number(rows[0], "model_log_probability")
	require.True(t, ok)
	assert.InDelta(t, -0.25, logProb, 1e-9)
}

func TestGenerateModelPredictions_NilRunner(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{{"prompt": "p1"}})

	_, err := GenerateModelPredictions(
		context.Background(), ds, nil, "prompt", "model_output", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, transforms.ErrNilModelRunner)
}

func TestMeanDeltaScore(t *testing.T) {
	tests := []struct {
		name      string
		original  float64
		perturbed []float64
		expected  float64
	}{
		{
			name:      "no perturbations",
			original:  0.8,
			perturbed: nil,
			expected:  0,
		},
		{
			name:      "identical scores",
			original:  0.8,
			perturbed: []float64{0.8, 0.8, 0.8},
			expected:  0,
		},
		{
			name:      "symmetric deltas",
			original:  0.5,
			perturbed: []float64{0.3, 0.7},
			expected:  0.2,
		},
		{
			name:      "absolute differences",
			original:  1.0,
			perturbed: []float64{0.0, 0.5, 1.0},
			expected:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := domain.EvalScore{Name: "classification_accuracy", Value: tt.original}
			perturbed := make([]domain.EvalScore, len(tt.perturbed))
			for i, v := range tt.perturbed {
				perturbed[i] = domain.EvalScore{Name: "classification_accuracy", Value: v}
			}

			assert.InDelta(t, tt.expected, MeanDeltaScore(original, perturbed), 1e-9)
		})
	}
}
