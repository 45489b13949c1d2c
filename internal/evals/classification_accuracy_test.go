package evals

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/testutils"
)

func TestClassificationAccuracy_EvaluateSample(t *testing.T) {
	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{
		ValidLabels: LabelList{"0", "1"},
	}, nil, Dependencies{})
	require.NoError(t, err)

	tests := []struct {
		name         string
		targetOutput string
		modelOutput  string
		want         float64
	}{
		{name: "exact match", targetOutput: "1", modelOutput: "1", want: 1.0},
		{name: "mismatch", targetOutput: "0", modelOutput: "1", want: 0.0},
		{name: "label inside sentence", targetOutput: "1", modelOutput: "the answer is 1 because", want: 1.0},
		{name: "no recognizable label", targetOutput: "1", modelOutput: "absolutely positive", want: 0.0},
		{name: "case folded", targetOutput: "Positive", modelOutput: "POSITIVE", want: 0.0},
	}
	// The last case scores zero because "positive" is not among the
	// configured labels, so the output resolves to unknown.

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := ca.EvaluateSample(context.Background(), tt.targetOutput, tt.modelOutput)
			require.NoError(t, err)
			require.Len(t, scores, 1)
			assert.Equal(t, ScoreClassificationAccuracy, scores[0].Name)
			assert.InDelta(t, tt.want, scores[0].Value, 1e-9)
		})
	}
}

func TestClassificationAccuracy_EvaluateSample_NoLabels(t *testing.T) {
	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{}, nil, Dependencies{})
	require.NoError(t, err)

	_, err = ca.EvaluateSample(context.Background(), "1", "1")
	require.Error(t, err)

	var configErr *domain.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "valid labels must be configured for sample evaluation", err.Error())
}

// TestClassificationAccuracy_Evaluate_PrecomputedOutputs scores a
// dataset that already carries model responses: no model is needed,
// labels are inferred from the target column, and the output reports
// no prompt template.
func TestClassificationAccuracy_Evaluate_PrecomputedOutputs(t *testing.T) {
	path := writeDatasetFile(t, "reviews.jsonl", `{"review_text": "love this dress", "recommended_ind": "1", "model_output": "1", "class_name": "Dresses"}
{"review_text": "terrible fit", "recommended_ind": "0", "model_output": "1", "class_name": "Dresses"}
{"review_text": "soft and comfy", "recommended_ind": "1", "model_output": "1", "class_name": "Knits"}
{"review_text": "runs small", "recommended_ind": "0", "model_output": "0", "class_name": "Knits"}
`)
	cfg := domain.DataConfig{
		DatasetName:          "reviews",
		DatasetURI:           path,
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
		ModelOutputLocation:  "model_output",
		CategoryLocation:     "class_name",
	}

	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{}, nil, Dependencies{})
	require.NoError(t, err)

	outputs, err := ca.Evaluate(context.Background(), EvaluateRequest{
		DataConfig: &cfg,
		ResultsDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	out := outputs[0]
	assert.Equal(t, EvalClassificationAccuracy, out.EvalName)
	assert.Equal(t, "reviews", out.DatasetName)
	assert.Empty(t, out.PromptTemplate)
	assert.Empty(t, out.Error)
	assert.NotEmpty(t, out.OutputPath)

	require.Len(t, out.DatasetScores, 1)
	assert.Equal(t, ScoreClassificationAccuracy, out.DatasetScores[0].Name)
	assert.InDelta(t, 0.75, out.DatasetScores[0].Value, 1e-9)

	require.Len(t, out.CategoryScores, 2)
	assert.Equal(t, "Dresses", out.CategoryScores[0].Name)
	assert.InDelta(t, 0.5, out.CategoryScores[0].Scores[0].Value, 1e-9)
	assert.Equal(t, "Knits", out.CategoryScores[1].Name)
	assert.InDelta(t, 1.0, out.CategoryScores[1].Scores[0].Value, 1e-9)
}

func TestClassificationAccuracy_Evaluate_NilModelWithoutOutputs(t *testing.T) {
	path := writeDatasetFile(t, "reviews.jsonl", `{"review_text": "love this dress", "recommended_ind": "1"}
`)
	cfg := domain.DataConfig{
		DatasetName:          "reviews",
		DatasetURI:           path,
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
	}

	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{}, nil, Dependencies{})
	require.NoError(t, err)

	_, err = ca.Evaluate(context.Background(), EvaluateRequest{DataConfig: &cfg})
	require.Error(t, err)

	var configErr *domain.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "No ModelRunner provided. ModelRunner is required for inference on model_inputs", err.Error())
}

func TestClassificationAccuracy_Evaluate_WithInference(t *testing.T) {
	path := writeDatasetFile(t, "reviews.jsonl", `{"review_text": "love this dress", "recommended_ind": "1"}
{"review_text": "terrible fit", "recommended_ind": "0"}
{"review_text": "soft and comfy", "recommended_ind": "1"}
`)
	cfg := domain.DataConfig{
		DatasetName:          "reviews",
		DatasetURI:           path,
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
	}

	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{
		ValidLabels: LabelList{"0", "1"},
	}, nil, Dependencies{})
	require.NoError(t, err)

	// The model always answers "1", so accuracy is the share of rows
	// whose target is 1 regardless of processing order.
	model := testutils.NewMockModelRunner(func(_ int, _ string) (domain.Prediction, error) {
		return domain.Prediction{Output: testutils.Ptr("1")}, nil
	})

	template := "Recommend this product, 0 or 1? Review: $model_input"
	outputs, err := ca.Evaluate(context.Background(), EvaluateRequest{
		Model:          model,
		DataConfig:     &cfg,
		PromptTemplate: template,
		ResultsDir:     t.TempDir(),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	out := outputs[0]
	assert.Equal(t, template, out.PromptTemplate)
	require.Len(t, out.DatasetScores, 1)
	assert.InDelta(t, 2.0/3.0, out.DatasetScores[0].Value, 1e-9)
	assert.Empty(t, out.CategoryScores)

	assert.Equal(t, 3, model.CallCount())
	for _, prompt := range model.Prompts() {
		assert.True(t, strings.HasPrefix(prompt, "Recommend this product, 0 or 1? Review: "))
	}
}

func TestClassificationAccuracy_Evaluate_NumRecordsLimit(t *testing.T) {
	path := writeDatasetFile(t, "reviews.jsonl", `{"review_text": "love this dress", "recommended_ind": "1", "model_output": "1"}
{"review_text": "terrible fit", "recommended_ind": "0", "model_output": "1"}
{"review_text": "soft and comfy", "recommended_ind": "1", "model_output": "1"}
`)
	cfg := domain.DataConfig{
		DatasetName:          "reviews",
		DatasetURI:           path,
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
		ModelOutputLocation:  "model_output",
	}

	ca, err := NewClassificationAccuracy(ClassificationAccuracyConfig{
		ValidLabels: LabelList{"0", "1"},
	}, nil, Dependencies{})
	require.NoError(t, err)

	outputs, err := ca.Evaluate(context.Background(), EvaluateRequest{
		DataConfig: &cfg,
		NumRecords: 1,
		ResultsDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	// Only the first row is scored: target 1, output 1.
	assert.InDelta(t, 1.0, outputs[0].DatasetScores[0].Value, 1e-9)
}
