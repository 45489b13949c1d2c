package transforms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/internal/domain"
)

// TestNewWER_LengthMismatch pins the construction error message since it is
// part of the user-facing contract.
func TestNewWER_LengthMismatch(t *testing.T) {
	_, err := NewWER([]string{"p1", "p2"}, []string{"r1", "r2", "r3"}, "wer", nil)
	require.Error(t, err)

	var configErr *domain.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t,
		"prediction_keys and reference_keys should have the same number of elements. "+
			"prediction_keys has 2 elements while reference_keys has 3 elements.",
		err.Error())
}

func TestNewWER_RepeatedKeys(t *testing.T) {
	// Robustness evaluations compare several predictions against one
	// repeated reference column; both lists accept duplicates.
	_, err := NewWER(
		[]string{"perturbed_0", "perturbed_1"},
		[]string{"model_output", "model_output"},
		"wer",
		nil,
	)
	require.NoError(t, err)
}

// TestWER_Apply_DelegatesToMetric verifies the metric receives the
// prediction and reference value lists in declaration order and that its
// return value is stored verbatim.
func TestWER_Apply_DelegatesToMetric(t *testing.T) {
	var gotPredictions, gotReferences []string
	metric := func(predictions, references []string) (float64, error) {
		gotPredictions = predictions
		gotReferences = references
		return 0.123, nil
	}

	transform, err := NewWER([]string{"p1", "p2", "p3"}, []string{"r1", "r2", "r3"}, "wer", metric)
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{
		"p1": "a", "p2": "b", "p3": "c",
		"r1": "d", "r2": "e", "r3": "f",
	})

	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, gotPredictions)
	assert.Equal(t, []string{"d", "e", "f"}, gotReferences)

	value, ok := domain.Number(got, "wer")
	require.True(t, ok)
	assert.InDelta(t, 0.123, value, 1e-9)
}

func TestWER_Apply_DefaultMetric(t *testing.T) {
	transform, err := NewWER([]string{"prediction"}, []string{"reference"}, "wer", nil)
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{
		"prediction": "this is the prediction",
		"reference":  "this is the reference",
	})

	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	value, ok := domain.Number(got, "wer")
	require.True(t, ok)
	assert.InDelta(t, 0.25, value, 1e-9)
}

func TestWER_Apply_MetricError(t *testing.T) {
	metricErr := errors.New("metric backend failed")
	metric := func([]string, []string) (float64, error) { return 0, metricErr }

	transform, err := NewWER([]string{"p"}, []string{"r"}, "wer", metric)
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"p": "a", "r": "b"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, metricErr)
}

func TestWER_Apply_MissingKey(t *testing.T) {
	transform, err := NewWER([]string{"p"}, []string{"r"}, "wer", nil)
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"p": "present"}))
	require.Error(t, err)

	var missingErr *domain.MissingKeyError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "wer", missingErr.TransformName)
	assert.Equal(t, "r", missingErr.Key)
}
