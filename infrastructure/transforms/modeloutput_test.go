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

func TestNewGetModelOutputs(t *testing.T) {
	runner := testutils.NewEchoModelRunner()

	tests := []struct {
		name          string
		specs         []InvocationSpec
		expectedError string
	}{
		{
			name:  "single invocation",
			specs: []InvocationSpec{{PromptKey: "prompt", OutputKey: "model_output"}},
		},
		{
			name: "repeated prompt key",
			specs: []InvocationSpec{
				{PromptKey: "prompt", OutputKey: "output_first"},
				{PromptKey: "prompt", OutputKey: "output_second"},
			},
		},
		{
			name:          "no specs",
			specs:         nil,
			expectedError: "invocation specs cannot be empty",
		},
		{
			name: "duplicate output keys",
			specs: []InvocationSpec{
				{PromptKey: "prompt_0", OutputKey: "model_output"},
				{PromptKey: "prompt_1", OutputKey: "model_output"},
			},
			expectedError: `duplicate key "model_output" in output_keys`,
		},
		{
			name:          "missing output key",
			specs:         []InvocationSpec{{PromptKey: "prompt"}},
			expectedError: "output_keys cannot contain an empty key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGetModelOutputs(tt.specs, runner)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewGetModelOutputs_NilRunner(t *testing.T) {
	_, err := NewGetModelOutputs([]InvocationSpec{{PromptKey: "prompt", OutputKey: "out"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilModelRunner)
}

func TestGetModelOutputs_Apply(t *testing.T) {
	runner := testutils.NewScriptedModelRunner("first response", "second response")
	transform, err := NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output"},
		{PromptKey: "prompt_perturbed_0", OutputKey: "model_output_perturbed_0"},
	}, runner)
	require.NoError(t, err)

	got, err := transform.Apply(context.Background(), domain.NewRecord(map[string]any{
		"prompt":             "the original prompt",
		"prompt_perturbed_0": "the perturbed prompt",
	}))
	require.NoError(t, err)

	output, ok := domain.Get[string](got, "model_output")
	require.True(t, ok)
	assert.Equal(t, "first response", output)

	perturbed, ok := domain.Get[string](got, "model_output_perturbed_0")
	require.True(t, ok)
	assert.Equal(t, "second response", perturbed)

	// Invocations happen in declaration order.
	assert.Equal(t, []string{"the original prompt", "the perturbed prompt"}, runner.Prompts())
}

func TestGetModelOutputs_Apply_LogProbability(t *testing.T) {
	runner := testutils.NewMockModelRunner(func(int, string) (domain.Prediction, error) {
		return domain.Prediction{
			Output:         testutils.Ptr("answer"),
			LogProbability: testutils.Ptr(-1.25),
		}, nil
	})

	transform, err := NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output", LogProbKey: "model_log_probability"},
	}, runner)
	require.NoError(t, err)

	got, err := transform.Apply(context.Background(), domain.NewRecord(map[string]any{
		"prompt": "p",
	}))
	require.NoError(t, err)

	logProb, ok := domain.Number(got, "model_log_probability")
	require.True(t, ok)
	assert.InDelta(t, -1.25, logProb, 1e-9)
}

func TestGetModelOutputs_Apply_MissingDeclaredFields(t *testing.T) {
	// Runner produces no output at all.
	empty := testutils.NewMockModelRunner(func(int, string) (domain.Prediction, error) {
		return domain.Prediction{}, nil
	})

	transform, err := NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output"},
	}, empty)
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"prompt": "p"}))
	require.Error(t, err)

	var internalErr *domain.InternalError
	require.ErrorAs(t, err, &internalErr)
	assert.Contains(t, err.Error(), `returned no output for declared key "model_output"`)

	// Runner produces an output but no log probability while one is declared.
	noLogProb := testutils.NewEchoModelRunner()
	transform, err = NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output", LogProbKey: "model_log_probability"},
	}, noLogProb)
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"prompt": "p"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `returned no log probability for declared key "model_log_probability"`)
}

func TestGetModelOutputs_Apply_PredictError(t *testing.T) {
	predictErr := errors.New("provider unavailable")
	failing := testutils.NewMockModelRunner(func(int, string) (domain.Prediction, error) {
		return domain.Prediction{}, predictErr
	})

	transform, err := NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output"},
	}, failing)
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"prompt": "p"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, predictErr)
	assert.Contains(t, err.Error(), `model invocation for key "model_output" failed`)
}

func TestGetModelOutputs_Apply_MissingPromptKey(t *testing.T) {
	transform, err := NewGetModelOutputs([]InvocationSpec{
		{PromptKey: "prompt", OutputKey: "model_output"},
	}, testutils.NewEchoModelRunner())
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(nil))
	require.Error(t, err)

	var missingErr *domain.MissingKeyError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "get_model_outputs", missingErr.TransformName)
	assert.Equal(t, "prompt", missingErr.Key)
}
