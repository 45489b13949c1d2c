package transforms

import (
	"context"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/internal/domain"
)

func TestNewPerturbation_InvalidType(t *testing.T) {
	_, err := NewPerturbation("my_perturb", "model_input", []string{"out_0"}, DefaultPerturbationParams())
	require.Error(t, err)

	var configErr *domain.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, err.Error(), `invalid perturbation type "my_perturb" requested`)
	assert.Contains(t, err.Error(), "butter_finger")
	assert.Contains(t, err.Error(), "random_uppercase")
	assert.Contains(t, err.Error(), "add_remove_whitespace")
}

func TestNewPerturbation_Types(t *testing.T) {
	for _, perturbationType := range PerturbationTypes {
		t.Run(perturbationType, func(t *testing.T) {
			transform, err := NewPerturbation(
				perturbationType, "model_input", []string{"out_0", "out_1"}, DefaultPerturbationParams())
			require.NoError(t, err)
			assert.Equal(t, perturbationType, transform.Name())
			assert.Equal(t, []string{"model_input"}, transform.InputKeys())
			assert.Equal(t, []string{"out_0", "out_1"}, transform.OutputKeys())
		})
	}
}

// TestPerturbations_Deterministic verifies that perturbing the same input
// twice yields identical variants, which robustness evaluations rely on for
// reproducible runs.
func TestPerturbations_Deterministic(t *testing.T) {
	record := domain.NewRecord(map[string]any{
		"model_input": "the quick brown fox jumps over the lazy dog",
	})

	for _, perturbationType := range PerturbationTypes {
		t.Run(perturbationType, func(t *testing.T) {
			transform, err := NewPerturbation(
				perturbationType, "model_input", []string{"out_0", "out_1"}, DefaultPerturbationParams())
			require.NoError(t, err)

			first, err := transform.Apply(context.Background(), record)
			require.NoError(t, err)
			second, err := transform.Apply(context.Background(), record)
			require.NoError(t, err)

			for _, key := range []string{"out_0", "out_1"} {
				a, ok := domain.Get[string](first, key)
				require.True(t, ok)
				b, ok := domain.Get[string](second, key)
				require.True(t, ok)
				assert.Equal(t, a, b)
			}

			// The input record never gains the output keys.
			assert.False(t, record.Has("out_0"))
		})
	}
}

func TestButterFinger_Perturb(t *testing.T) {
	transform, err := NewButterFinger("model_input", []string{"out_0", "out_1"},
		ButterFingerConfig{PerturbationProb: 1.0, Seed: 5})
	require.NoError(t, err)

	record := domain.NewRecord(map[string]any{
		"model_input": "evaluate the semantic robustness of this model 123",
	})

	got, err := transform.Apply(context.Background(), record)
	require.NoError(t, err)

	original, _ := domain.Get[string](record, "model_input")
	variant0, ok := domain.Get[string](got, "out_0")
	require.True(t, ok)
	variant1, ok := domain.Get[string](got, "out_1")
	require.True(t, ok)

	// Every letter has a non-identity neighbor, so a probability of one
	// changes the text while preserving its shape.
	assert.NotEqual(t, original, variant0)
	assert.Len(t, []rune(variant0), len([]rune(original)))

	// Digits and spaces have no keyboard neighbors and survive unchanged.
	assert.True(t, strings.HasSuffix(variant0, " 123"))
	assert.Equal(t, strings.Count(original, " "), strings.Count(variant0, " "))

	// Distinct variants use distinct random streams.
	assert.NotEqual(t, variant0, variant1)
}

func TestRandomUppercase_Perturb(t *testing.T) {
	tests := []struct {
		name       string
		proportion float64
		input      string
		check      func(t *testing.T, got string)
	}{
		{
			name:       "full proportion uppercases everything",
			proportion: 1.0,
			input:      "hello world",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "HELLO WORLD", got)
			},
		},
		{
			name:       "zero proportion leaves text unchanged",
			proportion: 0.0,
			input:      "hello world",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "hello world", got)
			},
		},
		{
			name:       "partial proportion flips some letters",
			proportion: 0.5,
			input:      "abcdefghijklmnopqrstuvwxyz",
			check: func(t *testing.T, got string) {
				upper := 0
				for _, r := range got {
					if unicode.IsUpper(r) {
						upper++
					}
				}
				assert.Equal(t, 13, upper)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform, err := NewRandomUppercase("model_input", []string{"out_0"},
				RandomUppercaseConfig{CorruptProportion: tt.proportion, Seed: 5})
			require.NoError(t, err)

			got, err := transform.Apply(context.Background(), domain.NewRecord(map[string]any{
				"model_input": tt.input,
			}))
			require.NoError(t, err)

			variant, ok := domain.Get[string](got, "out_0")
			require.True(t, ok)
			tt.check(t, variant)
		})
	}
}

func TestAddRemoveWhitespace_Perturb(t *testing.T) {
	tests := []struct {
		name     string
		config   AddRemoveWhitespaceConfig
		input    string
		expected string
	}{
		{
			name:     "full removal drops all whitespace",
			config:   AddRemoveWhitespaceConfig{RemoveProb: 1.0, AddProb: 0.0, Seed: 5},
			input:    "a b\tc",
			expected: "abc",
		},
		{
			name:     "full addition spaces out every character",
			config:   AddRemoveWhitespaceConfig{RemoveProb: 0.0, AddProb: 1.0, Seed: 5},
			input:    "ab",
			expected: " a b",
		},
		{
			name:     "zero probabilities leave text unchanged",
			config:   AddRemoveWhitespaceConfig{RemoveProb: 0.0, AddProb: 0.0, Seed: 5},
			input:    "a b c",
			expected: "a b c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform, err := NewAddRemoveWhitespace("model_input", []string{"out_0"}, tt.config)
			require.NoError(t, err)

			got, err := transform.Apply(context.Background(), domain.NewRecord(map[string]any{
				"model_input": tt.input,
			}))
			require.NoError(t, err)

			variant, ok := domain.Get[string](got, "out_0")
			require.True(t, ok)
			assert.Equal(t, tt.expected, variant)
		})
	}
}

func TestPerturbations_ConfigValidation(t *testing.T) {
	_, err := NewButterFinger("in", []string{"out"}, ButterFingerConfig{PerturbationProb: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	_, err = NewRandomUppercase("in", []string{"out"}, RandomUppercaseConfig{CorruptProportion: -0.1})
	require.Error(t, err)

	_, err = NewAddRemoveWhitespace("in", []string{"out"}, AddRemoveWhitespaceConfig{AddProb: 2.0})
	require.Error(t, err)
}

func TestPerturbations_MissingInputKey(t *testing.T) {
	transform, err := NewPerturbation(
		PerturbationButterFinger, "model_input", []string{"out_0"}, DefaultPerturbationParams())
	require.NoError(t, err)

	_, err = transform.Apply(context.Background(), domain.NewRecord(map[string]any{"other": "x"}))
	require.Error(t, err)

	var missingErr *domain.MissingKeyError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "butter_finger", missingErr.TransformName)
	assert.Equal(t, "model_input", missingErr.Key)
}
