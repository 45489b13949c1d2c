package application

import (
	"context"
	"fmt"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// VerifyModelDeterminism reports whether the model produces identical
// output when invoked twice with the same prompt, sampled over the
// first sampleLimit rows of the dataset. The first mismatch short
// circuits: no further rows are predicted. Prediction errors propagate.
//
// Robustness evaluations require a deterministic model; otherwise a
// perturbed input's score delta cannot be attributed to the
// perturbation.
func VerifyModelDeterminism(
	ctx context.Context,
	runner ports.ModelRunner,
	ds ports.Dataset,
	promptColumn string,
	sampleLimit int,
) (bool, error) {
	sample, err := ds.Limit(sampleLimit).Materialize(ctx)
	if err != nil {
		return false, err
	}
	rows, err := sample.Rows(ctx)
	if err != nil {
		return false, err
	}

	for i, row := range rows {
		prompt, ok := domain.Get[string](row, promptColumn)
		if !ok {
			return false, domain.NewInternalError(
				"prompt column %q is missing from row %d", promptColumn, i)
		}

		first, err := runner.Predict(ctx, prompt)
		if err != nil {
			return false, fmt.Errorf("determinism check prediction failed: %w", err)
		}
		second, err := runner.Predict(ctx, prompt)
		if err != nil {
			return false, fmt.Errorf("determinism check prediction failed: %w", err)
		}
		if !outputsEqual(first.Output, second.Output) {
			return false, nil
		}
	}
	return true, nil
}

func outputsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
