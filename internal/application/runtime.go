package application

import (
	"context"
	"math"
	"slices"

	"github.com/rubriq/appraise/infrastructure/transforms"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// ValidateDataset verifies that every required column is present in the
// dataset, reporting the first absent column as a ConfigError. The
// message text is part of the user-facing contract.
func ValidateDataset(ds ports.Dataset, requiredColumns []string) error {
	columns := ds.Columns()
	for _, required := range requiredColumns {
		if !slices.Contains(columns, required) {
			return domain.NewConfigError("Missing required column: %s, for evaluate() method", required)
		}
	}
	return nil
}

// GeneratePromptColumn composes a prompt for every row by substituting
// the input column's value into the template, writing the result under
// promptColumn. The returned dataset is materialized so later
// order-dependent steps see a fixed row order.
func GeneratePromptColumn(
	ctx context.Context,
	ds ports.Dataset,
	promptTemplate, inputColumn, promptColumn string,
) (ports.Dataset, error) {
	composer, err := transforms.NewGeneratePrompt([]string{inputColumn}, []string{promptColumn}, promptTemplate)
	if err != nil {
		return nil, err
	}
	composed, err := ds.Map(ctx, composer.Apply)
	if err != nil {
		return nil, err
	}
	return composed.Materialize(ctx)
}

// GenerateModelPredictions invokes the model once per row with the
// prompt column's value, writing the response under outputColumn and,
// when logProbColumn is non-empty, the log probability under it. Rows
// run on the engine's worker pool; the runner is expected to be safe
// for concurrent use.
func GenerateModelPredictions(
	ctx context.Context,
	ds ports.Dataset,
	runner ports.ModelRunner,
	promptColumn, outputColumn, logProbColumn string,
) (ports.Dataset, error) {
	invoker, err := transforms.NewGetModelOutputs([]transforms.InvocationSpec{{
		PromptKey:  promptColumn,
		OutputKey:  outputColumn,
		LogProbKey: logProbColumn,
	}}, runner)
	if err != nil {
		return nil, err
	}
	predicted, err := ds.Map(ctx, invoker.Apply)
	if err != nil {
		return nil, err
	}
	return predicted.Materialize(ctx)
}

// MeanDeltaScore computes the mean absolute difference between an
// original score and its perturbed counterparts. An empty perturbed
// slice yields zero.
func MeanDeltaScore(original domain.EvalScore, perturbed []domain.EvalScore) float64 {
	if len(perturbed) == 0 {
		return 0
	}
	var sum float64
	for _, score := range perturbed {
		sum += math.Abs(original.Value - score.Value)
	}
	return sum / float64(len(perturbed))
}
