package application

import (
	"context"
	"slices"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// AggregationMethod selects how per-row score columns collapse into a
// dataset-level value.
type AggregationMethod string

// MethodMean is the arithmetic mean, currently the only supported
// aggregation method.
const MethodMean AggregationMethod = "mean"

// AggregateScores collapses each score column into a dataset-level
// aggregate, in scoreColumns order. When the dataset carries a category
// column, it additionally produces one CategoryScore per distinct
// category value with per-column aggregates in the same order.
//
// The method is selected by framework code, never by user input, so an
// unsupported method is an InternalError.
func AggregateScores(
	ctx context.Context,
	ds ports.Dataset,
	scoreColumns []string,
	method AggregationMethod,
) ([]domain.EvalScore, []domain.CategoryScore, error) {
	if method != MethodMean {
		return nil, nil, domain.NewInternalError("Aggregation method %s is not supported", method)
	}

	datasetScores := make([]domain.EvalScore, 0, len(scoreColumns))
	for _, column := range scoreColumns {
		mean, err := ds.Mean(ctx, column)
		if err != nil {
			return nil, nil, err
		}
		datasetScores = append(datasetScores, domain.EvalScore{Name: column, Value: mean})
	}

	if !slices.Contains(ds.Columns(), domain.ColumnCategory) {
		return datasetScores, nil, nil
	}

	categoryScores, err := aggregateByCategory(ctx, ds, scoreColumns)
	if err != nil {
		return nil, nil, err
	}
	return datasetScores, categoryScores, nil
}

// aggregateByCategory discovers the distinct category values and
// computes each score column's mean within every category group.
func aggregateByCategory(
	ctx context.Context,
	ds ports.Dataset,
	scoreColumns []string,
) ([]domain.CategoryScore, error) {
	categories, err := ds.Unique(ctx, domain.ColumnCategory)
	if err != nil {
		return nil, err
	}

	meansByColumn := make(map[string]map[string]float64, len(scoreColumns))
	for _, column := range scoreColumns {
		means, err := ds.GroupByMean(ctx, domain.ColumnCategory, column)
		if err != nil {
			return nil, err
		}
		meansByColumn[column] = means
	}

	categoryScores := make([]domain.CategoryScore, 0, len(categories))
	for _, category := range categories {
		scores := make([]domain.EvalScore, 0, len(scoreColumns))
		for _, column := range scoreColumns {
			mean, ok := meansByColumn[column][category]
			if !ok {
				return nil, domain.NewInternalError(
					"category %q has no aggregated value for score column %q", category, column,
				)
			}
			scores = append(scores, domain.EvalScore{Name: column, Value: mean})
		}
		categoryScores = append(categoryScores, domain.CategoryScore{Name: category, Scores: scores})
	}
	return categoryScores, nil
}
