package ports

import (
	"context"

	"github.com/rubriq/appraise/internal/domain"
)

// RowFunc is a per-row operation applied by Dataset.Map.
// Implementations must be safe for concurrent invocation: engines are free
// to apply the function to many rows in parallel and in no particular order.
type RowFunc func(ctx context.Context, row domain.Record) (domain.Record, error)

// Dataset defines the tabular execution surface consumed by the evaluation
// pipeline. Implementations may be lazy or eager, but every method that
// returns a Dataset must leave the receiver untouched so intermediate
// datasets can be reused across evaluation stages.
type Dataset interface {
	// Columns returns the set of keys present across the dataset's rows.
	// Engines compute this as the union of per-row field sets; individual
	// rows may be missing any given column.
	Columns() []string

	// Len returns the number of rows in the dataset.
	Len() int

	// Map applies fn to every row and returns a new Dataset holding the
	// results. Rows are processed by the engine's worker pool with no
	// ordering guarantee; the first row error aborts the whole operation
	// and no partial dataset is returned.
	Map(ctx context.Context, fn RowFunc) (Dataset, error)

	// Mean computes the arithmetic mean of a numeric column across all rows.
	// Rows where the column is absent or non-numeric produce an error, as
	// does an empty dataset.
	Mean(ctx context.Context, column string) (float64, error)

	// GroupByMean groups rows by the stringified value of keyColumn and
	// returns the mean of valueColumn within each group. Rows where the key
	// column is absent or nil are skipped.
	GroupByMean(ctx context.Context, keyColumn, valueColumn string) (map[string]float64, error)

	// Unique returns the distinct stringified values of a column, skipping
	// rows where the column is absent or nil. Order is unspecified.
	Unique(ctx context.Context, column string) ([]string, error)

	// Materialize executes any pending computation and fixes a row order
	// for subsequent Rows calls. Callers must invoke it before any
	// order-dependent iteration; until then engines guarantee nothing about
	// row order.
	Materialize(ctx context.Context) (Dataset, error)

	// Rows returns the materialized rows in their fixed order.
	// The returned slice should not be modified by callers.
	Rows(ctx context.Context) ([]domain.Record, error)

	// Limit returns a Dataset holding at most n rows.
	Limit(n int) Dataset

	// DropColumns returns a Dataset with the named columns removed from
	// every row. Unknown columns are ignored.
	DropColumns(columns ...string) Dataset
}
