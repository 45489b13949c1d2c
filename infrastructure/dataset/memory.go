// Package dataset provides the in-memory tabular engine backing
// evaluation runs, plus loaders for the supported dataset file formats.
package dataset

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.Dataset = (*InMemory)(nil)

// Option configures an InMemory dataset at construction.
type Option func(*InMemory)

// WithWorkers caps how many rows Map processes concurrently.
// Values below one keep the default of twice the CPU count.
func WithWorkers(n int) Option {
	return func(d *InMemory) {
		if n > 0 {
			d.workers = n
		}
	}
}

// InMemory is an eager ports.Dataset over a slice of records. The row
// slice is never mutated after construction; every deriving method
// builds a new dataset, so intermediate datasets can be reused across
// evaluation stages.
type InMemory struct {
	rows    []domain.Record
	workers int
}

// New creates an InMemory dataset from the given rows.
func New(rows []domain.Record, opts ...Option) *InMemory {
	d := &InMemory{rows: rows, workers: runtime.NumCPU() * 2}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromRecords creates an InMemory dataset from raw field maps, copying
// each map into an immutable record.
func FromRecords(rows []map[string]any, opts ...Option) *InMemory {
	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		records[i] = domain.NewRecord(row)
	}
	return New(records, opts...)
}

// derive builds a sibling dataset carrying this one's configuration.
func (d *InMemory) derive(rows []domain.Record) *InMemory {
	return &InMemory{rows: rows, workers: d.workers}
}

// Columns returns the union of field names across all rows, sorted.
// Individual rows may be missing any given column.
func (d *InMemory) Columns() []string {
	seen := make(map[string]struct{})
	for _, row := range d.rows {
		for _, key := range row.Keys() {
			seen[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}

// Len returns the number of rows.
func (d *InMemory) Len() int { return len(d.rows) }

// Map applies fn to every row on a bounded worker pool and returns a
// new dataset holding the results in the source row positions. The
// first row error cancels the remaining work and aborts the whole
// operation with no partial dataset.
func (d *InMemory) Map(ctx context.Context, fn ports.RowFunc) (ports.Dataset, error) {
	results := make([]domain.Record, len(d.rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, row := range d.rows {
		g.Go(func() error {
			mapped, err := fn(gctx, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			results[i] = mapped
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d.derive(results), nil
}

// Mean computes the arithmetic mean of a numeric column across all
// rows. Every row must carry a numeric value for the column; an empty
// dataset cannot be averaged.
func (d *InMemory) Mean(ctx context.Context, column string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(d.rows) == 0 {
		return 0, domain.NewConfigError("cannot compute mean of column %q: dataset has no rows", column)
	}

	var sum float64
	for i, row := range d.rows {
		value, err := numericColumn(row, column, i)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(d.rows)), nil
}

// GroupByMean groups rows by the stringified value of keyColumn and
// returns the mean of valueColumn within each group. Rows where the
// key column is absent or nil are skipped entirely; grouped rows must
// carry a numeric value column.
func (d *InMemory) GroupByMean(ctx context.Context, keyColumn, valueColumn string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, row := range d.rows {
		key, ok := row.Value(keyColumn)
		if !ok || key == nil {
			continue
		}
		value, err := numericColumn(row, valueColumn, i)
		if err != nil {
			return nil, err
		}
		group := fmt.Sprintf("%v", key)
		sums[group] += value
		counts[group]++
	}

	means := make(map[string]float64, len(sums))
	for group, sum := range sums {
		means[group] = sum / float64(counts[group])
	}
	return means, nil
}

// Unique returns the distinct stringified values of a column, sorted.
// Rows where the column is absent or nil are skipped.
func (d *InMemory) Unique(ctx context.Context, column string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, row := range d.rows {
		value, ok := row.Value(column)
		if !ok || value == nil {
			continue
		}
		seen[fmt.Sprintf("%v", value)] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for value := range seen {
		values = append(values, value)
	}
	sort.Strings(values)
	return values, nil
}

// Materialize fixes the current row order for subsequent Rows calls.
// InMemory is eager, so this only observes cancellation; it still must
// be called before order-dependent iteration to satisfy the Dataset
// contract lazier engines rely on.
func (d *InMemory) Materialize(ctx context.Context) (ports.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Rows returns the rows in their materialized order.
func (d *InMemory) Rows(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([]domain.Record, len(d.rows))
	copy(rows, d.rows)
	return rows, nil
}

// Limit returns a dataset holding at most n rows. A negative n yields
// an empty dataset.
func (d *InMemory) Limit(n int) ports.Dataset {
	if n >= len(d.rows) {
		return d
	}
	if n < 0 {
		n = 0
	}
	return d.derive(d.rows[:n])
}

// DropColumns returns a dataset with the named columns removed from
// every row. Unknown columns are ignored.
func (d *InMemory) DropColumns(columns ...string) ports.Dataset {
	if len(columns) == 0 {
		return d
	}
	rows := make([]domain.Record, len(d.rows))
	for i, row := range d.rows {
		rows[i] = row.Without(columns...)
	}
	return d.derive(rows)
}

// numericColumn reads a required numeric column from a row. Aggregated
// columns are written by transforms, so a missing or non-numeric value
// here is an invariant violation, not a user mistake.
func numericColumn(row domain.Record, column string, rowIndex int) (float64, error) {
	raw, ok := row.Value(column)
	if !ok {
		return 0, domain.NewInternalError("column %q is missing from row %d", column, rowIndex)
	}
	value, ok := domain.Number(row, column)
	if !ok {
		return 0, domain.NewInternalError("column %q must be numeric, got %v at row %d", column, raw, rowIndex)
	}
	return value, nil
}
