package transforms

import (
	"context"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.Transform = (*Mean)(nil)

// Mean computes the arithmetic mean of a fixed set of numeric record fields
// and writes the result to a single output key. It is the building block for
// per-row score pooling, such as averaging one score across several
// perturbed variants of the same input.
//
// Mean is stateless and safe for concurrent row application.
type Mean struct {
	inputKeys []string
	outputKey string
}

// NewMean creates a Mean over the given input keys.
// At least one input key is required; a mean over zero values is a
// configuration error, reported at construction rather than per row.
func NewMean(inputKeys []string, outputKey string) (*Mean, error) {
	if err := validateInputKeys("input_keys", inputKeys, false); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", []string{outputKey}); err != nil {
		return nil, err
	}
	return &Mean{inputKeys: inputKeys, outputKey: outputKey}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (m *Mean) Name() string { return "mean" }

// InputKeys returns the keys whose values are averaged.
// The returned slice should not be modified by callers.
func (m *Mean) InputKeys() []string { return m.inputKeys }

// OutputKeys returns the single key the mean is written to.
func (m *Mean) OutputKeys() []string { return []string{m.outputKey} }

// Apply writes the arithmetic mean of the input values under the output key.
// The sum runs in declaration order; the denominator is the declared key
// count, so duplicate values are never collapsed.
func (m *Mean) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(m.Name(), m.inputKeys, record); err != nil {
		return domain.Record{}, err
	}

	var sum float64
	for _, key := range m.inputKeys {
		v, err := numberValue(m.Name(), key, record)
		if err != nil {
			return domain.Record{}, err
		}
		sum += v
	}

	return record.With(m.outputKey, sum/float64(len(m.inputKeys))), nil
}
