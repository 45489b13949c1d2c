package transforms

import (
	"context"
	"math"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.Transform = (*MeanDelta)(nil)

// MeanDelta measures how much a score moved under perturbation: the mean
// absolute difference between an original score field and each of its
// perturbed counterparts. A value of 0 means the score was unaffected by
// the perturbations; larger values indicate less robust behavior.
//
// MeanDelta is stateless and safe for concurrent row application.
type MeanDelta struct {
	originalKey   string
	perturbedKeys []string
	outputKey     string
}

// NewMeanDelta creates a MeanDelta comparing originalKey against each of the
// perturbedKeys. At least one perturbed key is required.
func NewMeanDelta(originalKey string, perturbedKeys []string, outputKey string) (*MeanDelta, error) {
	keys := make([]string, 0, len(perturbedKeys)+1)
	keys = append(keys, originalKey)
	keys = append(keys, perturbedKeys...)
	if err := validateInputKeys("input_keys", keys, false); err != nil {
		return nil, err
	}
	if len(perturbedKeys) == 0 {
		return nil, domain.NewConfigError("perturbed_keys cannot be empty")
	}
	if err := validateOutputKeys("output_keys", []string{outputKey}); err != nil {
		return nil, err
	}
	return &MeanDelta{
		originalKey:   originalKey,
		perturbedKeys: perturbedKeys,
		outputKey:     outputKey,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (md *MeanDelta) Name() string { return "mean_delta" }

// InputKeys returns the original score key followed by the perturbed score
// keys. The returned slice should not be modified by callers.
func (md *MeanDelta) InputKeys() []string {
	keys := make([]string, 0, len(md.perturbedKeys)+1)
	keys = append(keys, md.originalKey)
	keys = append(keys, md.perturbedKeys...)
	return keys
}

// OutputKeys returns the single key the mean delta is written to.
func (md *MeanDelta) OutputKeys() []string { return []string{md.outputKey} }

// Apply writes the mean absolute difference between the original score and
// the perturbed scores under the output key.
func (md *MeanDelta) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(md.Name(), md.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	original, err := numberValue(md.Name(), md.originalKey, record)
	if err != nil {
		return domain.Record{}, err
	}

	var sum float64
	for _, key := range md.perturbedKeys {
		v, err := numberValue(md.Name(), key, record)
		if err != nil {
			return domain.Record{}, err
		}
		sum += math.Abs(original - v)
	}

	return record.With(md.outputKey, sum/float64(len(md.perturbedKeys))), nil
}
