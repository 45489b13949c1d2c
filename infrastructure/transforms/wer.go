package transforms

import (
	"context"

	"github.com/rubriq/appraise/infrastructure/wer"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.Transform = (*WER)(nil)

// WERMetric computes a scalar word error rate from parallel prediction and
// reference lists. The default implementation is wer.Compute; tests and
// callers with preloaded metric backends may substitute their own.
type WERMetric func(predictions, references []string) (float64, error)

// WER computes a word error rate across parallel prediction and reference
// fields of a record. The kth prediction key is paired with the kth
// reference key; the pooled rate over all pairs is written to a single
// output key.
type WER struct {
	predictionKeys []string
	referenceKeys  []string
	outputKey      string
	metric         WERMetric
}

// NewWER creates a WER transform pairing predictionKeys with referenceKeys.
// The two key lists must have the same length; both may repeat keys since
// robustness evaluations compare many predictions against one repeated
// reference column. A nil metric selects wer.Compute.
func NewWER(predictionKeys, referenceKeys []string, outputKey string, metric WERMetric) (*WER, error) {
	if len(predictionKeys) != len(referenceKeys) {
		return nil, domain.NewConfigError(
			"prediction_keys and reference_keys should have the same number of elements. prediction_keys has %d elements while reference_keys has %d elements.",
			len(predictionKeys), len(referenceKeys))
	}
	if err := validateInputKeys("prediction_keys", predictionKeys, true); err != nil {
		return nil, err
	}
	if err := validateInputKeys("reference_keys", referenceKeys, true); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", []string{outputKey}); err != nil {
		return nil, err
	}
	if metric == nil {
		metric = wer.Compute
	}

	return &WER{
		predictionKeys: predictionKeys,
		referenceKeys:  referenceKeys,
		outputKey:      outputKey,
		metric:         metric,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (w *WER) Name() string { return "wer" }

// InputKeys returns the prediction keys followed by the reference keys.
// The returned slice should not be modified by callers.
func (w *WER) InputKeys() []string {
	keys := make([]string, 0, len(w.predictionKeys)+len(w.referenceKeys))
	keys = append(keys, w.predictionKeys...)
	keys = append(keys, w.referenceKeys...)
	return keys
}

// OutputKeys returns the single key the word error rate is written to.
func (w *WER) OutputKeys() []string { return []string{w.outputKey} }

// Apply gathers the prediction and reference values in declaration order,
// delegates to the metric, and stores its return value verbatim under the
// output key.
func (w *WER) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(w.Name(), w.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	predictions := make([]string, len(w.predictionKeys))
	references := make([]string, len(w.referenceKeys))
	for i := range w.predictionKeys {
		var err error
		if predictions[i], err = stringValue(w.Name(), w.predictionKeys[i], record); err != nil {
			return domain.Record{}, err
		}
		if references[i], err = stringValue(w.Name(), w.referenceKeys[i], record); err != nil {
			return domain.Record{}, err
		}
	}

	rate, err := w.metric(predictions, references)
	if err != nil {
		return domain.Record{}, err
	}

	return record.With(w.outputKey, rate), nil
}
