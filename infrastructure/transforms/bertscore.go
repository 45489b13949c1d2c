package transforms

import (
	"context"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var (
	_ ports.Transform = (*BertScore)(nil)
	_ ports.Transform = (*BertScoreDissimilarity)(nil)
)

// BertScore scores the semantic similarity of candidate fields against
// reference fields using an external embedding-based scorer. The kth
// reference key is paired with the kth candidate key and the similarity is
// written under the kth output key.
//
// The scorer is a long-lived collaborator, typically a pooled worker that
// amortizes embedding-model setup across many calls; BertScore never
// constructs or closes it.
type BertScore struct {
	referenceKeys []string
	candidateKeys []string
	outputKeys    []string
	scorer        ports.SimilarityScorer
}

// NewBertScore creates a BertScore pairing referenceKeys with candidateKeys.
// The three key lists must have equal length. Duplicate reference keys are
// allowed so one baseline column can be compared against many candidates.
func NewBertScore(referenceKeys, candidateKeys, outputKeys []string, scorer ports.SimilarityScorer) (*BertScore, error) {
	if scorer == nil {
		return nil, ErrNilScorer
	}
	if len(referenceKeys) != len(candidateKeys) {
		return nil, domain.NewConfigError(
			"reference_keys and candidate_keys should have the same number of elements. reference_keys has %d elements while candidate_keys has %d elements",
			len(referenceKeys), len(candidateKeys))
	}
	if len(outputKeys) != len(candidateKeys) {
		return nil, domain.NewConfigError(
			"output_keys and candidate_keys should have the same number of elements. output_keys has %d elements while candidate_keys has %d elements",
			len(outputKeys), len(candidateKeys))
	}
	if err := validateInputKeys("reference_keys", referenceKeys, true); err != nil {
		return nil, err
	}
	if err := validateInputKeys("candidate_keys", candidateKeys, false); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", outputKeys); err != nil {
		return nil, err
	}

	return &BertScore{
		referenceKeys: referenceKeys,
		candidateKeys: candidateKeys,
		outputKeys:    outputKeys,
		scorer:        scorer,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (b *BertScore) Name() string { return "bertscore" }

// InputKeys returns the reference keys followed by the candidate keys.
// The returned slice should not be modified by callers.
func (b *BertScore) InputKeys() []string {
	keys := make([]string, 0, len(b.referenceKeys)+len(b.candidateKeys))
	keys = append(keys, b.referenceKeys...)
	keys = append(keys, b.candidateKeys...)
	return keys
}

// OutputKeys returns the keys the similarity scores are written to.
// The returned slice should not be modified by callers.
func (b *BertScore) OutputKeys() []string { return b.outputKeys }

// Apply scores every reference/candidate pair and writes each similarity
// under its output key. Calls to the scorer block until the score returns;
// a scorer failure aborts the row.
func (b *BertScore) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(b.Name(), b.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	result := record
	for i := range b.candidateKeys {
		reference, err := stringValue(b.Name(), b.referenceKeys[i], record)
		if err != nil {
			return domain.Record{}, err
		}
		candidate, err := stringValue(b.Name(), b.candidateKeys[i], record)
		if err != nil {
			return domain.Record{}, err
		}

		score, err := b.scorer.Score(ctx, reference, candidate)
		if err != nil {
			return domain.Record{}, err
		}
		result = result.With(b.outputKeys[i], score)
	}

	return result, nil
}

// BertScoreDissimilarity pools a set of BERTScore similarity fields into a
// single dissimilarity value: one minus the arithmetic mean of the inputs.
// The result lies in [0, 1] only when the inputs do; out-of-range inputs
// propagate unclamped, mirroring the upstream metric.
type BertScoreDissimilarity struct {
	mean      *Mean
	inputKeys []string
	outputKey string
}

// NewBertScoreDissimilarity creates a BertScoreDissimilarity over the given
// BERTScore value keys. At least one input key is required.
func NewBertScoreDissimilarity(bertScoreKeys []string, outputKey string) (*BertScoreDissimilarity, error) {
	mean, err := NewMean(bertScoreKeys, outputKey)
	if err != nil {
		return nil, err
	}
	return &BertScoreDissimilarity{
		mean:      mean,
		inputKeys: bertScoreKeys,
		outputKey: outputKey,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (b *BertScoreDissimilarity) Name() string { return "bertscore_dissimilarity" }

// InputKeys returns the BERTScore value keys being pooled.
// The returned slice should not be modified by callers.
func (b *BertScoreDissimilarity) InputKeys() []string { return b.inputKeys }

// OutputKeys returns the single key the dissimilarity is written to.
func (b *BertScoreDissimilarity) OutputKeys() []string { return []string{b.outputKey} }

// Apply writes 1 - Mean(inputs) under the output key.
func (b *BertScoreDissimilarity) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(b.Name(), b.inputKeys, record); err != nil {
		return domain.Record{}, err
	}

	pooled, err := b.mean.Apply(ctx, record)
	if err != nil {
		return domain.Record{}, err
	}

	meanScore, err := numberValue(b.Name(), b.outputKey, pooled)
	if err != nil {
		return domain.Record{}, err
	}

	return pooled.With(b.outputKey, 1-meanScore), nil
}
