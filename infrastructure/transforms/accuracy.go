package transforms

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// UnknownLabel is emitted when no valid label can be recognized in a model
// output.
const UnknownLabel = "unknown"

// LabelConverter maps raw model output text to one of the valid labels, or
// UnknownLabel when none applies. Converters must be pure functions so rows
// can be classified in parallel.
type LabelConverter func(modelOutput string, validLabels []string) string

// ConvertModelOutputToLabel is the default LabelConverter. It splits the
// model output on single spaces and returns the first word matching a valid
// label, comparing with Unicode case folding. Multiple label mentions
// resolve to the first one.
func ConvertModelOutputToLabel(modelOutput string, validLabels []string) string {
	caser := cases.Fold()
	valid := make(map[string]struct{}, len(validLabels))
	for _, label := range validLabels {
		valid[caser.String(label)] = struct{}{}
	}
	for _, word := range strings.Split(modelOutput, " ") {
		folded := caser.String(word)
		if _, ok := valid[folded]; ok {
			return folded
		}
	}
	return UnknownLabel
}

var _ ports.Transform = (*ClassificationAccuracy)(nil)

// ClassificationAccuracy classifies a model output against a set of valid
// labels and scores it 1.0 when the recognized label matches the target
// output, 0.0 otherwise. Both the recognized label and the binary score are
// written so output records expose what the model was judged to have said.
type ClassificationAccuracy struct {
	targetOutputKey string
	modelOutputKey  string
	classifiedKey   string
	accuracyKey     string
	validLabels     []string
	converter       LabelConverter
}

// NewClassificationAccuracy creates a ClassificationAccuracy comparing
// modelOutputKey against targetOutputKey. The recognized label is written
// under classifiedKey and the binary score under accuracyKey.
// A nil converter selects ConvertModelOutputToLabel.
func NewClassificationAccuracy(
	targetOutputKey, modelOutputKey, classifiedKey, accuracyKey string,
	validLabels []string,
	converter LabelConverter,
) (*ClassificationAccuracy, error) {
	if err := validateInputKeys("input_keys", []string{targetOutputKey, modelOutputKey}, false); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", []string{classifiedKey, accuracyKey}); err != nil {
		return nil, err
	}
	if len(validLabels) == 0 {
		return nil, domain.NewConfigError("valid_labels cannot be empty")
	}
	if converter == nil {
		converter = ConvertModelOutputToLabel
	}

	return &ClassificationAccuracy{
		targetOutputKey: targetOutputKey,
		modelOutputKey:  modelOutputKey,
		classifiedKey:   classifiedKey,
		accuracyKey:     accuracyKey,
		validLabels:     validLabels,
		converter:       converter,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (ca *ClassificationAccuracy) Name() string { return "classification_accuracy" }

// InputKeys returns the target output key followed by the model output key.
func (ca *ClassificationAccuracy) InputKeys() []string {
	return []string{ca.targetOutputKey, ca.modelOutputKey}
}

// OutputKeys returns the recognized-label key followed by the score key.
func (ca *ClassificationAccuracy) OutputKeys() []string {
	return []string{ca.classifiedKey, ca.accuracyKey}
}

// Apply classifies the model output and writes the recognized label and the
// binary accuracy score. The target value is compared after stringifying and
// case folding, so numeric labels in the dataset match their string forms.
func (ca *ClassificationAccuracy) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(ca.Name(), ca.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	modelOutput, err := stringValue(ca.Name(), ca.modelOutputKey, record)
	if err != nil {
		return domain.Record{}, err
	}

	classified := ca.converter(modelOutput, ca.validLabels)
	targetValue, _ := record.Value(ca.targetOutputKey)
	target := cases.Fold().String(fmt.Sprintf("%v", targetValue))

	accuracy := 0.0
	if classified == target {
		accuracy = 1.0
	}

	return record.
		With(ca.classifiedKey, classified).
		With(ca.accuracyKey, accuracy), nil
}
