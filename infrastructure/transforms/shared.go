// Package transforms provides the keyed record transforms that implement
// the ports.Transform interface for the appraise evaluation pipeline.
// Each transform declares the record keys it reads and writes so pipelines
// can validate wiring before any row is processed.
package transforms

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/rubriq/appraise/internal/domain"
)

// Common errors returned by transform constructors.
var (
	// ErrNilScorer is returned when a similarity-based transform is created
	// without a scorer.
	ErrNilScorer = errors.New("similarity scorer cannot be nil")

	// ErrNilModelRunner is returned when a model-invoking transform is
	// created without a model runner.
	ErrNilModelRunner = errors.New("model runner cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// validateInputKeys checks a declared input key list at construction time.
// Duplicate keys are rejected unless allowDuplicates is set; transforms that
// intentionally read one key several times (such as a repeated reference
// column) opt in explicitly.
func validateInputKeys(field string, keys []string, allowDuplicates bool) error {
	if len(keys) == 0 {
		return domain.NewConfigError("%s cannot be empty", field)
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			return domain.NewConfigError("%s cannot contain an empty key", field)
		}
		if _, dup := seen[key]; dup && !allowDuplicates {
			return domain.NewConfigError("duplicate key %q in %s", key, field)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// validateOutputKeys checks a declared output key list at construction time.
// Output keys must always be unique within one transform.
func validateOutputKeys(field string, keys []string) error {
	return validateInputKeys(field, keys, false)
}

// requireInputs verifies that every declared input key is present in the
// record before a transform's scoring logic runs. It reports the first
// missing key so pipeline wiring bugs surface with the offending transform
// and key named.
func requireInputs(name string, keys []string, record domain.Record) error {
	for _, key := range keys {
		if !record.Has(key) {
			return domain.NewMissingKeyError(name, key)
		}
	}
	return nil
}

// numberValue reads a numeric field, reporting a non-numeric or absent value
// as an invariant violation since key presence is checked up front.
func numberValue(name, key string, record domain.Record) (float64, error) {
	v, ok := domain.Number(record, key)
	if !ok {
		raw, _ := record.Value(key)
		return 0, domain.NewInternalError(
			"transform %q requires a numeric value for key %q, got %v", name, key, raw)
	}
	return v, nil
}

// stringValue reads a string field, reporting a non-string or absent value
// as an invariant violation since key presence is checked up front.
func stringValue(name, key string, record domain.Record) (string, error) {
	v, ok := domain.Get[string](record, key)
	if !ok {
		raw, _ := record.Value(key)
		return "", domain.NewInternalError(
			"transform %q requires a string value for key %q, got %v", name, key, raw)
	}
	return v, nil
}
