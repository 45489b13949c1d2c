package domain

import (
	"fmt"
)

// ConfigError reports invalid user-supplied configuration: mismatched
// key-sequence lengths, a missing required dataset column, a missing
// model argument, an unknown perturbation type, and similar mistakes a
// caller can correct. It is raised at construction or validation time,
// never deferred to row-processing time when detectable earlier.
// Its message text is part of the user-facing contract.
type ConfigError struct {
	msg string
}

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string { return e.msg }

// MissingKeyError reports that a transform's declared input key was
// absent from the record at invocation time. This usually signals a
// pipeline wiring bug (a transform ordering error) rather than a data
// problem, but it is surfaced as a first-class error instead of being
// silently skipped.
type MissingKeyError struct {
	// TransformName identifies the transform whose input was missing.
	TransformName string

	// Key is the declared input key that was not found in the record.
	Key string
}

// NewMissingKeyError creates a MissingKeyError for the given transform
// and key.
func NewMissingKeyError(transformName, key string) *MissingKeyError {
	return &MissingKeyError{TransformName: transformName, Key: key}
}

// Error implements the error interface for MissingKeyError.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required input key %q for transform %q", e.Key, e.TransformName)
}

// InternalError reports a violated invariant that should be unreachable
// given correct code, such as an unsupported aggregation method being
// selected internally or a category score set diverging from the
// dataset score set. It is not meant to be handled by calling code;
// it indicates a bug.
type InternalError struct {
	msg string
}

// NewInternalError creates an InternalError with a formatted message.
func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface for InternalError.
func (e *InternalError) Error() string { return e.msg }
