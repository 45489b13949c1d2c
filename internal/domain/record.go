// Package domain contains pure, dependency-free domain models and types
// for the evaluation framework.
package domain

import (
	"fmt"
	"maps"
	"sort"
)

// Record represents one dataset row as an immutable mapping from field
// name to a scalar value (string, integer, or float). It uses
// copy-on-write semantics: mutating operations return a new Record and
// leave the receiver untouched, so a transform that fails part-way
// through can never leave partial writes behind, and records can be
// shared across worker goroutines without synchronization.
type Record struct {
	// fields holds the column name to value pairs that make up the row.
	// It is unexported to maintain immutability guarantees.
	fields map[string]any
}

// NewRecord creates a Record from the given field map.
// The map is copied, so later changes to it do not affect the Record.
func NewRecord(fields map[string]any) Record {
	return Record{fields: maps.Clone(fields)}
}

// Value returns the raw value stored under key and whether the key exists.
func (r Record) Value(key string) (any, bool) {
	value, ok := r.fields[key]
	return value, ok
}

// Has reports whether the Record contains the given key.
func (r Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Get retrieves a value from the Record with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and holds a value of the requested type.
//
// Example:
//
//	output, ok := Get[string](rec, "model_output")
//	if !ok {
//	    // handle missing or mistyped value
//	}
func Get[T any](r Record, key string) (T, bool) {
	var zero T
	value, exists := r.fields[key]
	if !exists {
		return zero, false
	}
	val, ok := value.(T)
	if !ok {
		return zero, false
	}
	return val, ok
}

// Number retrieves the value under key coerced to float64.
// It accepts any of the numeric scalar types a dataset engine may
// produce (int, int32, int64, float32, float64) and reports false for
// missing keys and non-numeric values.
func Number(r Record, key string) (float64, bool) {
	value, exists := r.fields[key]
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// With creates a new Record with the key-value pair added or updated.
// The receiver is left unchanged.
func (r Record) With(key string, value any) Record {
	fields := maps.Clone(r.fields)
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields[key] = value
	return Record{fields: fields}
}

// WithMultiple creates a new Record with every pair in updates added or
// updated. It is more efficient than chaining With calls as it performs
// a single clone operation.
func (r Record) WithMultiple(updates map[string]any) Record {
	fields := maps.Clone(r.fields)
	if fields == nil {
		fields = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		fields[k] = v
	}
	return Record{fields: fields}
}

// Without creates a new Record with the given keys removed.
// Missing keys are ignored.
func (r Record) Without(keys ...string) Record {
	fields := maps.Clone(r.fields)
	for _, k := range keys {
		delete(fields, k)
	}
	return Record{fields: fields}
}

// Keys returns the field names present in the Record, sorted for
// deterministic iteration. The returned slice is safe to modify.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of fields in the Record.
func (r Record) Len() int { return len(r.fields) }

// ToMap returns a copy of the Record's fields. Mutating the returned
// map does not affect the Record.
func (r Record) ToMap() map[string]any {
	if r.fields == nil {
		return map[string]any{}
	}
	return maps.Clone(r.fields)
}

// String returns a string representation of the Record for debugging.
func (r Record) String() string {
	return fmt.Sprintf("Record%v", r.fields)
}
