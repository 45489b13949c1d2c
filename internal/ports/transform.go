// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/rubriq/appraise/internal/domain"
)

// Transform represents the fundamental building block of the evaluation
// pipeline. Each Transform reads a declared set of input keys from a Record
// and writes a declared set of output keys, enabling composable and reusable
// scoring logic.
// Transforms must be stateless with respect to records and thread-safe for
// concurrent row application.
type Transform interface {
	// Name returns a unique identifier for this transform.
	// The name is used in error messages, tracing, and configuration.
	Name() string

	// InputKeys returns the record keys this transform reads, in declaration
	// order. Every listed key must be present in a record before Apply runs;
	// absence is reported as a missing-key error naming this transform.
	InputKeys() []string

	// OutputKeys returns the record keys this transform writes, in
	// declaration order. Pipelines use these to detect collisions between
	// stages before any row is processed.
	OutputKeys() []string

	// Apply performs the transform's computation on the provided Record.
	// It returns a new Record containing the input fields plus exactly the
	// declared output keys. The original Record is never modified; Record
	// uses copy-on-write semantics, so the same instance may be handed to
	// many transforms concurrently.
	// Any errors during execution should be returned rather than panicking.
	//
	// The context parameter allows for cancellation and deadline propagation.
	// Transforms that call external collaborators should respect context
	// cancellation and return promptly.
	//
	// Example:
	//
	//	scored, err := transform.Apply(ctx, row)
	//	if err != nil {
	//	    return domain.Record{}, fmt.Errorf("transform %s failed: %w", transform.Name(), err)
	//	}
	Apply(ctx context.Context, record domain.Record) (domain.Record, error)
}
