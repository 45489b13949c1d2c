package ports

import "errors"

// Common errors returned by pooled infrastructure implementations.
var (
	// ErrPoolClosed indicates that a worker pool has been closed and can no
	// longer accept requests. Callers holding a pooled ModelRunner or
	// SimilarityScorer receive it from calls issued after Close.
	ErrPoolClosed = errors.New("worker pool is closed")
)
