package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunking reports chunk size/overlap parameters that cannot
	// produce windows. It is a configuration bug, not a data problem.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrTimeout is returned when the caller's deadline expires during a
	// provider call. It is distinct from a provider-side failure.
	ErrTimeout = errors.New("operation timed out")
)

// EmbeddingProviderError is returned once every embedding attempt failed.
type EmbeddingProviderError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error {
	return e.Err
}

// VectorAlignmentWarning describes a query/candidate dimension mismatch that
// was resolved by truncating the longer vector. It is logged, never returned
// as a failure.
type VectorAlignmentWarning struct {
	QueryDim     int
	CandidateDim int
}

func (w *VectorAlignmentWarning) Error() string {
	return fmt.Sprintf("vector dimensions differ (%d vs %d), truncated to %d",
		w.QueryDim, w.CandidateDim, min(w.QueryDim, w.CandidateDim))
}

// RerankProviderError wraps a failed reranker round trip.
type RerankProviderError struct {
	Err error
}

func (e *RerankProviderError) Error() string {
	return fmt.Sprintf("rerank provider failed: %v", e.Err)
}

func (e *RerankProviderError) Unwrap() error {
	return e.Err
}

// InvalidRequestError rejects a request before any work is done.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// FromContext maps a finished context to the error handed back to callers.
// A passed deadline matches both ErrTimeout and context.DeadlineExceeded.
func FromContext(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
