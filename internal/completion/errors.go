package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when a completion request was superseded
	// or its context ended before the provider answered.
	ErrCancelled = errors.New("completion request cancelled")

	// ErrNoDocument is returned by a DocumentStore for unknown buffers.
	ErrNoDocument = errors.New("document not found")
)

// ProviderError occurs when a provider call fails.
type ProviderError struct {
	Source string
	Op     string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider '%s' failed to %s: %v", e.Source, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// DocumentError occurs when a buffer cannot be resolved to a document.
type DocumentError struct {
	Bufnr int
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("failed to get document for buffer %d: %v", e.Bufnr, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// InvalidSourceError occurs when a Source is built from an incomplete config.
type InvalidSourceError struct {
	Field   string
	Message string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid completion source: %s (field: %s)", e.Message, e.Field)
}
