// Package cerr defines the engine's error taxonomy so callers can
// distinguish recoverable, per-item failures from whole-pipeline failures
// that must be surfaced.
package cerr

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the taxonomy in SPEC_FULL.md §7.
var (
	// ErrUnknownIndex is returned when an operation references an index
	// that has never been created.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrUnreadableSource is returned (and always recovered locally) when a
	// chunk's backing file can no longer be read.
	ErrUnreadableSource = errors.New("source file unreadable")

	// ErrEmbedderUnavailable is returned when the embedder exhausts its
	// retry budget. Always surfaced to the caller.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrStoreUnavailable is returned when the store connection/SQL layer
	// fails in a way that is not a schema mismatch.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchemaMismatch is returned when a legacy table is missing a
	// column the engine expects and additive migration failed.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMalformedQuery is returned for an invalid glob or filter value.
	ErrMalformedQuery = errors.New("malformed query")

	// ErrSymbolFilterUnsupported is returned when a caller asks for
	// symbol-type or symbol-name filtering against an index whose chunk
	// table predates symbol columns.
	ErrSymbolFilterUnsupported = errors.New("re-index to enable symbol filtering")
)

// QueryError wraps ErrMalformedQuery with the offending input, so callers
// can report exactly what was rejected.
type QueryError struct {
	Input string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("malformed query %q: %v", e.Input, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError wraps a parse/compile failure for a specific glob or
// filter literal.
func NewQueryError(input string, err error) error {
	return &QueryError{Input: input, Err: fmt.Errorf("%w: %v", ErrMalformedQuery, err)}
}

// IndexError attaches the offending index name to ErrUnknownIndex.
type IndexError struct {
	Name string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownIndex.Error(), e.Name)
}

func (e *IndexError) Unwrap() error { return ErrUnknownIndex }

// NewUnknownIndexError reports a reference to a nonexistent index.
func NewUnknownIndexError(name string) error {
	return &IndexError{Name: name}
}
