package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion, index and query layers. Callers match
// them with errors.Is.
var (
	// ErrInvalidConfig reports a bad engine configuration, such as a chunk
	// overlap that is not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyInput reports that a pipeline stage received nothing to process.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyContent reports that chunking produced no content to index.
	ErrEmptyContent = errors.New("no content to index")

	// ErrIndexNotFound reports that an index directory or its required
	// backing files are missing.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt reports that index backing files exist but fail to parse.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrEmbedderMismatch reports that an index was built with a different
	// embedder than the one supplied at load time.
	ErrEmbedderMismatch = errors.New("embedder mismatch")

	// ErrNoDocumentsLoaded reports that a query was made with indexing
	// disabled and no documents supplied.
	ErrNoDocumentsLoaded = errors.New("no documents loaded")

	// ErrIndexRequired reports an indexed-mode query without an index name.
	ErrIndexRequired = errors.New("index name required")

	// ErrUnsupportedProvider reports an unknown provider name.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// ProviderError wraps a failure from an embedding or generation provider,
// carrying the provider name alongside the original cause. Provider calls are
// not retried by the engine; the error propagates to the caller.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
