package domain

import (
	"errors"
	"fmt"
)

// Initialization errors. They abort startup and are reported as a status line.
var (
	// ErrNoDataDirectory indicates the documents directory does not exist.
	ErrNoDataDirectory = errors.New("no data directory")

	// ErrEmptyCorpus indicates there were no documents to index.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrCorruptIndexStorage indicates persisted index state could not be decoded.
	ErrCorruptIndexStorage = errors.New("corrupt index storage")

	// ErrMissingCredentials indicates the generation/embedding credential is not set.
	ErrMissingCredentials = errors.New("missing credentials")
)

// ErrUnboundIndex is returned when an index is queried before providers are bound to it.
var ErrUnboundIndex = errors.New("index has no bound providers")

// ParseServiceError is a failure of the remote parsing service for a whole batch.
type ParseServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ParseServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("parse service: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("parse service: %s: %v", e.Op, e.Err)
}

func (e *ParseServiceError) Unwrap() error { return e.Err }

// ExtractionError is a failure to extract text from a single file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationProviderError wraps any failure of the generation provider.
type GenerationProviderError struct {
	Provider string
	Err      error
}

func (e *GenerationProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *GenerationProviderError) Unwrap() error { return e.Err }
