package entity

import "errors"

// Domain errors
var (
	// Ingestion errors
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document is empty")

	// Chunking errors
	ErrChunkOverflow = errors.New("chunk exceeds hard size cap after splitting")
	ErrDepthExceeded = errors.New("json nesting depth limit exceeded")

	// Source errors
	ErrSourceNotFound = errors.New("source not found")

	// Collaborator errors
	ErrEmbeddingFailure       = errors.New("embedding failed")
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	ErrGenerationUnavailable  = errors.New("generation engine unavailable")
	ErrGenerationTimeout      = errors.New("generation timed out")

	// Streaming errors
	ErrStreamAborted = errors.New("stream aborted")

	// Validation errors
	ErrMissingQuery = errors.New("query is required")
	ErrInvalidFile  = errors.New("invalid file")
)
