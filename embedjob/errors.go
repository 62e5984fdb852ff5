package embedjob

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrJobNotRunnable is returned when a job is neither PENDING nor FAILED.
	ErrJobNotRunnable = errors.New("job is not runnable")

	// ErrNoRows is returned when the metadata source is empty.
	ErrNoRows = errors.New("metadata source has no rows")

	// ErrNoTextColumns is returned when a job names no columns to embed.
	ErrNoTextColumns = errors.New("no text columns configured")

	// ErrEmbeddingMismatch indicates the embedder returned the wrong number
	// of vectors or vectors of inconsistent dimension.
	ErrEmbeddingMismatch = errors.New("embedding mismatch")
)
