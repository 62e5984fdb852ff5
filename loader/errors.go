package loader

import (
	"errors"

	"github.com/poiesic/vecload/source"
)

var (
	// ErrJobNotReady is reported (not returned) when the job is not COMPLETED.
	ErrJobNotReady = errors.New("job not ready")

	// ErrInconsistentData indicates vector and metadata row counts differ.
	ErrInconsistentData = errors.New("inconsistent data")

	// ErrUploadFailure indicates the index rejected a chunk.
	ErrUploadFailure = errors.New("upload failure")

	// ErrInvalidChunkSize is returned for a chunk size <= 0.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrAmbiguousSource and ErrMissingSource are the source resolution errors.
	ErrAmbiguousSource = source.ErrAmbiguousSource
	ErrMissingSource   = source.ErrMissingSource
)
