package index

import "errors"

var (
	// ErrCollectionNotFound indicates the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates a create for a name that is already taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidBatch indicates ids, vectors and payloads that are not aligned.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrRequestFailed indicates the index engine rejected a request.
	ErrRequestFailed = errors.New("index request failed")
)
