package source

import "errors"

var (
	// ErrMissingSource indicates no vector file exists for a job.
	ErrMissingSource = errors.New("missing vector source")

	// ErrAmbiguousSource indicates more than one candidate vector file for a job.
	ErrAmbiguousSource = errors.New("ambiguous vector source")

	// ErrOutOfRange indicates a row range outside the source.
	ErrOutOfRange = errors.New("row range out of bounds")
)
