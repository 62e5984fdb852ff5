package ratelimit

import "errors"

var (
	// ErrInvalidRequest is returned when an amount can never be satisfied
	// (amount <= 0 or amount > max rate). It is never retried.
	ErrInvalidRequest = errors.New("invalid rate limit request")

	// ErrInvalidRate is returned when the max rate is not positive.
	ErrInvalidRate = errors.New("max rate must be greater than 0")

	// ErrInvalidPeriod is returned when the time period is not positive.
	ErrInvalidPeriod = errors.New("time period must be greater than 0")

	// ErrStoreFailed is returned when the window store cannot be reached.
	ErrStoreFailed = errors.New("window store operation failed")
)
