package embedjob

import (
	"errors"
	"time"
)

// Config holds configuration for an embedding run.
type Config struct {
	// BatchSize is the number of rows sent per embedding request
	BatchSize int

	// MaxConcurrent is the number of embedding requests in flight
	MaxConcurrent int

	// MaxRetries is the maximum number of attempts per embedding request
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ReportInterval is how often to report progress (number of rows)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		MaxConcurrent:  10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		ReportInterval: 1000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New("batch size must be greater than 0")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("max concurrent must be greater than 0")
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}
