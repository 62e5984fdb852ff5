package loader

import (
	"errors"
	"runtime"
)

const (
	DefaultChunkSize       = 10_000
	DefaultUploadBatchSize = 256
	DefaultMaxSegmentSize  = 60_000
	DefaultIndexM          = 16
)

// Config holds the loader's collection and upload settings.
type Config struct {
	ChunkSize       int  // Rows per chunk when LoadOptions.ChunkSize is 0
	UploadBatchSize int  // Points per index request
	Parallelism     int  // Index requests in flight within a chunk
	MaxSegmentSize  int  // Segment size hint for new collections
	IndexM          int  // Graph degree restored after a load
	IndexOnDisk     bool // Keep the built index on disk
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:       DefaultChunkSize,
		UploadBatchSize: DefaultUploadBatchSize,
		Parallelism:     runtime.NumCPU(),
		MaxSegmentSize:  DefaultMaxSegmentSize,
		IndexM:          DefaultIndexM,
		IndexOnDisk:     false,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.UploadBatchSize <= 0 {
		return errors.New("upload batch size must be greater than 0")
	}
	if c.Parallelism <= 0 {
		return errors.New("parallelism must be greater than 0")
	}
	if c.IndexM <= 0 {
		return errors.New("index m must be greater than 0")
	}
	return nil
}
