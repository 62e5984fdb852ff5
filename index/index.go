// Package index defines the search-index client used by the loader.
//
// A Client manages collections (create, delete, inspect, reconfigure) and
// uploads points. Points are addressed by caller-assigned integer ids, so
// uploading the same id twice overwrites rather than duplicates.
//
// Two implementations exist: index/badger embeds the index in a BadgerDB
// database and index/qdrant talks to a Qdrant server over gRPC.
package index

import (
	"context"
	"fmt"
	"runtime"

	"github.com/poiesic/vecload/core"
)

const (
	// DefaultBatchSize is the number of points per upload request.
	DefaultBatchSize = 256
)

// Client is a search-index client.
// Implementations must be safe for concurrent use.
type Client interface {
	// CreateCollection creates a collection.
	// Returns ErrCollectionExists if the name is taken.
	CreateCollection(ctx context.Context, cfg core.CollectionConfig) error

	// DeleteCollection removes a collection and its points.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// GetCollection describes a collection.
	// Returns ErrCollectionNotFound if it doesn't exist.
	GetCollection(ctx context.Context, name string) (*core.CollectionInfo, error)

	// UpdateCollection changes the index build parameters of a collection.
	UpdateCollection(ctx context.Context, name string, params core.IndexParams) error

	// Upload writes points, splitting them into requests of opts.BatchSize
	// sent with at most opts.Parallelism in flight. Upload order is unspecified.
	Upload(ctx context.Context, name string, batch Batch, opts UploadOptions) error

	// Close releases resources held by the client.
	Close() error
}

// Batch is a set of points sharing one upload call.
// Ids, Vectors and Payloads are aligned by position. Payloads may be nil.
type Batch struct {
	Ids      []uint64
	Vectors  [][]float32
	Payloads []core.Payload
}

// Len returns the number of points in the batch.
func (b Batch) Len() int {
	return len(b.Ids)
}

// Validate checks alignment and, when dim > 0, every vector's length.
func (b Batch) Validate(dim int) error {
	if len(b.Vectors) != len(b.Ids) {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrInvalidBatch, len(b.Ids), len(b.Vectors))
	}
	if b.Payloads != nil && len(b.Payloads) != len(b.Ids) {
		return fmt.Errorf("%w: %d ids, %d payloads", ErrInvalidBatch, len(b.Ids), len(b.Payloads))
	}
	if dim > 0 {
		for i, vec := range b.Vectors {
			if len(vec) != dim {
				return fmt.Errorf("%w: point %d has %d values, collection has %d",
					ErrDimensionMismatch, b.Ids[i], len(vec), dim)
			}
		}
	}
	return nil
}

// Payload returns the payload of the i-th point, or nil.
func (b Batch) Payload(i int) core.Payload {
	if b.Payloads == nil {
		return nil
	}
	return b.Payloads[i]
}

// Split cuts the batch into consecutive sub-batches of at most size points.
// Sub-batches share the backing arrays of b.
func (b Batch) Split(size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	parts := make([]Batch, 0, (b.Len()+size-1)/size)
	for start := 0; start < b.Len(); start += size {
		end := min(start+size, b.Len())
		part := Batch{
			Ids:     b.Ids[start:end],
			Vectors: b.Vectors[start:end],
		}
		if b.Payloads != nil {
			part.Payloads = b.Payloads[start:end]
		}
		parts = append(parts, part)
	}
	return parts
}

// UploadOptions controls how Upload fans out.
type UploadOptions struct {
	BatchSize   int // Points per request; DefaultBatchSize when <= 0
	Parallelism int // Requests in flight; runtime.NumCPU() when <= 0
}

// Normalize fills zero values with defaults.
func (o UploadOptions) Normalize() UploadOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	return o
}

// ScoredPoint is one search hit.
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload core.Payload
}

// Searcher is implemented by clients that can run nearest-neighbour queries.
type Searcher interface {
	// Search returns up to limit points closest to vector, best first.
	Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error)
}
