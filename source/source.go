// Package source defines the inputs of a load: a dense vector array and a
// row-aligned metadata table, both read lazily by row range.
package source

import (
	"context"

	"github.com/poiesic/vecload/core"
)

// VectorSource is a read-only 2-D float32 array.
type VectorSource interface {
	// Rows returns the number of vectors.
	Rows() int
	// Dim returns the length of each vector.
	Dim() int
	// Slice returns rows [start, end). The returned vectors may alias the
	// backing storage and must not be modified.
	Slice(start, end int) ([][]float32, error)
	Close() error
}

// Refresher is implemented by sources that can tell whether the data behind
// them was replaced after they were opened.
type Refresher interface {
	Stale() bool
}

// MetadataSource is a lazily scanned table aligned row-for-row with a VectorSource.
type MetadataSource interface {
	// NumRows counts the rows of the table.
	NumRows(ctx context.Context) (int, error)
	// Slice describes rows [offset, offset+length) without reading them.
	Slice(offset, length int) Frame
	Close() error
}

// Frame is an unmaterialized row range of a MetadataSource.
type Frame interface {
	// Collect reads the rows of the frame in order.
	Collect(ctx context.Context) ([]core.Payload, error)
}

// Opener resolves the sources of an embedding job.
type Opener interface {
	OpenVectors(ctx context.Context, jobID core.JobID) (VectorSource, error)
	OpenMetadata(ctx context.Context, jobID core.JobID) (MetadataSource, error)
}
