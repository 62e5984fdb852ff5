package core

//go:generate go run ../cmd/musgen

import (
	"fmt"
	"strings"
	"time"
)

// JobID identifies an embedding job.
// Job directories on disk use the zero-padded decimal form (see JobID.Dir).
type JobID uint64

// Dir returns the directory name used for the job's artifacts, e.g. "0042".
func (id JobID) Dir() string {
	return fmt.Sprintf("%04d", uint64(id))
}

// JobStatus is the lifecycle state of an embedding job.
type JobStatus int

const (
	// JobStatusPending means the job was created but not started.
	JobStatusPending JobStatus = iota + 1
	// JobStatusRunning means embeddings are being computed.
	JobStatusRunning
	// JobStatusCompleted means the job's vector file is final.
	JobStatusCompleted
	// JobStatusFailed means the job stopped with an error.
	JobStatusFailed
)

var jobStatusNames = map[JobStatus]string{
	JobStatusPending:   "PENDING",
	JobStatusRunning:   "RUNNING",
	JobStatusCompleted: "COMPLETED",
	JobStatusFailed:    "FAILED",
}

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobStatus(%d)", int(s))
}

// ParseJobStatus converts a status name (case-insensitive) to a JobStatus.
func ParseJobStatus(name string) (JobStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for status, statusName := range jobStatusNames {
		if statusName == upper {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidJobStatus, name)
}

// EmbeddingJob is the persisted record of one embedding computation.
// The loader only reads Status; the embedding runner owns the rest.
type EmbeddingJob struct {
	Id           JobID
	Status       JobStatus
	Model        string
	MetadataPath string   // Tabular source the texts were read from
	TextColumns  []string // Columns joined into the embedded text
	Dimension    int      // Populated once the first embedding is known
	Rows         int64    // Populated when the job completes
	Error        string   // Failure reason when Status is JobStatusFailed
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// Payload is the metadata row attached to a point in the search index.
type Payload map[string]any

// ChunkRange is a half-open row range [Offset, End).
type ChunkRange struct {
	Offset int
	End    int
}

// Len returns the number of rows in the range.
func (r ChunkRange) Len() int {
	return r.End - r.Offset
}

func (r ChunkRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Offset, r.End)
}

// Distance is the similarity metric of a collection.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
	DistanceEuclid Distance = "Euclid"
)

// QuantizationConfig describes vector quantization for a collection.
type QuantizationConfig struct {
	Binary    bool // Binary quantization of stored vectors
	AlwaysRAM bool // Keep quantized vectors resident in memory
}

// IndexParams controls the graph index build.
// M == 0 disables index construction.
type IndexParams struct {
	M      int
	OnDisk bool
}

// Enabled reports whether the index engine should build its search structure.
func (p IndexParams) Enabled() bool {
	return p.M > 0
}

// CollectionConfig is the full configuration of a vector collection.
type CollectionConfig struct {
	Name           string
	Dimension      int
	Distance       Distance
	OnDiskVectors  bool
	Quantization   QuantizationConfig
	MaxSegmentSize int
	Index          IndexParams
}

// CollectionInfo is what the index reports about an existing collection.
type CollectionInfo struct {
	Config     CollectionConfig
	PointCount int64
}

// LoadCheckpoint records how far a load of a job into a collection got.
// NextOffset is the first row not yet uploaded; it equals Total once the
// load has finished.
type LoadCheckpoint struct {
	JobID      JobID
	Collection string
	NextOffset int
	Total      int
	UpdatedAt  time.Time
}

// Done reports whether every row has been uploaded.
func (c *LoadCheckpoint) Done() bool {
	return c.Total > 0 && c.NextOffset >= c.Total
}
