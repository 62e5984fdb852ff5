package storage

import (
	"context"

	"github.com/poiesic/vecload/core"
)

// JobRepository provides operations for managing embedding job records.
// Implementations must be thread-safe and support concurrent access.
type JobRepository interface {
	// CreateJob stores a new job.
	// Generates a new ID from the sequence when job.Id is 0.
	// Sets InsertedAt and UpdatedAt.
	// Returns ErrDuplicateKey if a job with the same ID exists.
	CreateJob(ctx context.Context, job *core.EmbeddingJob) (*core.EmbeddingJob, error)

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.JobID) (*core.EmbeddingJob, error)

	// UpdateJob replaces an existing job.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, job *core.EmbeddingJob) (*core.EmbeddingJob, error)

	// SetJobStatus changes only the status (and failure reason) of a job.
	// Returns ErrNotFound if the job doesn't exist.
	SetJobStatus(ctx context.Context, id core.JobID, status core.JobStatus, reason string) (*core.EmbeddingJob, error)

	// JobStatus returns the status of a job.
	// Returns ErrNotFound if the job doesn't exist.
	JobStatus(ctx context.Context, id core.JobID) (core.JobStatus, error)

	// ListJobs returns all jobs ordered by ID.
	ListJobs(ctx context.Context) ([]*core.EmbeddingJob, error)

	// Close releases resources held by the repository.
	Close() error
}

// CheckpointRepository persists load progress so an interrupted load can
// continue from the next chunk.
type CheckpointRepository interface {
	// SaveCheckpoint persists the checkpoint for its (job, collection) pair.
	SaveCheckpoint(ctx context.Context, checkpoint *core.LoadCheckpoint) error

	// LoadCheckpoint retrieves the checkpoint for a job and collection.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, jobID core.JobID, collection string) (*core.LoadCheckpoint, error)

	// DeleteCheckpoint removes a checkpoint. Absence is not an error.
	DeleteCheckpoint(ctx context.Context, jobID core.JobID, collection string) error

	// DeleteCollectionCheckpoints removes every job's checkpoint for a
	// collection. Used when the collection is dropped and recreated.
	DeleteCollectionCheckpoints(ctx context.Context, collection string) error
}
