package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// CreateJob stores a new job, assigning an ID when job.Id is 0.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.EmbeddingJob) (*core.EmbeddingJob, error) {
	if job == nil {
		return nil, core.ErrInvalidJob
	}
	if job.Status == 0 {
		job.Status = core.JobStatusPending
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if job.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			job.Id = core.JobID(nextID)
		}
		if err := core.ValidateEmbeddingJob(job); err != nil {
			return err
		}

		key := makeJobKey(job.Id)
		existing, err := r.readJob(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: job %d", storage.ErrDuplicateKey, job.Id)
		}

		job.InsertedAt = time.Now().UTC()
		job.UpdatedAt = job.InsertedAt
		if err := r.writeJob(tx, key, job); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a single job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.JobID) (*core.EmbeddingJob, error) {
	var result *core.EmbeddingJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// UpdateJob replaces an existing job record.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.EmbeddingJob) (*core.EmbeddingJob, error) {
	if err := core.ValidateEmbeddingJob(job); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.Id)
		old, err := r.readJob(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: job %d", storage.ErrNotFound, job.Id)
		}

		job.InsertedAt = old.InsertedAt
		job.UpdatedAt = time.Now().UTC()
		if err := r.writeJob(tx, key, job); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// SetJobStatus changes a job's status. The reason is stored as the job's
// error for failed jobs and cleared otherwise.
func (r *JobRepository) SetJobStatus(ctx context.Context, id core.JobID, status core.JobStatus, reason string) (*core.EmbeddingJob, error) {
	if err := core.ValidateJobStatus(status); err != nil {
		return nil, err
	}

	var result *core.EmbeddingJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(id)
		job, err := r.readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
		}

		job.Status = status
		job.Error = ""
		if status == core.JobStatusFailed {
			job.Error = reason
		}
		job.UpdatedAt = time.Now().UTC()
		if err := r.writeJob(tx, key, job); err != nil {
			return err
		}
		result = job
		return tx.Commit()
	}, true)
	return result, err
}

// JobStatus returns the status of a job.
func (r *JobRepository) JobStatus(ctx context.Context, id core.JobID) (core.JobStatus, error) {
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return 0, err
	}
	return job.Status, nil
}

// ListJobs returns all jobs ordered by ID.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.EmbeddingJob, error) {
	var results []*core.EmbeddingJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var job *core.EmbeddingJob
			err := iter.Item().Value(func(val []byte) error {
				var err error
				job, err = storage.UnmarshalJob(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, job)
		}
		return nil
	}, false)
	return results, err
}

// readJob reads a job within a transaction.
// Returns nil, nil if the job doesn't exist.
func (r *JobRepository) readJob(tx *badger.Txn, key []byte) (*core.EmbeddingJob, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.EmbeddingJob
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		job, unmarshalErr = storage.UnmarshalJob(val)
		return unmarshalErr
	})
	return job, err
}

func (r *JobRepository) writeJob(tx *badger.Txn, key []byte, job *core.EmbeddingJob) error {
	return tx.Set(key, storage.MarshalJob(job))
}
