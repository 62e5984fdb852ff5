package embedjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vecload/ai"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/progress"
	"github.com/poiesic/vecload/ratelimit"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/source/npy"
	"github.com/poiesic/vecload/storage"
)

// RunResult describes a completed embedding run.
type RunResult struct {
	JobID     core.JobID
	Path      string // Vector file written
	Rows      int
	Dimension int
	Requests  int // Embedding requests that succeeded
	Elapsed   time.Duration
}

// Runner computes the embeddings of a job and writes them to the job's
// vector file, tracking the job's lifecycle in the job repository.
type Runner struct {
	jobs        storage.JobRepository
	embedder    ai.Embedder
	layout      source.Layout
	requests    *ratelimit.Limiter
	tokens      *ratelimit.Limiter
	config      *Config
	logger      *slog.Logger
	progressOut io.Writer
}

// Option configures a Runner.
type Option func(*Runner) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(r *Runner) error {
		if config == nil {
			return errors.New("config cannot be nil")
		}
		if err := config.Validate(); err != nil {
			return err
		}
		r.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithProgress reports progress to w (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(r *Runner) error {
		r.progressOut = w
		return nil
	}
}

// WithRequestLimiter limits embedding requests; each request acquires 1.
func WithRequestLimiter(limiter *ratelimit.Limiter) Option {
	return func(r *Runner) error {
		r.requests = limiter
		return nil
	}
}

// WithTokenLimiter limits estimated tokens sent to the embedding service.
func WithTokenLimiter(limiter *ratelimit.Limiter) Option {
	return func(r *Runner) error {
		r.tokens = limiter
		return nil
	}
}

// NewRunner creates a runner writing vector files under layout.
func NewRunner(jobs storage.JobRepository, embedder ai.Embedder, layout source.Layout, opts ...Option) (*Runner, error) {
	if jobs == nil {
		return nil, errors.New("job repository cannot be nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}

	r := &Runner{
		jobs:     jobs,
		embedder: embedder,
		layout:   layout,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "embedjob")
	return r, nil
}

// CreateJob records a new PENDING job embedding columns of the table at metadataPath.
func (r *Runner) CreateJob(ctx context.Context, model, metadataPath string, columns []string) (*core.EmbeddingJob, error) {
	if len(columns) == 0 {
		return nil, ErrNoTextColumns
	}
	job, err := r.jobs.CreateJob(ctx, &core.EmbeddingJob{
		Status:       core.JobStatusPending,
		Model:        model,
		MetadataPath: metadataPath,
		TextColumns:  columns,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("job created", "job", job.Id, "model", model, "columns", columns)
	return job, nil
}

// Run embeds every row of metadata for the job and marks it COMPLETED.
// Only PENDING and FAILED jobs can run. On error the job is marked FAILED
// with the error as its reason and no vector file is left behind.
func (r *Runner) Run(ctx context.Context, jobID core.JobID, metadata source.MetadataSource) (*RunResult, error) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != core.JobStatusPending && job.Status != core.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %d is %s", ErrJobNotRunnable, jobID, job.Status)
	}
	if len(job.TextColumns) == 0 {
		return nil, fmt.Errorf("%w: job %d", ErrNoTextColumns, jobID)
	}

	if _, err := r.jobs.SetJobStatus(ctx, jobID, core.JobStatusRunning, ""); err != nil {
		return nil, err
	}

	result, runErr := r.run(ctx, job, metadata)
	if runErr != nil {
		r.logger.Error("embedding job failed", "job", jobID, "err", runErr)
		if _, err := r.jobs.SetJobStatus(context.WithoutCancel(ctx), jobID, core.JobStatusFailed, runErr.Error()); err != nil {
			r.logger.Error("failed to record job failure", "job", jobID, "err", err)
		}
		return nil, runErr
	}

	job.Status = core.JobStatusCompleted
	job.Rows = int64(result.Rows)
	job.Dimension = result.Dimension
	job.Error = ""
	if _, err := r.jobs.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("embedding job completed",
		"job", jobID,
		"rows", result.Rows,
		"dim", result.Dimension,
		"requests", result.Requests,
		"elapsed", result.Elapsed)
	return result, nil
}

func (r *Runner) run(ctx context.Context, job *core.EmbeddingJob, metadata source.MetadataSource) (*RunResult, error) {
	start := time.Now()
	logger := r.logger.With("job", job.Id)

	total, err := metadata.NumRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count metadata rows: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: job %d", ErrNoRows, job.Id)
	}

	// The first batch runs alone: its vectors fix the file's dimension.
	first := core.ChunkRange{Offset: 0, End: min(r.config.BatchSize, total)}
	texts, err := r.readTexts(ctx, metadata, first, job.TextColumns)
	if err != nil {
		return nil, err
	}
	vectors, err := r.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("rows %s: %w", first, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: rows %s: no vectors returned", ErrEmbeddingMismatch, first)
	}
	dim := len(vectors[0])
	if err := checkVectors(vectors, len(texts), dim); err != nil {
		return nil, fmt.Errorf("rows %s: %w", first, err)
	}

	path := r.layout.NewVectorPath(job.Id)
	writer, err := npy.Create(path, total, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector file: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			writer.Close()
			os.Remove(path)
		}
	}()
	if err := writer.WriteRows(first.Offset, vectors); err != nil {
		return nil, err
	}

	logger.Info("embedding rows", "rows", total, "dim", dim, "path", path,
		"batch_size", r.config.BatchSize, "concurrency", r.config.MaxConcurrent)

	var tracker *progress.Tracker
	if r.progressOut != nil {
		tracker = progress.NewTracker(r.progressOut, fmt.Sprintf("Job %d", job.Id), total, r.config.ReportInterval).WithUnit("rows")
		tracker.Start(0)
		tracker.Update(first.Len())
	}

	requests, err := r.dispatch(ctx, metadata, job.TextColumns, first.End, total, dim, writer, tracker)
	if err != nil {
		return nil, err
	}
	tracker.Finish()

	closed = true
	if err := writer.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close vector file: %w", err)
	}

	return &RunResult{
		JobID:     job.Id,
		Path:      path,
		Rows:      total,
		Dimension: dim,
		Requests:  requests + 1,
		Elapsed:   time.Since(start),
	}, nil
}

// dispatch embeds rows [from, total) on a worker pool. Batches are read in
// order and written at their row offsets, so the file keeps the metadata order.
// The first failure cancels the remaining batches.
func (r *Runner) dispatch(
	ctx context.Context,
	metadata source.MetadataSource,
	columns []string,
	from, total, dim int,
	writer *npy.Writer,
	tracker *progress.Tracker,
) (int, error) {
	if from >= total {
		return 0, nil
	}

	pool, err := ants.NewPool(r.config.MaxConcurrent)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg       sync.WaitGroup
		requests atomic.Int64
	)
	for offset := from; offset < total; offset += r.config.BatchSize {
		if ctx.Err() != nil {
			break
		}
		rng := core.ChunkRange{Offset: offset, End: min(offset+r.config.BatchSize, total)}

		texts, err := r.readTexts(ctx, metadata, rng, columns)
		if err != nil {
			cancel(err)
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			vectors, err := r.embed(ctx, texts)
			if err == nil {
				err = checkVectors(vectors, len(texts), dim)
			}
			if err == nil {
				err = writer.WriteRows(rng.Offset, vectors)
			}
			if err != nil {
				cancel(fmt.Errorf("rows %s: %w", rng, err))
				return
			}
			requests.Add(1)
			tracker.Increment(rng.Len())
		})
		if submitErr != nil {
			wg.Done()
			cancel(submitErr)
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return int(requests.Load()), err
	}
	return int(requests.Load()), nil
}

// readTexts materializes a row range and joins its text columns.
func (r *Runner) readTexts(ctx context.Context, metadata source.MetadataSource, rng core.ChunkRange, columns []string) ([]string, error) {
	rows, err := metadata.Slice(rng.Offset, rng.Len()).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata rows %s: %w", rng, err)
	}
	if len(rows) != rng.Len() {
		return nil, fmt.Errorf("metadata rows %s: got %d rows", rng, len(rows))
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = JoinColumns(row, columns)
	}
	return texts, nil
}

// embed sends one rate-limited, retried embedding request.
func (r *Runner) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if r.requests != nil {
		if err := r.requests.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if r.tokens != nil {
		// Oversized estimates would never fit a window.
		tokens := min(EstimateTokens(texts), r.tokens.MaxRate())
		if err := r.tokens.Acquire(ctx, tokens); err != nil {
			return nil, err
		}
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}
	return vectors, nil
}

func checkVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingMismatch, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingMismatch, i, len(v), dim)
		}
	}
	return nil
}
