package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	"github.com/poiesic/vecload/progress"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/storage"
)

// StatusGate reports the status of embedding jobs.
// storage.ErrNotFound means the job does not exist.
type StatusGate interface {
	JobStatus(ctx context.Context, id core.JobID) (core.JobStatus, error)
}

// LoadOptions controls a single LoadVectors call.
type LoadOptions struct {
	ChunkSize int  // Rows per chunk; Config.ChunkSize when 0
	Recreate  bool // Drop and recreate the collection, keeping its dimension
	Resume    bool // Continue after the last checkpointed chunk
}

// LoadResult describes the outcome of LoadVectors.
type LoadResult struct {
	JobID      core.JobID
	Collection string
	Skipped    bool  // The gate refused the job; nothing was written
	Reason     error // ErrJobNotReady when Skipped
	Status     core.JobStatus
	Total      int // Rows in the job's sources
	StartedAt  int // First uploaded row (non-zero when resumed)
	Chunks     int // Chunks uploaded by this call
	Uploaded   int // Points uploaded by this call
	Elapsed    time.Duration
}

// jobSources are the opened inputs of one job.
type jobSources struct {
	vectors  source.VectorSource
	metadata source.MetadataSource
}

// stale reports whether either source was replaced since it was opened.
func (s *jobSources) stale() bool {
	for _, src := range []any{s.vectors, s.metadata} {
		if r, ok := src.(source.Refresher); ok && r.Stale() {
			return true
		}
	}
	return false
}

func (s *jobSources) close() error {
	return errors.Join(s.vectors.Close(), s.metadata.Close())
}

// Loader moves job vectors into a search index in chunks.
type Loader struct {
	client      index.Client
	gate        StatusGate
	opener      source.Opener
	checkpoints storage.CheckpointRepository
	config      *Config
	logger      *slog.Logger
	progressOut io.Writer

	// mu serializes LoadVectors and guards handles.
	mu      sync.Mutex
	handles map[core.JobID]*jobSources
}

// Option configures a Loader.
type Option func(*Loader) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(l *Loader) error {
		if config == nil {
			return errors.New("config cannot be nil")
		}
		if err := config.Validate(); err != nil {
			return err
		}
		l.config = config
		return nil
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		l.logger = logger
		return nil
	}
}

// WithProgress reports per-chunk progress to w.
func WithProgress(w io.Writer) Option {
	return func(l *Loader) error {
		l.progressOut = w
		return nil
	}
}

// WithCheckpoints records the last uploaded chunk of each load so that
// LoadOptions.Resume can skip it.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(l *Loader) error {
		if repo == nil {
			return errors.New("checkpoint repository cannot be nil")
		}
		l.checkpoints = repo
		return nil
	}
}

// NewLoader creates a Loader.
func NewLoader(client index.Client, gate StatusGate, opener source.Opener, opts ...Option) (*Loader, error) {
	if client == nil {
		return nil, errors.New("index client cannot be nil")
	}
	if gate == nil {
		return nil, errors.New("status gate cannot be nil")
	}
	if opener == nil {
		return nil, errors.New("source opener cannot be nil")
	}

	l := &Loader{
		client:  client,
		gate:    gate,
		opener:  opener,
		config:  DefaultConfig(),
		logger:  slog.Default(),
		handles: make(map[core.JobID]*jobSources),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "loader")
	return l, nil
}

// CollectionConfig returns the configuration used for new collections:
// cosine distance, on-disk vectors, binary quantization kept in RAM and
// index construction disabled.
func (l *Loader) CollectionConfig(name string, dim int) core.CollectionConfig {
	return core.CollectionConfig{
		Name:           name,
		Dimension:      dim,
		Distance:       core.DistanceCosine,
		OnDiskVectors:  true,
		Quantization:   core.QuantizationConfig{Binary: true, AlwaysRAM: true},
		MaxSegmentSize: l.config.MaxSegmentSize,
		Index:          core.IndexParams{M: 0, OnDisk: false},
	}
}

// CreateCollection creates a collection with indexing disabled. When recreate
// is true an existing collection of that name is deleted first, along with
// the load checkpoints recorded against it. Without recreate, an existing
// collection makes the index client fail.
func (l *Loader) CreateCollection(ctx context.Context, name string, dim int, recreate bool) error {
	if recreate {
		if err := l.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
		l.logger.Info("removed collection", "collection", name)
		if l.checkpoints != nil {
			if err := l.checkpoints.DeleteCollectionCheckpoints(ctx, name); err != nil {
				return fmt.Errorf("delete checkpoints of %s: %w", name, err)
			}
		}
	}
	return l.client.CreateCollection(ctx, l.CollectionConfig(name, dim))
}

// LoadVectors uploads every vector of a completed job into collection.
//
// A job that is not COMPLETED (or does not exist) is skipped with a warning:
// the result has Skipped set, Reason is ErrJobNotReady and the error is nil.
func (l *Loader) LoadVectors(ctx context.Context, jobID core.JobID, collection string, opts LoadOptions) (*LoadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	started := time.Now()
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = l.config.ChunkSize
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}

	result := &LoadResult{JobID: jobID, Collection: collection}
	logger := l.logger.With("job", jobID, "collection", collection)

	// Gate
	ready, status, err := l.checkJobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	result.Status = status
	if !ready {
		logger.Warn("job is not completed, nothing loaded", "status", statusName(status))
		result.Skipped = true
		result.Reason = fmt.Errorf("%w: job %d is %s", ErrJobNotReady, jobID, statusName(status))
		return result, nil
	}

	// Recreate, keeping the dimension
	if opts.Recreate {
		info, err := l.client.GetCollection(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("recreate collection %s: %w", collection, err)
		}
		if err := l.CreateCollection(ctx, collection, info.Config.Dimension, true); err != nil {
			return nil, err
		}
	}

	// Resolve
	src, err := l.sources(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Validate
	total := src.vectors.Rows()
	records, err := src.metadata.NumRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("count metadata rows for job %d: %w", jobID, err)
	}
	if total != records {
		return nil, fmt.Errorf("%w: job %d has %d vectors but %d metadata records",
			ErrInconsistentData, jobID, total, records)
	}
	result.Total = total

	start, err := l.resumePoint(ctx, logger, jobID, collection, total, opts)
	if err != nil {
		return nil, err
	}
	result.StartedAt = start

	// Make sure nothing is indexed while chunks stream in
	if start < total {
		if err := l.disableIndexing(ctx, logger, collection); err != nil {
			return nil, err
		}
	}

	logger.Info("loading vectors",
		"total", total,
		"start", start,
		"chunk_size", chunkSize,
		"dimension", src.vectors.Dim())

	tracker := l.newTracker(total, chunkSize)
	tracker.Start(start)

	uploadOpts := index.UploadOptions{
		BatchSize:   l.config.UploadBatchSize,
		Parallelism: l.config.Parallelism,
	}
	for _, chunk := range planChunksFrom(start, total, chunkSize) {
		if err := ctx.Err(); err != nil {
			logger.Warn("load cancelled", "next_offset", chunk.Offset)
			return nil, err
		}

		if err := l.uploadChunk(ctx, src, collection, chunk, uploadOpts); err != nil {
			logger.Error("chunk upload failed, indexing left disabled", "range", chunk.String(), "err", err)
			return nil, fmt.Errorf("%w: job %d into %s rows %s: %w",
				ErrUploadFailure, jobID, collection, chunk, err)
		}

		result.Chunks++
		result.Uploaded += chunk.Len()
		tracker.Update(chunk.End)
		logger.Debug("chunk uploaded", "range", chunk.String())

		if err := l.saveCheckpoint(ctx, jobID, collection, chunk.End, total); err != nil {
			return nil, err
		}
	}
	if start < total {
		tracker.Finish()
	}

	// Build the index once over the full data set
	params := core.IndexParams{M: l.config.IndexM, OnDisk: l.config.IndexOnDisk}
	if err := l.client.UpdateCollection(ctx, collection, params); err != nil {
		return nil, fmt.Errorf("enable indexing on %s: %w", collection, err)
	}

	result.Elapsed = time.Since(started)
	logger.Info("vectors loaded",
		"uploaded", result.Uploaded,
		"chunks", result.Chunks,
		"elapsed", result.Elapsed)
	return result, nil
}

// Close releases cached source handles.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for id, src := range l.handles {
		if err := src.close(); err != nil {
			errs = append(errs, err)
		}
		delete(l.handles, id)
	}
	return errors.Join(errs...)
}

// checkJobStatus reports whether the job is COMPLETED.
// An absent job is not ready rather than an error.
func (l *Loader) checkJobStatus(ctx context.Context, jobID core.JobID) (bool, core.JobStatus, error) {
	status, err := l.gate.JobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("job %d status: %w", jobID, err)
	}
	return status == core.JobStatusCompleted, status, nil
}

// sources returns the job's opened sources, opening them on first use.
// Must be called with mu held.
func (l *Loader) sources(ctx context.Context, jobID core.JobID) (*jobSources, error) {
	if src, ok := l.handles[jobID]; ok {
		if !src.stale() {
			return src, nil
		}
		l.logger.Info("vector source changed, reopening", "job", jobID)
		if err := src.close(); err != nil {
			l.logger.Warn("failed to close stale sources", "job", jobID, "err", err)
		}
		delete(l.handles, jobID)
	}

	vectors, err := l.opener.OpenVectors(ctx, jobID)
	if err != nil {
		return nil, err
	}
	metadata, err := l.opener.OpenMetadata(ctx, jobID)
	if err != nil {
		vectors.Close()
		return nil, fmt.Errorf("open metadata for job %d: %w", jobID, err)
	}

	src := &jobSources{vectors: vectors, metadata: metadata}
	l.handles[jobID] = src
	return src, nil
}

// uploadChunk reads one row range from both sources and uploads it.
func (l *Loader) uploadChunk(ctx context.Context, src *jobSources, collection string, chunk core.ChunkRange, opts index.UploadOptions) error {
	vectors, err := src.vectors.Slice(chunk.Offset, chunk.End)
	if err != nil {
		return err
	}
	payloads, err := src.metadata.Slice(chunk.Offset, chunk.Len()).Collect(ctx)
	if err != nil {
		return err
	}
	if len(payloads) != len(vectors) {
		return fmt.Errorf("%w: %d vectors, %d metadata rows", ErrInconsistentData, len(vectors), len(payloads))
	}

	ids := make([]uint64, chunk.Len())
	for i := range ids {
		ids[i] = uint64(chunk.Offset + i)
	}

	batch := index.Batch{Ids: ids, Vectors: vectors, Payloads: payloads}
	return l.client.Upload(ctx, collection, batch, opts)
}

// disableIndexing turns index construction off when the collection has it on.
func (l *Loader) disableIndexing(ctx context.Context, logger *slog.Logger, collection string) error {
	info, err := l.client.GetCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("inspect collection %s: %w", collection, err)
	}
	if !info.Config.Index.Enabled() {
		return nil
	}
	logger.Info("disabling indexing for bulk load", "index_m", info.Config.Index.M)
	params := core.IndexParams{M: 0, OnDisk: info.Config.Index.OnDisk}
	if err := l.client.UpdateCollection(ctx, collection, params); err != nil {
		return fmt.Errorf("disable indexing on %s: %w", collection, err)
	}
	return nil
}

// resumePoint returns the first row to upload.
func (l *Loader) resumePoint(ctx context.Context, logger *slog.Logger, jobID core.JobID, collection string, total int, opts LoadOptions) (int, error) {
	if !opts.Resume || opts.Recreate || l.checkpoints == nil {
		return 0, nil
	}
	cp, err := l.checkpoints.LoadCheckpoint(ctx, jobID, collection)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return 0, nil
	}
	if cp.Total != total || cp.NextOffset < 0 || cp.NextOffset > total {
		logger.Warn("ignoring stale checkpoint",
			"checkpoint_total", cp.Total,
			"checkpoint_offset", cp.NextOffset,
			"total", total)
		return 0, nil
	}

	// Rows before the checkpoint must still be in the collection
	info, err := l.client.GetCollection(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("inspect collection %s: %w", collection, err)
	}
	if int64(cp.NextOffset) > info.PointCount {
		logger.Warn("collection holds fewer points than the checkpoint, starting over",
			"checkpoint_offset", cp.NextOffset,
			"points", info.PointCount)
		if err := l.deleteCheckpoint(ctx, jobID, collection); err != nil {
			return 0, err
		}
		return 0, nil
	}
	logger.Info("resuming load", "next_offset", cp.NextOffset)
	return cp.NextOffset, nil
}

func (l *Loader) saveCheckpoint(ctx context.Context, jobID core.JobID, collection string, next, total int) error {
	if l.checkpoints == nil {
		return nil
	}
	err := l.checkpoints.SaveCheckpoint(ctx, &core.LoadCheckpoint{
		JobID:      jobID,
		Collection: collection,
		NextOffset: next,
		Total:      total,
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (l *Loader) deleteCheckpoint(ctx context.Context, jobID core.JobID, collection string) error {
	if l.checkpoints == nil {
		return nil
	}
	if err := l.checkpoints.DeleteCheckpoint(ctx, jobID, collection); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (l *Loader) newTracker(total, chunkSize int) *progress.Tracker {
	if l.progressOut == nil {
		return nil
	}
	return progress.NewTracker(l.progressOut, "Loading", total, chunkSize).WithUnit("vectors")
}

func statusName(status core.JobStatus) string {
	if status == 0 {
		return "ABSENT"
	}
	return status.String()
}
