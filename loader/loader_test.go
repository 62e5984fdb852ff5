package loader

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	"github.com/poiesic/vecload/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJob        = core.JobID(7)
	testCollection = "papers"
	testDim        = 4
)

type testEnv struct {
	index  *fakeIndex
	gate   fakeGate
	opener *fakeOpener
	loader *Loader
}

func newTestEnv(t *testing.T, vectors, records int, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		index: newFakeIndex(),
		gate:  fakeGate{testJob: core.JobStatusCompleted},
		opener: &fakeOpener{
			vectors:  &fakeVectors{rows: vectors, dim: testDim},
			metadata: &fakeMetadata{rows: records},
		},
	}
	config := DefaultConfig()
	config.Parallelism = 2
	opts = append([]Option{WithConfig(config)}, opts...)

	l, err := NewLoader(env.index, env.gate, env.opener, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	env.loader = l

	require.NoError(t, l.CreateCollection(context.Background(), testCollection, testDim, false))
	return env
}

func (e *testEnv) pointCount(t *testing.T) int64 {
	t.Helper()
	info, err := e.index.GetCollection(context.Background(), testCollection)
	require.NoError(t, err)
	return info.PointCount
}

func (e *testEnv) indexParams(t *testing.T) core.IndexParams {
	t.Helper()
	info, err := e.index.GetCollection(context.Background(), testCollection)
	require.NoError(t, err)
	return info.Config.Index
}

func TestNewLoader_RequiresCollaborators(t *testing.T) {
	_, err := NewLoader(nil, fakeGate{}, &fakeOpener{})
	assert.Error(t, err)
	_, err = NewLoader(newFakeIndex(), nil, &fakeOpener{})
	assert.Error(t, err)
	_, err = NewLoader(newFakeIndex(), fakeGate{}, nil)
	assert.Error(t, err)

	_, err = NewLoader(newFakeIndex(), fakeGate{}, &fakeOpener{}, WithConfig(&Config{}))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestCreateCollection_Config(t *testing.T) {
	env := newTestEnv(t, 10, 10)

	info, err := env.index.GetCollection(context.Background(), testCollection)
	require.NoError(t, err)
	cfg := info.Config
	assert.Equal(t, testDim, cfg.Dimension)
	assert.Equal(t, core.DistanceCosine, cfg.Distance)
	assert.True(t, cfg.OnDiskVectors)
	assert.Equal(t, core.QuantizationConfig{Binary: true, AlwaysRAM: true}, cfg.Quantization)
	assert.Equal(t, DefaultMaxSegmentSize, cfg.MaxSegmentSize)
	assert.Equal(t, core.IndexParams{M: 0, OnDisk: false}, cfg.Index)
}

func TestCreateCollection_DuplicateWithoutRecreate(t *testing.T) {
	env := newTestEnv(t, 10, 10)

	err := env.loader.CreateCollection(context.Background(), testCollection, testDim, false)
	assert.ErrorIs(t, err, index.ErrCollectionExists)

	// Recreate deletes first, and deleting a missing collection is fine
	require.NoError(t, env.loader.CreateCollection(context.Background(), testCollection, testDim, true))
	require.NoError(t, env.loader.CreateCollection(context.Background(), "other", 8, true))
}

func TestLoadVectors_ChunksInOrder(t *testing.T) {
	env := newTestEnv(t, 25000, 25000)

	res, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{ChunkSize: 10000})
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 25000, res.Total)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 25000, res.Uploaded)
	assert.Equal(t, int64(25000), env.pointCount(t))

	assert.Equal(t, []string{
		"create",
		"upload [0,10000)",
		"upload [10000,20000)",
		"upload [20000,25000)",
		"update m=16",
	}, env.index.callLog())
}

func TestLoadVectors_InconsistentData(t *testing.T) {
	env := newTestEnv(t, 1000, 999)

	res, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInconsistentData)
	assert.Contains(t, err.Error(), "1000")
	assert.Contains(t, err.Error(), "999")
	assert.Zero(t, env.index.uploadCount(), "no upload before validation")
	assert.False(t, env.indexParams(t).Enabled())
}

func TestLoadVectors_JobNotReady(t *testing.T) {
	for _, status := range []core.JobStatus{core.JobStatusPending, core.JobStatusRunning, core.JobStatusFailed} {
		t.Run(status.String(), func(t *testing.T) {
			env := newTestEnv(t, 100, 100)
			env.gate[testJob] = status

			res, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{})
			require.NoError(t, err)
			assert.True(t, res.Skipped)
			assert.ErrorIs(t, res.Reason, ErrJobNotReady)
			assert.Equal(t, status, res.Status)
			assert.Zero(t, env.index.uploadCount())
			assert.Zero(t, env.opener.opens, "sources are not opened")
		})
	}
}

func TestLoadVectors_AbsentJob(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	res, err := env.loader.LoadVectors(context.Background(), core.JobID(404), testCollection, LoadOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.ErrorIs(t, res.Reason, ErrJobNotReady)
	assert.Zero(t, env.index.uploadCount())
}

func TestLoadVectors_RerunIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 2500, 2500)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 1000})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2500), env.pointCount(t))
	assert.Equal(t, 1, env.opener.opens, "sources are opened once and reused")
}

func TestLoadVectors_FailureLeavesIndexingDisabled(t *testing.T) {
	env := newTestEnv(t, 25000, 25000)
	env.index.failUpload = 2

	res, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{ChunkSize: 10000})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUploadFailure)
	assert.ErrorIs(t, err, errIndexDown)
	assert.Contains(t, err.Error(), "[10000,20000)")

	assert.False(t, env.indexParams(t).Enabled())
	assert.Equal(t, int64(10000), env.pointCount(t), "earlier chunks stay")
	assert.NotContains(t, env.index.callLog(), "update m=16")
	assert.Equal(t, 2, env.index.uploadCount(), "no chunk after the failure")

	// A second run succeeds and enables indexing only at the end
	env.index.failUpload = 0
	_, err = env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{ChunkSize: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), env.pointCount(t))
	assert.True(t, env.indexParams(t).Enabled())

	calls := env.index.callLog()
	assert.Equal(t, "update m=16", calls[len(calls)-1])
}

func TestLoadVectors_DisablesEnabledIndexBeforeUpload(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	ctx := context.Background()
	require.NoError(t, env.index.UpdateCollection(ctx, testCollection, core.IndexParams{M: 16}))

	_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 50})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create",
		"update m=16",
		"update m=0",
		"upload [0,50)",
		"upload [50,100)",
		"update m=16",
	}, env.index.callLog())
}

func TestLoadVectors_RecreateKeepsDimension(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	ctx := context.Background()

	_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	require.True(t, env.indexParams(t).Enabled())

	env.opener.vectors.rows = 60
	env.opener.metadata.rows = 60
	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{Recreate: true})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Uploaded)

	info, err := env.index.GetCollection(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, testDim, info.Config.Dimension)
	assert.Equal(t, int64(60), info.PointCount, "old points are gone")
	assert.True(t, info.Config.Index.Enabled())
}

func TestLoadVectors_RecreateMissingCollection(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	_, err := env.loader.LoadVectors(context.Background(), testJob, "missing", LoadOptions{Recreate: true})
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)
	assert.Zero(t, env.index.uploadCount())
}

func TestLoadVectors_MissingCollection(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	_, err := env.loader.LoadVectors(context.Background(), testJob, "missing", LoadOptions{})
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)
	assert.Zero(t, env.index.uploadCount())
}

func TestLoadVectors_SourceErrors(t *testing.T) {
	for _, sourceErr := range []error{source.ErrMissingSource, source.ErrAmbiguousSource} {
		env := newTestEnv(t, 100, 100)
		env.opener.err = sourceErr

		_, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{})
		assert.ErrorIs(t, err, sourceErr)
		assert.Zero(t, env.index.uploadCount())
	}
	assert.True(t, errors.Is(ErrMissingSource, source.ErrMissingSource))
}

func TestLoadVectors_InvalidChunkSize(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	_, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{ChunkSize: -1})
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestLoadVectors_EmptySource(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	res, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Zero(t, env.index.uploadCount())
}

// cancellingIndex cancels the load's context during the first upload.
type cancellingIndex struct {
	*fakeIndex
	cancel context.CancelFunc
}

func (c *cancellingIndex) Upload(ctx context.Context, name string, batch index.Batch, opts index.UploadOptions) error {
	err := c.fakeIndex.Upload(ctx, name, batch, opts)
	c.cancel()
	return err
}

func TestLoadVectors_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := &cancellingIndex{fakeIndex: newFakeIndex(), cancel: cancel}
	opener := &fakeOpener{vectors: &fakeVectors{rows: 30, dim: testDim}, metadata: &fakeMetadata{rows: 30}}
	l, err := NewLoader(idx, fakeGate{testJob: core.JobStatusCompleted}, opener)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.CreateCollection(ctx, testCollection, testDim, false))

	_, err = l.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, idx.uploadCount())

	info, err := idx.GetCollection(context.Background(), testCollection)
	require.NoError(t, err)
	assert.False(t, info.Config.Index.Enabled())
}

func TestLoadVectors_ResumeFromCheckpoint(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	env := newTestEnv(t, 25000, 25000, WithCheckpoints(checkpoints))
	env.index.failUpload = 3
	ctx := context.Background()

	_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 10000})
	require.ErrorIs(t, err, ErrUploadFailure)

	cp, err := checkpoints.LoadCheckpoint(ctx, testJob, testCollection)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 20000, cp.NextOffset)

	env.index.failUpload = 0
	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 10000, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 20000, res.StartedAt)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 5000, res.Uploaded)
	assert.Equal(t, int64(25000), env.pointCount(t))
	assert.True(t, env.indexParams(t).Enabled())

	cp, err = checkpoints.LoadCheckpoint(ctx, testJob, testCollection)
	require.NoError(t, err)
	assert.True(t, cp.Done())

	// A finished load resumes to a no-op that still ensures indexing
	uploads := env.index.uploadCount()
	res, err = env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 10000, Resume: true})
	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
	assert.Equal(t, uploads, env.index.uploadCount())
}

func TestLoadVectors_StaleCheckpointIgnored(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	env := newTestEnv(t, 100, 100, WithCheckpoints(checkpoints))
	ctx := context.Background()

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.LoadCheckpoint{
		JobID: testJob, Collection: testCollection, NextOffset: 50, Total: 80,
	}))

	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{Resume: true})
	require.NoError(t, err)
	assert.Zero(t, res.StartedAt)
	assert.Equal(t, 100, res.Uploaded)
}

func TestLoadVectors_ResumeAfterCollectionRecreated(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	env := newTestEnv(t, 300, 300, WithCheckpoints(checkpoints))
	ctx := context.Background()

	_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 100})
	require.NoError(t, err)
	require.Equal(t, int64(300), env.pointCount(t))

	require.NoError(t, env.loader.CreateCollection(ctx, testCollection, testDim, true))
	cp, err := checkpoints.LoadCheckpoint(ctx, testJob, testCollection)
	require.NoError(t, err)
	assert.Nil(t, cp, "recreating a collection drops its checkpoints")

	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 100, Resume: true})
	require.NoError(t, err)
	assert.Zero(t, res.StartedAt)
	assert.Equal(t, 300, res.Uploaded)
	assert.Equal(t, int64(300), env.pointCount(t))
	assert.True(t, env.indexParams(t).Enabled())
}

func TestLoadVectors_ResumeBeyondCollectionPoints(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	env := newTestEnv(t, 300, 300, WithCheckpoints(checkpoints))
	ctx := context.Background()

	_, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 100})
	require.NoError(t, err)

	// The collection is dropped behind the loader's back
	require.NoError(t, env.index.DeleteCollection(ctx, testCollection))
	require.NoError(t, env.index.CreateCollection(ctx, env.loader.CollectionConfig(testCollection, testDim)))

	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{ChunkSize: 100, Resume: true})
	require.NoError(t, err)
	assert.Zero(t, res.StartedAt)
	assert.Equal(t, 300, res.Uploaded)
	assert.Equal(t, int64(300), env.pointCount(t))

	cp, err := checkpoints.LoadCheckpoint(ctx, testJob, testCollection)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Done())
}

func TestLoadVectors_Progress(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, 300, 300, WithProgress(&buf))

	_, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{ChunkSize: 100})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Loading: 300/300")
}

func TestLoader_CloseReleasesSources(t *testing.T) {
	env := newTestEnv(t, 10, 10)

	_, err := env.loader.LoadVectors(context.Background(), testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	require.NoError(t, env.loader.Close())

	assert.True(t, env.opener.vectors.closed)
	assert.True(t, env.opener.metadata.closed)
}

func TestLoader_ReopensReplacedSources(t *testing.T) {
	env := newTestEnv(t, 10, 10)
	ctx := context.Background()

	res, err := env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)

	// Cached handles are reused while the file is unchanged
	_, err = env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, env.opener.opens)

	// The job is re-run and its vector file rewritten with more rows
	old := env.opener.vectors
	old.stale = true
	env.opener.vectors = &fakeVectors{rows: 20, dim: testDim}
	env.opener.metadata.rows = 20

	res, err = env.loader.LoadVectors(ctx, testJob, testCollection, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Total)
	assert.Equal(t, 2, env.opener.opens)
	assert.True(t, old.closed)
	assert.Equal(t, int64(20), env.pointCount(t))
}
