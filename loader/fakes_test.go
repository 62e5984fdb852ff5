package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/storage"
)

var errIndexDown = errors.New("index unavailable")

// fakeGate serves job statuses from a map. Missing jobs are not found.
type fakeGate map[core.JobID]core.JobStatus

func (g fakeGate) JobStatus(ctx context.Context, id core.JobID) (core.JobStatus, error) {
	status, ok := g[id]
	if !ok {
		return 0, fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
	}
	return status, nil
}

type fakeCollection struct {
	config core.CollectionConfig
	points map[uint64]core.Payload
}

// fakeIndex is an in-memory index.Client that logs every call.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	calls       []string
	uploads     int
	failUpload  int // 1-based upload call that fails; 0 never fails
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{collections: make(map[string]*fakeCollection)}
}

func (f *fakeIndex) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeIndex) CreateCollection(ctx context.Context, cfg core.CollectionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if _, ok := f.collections[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", index.ErrCollectionExists, cfg.Name)
	}
	f.collections[cfg.Name] = &fakeCollection{config: cfg, points: make(map[uint64]core.Payload)}
	return nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	delete(f.collections, name)
	return nil
}

func (f *fakeIndex) GetCollection(ctx context.Context, name string) (*core.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	return &core.CollectionInfo{Config: c.config, PointCount: int64(len(c.points))}, nil
}

func (f *fakeIndex) UpdateCollection(ctx context.Context, name string, params core.IndexParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	f.record(fmt.Sprintf("update m=%d", params.M))
	c.config.Index = params
	return nil
}

func (f *fakeIndex) Upload(ctx context.Context, name string, batch index.Batch, opts index.UploadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.record(fmt.Sprintf("upload [%d,%d)", batch.Ids[0], batch.Ids[len(batch.Ids)-1]+1))
	if f.failUpload == f.uploads {
		return errIndexDown
	}
	c, ok := f.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	if err := batch.Validate(c.config.Dimension); err != nil {
		return err
	}
	for i, id := range batch.Ids {
		c.points[id] = batch.Payload(i)
	}
	return nil
}

func (f *fakeIndex) Close() error { return nil }

func (f *fakeIndex) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func (f *fakeIndex) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeVectors is a generated rows x dim matrix.
type fakeVectors struct {
	rows, dim int
	closed    bool
	stale     bool
}

func (v *fakeVectors) Stale() bool { return v.stale }

func (v *fakeVectors) Rows() int { return v.rows }
func (v *fakeVectors) Dim() int  { return v.dim }

func (v *fakeVectors) Slice(start, end int) ([][]float32, error) {
	if start < 0 || end > v.rows || start > end {
		return nil, source.ErrOutOfRange
	}
	out := make([][]float32, end-start)
	for i := range out {
		out[i] = make([]float32, v.dim)
		out[i][0] = float32(start + i)
	}
	return out, nil
}

func (v *fakeVectors) Close() error {
	v.closed = true
	return nil
}

// fakeMetadata is a generated table with a single row column.
type fakeMetadata struct {
	rows   int
	closed bool
}

func (m *fakeMetadata) NumRows(ctx context.Context) (int, error) { return m.rows, nil }

func (m *fakeMetadata) Slice(offset, length int) source.Frame {
	return fakeFrame{m: m, offset: offset, length: length}
}

func (m *fakeMetadata) Close() error {
	m.closed = true
	return nil
}

type fakeFrame struct {
	m              *fakeMetadata
	offset, length int
}

func (f fakeFrame) Collect(ctx context.Context) ([]core.Payload, error) {
	end := min(f.offset+f.length, f.m.rows)
	out := make([]core.Payload, 0, f.length)
	for i := f.offset; i < end; i++ {
		out = append(out, core.Payload{"row": i})
	}
	return out, nil
}

// fakeOpener hands out the same sources for every job and counts opens.
type fakeOpener struct {
	vectors  *fakeVectors
	metadata *fakeMetadata
	opens    int
	err      error
}

func (o *fakeOpener) OpenVectors(ctx context.Context, jobID core.JobID) (source.VectorSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opens++
	return o.vectors, nil
}

func (o *fakeOpener) OpenMetadata(ctx context.Context, jobID core.JobID) (source.MetadataSource, error) {
	return o.metadata, nil
}

// memoryCheckpoints is an in-memory storage.CheckpointRepository.
type memoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string]core.LoadCheckpoint
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{saved: make(map[string]core.LoadCheckpoint)}
}

func checkpointKey(jobID core.JobID, collection string) string {
	return fmt.Sprintf("%d/%s", jobID, collection)
}

func (m *memoryCheckpoints) SaveCheckpoint(ctx context.Context, cp *core.LoadCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[checkpointKey(cp.JobID, cp.Collection)] = *cp
	return nil
}

func (m *memoryCheckpoints) LoadCheckpoint(ctx context.Context, jobID core.JobID, collection string) (*core.LoadCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.saved[checkpointKey(jobID, collection)]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *memoryCheckpoints) DeleteCheckpoint(ctx context.Context, jobID core.JobID, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, checkpointKey(jobID, collection))
	return nil
}

func (m *memoryCheckpoints) DeleteCollectionCheckpoints(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, cp := range m.saved {
		if cp.Collection == collection {
			delete(m.saved, key)
		}
	}
	return nil
}
