package badger

import (
	"context"
	"testing"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testConfig(name string, dim int) core.CollectionConfig {
	return core.CollectionConfig{
		Name:           name,
		Dimension:      dim,
		Distance:       core.DistanceCosine,
		OnDiskVectors:  true,
		Quantization:   core.QuantizationConfig{Binary: true, AlwaysRAM: true},
		MaxSegmentSize: 60000,
	}
}

func makeBatch(offset, n, dim int) index.Batch {
	b := index.Batch{}
	for i := offset; i < offset+n; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		b.Ids = append(b.Ids, uint64(i))
		b.Vectors = append(b.Vectors, vec)
		b.Payloads = append(b.Payloads, core.Payload{"row": float64(i), "title": "doc"})
	}
	return b
}

func TestClient_CreateAndGetCollection(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))

	info, err := c.GetCollection(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Config.Dimension)
	assert.Equal(t, core.DistanceCosine, info.Config.Distance)
	assert.True(t, info.Config.Quantization.Binary)
	assert.False(t, info.Config.Index.Enabled())
	assert.Zero(t, info.PointCount)
}

func TestClient_CreateCollection_Duplicate(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	err := c.CreateCollection(ctx, testConfig("papers", 4))
	assert.ErrorIs(t, err, index.ErrCollectionExists)
}

func TestClient_CreateCollection_Invalid(t *testing.T) {
	c := setupClient(t)

	err := c.CreateCollection(context.Background(), testConfig("papers", 0))
	assert.ErrorIs(t, err, core.ErrInvalidCollection)
}

func TestClient_GetCollection_NotFound(t *testing.T) {
	c := setupClient(t)

	_, err := c.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)
}

func TestClient_DeleteCollection(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	// Missing collection is not an error
	require.NoError(t, c.DeleteCollection(ctx, "papers"))

	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	require.NoError(t, c.Upload(ctx, "papers", makeBatch(0, 10, 4), index.UploadOptions{}))
	require.NoError(t, c.DeleteCollection(ctx, "papers"))

	_, err := c.GetCollection(ctx, "papers")
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)

	// Recreated collection starts empty
	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	info, err := c.GetCollection(ctx, "papers")
	require.NoError(t, err)
	assert.Zero(t, info.PointCount)
}

func TestClient_Upload_OverwritesByID(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 8)))

	opts := index.UploadOptions{BatchSize: 7, Parallelism: 3}
	require.NoError(t, c.Upload(ctx, "papers", makeBatch(0, 100, 8), opts))
	require.NoError(t, c.Upload(ctx, "papers", makeBatch(0, 100, 8), opts))
	require.NoError(t, c.Upload(ctx, "papers", makeBatch(50, 100, 8), opts))

	info, err := c.GetCollection(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, int64(150), info.PointCount)
}

func TestClient_Upload_CollectionsAreIsolated(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateCollection(ctx, testConfig("a", 4)))
	require.NoError(t, c.CreateCollection(ctx, testConfig("ab", 4)))

	require.NoError(t, c.Upload(ctx, "a", makeBatch(0, 5, 4), index.UploadOptions{}))
	require.NoError(t, c.Upload(ctx, "ab", makeBatch(0, 3, 4), index.UploadOptions{}))
	require.NoError(t, c.DeleteCollection(ctx, "a"))

	info, err := c.GetCollection(ctx, "ab")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.PointCount)
}

func TestClient_Upload_Errors(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	err := c.Upload(ctx, "missing", makeBatch(0, 2, 4), index.UploadOptions{})
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)

	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	err = c.Upload(ctx, "papers", makeBatch(0, 2, 8), index.UploadOptions{})
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = c.Upload(cancelled, "papers", makeBatch(0, 2, 4), index.UploadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_UpdateCollection(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	err := c.UpdateCollection(ctx, "papers", core.IndexParams{M: 16})
	assert.ErrorIs(t, err, index.ErrCollectionNotFound)

	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	require.NoError(t, c.UpdateCollection(ctx, "papers", core.IndexParams{M: 16}))

	info, err := c.GetCollection(ctx, "papers")
	require.NoError(t, err)
	assert.True(t, info.Config.Index.Enabled())
	assert.Equal(t, 16, info.Config.Index.M)
}

func TestClient_Search(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateCollection(ctx, testConfig("papers", 4)))
	require.NoError(t, c.Upload(ctx, "papers", makeBatch(0, 8, 4), index.UploadOptions{}))

	hits, err := c.Search(ctx, "papers", []float32{0, 0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Rows 2 and 6 share the query direction
	assert.ElementsMatch(t, []uint64{2, 6}, []uint64{hits[0].ID, hits[1].ID})
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
	assert.Equal(t, "doc", hits[0].Payload["title"])

	_, err = c.Search(ctx, "papers", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestCodec_RoundTrip(t *testing.T) {
	data, err := encodePoint([]float32{1.5, -2, 0}, core.Payload{"k": "v"})
	require.NoError(t, err)

	vec, payload, err := decodePoint(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2, 0}, vec)
	assert.Equal(t, "v", payload["k"])

	data, err = encodePoint([]float32{1}, nil)
	require.NoError(t, err)
	_, payload, err = decodePoint(data)
	require.NoError(t, err)
	assert.Nil(t, payload)

	_, _, err = decodePoint([]byte{1})
	assert.Error(t, err)
}

func TestPointPrefix_NotShared(t *testing.T) {
	a := makePointPrefix("a")
	ab := makePointPrefix("ab")
	assert.NotEqual(t, a, ab[:len(a)])
	assert.Equal(t, uint64(77), pointIDFromKey(makePointKey(a, 77)))
}
