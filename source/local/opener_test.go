package local

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	parquetgo "github.com/parquet-go/parquet-go"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/source/npy"
	"github.com/poiesic/vecload/source/parquet"
	"github.com/poiesic/vecload/source/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpener(t *testing.T) {
	root := t.TempDir()
	metaPath := filepath.Join(root, "metadata.db")

	db, err := sql.Open("sqlite", metaPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE papers (title TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO papers (title) VALUES ('a'), ('b'), ('c')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	opener, err := NewOpener(root, metaPath, "papers")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = opener.OpenVectors(ctx, 3)
	assert.ErrorIs(t, err, source.ErrMissingSource)

	require.NoError(t, npy.WriteFile(opener.Layout.NewVectorPath(3), [][]float32{{1, 2}, {3, 4}, {5, 6}}))

	vectors, err := opener.OpenVectors(ctx, 3)
	require.NoError(t, err)
	defer vectors.Close()
	assert.Equal(t, 3, vectors.Rows())
	assert.Equal(t, 2, vectors.Dim())

	meta, err := opener.OpenMetadata(ctx, 3)
	require.NoError(t, err)
	defer meta.Close()
	n, err := meta.NumRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = NewOpener(root, "", "")
	assert.Error(t, err)
}

type titleRow struct {
	Title string `parquet:"title"`
}

func TestOpenMetadata_ByExtension(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(root, "metadata.Parquet")
	require.NoError(t, parquetgo.WriteFile(path, []titleRow{{"a"}, {"b"}}))

	opener, err := NewOpener(root, path, "ignored")
	require.NoError(t, err)
	meta, err := opener.OpenMetadata(ctx, 1)
	require.NoError(t, err)
	defer meta.Close()
	assert.IsType(t, &parquet.Table{}, meta)

	payloads, err := meta.Slice(1, 1).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "b", payloads[0]["title"])

	dbPath := filepath.Join(root, "metadata.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE metadata (title TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	other, err := OpenMetadata(dbPath, "metadata")
	require.NoError(t, err)
	defer other.Close()
	assert.IsType(t, &sqlite.Table{}, other)
}
