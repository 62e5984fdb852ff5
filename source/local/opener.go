// Package local opens job sources from the local filesystem: a memory-mapped
// .npy vector file per job and a shared metadata table, either a Parquet file
// or a SQLite database.
package local

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/source/npy"
	"github.com/poiesic/vecload/source/parquet"
	"github.com/poiesic/vecload/source/sqlite"
)

// Opener implements source.Opener over a Layout.
type Opener struct {
	Layout        source.Layout
	MetadataPath  string
	MetadataTable string
}

var _ source.Opener = (*Opener)(nil)

// NewOpener creates an Opener rooted at root reading metadata from
// metadataPath. table names the SQLite table and is ignored for Parquet.
func NewOpener(root, metadataPath, table string) (*Opener, error) {
	if metadataPath == "" {
		return nil, errors.New("metadata path cannot be empty")
	}
	return &Opener{
		Layout:        source.Layout{Root: root},
		MetadataPath:  metadataPath,
		MetadataTable: table,
	}, nil
}

// OpenVectors resolves and maps the job's single vector file.
func (o *Opener) OpenVectors(ctx context.Context, jobID core.JobID) (source.VectorSource, error) {
	path, err := o.Layout.VectorFile(jobID)
	if err != nil {
		return nil, err
	}
	return npy.Open(path)
}

// OpenMetadata opens the metadata table lazily.
func (o *Opener) OpenMetadata(ctx context.Context, jobID core.JobID) (source.MetadataSource, error) {
	return OpenMetadata(o.MetadataPath, o.MetadataTable)
}

// OpenMetadata opens path by extension: ".parquet" files are read with
// the Parquet reader, anything else as a SQLite database.
func OpenMetadata(path, table string) (source.MetadataSource, error) {
	if strings.EqualFold(filepath.Ext(path), parquet.Extension) {
		return parquet.Open(path)
	}
	return sqlite.Open(path, table)
}
