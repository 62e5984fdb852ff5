package npy

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Writer fills a pre-sized .npy float32 matrix.
// WriteRows may be called concurrently for disjoint row ranges.
type Writer struct {
	f          *os.File
	rows       int
	dim        int
	dataOffset int64
}

// Create creates (or truncates) path as a rows x dim float32 matrix of zeros.
// Parent directories are created as needed.
func Create(path string, rows, dim int) (*Writer, error) {
	if rows < 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: shape (%d, %d)", ErrInvalidFormat, rows, dim)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	hdr := encodeHeader(rows, dim)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(int64(len(hdr)) + int64(rows)*int64(dim)*4); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		f:          f,
		rows:       rows,
		dim:        dim,
		dataOffset: int64(len(hdr)),
	}, nil
}

// WriteRows stores vectors starting at row offset.
func (w *Writer) WriteRows(offset int, vectors [][]float32) error {
	if offset < 0 || offset+len(vectors) > w.rows {
		return fmt.Errorf("rows [%d,%d) outside matrix of %d rows", offset, offset+len(vectors), w.rows)
	}

	buf := make([]byte, len(vectors)*w.dim*4)
	pos := 0
	for i, vec := range vectors {
		if len(vec) != w.dim {
			return fmt.Errorf("row %d has %d values, matrix has %d", offset+i, len(vec), w.dim)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(v))
			pos += 4
		}
	}

	_, err := w.f.WriteAt(buf, w.dataOffset+int64(offset)*int64(w.dim)*4)
	return err
}

// Rows returns the number of rows in the matrix.
func (w *Writer) Rows() int {
	return w.rows
}

// Dim returns the vector dimension.
func (w *Writer) Dim() int {
	return w.dim
}

// Close syncs and closes the file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// WriteFile writes vectors as a complete .npy file.
func WriteFile(path string, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("%w: no vectors to write", ErrInvalidFormat)
	}
	w, err := Create(path, len(vectors), len(vectors[0]))
	if err != nil {
		return err
	}
	if err := w.WriteRows(0, vectors); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
