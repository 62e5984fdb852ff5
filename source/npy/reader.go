package npy

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/poiesic/vecload/source"
)

// Reader is a read-only view over a memory-mapped .npy float32 matrix.
type Reader struct {
	path    string
	size    int64
	modTime time.Time
	rows    int
	dim     int
	data    []byte    // whole file mapping
	offset  int       // start of the array within data
	values  []float32 // zero-copy view of the array, nil when unaligned
	unmap   func([]byte) error
	once    sync.Once
}

var (
	_ source.VectorSource = (*Reader)(nil)
	_ source.Refresher    = (*Reader)(nil)
)

// Open maps the file at path and validates its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidFormat, path)
	}

	data, unmap, err := mapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}

	r, err := newReader(path, data, unmap)
	if err != nil {
		unmap(data)
		return nil, err
	}
	r.size = info.Size()
	r.modTime = info.ModTime()
	return r, nil
}

func newReader(path string, data []byte, unmap func([]byte) error) (*Reader, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rows, dim := h.shape[0], h.shape[1]
	// Bound the shape by the file before multiplying so it cannot overflow.
	available := (len(data) - h.dataOffset) / 4
	if h.dataOffset > len(data) || (dim > 0 && rows > available/dim) {
		return nil, fmt.Errorf("%w: %s holds %d bytes, too few for shape (%d, %d)",
			ErrInvalidFormat, path, len(data), rows, dim)
	}
	need := h.dataOffset + rows*dim*4

	r := &Reader{
		path:   path,
		rows:   rows,
		dim:    dim,
		data:   data,
		offset: h.dataOffset,
		unmap:  unmap,
	}
	body := data[h.dataOffset:need]
	if len(body) > 0 && littleEndianHost() && uintptr(unsafe.Pointer(&body[0]))%4 == 0 {
		r.values = unsafe.Slice((*float32)(unsafe.Pointer(&body[0])), rows*dim)
	}
	return r, nil
}

// Path returns the file the reader maps.
func (r *Reader) Path() string {
	return r.path
}

// Stale reports whether the file at Path no longer matches the mapping,
// for example because a job was re-run and rewrote it.
func (r *Reader) Stale() bool {
	info, err := os.Stat(r.path)
	if err != nil {
		return true
	}
	return info.Size() != r.size || !info.ModTime().Equal(r.modTime)
}

// Rows returns the number of vectors.
func (r *Reader) Rows() int {
	return r.rows
}

// Dim returns the vector dimension.
func (r *Reader) Dim() int {
	return r.dim
}

// Slice returns rows [start, end). On little-endian hosts the rows alias
// the mapping and stay valid until Close.
func (r *Reader) Slice(start, end int) ([][]float32, error) {
	if start < 0 || end > r.rows || start > end {
		return nil, fmt.Errorf("%w: [%d,%d) of %d rows in %s", source.ErrOutOfRange, start, end, r.rows, r.path)
	}

	out := make([][]float32, end-start)
	if r.values != nil {
		for i := range out {
			row := (start + i) * r.dim
			out[i] = r.values[row : row+r.dim : row+r.dim]
		}
		return out, nil
	}

	// Decode when a zero-copy view is not possible
	offset := r.offset + start*r.dim*4
	for i := range out {
		vec := make([]float32, r.dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(r.data[offset:]))
			offset += 4
		}
		out[i] = vec
	}
	return out, nil
}

// Close unmaps the file. Row views returned by Slice must not be used afterwards.
func (r *Reader) Close() error {
	var err error
	r.once.Do(func() {
		r.values = nil
		if r.unmap != nil {
			err = r.unmap(r.data)
		}
		r.data = nil
	})
	return err
}

func littleEndianHost() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
