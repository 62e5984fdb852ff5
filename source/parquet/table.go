// Package parquet exposes a Parquet file as a lazily sliced metadata source.
// Row order is file order, which must match the order of the vector file.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	parquetgo "github.com/parquet-go/parquet-go"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/source"
)

// Extension is the file extension routed to this reader.
const Extension = ".parquet"

const readBatch = 256

// ErrNestedColumn indicates a schema with repeated or grouped leaf columns.
var ErrNestedColumn = errors.New("nested parquet columns are not supported")

// Table is a metadata source backed by one Parquet file. Only the footer is
// read on open; row groups are decoded when a frame that overlaps them is
// collected.
type Table struct {
	file    *os.File
	pf      *parquetgo.File
	path    string
	columns []string
	// starts[i] is the first row of row group i
	starts []int64
}

var _ source.MetadataSource = (*Table)(nil)

// Open reads the footer of the Parquet file at path.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	pf, err := parquetgo.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	t := &Table{file: f, pf: pf, path: path}
	for _, leaf := range pf.Schema().Columns() {
		if len(leaf) != 1 {
			f.Close()
			return nil, fmt.Errorf("%w: %s in %s", ErrNestedColumn, strings.Join(leaf, "."), path)
		}
		t.columns = append(t.columns, leaf[0])
	}

	var start int64
	for _, rg := range pf.RowGroups() {
		t.starts = append(t.starts, start)
		start += rg.NumRows()
	}
	return t, nil
}

// Path returns the Parquet file.
func (t *Table) Path() string {
	return t.path
}

// Columns returns the column names in schema order.
func (t *Table) Columns() []string {
	return t.columns
}

// RowGroups returns the number of row groups in the file.
func (t *Table) RowGroups() int {
	return len(t.starts)
}

// NumRows returns the row count recorded in the footer.
func (t *Table) NumRows(ctx context.Context) (int, error) {
	return int(t.pf.NumRows()), nil
}

// Slice describes rows [offset, offset+length) in file order.
func (t *Table) Slice(offset, length int) source.Frame {
	return &Frame{table: t, offset: offset, length: length}
}

// Close closes the underlying file.
func (t *Table) Close() error {
	return t.file.Close()
}

// Frame is a pending row range of a Table.
type Frame struct {
	table  *Table
	offset int
	length int
}

// Collect decodes the frame's rows from the row groups that hold them.
func (f *Frame) Collect(ctx context.Context) ([]core.Payload, error) {
	if f.offset < 0 || f.length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", source.ErrOutOfRange, f.offset, f.length)
	}

	t := f.table
	payloads := make([]core.Payload, 0, f.length)
	begin, end := int64(f.offset), int64(f.offset+f.length)

	for i, rg := range t.pf.RowGroups() {
		first := t.starts[i]
		last := first + rg.NumRows()
		if last <= begin {
			continue
		}
		if first >= end {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from := max(begin, first) - first
		to := min(end, last) - first
		rows, err := t.readGroup(rg, from, to)
		if err != nil {
			return nil, fmt.Errorf("read row group %d of %s: %w", i, t.path, err)
		}
		payloads = append(payloads, rows...)
	}
	return payloads, nil
}

// readGroup decodes rows [from, to) of one row group.
func (t *Table) readGroup(rg parquetgo.RowGroup, from, to int64) ([]core.Payload, error) {
	rows := rg.Rows()
	defer rows.Close()

	if from > 0 {
		if err := rows.SeekToRow(from); err != nil {
			return nil, err
		}
	}

	remaining := to - from
	payloads := make([]core.Payload, 0, remaining)
	buf := make([]parquetgo.Row, min(readBatch, remaining))
	for remaining > 0 {
		n, err := rows.ReadRows(buf[:min(int64(len(buf)), remaining)])
		for _, row := range buf[:n] {
			payloads = append(payloads, t.payload(row))
		}
		remaining -= int64(n)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if err != nil || n == 0 {
			break
		}
	}
	return payloads, nil
}

func (t *Table) payload(row parquetgo.Row) core.Payload {
	payload := make(core.Payload, len(t.columns))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(t.columns) {
			continue
		}
		payload[t.columns[col]] = value(v)
	}
	return payload
}

// value converts a leaf value into the payload types the SQLite reader
// produces: int64, float64, bool, string or nil.
func value(v parquetgo.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquetgo.Boolean:
		return v.Boolean()
	case parquetgo.Int32:
		return int64(v.Int32())
	case parquetgo.Int64:
		return v.Int64()
	case parquetgo.Float:
		return float64(v.Float())
	case parquetgo.Double:
		return v.Double()
	case parquetgo.ByteArray, parquetgo.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}
