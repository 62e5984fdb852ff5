// Package sqlite exposes a SQLite table as a lazily sliced metadata source.
// Row order is rowid order, which must match the order of the vector file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/source"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DefaultTable is the table read when none is configured.
const DefaultTable = "metadata"

var (
	// ErrInvalidTable indicates a table name that is not a plain identifier.
	ErrInvalidTable = errors.New("invalid table name")

	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Table is a metadata source backed by one SQLite table.
type Table struct {
	db    *sql.DB
	path  string
	table string

	// Keyset cursor: rows before next end at rowid last.
	mu   sync.Mutex
	next int
	last int64
}

var _ source.MetadataSource = (*Table)(nil)

// Open prepares a read-only source over table in the database at path.
// No rows are read until a frame is collected.
func Open(path, table string) (*Table, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("metadata database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Table{db: db, path: path, table: table}, nil
}

// Path returns the database file.
func (t *Table) Path() string {
	return t.path
}

// NumRows counts the rows of the table.
func (t *Table) NumRows(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, t.table)
	if err := t.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s in %s: %w", t.table, t.path, err)
	}
	return n, nil
}

// Columns returns the column names of the table in declaration order.
func (t *Table) Columns(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT 0`, t.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

// Slice describes rows [offset, offset+length) in rowid order.
func (t *Table) Slice(offset, length int) source.Frame {
	return &Frame{table: t, offset: offset, length: length}
}

// Close closes the database handle.
func (t *Table) Close() error {
	return t.db.Close()
}

// Frame is a pending row range of a Table.
type Frame struct {
	table  *Table
	offset int
	length int
}

// Collect reads the frame's rows as payloads keyed by column name. Frames
// that continue where the previous one ended page by rowid instead of
// scanning past the offset.
func (f *Frame) Collect(ctx context.Context) ([]core.Payload, error) {
	if f.offset < 0 || f.length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", source.ErrOutOfRange, f.offset, f.length)
	}
	if f.length == 0 {
		return []core.Payload{}, nil
	}

	t := f.table
	after, ok, err := t.rowidBefore(ctx, f.offset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []core.Payload{}, nil
	}

	query := fmt.Sprintf(`SELECT rowid, * FROM "%s" WHERE rowid > ? ORDER BY rowid LIMIT ?`, t.table)
	rows, err := t.db.QueryContext(ctx, query, after, f.length)
	if err != nil {
		return nil, fmt.Errorf("read rows [%d,%d) of %s: %w", f.offset, f.offset+f.length, t.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columns = columns[1:]

	var rowid int64
	payloads := make([]core.Payload, 0, f.length)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns)+1)
	ptrs[0] = &rowid
	for i := range values {
		ptrs[i+1] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		payload := make(core.Payload, len(columns))
		for i, col := range columns {
			payload[col] = normalize(values[i])
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(payloads) > 0 {
		t.mu.Lock()
		t.next, t.last = f.offset+len(payloads), rowid
		t.mu.Unlock()
	}
	return payloads, nil
}

// rowidBefore returns the rowid of row offset-1, the keyset bound for a
// frame starting at offset. ok is false when offset is past the last row.
func (t *Table) rowidBefore(ctx context.Context, offset int) (rowid int64, ok bool, err error) {
	if offset == 0 {
		var first sql.NullInt64
		err := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT MIN(rowid) FROM "%s"`, t.table)).Scan(&first)
		if err != nil {
			return 0, false, fmt.Errorf("read first row of %s: %w", t.table, err)
		}
		// NULL for an empty table
		return first.Int64 - 1, first.Valid, nil
	}

	t.mu.Lock()
	next, last := t.next, t.last
	t.mu.Unlock()
	if next == offset {
		return last, true, nil
	}

	query := fmt.Sprintf(`SELECT rowid FROM "%s" ORDER BY rowid LIMIT 1 OFFSET ?`, t.table)
	err = t.db.QueryRowContext(ctx, query, offset-1).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("seek to row %d of %s: %w", offset, t.table, err)
	}
	return rowid, true, nil
}

// normalize converts driver values into JSON-friendly payload values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
