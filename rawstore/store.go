package rawstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/exp/mmap"
)

type column struct {
	Column
	width int
	path  string
	r     io.ReaderAt
	// nil when store is read-only
	w io.WriterAt
	c io.Closer
}

func (c *column) readAt(b []byte, row int64) error {
	_, err := c.r.ReadAt(b, row*int64(c.width))
	if err != nil {
		return fmt.Errorf("reading column '%s' row %d: %w", c.Name, row, err)
	}
	return nil
}

func (c *column) writeAt(b []byte, row int64) error {
	_, err := c.w.WriteAt(b, row*int64(c.width))
	if err != nil {
		return fmt.Errorf("writing column '%s' row %d: %w", c.Name, row, err)
	}
	return nil
}

// Store is a fixed-schema, fixed-size columnar store.
// Each column is a separate file of rows*width bytes, row i
// is at offset i*width, little-endian.
// Get and Put on different rows are safe to call from multiple goroutines.
type Store struct {
	dir      string
	schema   Schema
	rows     int64
	attrs    map[string]string
	cols     []*column
	readOnly bool
	closed   bool
}

// CreateOptions are options for Create
type CreateOptions struct {
	// if true, dir can already exist as long as it's not a store
	AllowExistingDir bool
	// persisted with the schema, returned by Attrs()
	Attrs map[string]string
}

// OpenOptions are options for Open
type OpenOptions struct {
	ReadOnly bool
	// memory-map column files. Implies ReadOnly
	Mmap bool
}

// Create creates a store with a given schema and a fixed number of rows.
// All values are zero.
func Create(dir string, schema Schema, rows int64, opts *CreateOptions) (*Store, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if rows < 0 {
		return nil, fmt.Errorf("rows must be >= 0, is %d", rows)
	}
	_, err := os.Stat(dir)
	dirExisted := err == nil
	if dirExisted {
		if !opts.AllowExistingDir {
			return nil, fmt.Errorf("%w: directory '%s'", ErrAlreadyExists, dir)
		}
		if IsStore(dir) {
			return nil, fmt.Errorf("%w: store in '%s'", ErrAlreadyExists, dir)
		}
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		schema: slices.Clone(schema),
		rows:   rows,
		attrs:  maps.Clone(opts.Attrs),
	}
	// removes what we've created so that Create can be retried
	failed := func(err error) (*Store, error) {
		_ = s.Close()
		if !dirExisted {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		for _, c := range s.cols {
			_ = os.Remove(c.path)
		}
		return nil, err
	}
	for i, c := range schema {
		path := filepath.Join(dir, columnFileName(i))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return failed(err)
		}
		col := &column{
			Column: c,
			width:  c.Type.Width(),
			path:   path,
			r:      f,
			w:      f,
			c:      f,
		}
		s.cols = append(s.cols, col)
		// extends the file with zeros
		if err = f.Truncate(rows * int64(col.width)); err != nil {
			return failed(err)
		}
	}
	// metadata is written last so a half-created store can't be opened
	if err = writeMetadata(dir, newMetadata(schema, rows, opts.Attrs)); err != nil {
		return failed(err)
	}
	return s, nil
}

// Open opens an existing store
func Open(dir string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	m, schema, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		dir:      dir,
		schema:   schema,
		rows:     m.Rows,
		attrs:    m.Attrs,
		readOnly: opts.ReadOnly || opts.Mmap,
	}
	for i, c := range schema {
		col := &column{
			Column: c,
			width:  c.Type.Width(),
			path:   filepath.Join(dir, m.Columns[i].File),
		}
		st, err := os.Stat(col.path)
		if err != nil {
			_ = s.Close()
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: missing column file '%s'", ErrSchemaCorrupt, col.path)
			}
			return nil, err
		}
		if expSize := m.Rows * int64(col.width); st.Size() != expSize {
			_ = s.Close()
			return nil, fmt.Errorf("%w: column file '%s' is %d bytes, expected %d", ErrSchemaCorrupt, col.path, st.Size(), expSize)
		}
		switch {
		case opts.Mmap:
			ra, err := mmap.Open(col.path)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			col.r, col.c = ra, ra
		case s.readOnly:
			f, err := os.Open(col.path)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			col.r, col.c = f, f
		default:
			f, err := os.OpenFile(col.path, os.O_RDWR, 0)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			col.r, col.w, col.c = f, f, f
		}
		s.cols = append(s.cols, col)
	}
	return s, nil
}

// Dir returns directory of the store
func (s *Store) Dir() string {
	return s.dir
}

// Rows returns number of rows, fixed at creation
func (s *Store) Rows() int64 {
	return s.rows
}

// Columns returns the schema
func (s *Store) Columns() Schema {
	return slices.Clone(s.schema)
}

// Attrs returns attributes persisted with the schema
func (s *Store) Attrs() map[string]string {
	return maps.Clone(s.attrs)
}

// Attr returns a single attribute
func (s *Store) Attr(name string) string {
	return s.attrs[name]
}

// ReadOnly returns true if the store can't be written to
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

func (s *Store) checkRow(row int64) error {
	if row < 0 || row >= s.rows {
		return fmt.Errorf("%w: row %d, store has %d rows", ErrIndexOutOfRange, row, s.rows)
	}
	return nil
}

func (s *Store) column(col int) (*column, error) {
	if col < 0 || col >= len(s.cols) {
		return nil, fmt.Errorf("%w: column %d, store has %d columns", ErrIndexOutOfRange, col, len(s.cols))
	}
	return s.cols[col], nil
}

// Get returns values of a row in schema order
func (s *Store) Get(row int64) ([]any, error) {
	if err := s.checkRow(row); err != nil {
		return nil, err
	}
	res := make([]any, len(s.cols))
	var buf [8]byte
	for i, c := range s.cols {
		b := buf[:c.width]
		if err := c.readAt(b, row); err != nil {
			return nil, err
		}
		res[i] = c.Type.decode(b)
	}
	return res, nil
}

// Put overwrites all values of a row.
// Values are validated before anything is written but a failed write
// can leave the row partially updated.
func (s *Store) Put(row int64, values []any) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := s.checkRow(row); err != nil {
		return err
	}
	if len(values) != len(s.cols) {
		return fmt.Errorf("%w: got %d values, store has %d columns", ErrColumnCountMismatch, len(values), len(s.cols))
	}
	buf := make([]byte, s.schema.RowWidth())
	off := 0
	for i, c := range s.cols {
		if err := c.Type.encode(buf[off:off+c.width], values[i]); err != nil {
			return fmt.Errorf("column '%s': %w", c.Name, err)
		}
		off += c.width
	}
	off = 0
	for _, c := range s.cols {
		if err := c.writeAt(buf[off:off+c.width], row); err != nil {
			return err
		}
		off += c.width
	}
	return nil
}

// Uint returns value of an unsigned integer column
func (s *Store) Uint(row int64, col int) (uint64, error) {
	c, err := s.column(col)
	if err != nil {
		return 0, err
	}
	if !c.Type.IsUnsigned() {
		return 0, fmt.Errorf("%w: column '%s' is %s", ErrTypeMismatch, c.Name, c.Type)
	}
	if err = s.checkRow(row); err != nil {
		return 0, err
	}
	var buf [8]byte
	b := buf[:c.width]
	if err = c.readAt(b, row); err != nil {
		return 0, err
	}
	return c.Type.getUint(b), nil
}

// PutUint sets value of an unsigned integer column
func (s *Store) PutUint(row int64, col int, v uint64) error {
	if s.readOnly {
		return ErrReadOnly
	}
	c, err := s.column(col)
	if err != nil {
		return err
	}
	if !c.Type.IsUnsigned() {
		return fmt.Errorf("%w: column '%s' is %s", ErrTypeMismatch, c.Name, c.Type)
	}
	if err = s.checkRow(row); err != nil {
		return err
	}
	if maxV := c.Type.maxUint(); v > maxV {
		return fmt.Errorf("%w: %d doesn't fit column '%s' (%s)", ErrValueOverflow, v, c.Name, c.Type)
	}
	var buf [8]byte
	b := buf[:c.width]
	c.Type.putUint(b, v)
	return c.writeAt(b, row)
}

// Float returns value of a numeric column as float64
func (s *Store) Float(row int64, col int) (float64, error) {
	c, err := s.column(col)
	if err != nil {
		return 0, err
	}
	if c.Type == Bool {
		return 0, fmt.Errorf("%w: column '%s' is %s", ErrTypeMismatch, c.Name, c.Type)
	}
	if err = s.checkRow(row); err != nil {
		return 0, err
	}
	var buf [8]byte
	b := buf[:c.width]
	if err = c.readAt(b, row); err != nil {
		return 0, err
	}
	n, _ := asNumber(c.Type.decode(b))
	return n.toFloat()
}

// Close closes column files. Can be called multiple times.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for _, c := range s.cols {
		if c.c == nil {
			continue
		}
		if err := c.c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
