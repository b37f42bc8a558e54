package molindex

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/kjk/molstore/rawstore"
)

// Field identifies a configured field of a record
type Field int

const (
	FieldSmiles Field = iota
	FieldName
)

func (f Field) String() string {
	if f == FieldName {
		return "name"
	}
	return "smiles"
}

// Options describe how records of a File are split into fields
type Options struct {
	// first record is a header with column names
	HasHeader bool
	// field separator. If empty, the whole record is a single field
	Sep    string
	Smiles ColumnSelector
	Name   ColumnSelector
	// computes a name from a raw record when Name is not set
	NameFunc func(raw []byte) string
}

// File provides random access to records of a text file through an Index.
// It's safe for concurrent use.
type File struct {
	path string
	idx  *Index
	f    *os.File
	opts Options

	header      []string
	columnNames []string
	smilesCol   int
	nameCol     int

	// physical record of logical row 0
	first   int64
	records int64

	ownsIndex bool
}

// Open opens srcPath for random access using an index built from it.
// The header (if any) and the first record are read to resolve
// column selectors.
func Open(srcPath string, idx *Index, opts Options) (*File, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	if size := idx.SourceSize(); size >= 0 {
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if st.Size() != size {
			_ = f.Close()
			return nil, fmt.Errorf("%w: '%s' is %d bytes, index '%s' was built from %d bytes", ErrStaleIndex, srcPath, st.Size(), idx.Dir(), size)
		}
	}

	file := &File{
		path:      srcPath,
		idx:       idx,
		f:         f,
		opts:      opts,
		smilesCol: -1,
		nameCol:   -1,
		records:   idx.Records(),
	}
	if err = file.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return file, nil
}

func (f *File) init() error {
	nFields := -1
	if f.opts.HasHeader {
		if f.idx.Records() == 0 {
			return fmt.Errorf("%w: '%s' is empty", ErrNoHeader, f.path)
		}
		raw, err := f.readRecord(0)
		if err != nil {
			return err
		}
		f.header = f.split(raw)
		f.columnNames = f.header
		nFields = len(f.header)
		f.first = 1
		f.records--
	}
	if f.records > 0 {
		fields, err := f.Fields(0)
		if err != nil {
			return err
		}
		nFields = len(fields)
		if f.header == nil {
			for i := range fields {
				f.columnNames = append(f.columnNames, fmt.Sprintf("column_%d", i))
			}
		}
	}

	var err error
	if f.smilesCol, err = f.opts.Smiles.resolve(f.columnNames, nFields); err != nil {
		return fmt.Errorf("smiles column of '%s': %w", f.path, err)
	}
	if f.nameCol, err = f.opts.Name.resolve(f.columnNames, nFields); err != nil {
		return fmt.Errorf("name column of '%s': %w", f.path, err)
	}
	return nil
}

func (f *File) split(raw []byte) []string {
	if f.opts.Sep == "" {
		return []string{string(raw)}
	}
	return strings.Split(string(raw), f.opts.Sep)
}

// readRecord reads physical record i
func (f *File) readRecord(i int64) ([]byte, error) {
	start, end, err := f.idx.Span(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, end-start)
	if _, err = f.f.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("reading record %d of '%s' at offset %d: %w", i, f.path, start, err)
	}
	return buf, nil
}

// Path returns path of the source file
func (f *File) Path() string {
	return f.path
}

// Index returns the offset index
func (f *File) Index() *Index {
	return f.idx
}

// Records returns number of records, not counting the header
func (f *File) Records() int64 {
	return f.records
}

// Header returns header fields
func (f *File) Header() ([]string, error) {
	if !f.opts.HasHeader {
		return nil, ErrNoHeader
	}
	return f.header, nil
}

// ColumnNames returns header fields or column_0, column_1... if
// there's no header
func (f *File) ColumnNames() []string {
	return f.columnNames
}

// Raw returns bytes of record row without the terminator
func (f *File) Raw(row int64) ([]byte, error) {
	if row < 0 || row >= f.records {
		return nil, fmt.Errorf("%w: row %d, '%s' has %d records", rawstore.ErrIndexOutOfRange, row, f.path, f.records)
	}
	return f.readRecord(row + f.first)
}

// Fields returns record row split on the separator
func (f *File) Fields(row int64) ([]string, error) {
	raw, err := f.Raw(row)
	if err != nil {
		return nil, err
	}
	return f.split(raw), nil
}

func (f *File) fieldAt(row int64, col int) (string, error) {
	fields, err := f.Fields(row)
	if err != nil {
		return "", err
	}
	if col >= len(fields) {
		return "", fmt.Errorf("%w: column %d but record %d has %d fields", ErrColumnIndexOutOfRange, col, row, len(fields))
	}
	return fields[col], nil
}

// Field returns configured smiles or name field of a record
func (f *File) Field(row int64, which Field) (string, error) {
	switch which {
	case FieldSmiles:
		if f.smilesCol < 0 {
			return "", fmt.Errorf("%w: %s", ErrMissingColumn, which)
		}
		return f.fieldAt(row, f.smilesCol)
	case FieldName:
		if f.nameCol >= 0 {
			return f.fieldAt(row, f.nameCol)
		}
		if f.opts.NameFunc != nil {
			raw, err := f.Raw(row)
			if err != nil {
				return "", err
			}
			return f.opts.NameFunc(raw), nil
		}
		return "", fmt.Errorf("%w: %s", ErrMissingColumn, which)
	}
	return "", fmt.Errorf("unknown field %d", which)
}

func (f *File) Smiles(row int64) (string, error) {
	return f.Field(row, FieldSmiles)
}

func (f *File) Name(row int64) (string, error) {
	return f.Field(row, FieldName)
}

// HasName returns true if Name() can return a value
func (f *File) HasName() bool {
	return f.nameCol >= 0 || f.opts.NameFunc != nil
}

// Close closes the source file and, for files created by
// MakeSmilesIndex or MakeSDFIndex, the index
func (f *File) Close() error {
	err := f.f.Close()
	if f.ownsIndex {
		if err2 := f.idx.Close(); err == nil {
			err = err2
		}
	}
	return err
}

// SDFName returns the first line of an SDF record, which is the molecule name
func SDFName(raw []byte) string {
	line, _, _ := bytes.Cut(raw, []byte{'\n'})
	return strings.TrimSpace(string(line))
}

// MakeSmilesIndex indexes a line-oriented file and opens it
func MakeSmilesIndex(srcPath string, indexDir string, opts Options) (*File, error) {
	return makeIndex(srcPath, indexDir, Newline, opts)
}

// SDFOptions returns Options for SDF records: the whole record is
// the molecule and the first line is its name
func SDFOptions() Options {
	return Options{
		Smiles:   ColumnIndex(0),
		NameFunc: SDFName,
	}
}

// MakeSDFIndex indexes an SDF file and opens it with SDFOptions()
func MakeSDFIndex(srcPath string, indexDir string) (*File, error) {
	return makeIndex(srcPath, indexDir, SDFTerminator, SDFOptions())
}

func makeIndex(srcPath string, indexDir string, term []byte, opts Options) (*File, error) {
	idx, err := BuildIndex(srcPath, indexDir, term)
	if err != nil {
		return nil, err
	}
	f, err := Open(srcPath, idx, opts)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	f.ownsIndex = true
	return f, nil
}
