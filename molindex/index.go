// Package molindex provides random access to records of large text files
// (SMILES, CSV, SDF) through an offset index stored as a raw store.
package molindex

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/kjk/molstore/log"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/scan"
)

var (
	// Newline terminates records of line-oriented files
	Newline = []byte("\n")
	// SDFTerminator terminates records of SDF files
	SDFTerminator = []byte("$$$$\n")
)

const (
	offsetColumn = "offset"

	attrTerminator = "terminator"
	attrSource     = "source"
	attrSourceSize = "source_size"
)

// WidthFor returns the smallest unsigned type that can hold n
func WidthFor(n uint64) rawstore.DType {
	switch {
	case n <= math.MaxUint8:
		return rawstore.Uint8
	case n <= math.MaxUint16:
		return rawstore.Uint16
	case n <= math.MaxUint32:
		return rawstore.Uint32
	}
	return rawstore.Uint64
}

// Index is a read-only store of L+1 record start offsets, where
// L is the number of terminators in the source file.
// offset[0] is 0, offset[i+1] is one past the i-th terminator.
type Index struct {
	store   *rawstore.Store
	term    []byte
	records int64
}

// BuildIndex scans srcPath for term and writes the offset index to indexDir,
// which must not exist. Bytes after the last terminator are not indexed.
func BuildIndex(srcPath string, indexDir string, term []byte) (*Index, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// first pass tells us how many rows and how wide the offsets are
	n, end, err := scan.Count(f, term, 0)
	if err != nil {
		return nil, fmt.Errorf("scanning '%s': %w", srcPath, err)
	}
	width := WidthFor(max(n, end))
	log.Verbosef("BuildIndex: '%s' has %d records, offsets are %s\n", srcPath, n, width)

	schema := rawstore.Schema{{Name: offsetColumn, Type: width}}
	opts := &rawstore.CreateOptions{
		Attrs: map[string]string{
			attrTerminator: string(term),
			attrSource:     srcPath,
			attrSourceSize: strconv.FormatInt(st.Size(), 10),
		},
	}
	store, err := rawstore.Create(indexDir, schema, int64(n)+1, opts)
	if err != nil {
		return nil, err
	}
	failed := func(err error) (*Index, error) {
		_ = store.Close()
		_ = os.RemoveAll(indexDir)
		return nil, err
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return failed(err)
	}
	// offset[0] is 0, which is what a new store has
	offsets, errFn := scan.Offsets(f, term, 0)
	row := int64(1)
	for off := range offsets {
		if row > int64(n) {
			err = fmt.Errorf("'%s' changed while indexing", srcPath)
			break
		}
		if err = store.PutUint(row, 0, off+uint64(len(term))); err != nil {
			break
		}
		row++
	}
	if err == nil {
		err = errFn()
	}
	if err == nil && row != int64(n)+1 {
		err = fmt.Errorf("'%s' changed while indexing", srcPath)
	}
	if err != nil {
		return failed(err)
	}
	if err = store.Close(); err != nil {
		return failed(err)
	}
	if tail := uint64(st.Size()) - end; tail > 0 {
		log.Warnf("'%s' has %d bytes after the last terminator, they are not indexed\n", srcPath, tail)
	}
	return OpenIndex(indexDir)
}

// OpenIndex opens an index created by BuildIndex
func OpenIndex(dir string) (*Index, error) {
	store, err := rawstore.Open(dir, &rawstore.OpenOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	cols := store.Columns()
	term := store.Attr(attrTerminator)
	if len(cols) != 1 || cols[0].Name != offsetColumn || !cols[0].Type.IsUnsigned() || store.Rows() < 1 || term == "" {
		_ = store.Close()
		return nil, fmt.Errorf("%w: '%s' is not an offset index", rawstore.ErrSchemaCorrupt, dir)
	}
	return &Index{
		store:   store,
		term:    []byte(term),
		records: store.Rows() - 1,
	}, nil
}

// Records returns number of terminated records
func (idx *Index) Records() int64 {
	return idx.records
}

// Terminator returns the record terminator
func (idx *Index) Terminator() []byte {
	return idx.term
}

// Dir returns directory of the index
func (idx *Index) Dir() string {
	return idx.store.Dir()
}

// SourceSize returns size of the source file when the index was built, -1 if unknown
func (idx *Index) SourceSize() int64 {
	n, err := strconv.ParseInt(idx.store.Attr(attrSourceSize), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Offset returns offset[i] for i in [0, Records()]
func (idx *Index) Offset(i int64) (int64, error) {
	v, err := idx.store.Uint(i, 0)
	return int64(v), err
}

// Span returns [start, end) of record i without the terminator
func (idx *Index) Span(i int64) (int64, int64, error) {
	if i < 0 || i >= idx.records {
		return 0, 0, fmt.Errorf("%w: record %d, index has %d records", rawstore.ErrIndexOutOfRange, i, idx.records)
	}
	start, err := idx.Offset(i)
	if err != nil {
		return 0, 0, err
	}
	next, err := idx.Offset(i + 1)
	if err != nil {
		return 0, 0, err
	}
	return start, next - int64(len(idx.term)), nil
}

func (idx *Index) Close() error {
	return idx.store.Close()
}
