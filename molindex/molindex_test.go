package molindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kjk/molstore/assert"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/require"
)

func writeSource(t *testing.T, s string) string {
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(s), 0644))
	return path
}

func indexDir(t *testing.T) string {
	return filepath.Join(t.TempDir(), "index")
}

func TestWidthFor(t *testing.T) {
	assert.Equal(t, rawstore.Uint8, WidthFor(0))
	assert.Equal(t, rawstore.Uint8, WidthFor(255))
	assert.Equal(t, rawstore.Uint16, WidthFor(256))
	assert.Equal(t, rawstore.Uint16, WidthFor(65535))
	assert.Equal(t, rawstore.Uint32, WidthFor(65536))
	assert.Equal(t, rawstore.Uint32, WidthFor(1<<32-1))
	assert.Equal(t, rawstore.Uint64, WidthFor(1<<32))
}

func TestBuildIndex(t *testing.T) {
	src := writeSource(t, "a,1\nbb,2\ncc,3\n")
	idx, err := BuildIndex(src, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, int64(3), idx.Records())
	var offsets []int64
	for i := int64(0); i <= idx.Records(); i++ {
		off, err := idx.Offset(i)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	require.Equal(t, []int64{0, 4, 9, 14}, offsets)
	require.Equal(t, rawstore.Uint8, idx.store.Columns()[0].Type)
	require.Equal(t, int64(14), idx.SourceSize())
	require.Equal(t, Newline, idx.Terminator())

	start, end, err := idx.Span(1)
	require.NoError(t, err)
	require.Equal(t, int64(4), start)
	require.Equal(t, int64(8), end)
	_, _, err = idx.Span(3)
	require.ErrorIs(t, err, rawstore.ErrIndexOutOfRange)

	f, err := Open(src, idx, Options{Sep: ",", Smiles: ColumnIndex(0), Name: ColumnIndex(1)})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(3), f.Records())

	raw, err := f.Raw(0)
	require.NoError(t, err)
	require.Equal(t, "a,1", string(raw))
	raw, err = f.Raw(2)
	require.NoError(t, err)
	require.Equal(t, "cc,3", string(raw))

	s, err := f.Field(1, FieldSmiles)
	require.NoError(t, err)
	require.Equal(t, "bb", s)
	s, err = f.Field(1, FieldName)
	require.NoError(t, err)
	require.Equal(t, "2", s)

	_, err = f.Raw(3)
	require.ErrorIs(t, err, rawstore.ErrIndexOutOfRange)
	_, err = f.Raw(-1)
	require.ErrorIs(t, err, rawstore.ErrIndexOutOfRange)

	_, err = f.Header()
	require.ErrorIs(t, err, ErrNoHeader)
	require.Equal(t, []string{"column_0", "column_1"}, f.ColumnNames())
}

func TestReopenIndex(t *testing.T) {
	src := writeSource(t, "x\ny\n")
	dir := indexDir(t)
	idx, err := BuildIndex(src, dir, Newline)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = BuildIndex(src, dir, Newline)
	require.ErrorIs(t, err, rawstore.ErrAlreadyExists)

	idx, err = OpenIndex(dir)
	require.NoError(t, err)
	defer idx.Close()
	f, err := Open(src, idx, Options{Smiles: ColumnIndex(0)})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Smiles(1)
	require.NoError(t, err)
	require.Equal(t, "y", s)
	_, err = f.Name(1)
	require.ErrorIs(t, err, ErrMissingColumn)
	require.False(t, f.HasName())
}

func TestWideOffsets(t *testing.T) {
	// 3 records but offsets up to 300 need 16 bits
	line := strings.Repeat("C", 99) + "\n"
	src := writeSource(t, line+line+line)
	idx, err := BuildIndex(src, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, rawstore.Uint16, idx.store.Columns()[0].Type)
	off, err := idx.Offset(3)
	require.NoError(t, err)
	require.Equal(t, int64(300), off)
}

func TestHeader(t *testing.T) {
	src := writeSource(t, "smiles\tname\nC\tmethane\nCC\tethane\nCCC\tpropane\n")
	opts := Options{
		HasHeader: true,
		Sep:       "\t",
		Smiles:    ColumnName("smiles"),
		Name:      ColumnName("name"),
	}
	f, err := MakeSmilesIndex(src, indexDir(t), opts)
	require.NoError(t, err)
	defer f.Close()

	// header isn't a record
	require.Equal(t, int64(3), f.Records())
	require.Equal(t, int64(4), f.Index().Records())
	hdr, err := f.Header()
	require.NoError(t, err)
	require.Equal(t, []string{"smiles", "name"}, hdr)
	require.Equal(t, hdr, f.ColumnNames())

	s, err := f.Smiles(0)
	require.NoError(t, err)
	require.Equal(t, "C", s)
	s, err = f.Name(2)
	require.NoError(t, err)
	require.Equal(t, "propane", s)
	fields, err := f.Fields(1)
	require.NoError(t, err)
	require.Equal(t, []string{"CC", "ethane"}, fields)
	_, err = f.Raw(3)
	require.ErrorIs(t, err, rawstore.ErrIndexOutOfRange)
}

func TestHeaderOnly(t *testing.T) {
	src := writeSource(t, "smiles,name\n")
	f, err := MakeSmilesIndex(src, indexDir(t), Options{HasHeader: true, Sep: ",", Smiles: ColumnName("smiles")})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(0), f.Records())
	_, err = f.Smiles(0)
	require.ErrorIs(t, err, rawstore.ErrIndexOutOfRange)
}

func TestSelectorErrors(t *testing.T) {
	src := writeSource(t, "smiles,name\nC,methane\n")
	idx, err := BuildIndex(src, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx.Close()

	_, err = Open(src, idx, Options{HasHeader: true, Sep: ",", Smiles: ColumnName("mol")})
	require.ErrorIs(t, err, ErrColumnNotFound)
	_, err = Open(src, idx, Options{HasHeader: true, Sep: ",", Name: ColumnIndex(2)})
	require.ErrorIs(t, err, ErrColumnIndexOutOfRange)
	// wrong separator means a single field
	_, err = Open(src, idx, Options{HasHeader: true, Sep: "\t", Name: ColumnIndex(1)})
	require.ErrorIs(t, err, ErrColumnIndexOutOfRange)
	require.True(t, strings.Contains(err.Error(), "wrong separator"))

	// named column that is in the header but not in the records
	src2 := writeSource(t, "smiles,name,extra\nC,methane\nCC,ethane\n")
	idx2, err := BuildIndex(src2, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx2.Close()
	_, err = Open(src2, idx2, Options{HasHeader: true, Sep: ",", Smiles: ColumnName("smiles"), Name: ColumnName("extra")})
	require.ErrorIs(t, err, ErrColumnIndexOutOfRange)
	require.True(t, strings.Contains(err.Error(), "wrong separator"))
	f2, err := Open(src2, idx2, Options{HasHeader: true, Sep: ",", Smiles: ColumnName("smiles"), Name: ColumnName("name")})
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	// without a header, names are column_N
	f, err := Open(src, idx, Options{Sep: ",", Smiles: ColumnName("column_0"), Name: ColumnName("column_1")})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Name(0)
	require.NoError(t, err)
	require.Equal(t, "name", s)
}

func TestEmptySource(t *testing.T) {
	src := writeSource(t, "")
	idx, err := BuildIndex(src, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, int64(0), idx.Records())

	_, err = Open(src, idx, Options{HasHeader: true})
	require.ErrorIs(t, err, ErrNoHeader)
	f, err := Open(src, idx, Options{Smiles: ColumnIndex(0)})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(0), f.Records())
}

func TestUnterminatedTail(t *testing.T) {
	src := writeSource(t, "C\nCC\nCCC")
	f, err := MakeSmilesIndex(src, indexDir(t), Options{Smiles: ColumnIndex(0)})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(2), f.Records())
	s, err := f.Smiles(1)
	require.NoError(t, err)
	require.Equal(t, "CC", s)
}

func TestStaleIndex(t *testing.T) {
	src := writeSource(t, "C\nCC\n")
	idx, err := BuildIndex(src, indexDir(t), Newline)
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, os.WriteFile(src, []byte("C\nCC\nCCC\n"), 0644))
	_, err = Open(src, idx, Options{})
	require.ErrorIs(t, err, ErrStaleIndex)
}

const sdfRecord = `%s
  molstore

  2  1  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.5000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
M  END
$$$$
`

func TestSDF(t *testing.T) {
	names := []string{"methanol", "  ethanol  ", "propanol"}
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, sdfRecord, name)
	}
	src := writeSource(t, sb.String())
	f, err := MakeSDFIndex(src, indexDir(t))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, int64(3), f.Records())
	require.True(t, f.HasName())
	for i, exp := range []string{"methanol", "ethanol", "propanol"} {
		name, err := f.Name(int64(i))
		require.NoError(t, err)
		require.Equal(t, exp, name)

		mol, err := f.Smiles(int64(i))
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(mol, "M  END\n"))
		require.False(t, strings.Contains(mol, "$$$$"))
	}
}

func TestParseColumnSelector(t *testing.T) {
	assert.False(t, ParseColumnSelector("").IsSet())
	assert.False(t, ParseColumnSelector("-1").IsSet())
	assert.Equal(t, ColumnIndex(3), ParseColumnSelector("3"))
	assert.Equal(t, ColumnName("smiles"), ParseColumnSelector("smiles"))
	assert.Equal(t, "3", ParseColumnSelector("3").String())
	assert.Equal(t, `"smiles"`, ParseColumnSelector("smiles").String())
	assert.Equal(t, "none", ColumnSelector{}.String())
}

func TestConcurrentReads(t *testing.T) {
	var sb strings.Builder
	const n = 2000
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%s,mol%d\n", strings.Repeat("C", i%17+1), i)
	}
	src := writeSource(t, sb.String())
	f, err := MakeSmilesIndex(src, indexDir(t), Options{Sep: ",", Smiles: ColumnIndex(0), Name: ColumnIndex(1)})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(n), f.Records())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < n; i += 8 {
				name, err := f.Name(int64(i))
				if err == nil && name != fmt.Sprintf("mol%d", i) {
					err = fmt.Errorf("row %d: got name '%s'", i, name)
				}
				if err != nil {
					errs[w] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}
