package u

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/kjk/molstore/assert"
	"github.com/kjk/molstore/require"
)

const smiles = "CCO\tethanol\nc1ccccc1\tbenzene\n"

func writeCompressed(t *testing.T, path string, compress func(io.Writer, io.Reader) error) {
	var buf bytes.Buffer
	require.NoError(t, compress(&buf, strings.NewReader(smiles)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestOpenFileMaybeCompressed(t *testing.T) {
	dir := t.TempDir()
	compressors := map[string]func(io.Writer, io.Reader) error{
		"mols.smi.gz":   GzipCompress,
		"mols.smi.zst":  ZstdCompress,
		"mols.smi.ZSTD": ZstdCompress,
		"mols.smi.br": func(w io.Writer, r io.Reader) error {
			return BrCompress(w, r, brotli.DefaultCompression)
		},
	}
	for name, compress := range compressors {
		path := filepath.Join(dir, name)
		writeCompressed(t, path, compress)
		r, err := OpenFileMaybeCompressed(path)
		require.NoError(t, err)
		d, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, smiles, string(d), name)
	}

	plain := filepath.Join(dir, "mols.smi")
	require.NoError(t, os.WriteFile(plain, []byte(smiles), 0644))
	r, err := OpenFileMaybeCompressed(plain)
	require.NoError(t, err)
	_, isFile := r.(*os.File)
	require.True(t, isFile)
	require.NoError(t, r.Close())
}

func TestCompressedExt(t *testing.T) {
	ext, base := CompressedExt("/data/mols.smi.gz")
	assert.Equal(t, ".gz", ext)
	assert.Equal(t, "/data/mols.smi", base)
	ext, base = CompressedExt("mols.sdf")
	assert.Equal(t, "", ext)
	assert.Equal(t, "mols.sdf", base)
}

func TestMaterializeSource(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	dir := t.TempDir()

	plain := filepath.Join(srcDir, "mols.smi")
	require.NoError(t, os.WriteFile(plain, []byte(smiles), 0644))
	path, err := MaterializeSource(ctx, plain, dir)
	require.NoError(t, err)
	require.Equal(t, plain, path)

	gz := filepath.Join(srcDir, "other.smi.gz")
	writeCompressed(t, gz, GzipCompress)
	path, err = MaterializeSource(ctx, gz, dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "other.smi"), path)
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, smiles, string(d))
}

func TestMaterializeSourceURL(t *testing.T) {
	var zst bytes.Buffer
	require.NoError(t, ZstdCompress(&zst, strings.NewReader(smiles)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/mols.smi.zst" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(zst.Bytes())
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := MaterializeSource(context.Background(), srv.URL+"/data/mols.smi.zst", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "mols.smi"), path)
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, smiles, string(d))

	_, err = MaterializeSource(context.Background(), srv.URL+"/missing.smi", dir)
	require.Error(t, err)
	require.False(t, FileExists(filepath.Join(dir, "missing.smi")))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("de"), 0644))

	assert.True(t, DirExists(dir))
	assert.False(t, FileExists(dir))
	assert.True(t, FileExists(filepath.Join(dir, "a.txt")))
	assert.True(t, PathExists(filepath.Join(dir, "sub")))
	assert.Equal(t, int64(3), FileSize(filepath.Join(dir, "a.txt")))
	assert.Equal(t, int64(-1), FileSize(filepath.Join(dir, "c.txt")))

	files, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, files)
	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100 bytes", FormatSize(100))
	assert.Equal(t, "1.50 kB", FormatSize(1536))
	assert.Equal(t, "2 MB", FormatSize(2*1024*1024))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m3s", FormatDuration(2*time.Minute+3*time.Second+400*time.Millisecond))
	assert.Equal(t, float64(50), Percent(10, 5))
	assert.Equal(t, float64(0), Percent(0, 5))
}
