package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjk/molstore/assert"
	"github.com/kjk/molstore/keyindex"
	"github.com/kjk/molstore/require"
	"github.com/kjk/molstore/u"
)

const smilesWithHeader = "smiles\tname\n" +
	"CCO\tethanol\n" +
	"c1ccccc1\tbenzene\n" +
	"C(C\tbroken\n" +
	"OCC\tethanol2\n"

func writeFile(t *testing.T, name string, s string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(s), 0644))
	return path
}

func TestBuildGetInfo(t *testing.T) {
	ctx := context.Background()
	opts := &buildOptions{
		Source:       writeFile(t, "mols.smi", smilesWithHeader),
		Dir:          filepath.Join(t.TempDir(), "storage"),
		HasHeader:    true,
		Sep:          "\t",
		SmilesColumn: "smiles",
		NameColumn:   "name",
		IndexKey:     true,
		BatchSize:    2,
		Workers:      2,
	}
	stats, err := build(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Rows)
	assert.Equal(t, int64(3), stats.Written)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.True(t, u.FileExists(filepath.Join(opts.Dir, logDirName, "log.txt")))

	_, err = build(ctx, opts)
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, info(&buf, opts.Dir))
	out := buf.String()
	assert.Contains(t, out, "molecules: 4\n")
	assert.Contains(t, out, "valid: 3 (75.00%)\n")
	assert.Contains(t, out, "  atoms uint16\n")
	assert.Contains(t, out, "  charge int8\n")

	buf.Reset()
	require.NoError(t, get(&buf, opts.Dir, &getOptions{Name: "benzene"}))
	out = buf.String()
	assert.Contains(t, out, "row: 1\n")
	assert.Contains(t, out, "molecule: c1ccccc1\n")
	assert.Contains(t, out, "aromatic: 6\n")
	assert.Contains(t, out, "rings: 1\n")

	buf.Reset()
	require.NoError(t, get(&buf, opts.Dir, &getOptions{Row: 2}))
	out = buf.String()
	assert.Contains(t, out, "name: broken\n")
	assert.Contains(t, out, "valid: false\n")
	assert.NotContains(t, out, "atoms:")

	buf.Reset()
	require.NoError(t, get(&buf, opts.Dir, &getOptions{Key: "C2O"}))
	out = buf.String()
	assert.Contains(t, out, "row: 0\n")
	assert.Contains(t, out, "row: 3\n")
	assert.Equal(t, 2, strings.Count(out, "atoms: 3\n"))

	err = get(&buf, opts.Dir, &getOptions{Name: "water"})
	require.ErrorIs(t, err, keyindex.ErrNotFound)
	err = get(&buf, opts.Dir, &getOptions{Row: 4})
	require.Error(t, err)
}

func TestBuildCompressedSource(t *testing.T) {
	var gz bytes.Buffer
	require.NoError(t, u.GzipCompress(&gz, strings.NewReader("CCO\nCCN\n")))
	opts := &buildOptions{
		Source:       writeFile(t, "mols.smi.gz", gz.String()),
		Dir:          filepath.Join(t.TempDir(), "storage"),
		Sep:          "\t",
		SmilesColumn: "0",
	}
	stats, err := build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Written)
	assert.True(t, u.FileExists(filepath.Join(opts.Dir, sourceDirName, "mols.smi")))

	// decompressed source is stored relative to the storage
	moved := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, os.Rename(opts.Dir, moved))
	var buf bytes.Buffer
	require.NoError(t, get(&buf, moved, &getOptions{Row: 1}))
	assert.Contains(t, buf.String(), "molecule: CCN\n")
	assert.Contains(t, buf.String(), "nitrogens: 1\n")
}

const sdfRecord = `%s
  storus

  2  1  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.5000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
M  END
$$$$
`

func TestBuildSDF(t *testing.T) {
	var sb strings.Builder
	for _, name := range []string{"first", "second"} {
		fmt.Fprintf(&sb, sdfRecord, name)
	}
	opts := &buildOptions{
		Source: writeFile(t, "mols.sdf", sb.String()),
		Dir:    filepath.Join(t.TempDir(), "storage"),
	}
	stats, err := build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Written)

	var buf bytes.Buffer
	require.NoError(t, get(&buf, opts.Dir, &getOptions{Name: "second"}))
	out := buf.String()
	assert.Contains(t, out, "row: 1\n")
	assert.Contains(t, out, "atoms: 2\n")
	assert.Contains(t, out, "oxygens: 1\n")

	buf.Reset()
	require.NoError(t, info(&buf, opts.Dir))
	assert.Contains(t, buf.String(), "format: sdf\n")
}
