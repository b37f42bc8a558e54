package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjk/molstore/keyindex"
	"github.com/kjk/molstore/molindex"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/require"
)

type fixture struct {
	dir   string
	file  *molindex.File
	store *rawstore.Store
}

// 25 records, the first 4 and every 5th one are not valid molecules
func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("smiles,name\n")
	for i := 0; i < 25; i++ {
		mol := strings.Repeat("C", i+1)
		if i < 4 || i%5 == 0 {
			mol = "X" + mol
		}
		// names repeat every 10 rows
		fmt.Fprintf(&sb, "%s,mol%d\n", mol, i%10)
	}
	src := filepath.Join(dir, "mols.csv")
	require.NoError(t, os.WriteFile(src, []byte(sb.String()), 0644))
	opts := molindex.Options{
		HasHeader: true,
		Sep:       ",",
		Smiles:    molindex.ColumnName("smiles"),
		Name:      molindex.ColumnName("name"),
	}
	f, err := molindex.MakeSmilesIndex(src, filepath.Join(dir, "__molindex__"), opts)
	require.NoError(t, err)
	schema := rawstore.Schema{{Name: "length", Type: rawstore.Uint16}}
	store, err := rawstore.Create(filepath.Join(dir, "store"), schema, f.Records(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = f.Close()
	})
	return &fixture{dir: dir, file: f, store: store}
}

func moleculeLength(ctx context.Context, row int64, mol string) ([]any, string, error) {
	if strings.HasPrefix(mol, "X") {
		return nil, "", nil
	}
	key := "short"
	if len(mol) > 12 {
		key = "long"
	}
	return []any{len(mol)}, key, nil
}

func TestRun(t *testing.T) {
	fx := newFixture(t)
	names, err := keyindex.Open(filepath.Join(fx.dir, "name.idx"))
	require.NoError(t, err)
	defer names.Close()
	keys, err := keyindex.Open(filepath.Join(fx.dir, "key.idx"))
	require.NoError(t, err)
	defer keys.Close()

	opts := &Options{
		BatchSize: 4,
		Workers:   3,
		Names:     names,
		Keys:      keys,
	}
	stats, err := Run(context.Background(), fx.file, fx.store, moleculeLength, opts)
	require.NoError(t, err)

	// skipped: 0, 1, 2, 3, 5, 10, 15, 20
	require.Equal(t, int64(25), stats.Rows)
	require.Equal(t, int64(17), stats.Written)
	require.Equal(t, int64(8), stats.Skipped)
	// rounds of 12, 12 and 1 rows
	require.Equal(t, 7, stats.Batches)
	require.Equal(t, 1, stats.EmptyBatches)
	// duplicates at 14, 16..19 and 21..24
	require.Equal(t, 9, stats.DuplicateNames)

	valid, err := fx.store.LoadValid()
	require.NoError(t, err)
	require.Equal(t, uint64(17), valid.GetCardinality())
	for row := int64(0); row < 25; row++ {
		v, err := fx.store.Get(row)
		require.NoError(t, err)
		if valid.Contains(uint64(row)) {
			require.Equal(t, []any{uint16(row + 1)}, v)
		} else {
			require.Equal(t, []any{uint16(0)}, v)
		}
	}

	row, err := names.Get("mol4")
	require.NoError(t, err)
	require.Equal(t, int64(4), row)
	row, err = names.Get("mol1")
	require.NoError(t, err)
	require.Equal(t, int64(11), row)
	_, err = names.Get("mol0")
	require.ErrorIs(t, err, keyindex.ErrNotFound)

	rows, err := keys.Rows("short")
	require.NoError(t, err)
	require.Equal(t, []int64{4, 6, 7, 8, 9, 11}, rows)
	rows, err = keys.Rows("long")
	require.NoError(t, err)
	require.Len(t, rows, 11)
	require.Equal(t, int64(12), rows[0])
}

func TestRunError(t *testing.T) {
	fx := newFixture(t)
	errBad := errors.New("bad molecule")
	fn := func(ctx context.Context, row int64, mol string) ([]any, string, error) {
		if row == 10 {
			return nil, "", errBad
		}
		return []any{1}, "", nil
	}
	_, err := Run(context.Background(), fx.file, fx.store, fn, &Options{BatchSize: 3, Workers: 2})
	require.ErrorIs(t, err, errBad)
}

func TestRunCancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fx.file, fx.store, moleculeLength, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRowMismatch(t *testing.T) {
	fx := newFixture(t)
	schema := rawstore.Schema{{Name: "length", Type: rawstore.Uint16}}
	store, err := rawstore.Create(filepath.Join(fx.dir, "small"), schema, 3, nil)
	require.NoError(t, err)
	defer store.Close()
	_, err = Run(context.Background(), fx.file, store, moleculeLength, nil)
	require.Error(t, err)
}
