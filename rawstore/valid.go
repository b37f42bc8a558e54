package rawstore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/kjk/molstore/atomicfile"
)

// SaveValid persists a bitmap of rows that hold computed values.
// Rows not in the bitmap were skipped and read as zero.
func (s *Store) SaveValid(bm *roaring64.Bitmap) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if !bm.IsEmpty() && bm.Maximum() >= uint64(s.rows) {
		return fmt.Errorf("%w: valid row %d, store has %d rows", ErrIndexOutOfRange, bm.Maximum(), s.rows)
	}
	bm.RunOptimize()
	f, err := atomicfile.New(filepath.Join(s.dir, validFileName))
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	w := bufio.NewWriter(f)
	if _, err = bm.WriteTo(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// LoadValid loads bitmap saved with SaveValid.
// Returns ErrNotFound if there is none.
func (s *Store) LoadValid() (*roaring64.Bitmap, error) {
	path := filepath.Join(s.dir, validFileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()
	bm := roaring64.New()
	if _, err = bm.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%w: '%s': %s", ErrSchemaCorrupt, path, err)
	}
	return bm, nil
}
