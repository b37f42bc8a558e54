// Package keyindex maps string keys (molecule names, formulas) to rows
// of a store. It's backed by pebble.
package keyindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
)

var ErrNotFound = errors.New("keyindex: key not found")

const sep = 0

// Index is a persistent key -> row and key -> rows map.
// Keys set with Set and keys appended to with Append live side by side:
// key -> row is stored as key, key -> rows as key 0x00 row
// so that a prefix scan returns rows in ascending order.
type Index struct {
	db  *pebble.DB
	dir string
}

// Open opens or creates an index in dir
func Open(dir string) (*Index, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("keyindex: opening '%s': %w", dir, err)
	}
	return &Index{
		db:  db,
		dir: dir,
	}, nil
}

func checkKey(key string) error {
	if key == "" {
		return errors.New("keyindex: empty key")
	}
	if strings.IndexByte(key, sep) >= 0 {
		return fmt.Errorf("keyindex: key %q contains 0 byte", key)
	}
	return nil
}

func encodeRow(dst []byte, row int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(row))
}

func rowsKey(key string, row int64) []byte {
	k := make([]byte, 0, len(key)+9)
	k = append(k, key...)
	k = append(k, sep)
	return encodeRow(k, row)
}

// Dir returns directory of the index
func (idx *Index) Dir() string {
	return idx.dir
}

// Set maps key to row, overwriting previous value
func (idx *Index) Set(key string, row int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return idx.db.Set([]byte(key), encodeRow(nil, row), pebble.NoSync)
}

// Get returns row set with Set or SetUnique
func (idx *Index) Get(key string) (int64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	v, closer, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, fmt.Errorf("%w: '%s'", ErrNotFound, key)
		}
		return 0, err
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, fmt.Errorf("keyindex: value of '%s' is %d bytes, expected 8", key, len(v))
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

// SetUnique maps key to row unless key is already set, in which case
// it returns the existing row and dup = true.
// Not safe to call concurrently with the same key.
func (idx *Index) SetUnique(key string, row int64) (prev int64, dup bool, err error) {
	prev, err = idx.Get(key)
	if err == nil {
		return prev, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}
	return row, false, idx.Set(key, row)
}

// Append adds row to rows of the key
func (idx *Index) Append(key string, row int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return idx.db.Set(rowsKey(key, row), nil, pebble.NoSync)
}

// Rows returns rows appended to the key in ascending order
func (idx *Index) Rows(key string) ([]int64, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	lower := append([]byte(key), sep)
	upper := append([]byte(key), sep+1)
	iter, err := idx.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var res []int64
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) != len(lower)+8 || !bytes.HasPrefix(k, lower) {
			continue
		}
		res = append(res, int64(binary.BigEndian.Uint64(k[len(lower):])))
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}
	return res, nil
}

// Flush persists pending writes
func (idx *Index) Flush() error {
	return idx.db.Flush()
}

func (idx *Index) Close() error {
	return idx.db.Close()
}
