package rawstore

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Range is a half-open range of rows [Start, End)
type Range struct {
	Start int64
	End   int64
}

// Len returns number of rows in the range
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Contains returns true if row is in the range
func (r Range) Contains(row int64) bool {
	return row >= r.Start && row < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Split splits [start, end) into at most parts contiguous, disjoint ranges
// whose sizes differ by at most 1. Empty ranges are omitted.
func Split(start, end int64, parts int) []Range {
	n := end - start
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if int64(parts) > n {
		parts = int(n)
	}
	size := n / int64(parts)
	rem := n % int64(parts)
	res := make([]Range, 0, parts)
	for i := 0; i < parts; i++ {
		end := start + size
		if int64(i) < rem {
			end++
		}
		res = append(res, Range{Start: start, End: end})
		start = end
	}
	return res
}

// RangeWriter writes rows of a single range of a shared store.
// Writers created by the same Writers() call own disjoint ranges
// so they can be used from different goroutines without locking.
// A RangeWriter itself is not safe for concurrent use.
type RangeWriter struct {
	store   *Store
	rng     Range
	written *roaring64.Bitmap
}

// Writers returns a writer for each range. Ranges must be within
// [0, Rows()) and must not overlap.
func (s *Store) Writers(ranges []Range) ([]*RangeWriter, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	for _, r := range ranges {
		if r.Start < 0 || r.End > s.rows || r.Start > r.End {
			return nil, fmt.Errorf("%w: range %s, store has %d rows", ErrIndexOutOfRange, r, s.rows)
		}
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})
	var prev *Range
	for i := range sorted {
		r := &sorted[i]
		if r.Len() == 0 {
			continue
		}
		if prev != nil && r.Start < prev.End {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingRanges, prev, r)
		}
		prev = r
	}
	res := make([]*RangeWriter, len(ranges))
	for i, r := range ranges {
		res[i] = &RangeWriter{
			store:   s,
			rng:     r,
			written: roaring64.New(),
		}
	}
	return res, nil
}

// Range returns rows owned by the writer
func (w *RangeWriter) Range() Range {
	return w.rng
}

// Put writes a row. The row must be owned by this writer.
func (w *RangeWriter) Put(row int64, values []any) error {
	if !w.rng.Contains(row) {
		return fmt.Errorf("%w: row %d, writer owns %s", ErrRowNotOwned, row, w.rng)
	}
	if err := w.store.Put(row, values); err != nil {
		return err
	}
	w.written.Add(uint64(row))
	return nil
}

// Written returns rows successfully written by this writer
func (w *RangeWriter) Written() *roaring64.Bitmap {
	return w.written
}

// MergeWritten returns union of rows written by all writers
func MergeWritten(writers ...*RangeWriter) *roaring64.Bitmap {
	res := roaring64.New()
	for _, w := range writers {
		res.Or(w.written)
	}
	return res
}
