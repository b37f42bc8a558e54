// Package scan finds record terminators in large files.
//
// Files are read in fixed-size blocks. Before every read after the first
// we seek back len(term)-1 bytes so that a terminator straddling a block
// boundary is seen whole in the next block. Offsets are computed from the
// file position, not counted, so the result doesn't depend on block size.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// DefaultBlockSize is used when blockSize is 0
const DefaultBlockSize = 1 << 16

var (
	ErrEmptyTerminator = errors.New("scan: empty terminator")
	ErrBlockTooSmall   = errors.New("scan: block size smaller than terminator")
)

func checkArgs(term []byte, blockSize int) (int, error) {
	if len(term) == 0 {
		return 0, ErrEmptyTerminator
	}
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < len(term) {
		return 0, fmt.Errorf("%w: %d < %d", ErrBlockTooSmall, blockSize, len(term))
	}
	return blockSize, nil
}

// Offsets returns an iterator over absolute byte offsets of every
// non-overlapping occurrence of term in r, in increasing order.
// Scanning starts at the current position of r, which is assumed to be 0.
// The iterator consumes r and can't be restarted.
// Call the returned error function after iteration to check for errors.
func Offsets(r io.ReadSeeker, term []byte, blockSize int) (iter.Seq[uint64], func() error) {
	var iterErr error

	seq := func(yield func(uint64) bool) {
		bs, err := checkArgs(term, blockSize)
		if err != nil {
			iterErr = err
			return
		}
		overlap := int64(len(term) - 1)
		buf := make([]byte, bs)

		// pos is the file position after the last read
		var pos int64
		// matches starting before next would overlap an already reported one
		var next int64
		first := true
		for {
			if !first && overlap > 0 {
				pos -= overlap
				if _, err = r.Seek(pos, io.SeekStart); err != nil {
					iterErr = fmt.Errorf("scan: seek to %d failed: %w", pos, err)
					return
				}
			}
			first = false

			n, err := io.ReadFull(r, buf)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				iterErr = fmt.Errorf("scan: read at %d failed: %w", pos, err)
				return
			}
			if n == 0 {
				return
			}
			block := buf[:n]
			pos += int64(n)

			start := 0
			for {
				idx := bytes.Index(block[start:], term)
				if idx < 0 {
					break
				}
				matchPos := start + idx
				off := pos - int64(n-matchPos)
				if off >= next {
					if !yield(uint64(off)) {
						return
					}
					next = off + int64(len(term))
				}
				start = matchPos + 1
			}

			if n < len(buf) {
				// short read means we've reached the end of the file
				return
			}
		}
	}

	return seq, func() error { return iterErr }
}

// Count returns the number of terminators in r and the offset one past
// the end of the last one (0 if there are none).
func Count(r io.ReadSeeker, term []byte, blockSize int) (n uint64, end uint64, err error) {
	offsets, errFn := Offsets(r, term, blockSize)
	for off := range offsets {
		n++
		end = off + uint64(len(term))
	}
	return n, end, errFn()
}
