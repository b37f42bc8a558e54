package rawstore

import "errors"

var (
	// ErrAlreadyExists is returned by Create when the target directory
	// (or a store inside it) already exists
	ErrAlreadyExists = errors.New("rawstore: already exists")
	// ErrNotFound is returned by Open when there's no store metadata
	ErrNotFound = errors.New("rawstore: not found")
	// ErrSchemaCorrupt is returned by Open when metadata is malformed or
	// doesn't match column files
	ErrSchemaCorrupt = errors.New("rawstore: schema corrupt")
	// ErrIndexOutOfRange is returned for rows outside [0, Rows())
	ErrIndexOutOfRange = errors.New("rawstore: row index out of range")
	// ErrColumnCountMismatch is returned by Put when the number of values
	// doesn't match the number of columns
	ErrColumnCountMismatch = errors.New("rawstore: column count mismatch")
	// ErrTypeMismatch is returned when a value can't be stored in a column
	ErrTypeMismatch = errors.New("rawstore: type mismatch")
	// ErrValueOverflow is returned when a value doesn't fit column's width
	ErrValueOverflow = errors.New("rawstore: value overflow")
	// ErrReadOnly is returned by writes to a store opened read-only
	ErrReadOnly = errors.New("rawstore: store is read-only")
	// ErrOverlappingRanges is returned by Writers when two ranges share rows
	ErrOverlappingRanges = errors.New("rawstore: overlapping row ranges")
	// ErrRowNotOwned is returned by RangeWriter.Put for rows outside its range
	ErrRowNotOwned = errors.New("rawstore: row not owned by writer")
)
