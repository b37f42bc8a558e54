package molindex

import "errors"

var (
	ErrColumnNotFound        = errors.New("molindex: column not found")
	ErrColumnIndexOutOfRange = errors.New("molindex: column index out of range")
	ErrNoHeader              = errors.New("molindex: file has no header")
	ErrMissingColumn         = errors.New("molindex: column not configured")
	// ErrStaleIndex is returned when the source file changed after the index was built
	ErrStaleIndex = errors.New("molindex: index doesn't match source file")
)
