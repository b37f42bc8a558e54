package molindex

import (
	"fmt"
	"slices"
	"strconv"
)

// ColumnSelector selects a field of a record either by position
// or by header name. The zero value selects nothing.
type ColumnSelector struct {
	index int
	name  string
	set   bool
}

// ColumnIndex selects a field by 0-based position
func ColumnIndex(i int) ColumnSelector {
	return ColumnSelector{index: i, set: true}
}

// ColumnName selects a field by header name
func ColumnName(name string) ColumnSelector {
	return ColumnSelector{index: -1, name: name, set: true}
}

// ParseColumnSelector parses command-line value: an integer is a position,
// anything else is a name. "" and negative numbers select nothing.
func ParseColumnSelector(s string) ColumnSelector {
	if s == "" {
		return ColumnSelector{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return ColumnSelector{}
		}
		return ColumnIndex(n)
	}
	return ColumnName(s)
}

// IsSet returns false for the zero value
func (c ColumnSelector) IsSet() bool {
	return c.set
}

func (c ColumnSelector) String() string {
	switch {
	case !c.set:
		return "none"
	case c.name != "":
		return strconv.Quote(c.name)
	}
	return strconv.Itoa(c.index)
}

// resolve returns field position, -1 if not set.
// nFields < 0 means field count is unknown.
func (c ColumnSelector) resolve(names []string, nFields int) (int, error) {
	if !c.set {
		return -1, nil
	}
	if c.name != "" {
		i := slices.Index(names, c.name)
		if i < 0 {
			return -1, fmt.Errorf("%w: '%s', columns are %v", ErrColumnNotFound, c.name, names)
		}
		if nFields >= 0 && i >= nFields {
			return -1, fmt.Errorf("%w: column '%s' is %d but records have %d fields (wrong separator?)", ErrColumnIndexOutOfRange, c.name, i, nFields)
		}
		return i, nil
	}
	if c.index < 0 {
		return -1, fmt.Errorf("%w: %d", ErrColumnIndexOutOfRange, c.index)
	}
	if nFields >= 0 && c.index >= nFields {
		return -1, fmt.Errorf("%w: column %d but records have %d fields (wrong separator?)", ErrColumnIndexOutOfRange, c.index, nFields)
	}
	return c.index, nil
}
