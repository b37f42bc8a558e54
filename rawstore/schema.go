package rawstore

import (
	"errors"
	"fmt"
)

// Column is a named, fixed-width column
type Column struct {
	Name string
	Type DType
}

// Schema is an ordered list of columns. Order defines column file names
// and the order of values in Get / Put.
type Schema []Column

// Validate checks that the schema is non-empty, names are unique and
// non-empty and types are valid
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.New("schema has no columns")
	}
	seen := map[string]bool{}
	for i, c := range s {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column '%s'", c.Name)
		}
		seen[c.Name] = true
		if !c.Type.Valid() {
			return fmt.Errorf("column '%s' has invalid type %s", c.Name, c.Type)
		}
	}
	return nil
}

// Index returns position of column with a given name or -1
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RowWidth is the number of bytes a single row occupies across all columns
func (s Schema) RowWidth() int {
	n := 0
	for _, c := range s {
		n += c.Type.Width()
	}
	return n
}

func columnFileName(i int) string {
	return fmt.Sprintf("%04d.col", i)
}
