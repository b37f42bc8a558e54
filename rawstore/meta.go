package rawstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/kjk/molstore/atomicfile"
	"github.com/tidwall/pretty"
)

const (
	metaFileName  = "__schema__.json"
	metaFormat    = "molstore-raw"
	metaVersion   = 1
	validFileName = "__valid__.roar"
)

type metaColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Width int    `json:"width"`
	File  string `json:"file"`
}

type metadata struct {
	Format  string            `json:"format"`
	Version int               `json:"version"`
	Rows    int64             `json:"rows"`
	Columns []metaColumn      `json:"columns"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// IsStore returns true if dir has store metadata
func IsStore(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, metaFileName))
	return err == nil && st.Mode().IsRegular()
}

func newMetadata(schema Schema, rows int64, attrs map[string]string) *metadata {
	m := &metadata{
		Format:  metaFormat,
		Version: metaVersion,
		Rows:    rows,
		Attrs:   attrs,
	}
	for i, c := range schema {
		mc := metaColumn{
			Name:  c.Name,
			Type:  c.Type.String(),
			Width: c.Type.Width(),
			File:  columnFileName(i),
		}
		m.Columns = append(m.Columns, mc)
	}
	return m
}

func writeMetadata(dir string, m *metadata) error {
	d, err := json.Marshal(m)
	if err != nil {
		return err
	}
	d = pretty.Pretty(d)
	return atomicfile.WriteFile(filepath.Join(dir, metaFileName), d)
}

func readMetadata(dir string) (*metadata, Schema, error) {
	path := filepath.Join(dir, metaFileName)
	d, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: '%s'", ErrNotFound, path)
		}
		return nil, nil, err
	}
	var m metadata
	if err = json.Unmarshal(d, &m); err != nil {
		return nil, nil, fmt.Errorf("%w: '%s': %s", ErrSchemaCorrupt, path, err)
	}
	if m.Format != metaFormat {
		return nil, nil, fmt.Errorf("%w: '%s': unknown format '%s'", ErrSchemaCorrupt, path, m.Format)
	}
	if m.Version != metaVersion {
		return nil, nil, fmt.Errorf("%w: '%s': unsupported version %d", ErrSchemaCorrupt, path, m.Version)
	}
	if m.Rows < 0 {
		return nil, nil, fmt.Errorf("%w: '%s': negative row count %d", ErrSchemaCorrupt, path, m.Rows)
	}
	var schema Schema
	for i, mc := range m.Columns {
		t, err := ParseDType(mc.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: '%s': %s", ErrSchemaCorrupt, path, err)
		}
		if mc.Width != t.Width() {
			return nil, nil, fmt.Errorf("%w: '%s': column '%s' has width %d, %s needs %d", ErrSchemaCorrupt, path, mc.Name, mc.Width, t, t.Width())
		}
		if mc.File != columnFileName(i) {
			return nil, nil, fmt.Errorf("%w: '%s': column '%s' has unexpected file '%s'", ErrSchemaCorrupt, path, mc.Name, mc.File)
		}
		schema = append(schema, Column{Name: mc.Name, Type: t})
	}
	if err = schema.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: '%s': %s", ErrSchemaCorrupt, path, err)
	}
	return &m, schema, nil
}
