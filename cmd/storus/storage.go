package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/kjk/molstore/keyindex"
	"github.com/kjk/molstore/molindex"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/u"
)

// layout of a storage directory. The derived store lives at the top.
const (
	molIndexDirName = "__molindex__"
	sourceDirName   = "__source__"
	namesDirName    = "name.idx"
	keysDirName     = "key.idx"
	logDirName      = "log"
)

// store attributes needed to re-open the source file
const (
	attrSource       = "source"
	attrSourcePath   = "source_path"
	attrFormat       = "format"
	attrHasHeader    = "has_header"
	attrSep          = "sep"
	attrSmilesColumn = "smiles_column"
	attrNameColumn   = "name_column"
	attrCalculator   = "calculator"
)

const (
	formatSmiles = "smiles"
	formatSDF    = "sdf"
)

// storage is an opened, read-only result of build
type storage struct {
	dir   string
	store *rawstore.Store
	idx   *molindex.Index
	file  *molindex.File
	// nil if the storage doesn't have them
	names *keyindex.Index
	keys  *keyindex.Index
}

func fileOptions(hasHeader bool, sep string, smilesColumn string, nameColumn string) molindex.Options {
	return molindex.Options{
		HasHeader: hasHeader,
		Sep:       sep,
		Smiles:    molindex.ParseColumnSelector(smilesColumn),
		Name:      molindex.ParseColumnSelector(nameColumn),
	}
}

// sourcePath resolves source_path attribute, which is relative
// to the storage when the source was materialized into it
func sourcePath(dir string, store *rawstore.Store) (string, error) {
	path := store.Attr(attrSourcePath)
	if path == "" {
		return "", fmt.Errorf("storage '%s' doesn't record its source", dir)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, filepath.FromSlash(path))
	}
	return path, nil
}

func openStorage(dir string) (s *storage, err error) {
	s = &storage{dir: dir}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()
	s.store, err = rawstore.Open(dir, &rawstore.OpenOptions{ReadOnly: true, Mmap: true})
	if err != nil {
		return nil, err
	}
	s.idx, err = molindex.OpenIndex(filepath.Join(dir, molIndexDirName))
	if err != nil {
		return nil, err
	}
	src, err := sourcePath(dir, s.store)
	if err != nil {
		return nil, err
	}
	opts := molindex.SDFOptions()
	if s.store.Attr(attrFormat) != formatSDF {
		hasHeader, _ := strconv.ParseBool(s.store.Attr(attrHasHeader))
		opts = fileOptions(hasHeader, s.store.Attr(attrSep), s.store.Attr(attrSmilesColumn), s.store.Attr(attrNameColumn))
	}
	s.file, err = molindex.Open(src, s.idx, opts)
	if err != nil {
		return nil, err
	}
	if path := filepath.Join(dir, namesDirName); u.DirExists(path) {
		if s.names, err = keyindex.Open(path); err != nil {
			return nil, err
		}
	}
	if path := filepath.Join(dir, keysDirName); u.DirExists(path) {
		if s.keys, err = keyindex.Open(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *storage) Close() error {
	var errs []error
	if s.keys != nil {
		errs = append(errs, s.keys.Close())
	}
	if s.names != nil {
		errs = append(errs, s.names.Close())
	}
	if s.file != nil {
		errs = append(errs, s.file.Close())
	}
	if s.idx != nil {
		errs = append(errs, s.idx.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
