package u

import (
	"io/fs"
	"path/filepath"
)

// walkFiles calls fn for every regular file under dir
func walkFiles(dir string, fn func(path string, size int64) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(path, info.Size())
	})
}

// ListFiles returns paths of regular files under dir relative to dir,
// with forward slashes, in lexical order
func ListFiles(dir string) ([]string, error) {
	var res []string
	err := walkFiles(dir, func(path string, size int64) error {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		res = append(res, filepath.ToSlash(rel))
		return nil
	})
	return res, err
}
