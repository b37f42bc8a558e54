package u

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/molstore/atomicfile"
)

// IsURL returns true for http:// and https:// sources
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// MaterializeSource returns a path of a plain, seekable local file for src.
// URLs are downloaded to dir and compressed files (.gz, .bz2, .zst, .br)
// are decompressed to dir. Plain local files are returned as is.
func MaterializeSource(ctx context.Context, src string, dir string) (string, error) {
	if IsURL(src) {
		u, err := url.Parse(src)
		if err != nil {
			return "", err
		}
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			return "", fmt.Errorf("can't get file name from url '%s'", src)
		}
		dst := filepath.Join(dir, name)
		if err = downloadFile(ctx, src, dst); err != nil {
			return "", err
		}
		src = dst
	}
	ext, base := CompressedExt(src)
	if ext == "" {
		return src, nil
	}
	dst := filepath.Join(dir, filepath.Base(base))
	if err := decompressFile(dst, src); err != nil {
		return "", err
	}
	return dst, nil
}

func downloadFile(ctx context.Context, uri string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dst)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	err = requests.URL(uri).ToWriter(f).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("downloading '%s': %w", uri, err)
	}
	return f.Close()
}

func decompressFile(dst string, src string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	r, err := OpenFileMaybeCompressed(src)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := atomicfile.New(dst)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, r); err != nil {
		return fmt.Errorf("decompressing '%s': %w", src, err)
	}
	return f.Close()
}
