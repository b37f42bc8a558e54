package u

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to os.File, io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f     *os.File
	r     io.Reader
	close func()
}

func (rc *readerWrappedFile) Close() error {
	if rc.close != nil {
		rc.close()
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

var compressedExts = []string{".gz", ".bz2", ".zst", ".zstd", ".br"}

// CompressedExt returns compression extension of path ("" if not compressed)
// and path without it
func CompressedExt(path string) (ext string, base string) {
	ext = strings.ToLower(filepath.Ext(path))
	for _, e := range compressedExts {
		if ext == e {
			return ext, path[:len(path)-len(ext)]
		}
	}
	return "", path
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip
// or bzip2 or zstd or brotli, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	ext, _ := CompressedExt(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc := &readerWrappedFile{f: f}
	switch ext {
	case ".gz":
		r, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		rc.r = r
	case ".bz2":
		rc.r = bzip2.NewReader(f)
	case ".zst", ".zstd":
		r, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		rc.r, rc.close = r, r.Close
	case ".br":
		rc.r = brotli.NewReader(f)
	default:
		return f, nil
	}
	return rc, nil
}

func getErr(errs ...error) error {
	return errors.Join(errs...)
}

// BrCompress compresses src into dst
func BrCompress(dst io.Writer, src io.Reader, level int) error {
	w := brotli.NewWriterLevel(dst, level)
	_, err := io.Copy(w, src)
	return getErr(err, w.Close())
}

// ZstdCompress compresses src into dst
func ZstdCompress(dst io.Writer, src io.Reader) error {
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return getErr(err, w.Close())
}

// GzipCompress compresses src into dst
func GzipCompress(dst io.Writer, src io.Reader) error {
	w, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return getErr(err, w.Close())
}
