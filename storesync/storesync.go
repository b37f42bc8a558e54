// Package storesync backs up a finished storage directory to
// S3-compatible object storage and restores it.
// Every file is stored as a brotli-compressed object named <path>.br.
package storesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/kjk/molstore/atomicfile"
	"github.com/kjk/molstore/log"
	"github.com/kjk/molstore/u"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const compressedExt = ".br"

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// use http instead of https, for local minio
	Insecure     bool
	RequestTrace io.Writer
}

// ConfigFromEnv reads MOLSTORE_S3_ACCESS, MOLSTORE_S3_SECRET,
// MOLSTORE_S3_BUCKET, MOLSTORE_S3_ENDPOINT, MOLSTORE_S3_REGION
// and MOLSTORE_S3_INSECURE
func ConfigFromEnv() (*Config, error) {
	c := &Config{
		Access:   os.Getenv("MOLSTORE_S3_ACCESS"),
		Secret:   os.Getenv("MOLSTORE_S3_SECRET"),
		Bucket:   os.Getenv("MOLSTORE_S3_BUCKET"),
		Endpoint: os.Getenv("MOLSTORE_S3_ENDPOINT"),
		Region:   os.Getenv("MOLSTORE_S3_REGION"),
		Insecure: os.Getenv("MOLSTORE_S3_INSECURE") == "true",
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w (set MOLSTORE_S3_* environment variables)", err)
	}
	return c, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Access == "" {
		missing = append(missing, "access")
	}
	if c.Secret == "" {
		missing = append(missing, "secret")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storesync: missing %s in config", strings.Join(missing, ", "))
	}
	return nil
}

type Client struct {
	Client *minio.Client
	config *Config
	Bucket string
}

// New creates a client and checks that the bucket exists
func New(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("storesync: must provide config")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Access, config.Secret, ""),
		Region: config.Region,
		Secure: !config.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if config.RequestTrace != nil {
		mc.TraceOn(config.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("storesync: bucket '%s' doesn't exist", config.Bucket)
	}
	return &Client{
		Client: mc,
		config: config,
		Bucket: config.Bucket,
	}, nil
}

// RemotePath returns object name for a file at relPath
// (relative to storage directory)
func RemotePath(remotePrefix string, relPath string) string {
	return path.Join(remotePrefix, filepath.ToSlash(relPath)) + compressedExt
}

// listPrefix returns prefix for listing objects under remotePrefix.
// Empty prefix lists the whole bucket.
func listPrefix(remotePrefix string) string {
	if remotePrefix == "" {
		return ""
	}
	return strings.TrimSuffix(remotePrefix, "/") + "/"
}

// LocalPath is the inverse of RemotePath. It rejects objects outside of
// remotePrefix and names that would escape localDir.
func LocalPath(localDir string, remotePrefix string, remotePath string) (string, error) {
	rel, ok := strings.CutPrefix(remotePath, listPrefix(remotePrefix))
	if !ok {
		return "", fmt.Errorf("storesync: '%s' is not under '%s'", remotePath, remotePrefix)
	}
	rel, ok = strings.CutSuffix(rel, compressedExt)
	if !ok || rel == "" {
		return "", fmt.Errorf("storesync: '%s' is not a %s object", remotePath, compressedExt)
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("storesync: '%s' escapes '%s'", remotePath, localDir)
	}
	return filepath.Join(localDir, filepath.FromSlash(rel)), nil
}

// compressFile returns a reader of brotli-compressed content of a file.
// Compression runs in a goroutine and the reader must be closed.
func compressFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	go func() {
		err := u.BrCompress(pw, f, brotli.BestCompression)
		_ = f.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// decompressTo writes brotli-compressed r to dstPath atomically
func decompressTo(dstPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, brotli.NewReader(r)); err != nil {
		return err
	}
	return f.Close()
}

// Push uploads every file in localDir under remotePrefix.
// Returns number of uploaded files.
func (c *Client) Push(ctx context.Context, localDir string, remotePrefix string) (int, error) {
	files, err := u.ListFiles(localDir)
	if err != nil {
		return 0, err
	}
	for i, rel := range files {
		if err = ctx.Err(); err != nil {
			return i, err
		}
		localPath := filepath.Join(localDir, filepath.FromSlash(rel))
		remotePath := RemotePath(remotePrefix, rel)
		if err = c.uploadFile(ctx, remotePath, localPath); err != nil {
			return i, fmt.Errorf("upload of '%s' as '%s' failed with '%w'", localPath, remotePath, err)
		}
		log.Verbosef("uploaded '%s' as '%s'\n", localPath, remotePath)
	}
	log.Event("push", "dir", localDir, "prefix", remotePrefix, "files", len(files))
	return len(files), nil
}

func (c *Client) uploadFile(ctx context.Context, remotePath string, localPath string) error {
	r, err := compressFile(localPath)
	if err != nil {
		return err
	}
	defer r.Close()
	opts := minio.PutObjectOptions{
		ContentType: "application/x-brotli",
	}
	// size is unknown, minio does multi-part upload
	_, err = c.Client.PutObject(ctx, c.Bucket, remotePath, r, -1, opts)
	return err
}

// Pull downloads every object under remotePrefix to localDir.
// Returns number of downloaded files.
func (c *Client) Pull(ctx context.Context, remotePrefix string, localDir string) (int, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    listPrefix(remotePrefix),
		Recursive: true,
	}
	// stops the listing goroutine when we return early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	n := 0
	for obj := range c.Client.ListObjects(ctx, c.Bucket, opts) {
		if obj.Err != nil {
			return n, obj.Err
		}
		localPath, err := LocalPath(localDir, remotePrefix, obj.Key)
		if err != nil {
			log.Warnf("skipping %s\n", err)
			continue
		}
		if err = c.downloadFile(ctx, localPath, obj.Key); err != nil {
			return n, fmt.Errorf("download of '%s' to '%s' failed with '%w'", obj.Key, localPath, err)
		}
		log.Verbosef("downloaded '%s' to '%s'\n", obj.Key, localPath)
		n++
	}
	log.Event("pull", "dir", localDir, "prefix", remotePrefix, "files", n)
	return n, nil
}

func (c *Client) downloadFile(ctx context.Context, localPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx, c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()
	return decompressTo(localPath, obj)
}
