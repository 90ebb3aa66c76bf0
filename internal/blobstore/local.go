package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"codedrop/internal/models"
)

const localObjectsDir = "objects"

// LocalFS stores blob bytes in a sharded tree on the local filesystem.
type LocalFS struct {
	root string
}

// NewLocalFS creates a local store rooted at root.
func NewLocalFS(root string) (*LocalFS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{abs, filepath.Join(abs, localObjectsDir), filepath.Join(abs, "tmp")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &LocalFS{root: abs}, nil
}

// Backend reports the storage backend name recorded on blobs.
func (l *LocalFS) Backend() string {
	return string(models.StorageBackendLocal)
}

// Put streams bytes into a temp file, hashing as it goes, then renames into place.
// A cancelled ctx aborts the copy and leaves nothing behind.
func (l *LocalFS) Put(ctx context.Context, name string, r io.Reader) (PutResult, error) {
	var zero PutResult
	if l == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	key, err := localKey(name)
	if err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	sum := newChecksumWriter()
	if _, err := io.Copy(io.MultiWriter(tmp, sum), contextReader{ctx: ctx, r: r}); err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return zero, err
	}

	return PutResult{Key: key, Checksum: sum.Sum(), SizeBytes: sum.n}, nil
}

// Open returns a reader for the payload stored under key.
func (l *LocalFS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if l == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

// Delete removes a payload. Missing files are ignored.
func (l *LocalFS) Delete(ctx context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func localKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 4 || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return fmt.Sprintf("%s/%s/%s/%s", localObjectsDir, name[0:2], name[2:4], name), nil
}

func (l *LocalFS) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(l.root, clean), nil
}
