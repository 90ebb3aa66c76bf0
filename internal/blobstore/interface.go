package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no payload exists under the key.
var ErrNotFound = errors.New("blob payload not found")

// PutResult describes one persisted blob payload.
type PutResult struct {
	Key       string
	Checksum  string
	SizeBytes int64
}

// BlobStore is the byte-storage abstraction behind objectstore.Bucket.
// Put stores the payload for name and returns the key that Open and Delete accept.
// Delete of a missing key is a no-op.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Backend() string
}
