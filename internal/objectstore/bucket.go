// Package objectstore groups uploaded files under fetch codes. It pairs the
// SQLite metadata in internal/store with a byte backend from internal/blobstore.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"codedrop/internal/blobstore"
	"codedrop/internal/models"
	"codedrop/internal/store"
)

// ErrNotFound is returned when an id does not resolve to a stored blob.
var ErrNotFound = errors.New("blob not found")

// Filter selects blobs for Find. The zero value matches every blob in id order.
type Filter struct {
	UniqueCode models.FetchCode
	AfterID    string
	Limit      int
}

// Bucket is the code-keyed object store.
type Bucket struct {
	meta   store.BlobMetaStore
	bytes  blobstore.BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Bucket.
func New(meta store.BlobMetaStore, bytes blobstore.BlobStore, logger *slog.Logger) *Bucket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bucket{
		meta:   meta,
		bytes:  bytes,
		logger: logger.With("component", "bucket"),
		now:    time.Now,
	}
}

// Backend names the byte backend in use.
func (b *Bucket) Backend() string {
	return b.bytes.Backend()
}

// OpenUploadStream starts storing one file. Bytes written to the stream are
// persisted as they arrive; the blob becomes visible only after Close succeeds.
func (b *Bucket) OpenUploadStream(ctx context.Context, filename string, meta models.BlobMetadata, opts ...UploadOption) (*UploadStream, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	name, err := models.NormalizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var o uploadOptions
	for _, opt := range opts {
		opt(&o)
	}

	blob := &models.FileBlob{
		ID:             store.GenerateBlobID(),
		Filename:       name,
		ContentType:    strings.TrimSpace(o.contentType),
		StorageBackend: b.bytes.Backend(),
		Metadata:       meta,
	}
	return newUploadStream(ctx, b, blob), nil
}

// OpenDownloadStream opens the bytes of a blob for reading.
func (b *Bucket) OpenDownloadStream(ctx context.Context, id string) (*DownloadStream, error) {
	blob, err := b.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := b.bytes.Open(ctx, blob.BlobKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	return &DownloadStream{ReadCloser: rc, Blob: *blob}, nil
}

// Stat returns the metadata of one blob.
func (b *Bucket) Stat(ctx context.Context, id string) (*models.FileBlob, error) {
	return b.lookup(ctx, id)
}

// Find returns blob metadata matching filter. A code filter orders by filename.
func (b *Bucket) Find(ctx context.Context, filter Filter) ([]models.FileBlob, error) {
	blobs, err := b.meta.ListBlobs(ctx, store.BlobFilter{
		UniqueCode: filter.UniqueCode,
		AfterID:    filter.AfterID,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find blobs: %w", err)
	}
	return blobs, nil
}

// Delete removes a blob. The metadata row goes first so a failed byte delete
// never leaves a listed file without content.
func (b *Bucket) Delete(ctx context.Context, id string) error {
	blob, err := b.lookup(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := b.meta.DeleteBlob(ctx, blob.ID)
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := b.bytes.Delete(ctx, blob.BlobKey); err != nil {
		b.logger.Warn("blob bytes left behind", "id", blob.ID, "key", blob.BlobKey, "error", err)
		return fmt.Errorf("delete blob bytes %s: %w", id, err)
	}
	return nil
}

func (b *Bucket) lookup(ctx context.Context, id string) (*models.FileBlob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	blob, err := b.meta.GetBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return blob, nil
}

// DownloadStream is an open blob plus its metadata.
type DownloadStream struct {
	io.ReadCloser
	Blob models.FileBlob
}
