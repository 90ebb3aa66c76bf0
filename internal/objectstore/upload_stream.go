package objectstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"codedrop/internal/blobstore"
	"codedrop/internal/models"
)

// sniffLen matches the default read limit of mimetype.
const sniffLen = 3072

var errUploadAborted = errors.New("upload aborted")

// UploadOption adjusts a single upload stream.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	contentType string
}

// WithContentType records the client-declared type. Generic or empty types are
// replaced by one sniffed from the first bytes of the stream.
func WithContentType(contentType string) UploadOption {
	return func(o *uploadOptions) {
		o.contentType = contentType
	}
}

// UploadStream is an io.WriteCloser that streams one file into the bucket.
// It is not safe for concurrent writes.
type UploadStream struct {
	ctx    context.Context
	bucket *Bucket
	blob   *models.FileBlob
	pw     *io.PipeWriter

	done   chan struct{}
	put    blobstore.PutResult
	putErr error

	once   sync.Once
	result error
}

func newUploadStream(ctx context.Context, b *Bucket, blob *models.FileBlob) *UploadStream {
	pr, pw := io.Pipe()
	s := &UploadStream{
		ctx:    ctx,
		bucket: b,
		blob:   blob,
		pw:     pw,
		done:   make(chan struct{}),
	}
	go s.run(pr)
	return s
}

func (s *UploadStream) run(pr *io.PipeReader) {
	defer close(s.done)

	br := bufio.NewReaderSize(pr, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		s.putErr = err
		_ = pr.CloseWithError(err)
		return
	}
	s.blob.ContentType = detectContentType(s.blob.ContentType, head)

	s.put, s.putErr = s.bucket.bytes.Put(s.ctx, s.blob.ID, br)
	if s.putErr != nil {
		_ = pr.CloseWithError(s.putErr)
	}
}

// ID returns the id the blob will be stored under.
func (s *UploadStream) ID() string {
	return s.blob.ID
}

// Blob returns the stored metadata. It is complete only after Close returns nil.
func (s *UploadStream) Blob() models.FileBlob {
	return *s.blob
}

// Write streams p to the byte backend.
func (s *UploadStream) Write(p []byte) (int, error) {
	n, err := s.pw.Write(p)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", s.blob.Filename, err)
	}
	return n, nil
}

// Close finishes the upload and records the metadata row.
func (s *UploadStream) Close() error {
	s.once.Do(func() {
		s.result = s.finish()
	})
	return s.result
}

// Abort stops the upload and discards anything written. Abort after a
// successful Close does nothing; use Bucket.Delete to remove the blob.
func (s *UploadStream) Abort(cause error) {
	if cause == nil {
		cause = errUploadAborted
	}
	s.once.Do(func() {
		_ = s.pw.CloseWithError(cause)
		<-s.done
		if s.putErr == nil {
			s.discard()
		}
		s.result = cause
	})
}

func (s *UploadStream) finish() error {
	_ = s.pw.Close()
	<-s.done
	if s.putErr != nil {
		return fmt.Errorf("store %s: %w", s.blob.Filename, s.putErr)
	}

	s.blob.BlobKey = s.put.Key
	s.blob.SizeBytes = s.put.SizeBytes
	s.blob.Checksum = s.put.Checksum
	if err := s.bucket.meta.CreateBlob(s.ctx, s.blob); err != nil {
		s.discard()
		return fmt.Errorf("record %s: %w", s.blob.Filename, err)
	}
	return nil
}

func (s *UploadStream) discard() {
	if s.put.Key == "" {
		return
	}
	if err := s.bucket.bytes.Delete(context.WithoutCancel(s.ctx), s.put.Key); err != nil {
		s.bucket.logger.Warn("discard upload bytes", "id", s.blob.ID, "key", s.put.Key, "error", err)
	}
}

func detectContentType(declared string, head []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != models.DefaultContentType {
		return declared
	}
	if len(head) == 0 {
		return models.DefaultContentType
	}
	return mimetype.Detect(head).String()
}
