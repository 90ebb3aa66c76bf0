package share

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"codedrop/internal/models"
	"codedrop/internal/objectstore"
)

// FileEntry is one listed file.
type FileEntry struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	SizeBytes   int64            `json:"size_bytes"`
	UniqueCode  models.FetchCode `json:"unique_code"`
	UploadDate  time.Time        `json:"upload_date"`
}

// Download is an open file stream with its framing metadata.
type Download struct {
	Reader      io.ReadCloser
	ID          string
	Filename    string
	ContentType string
	Length      int64
	Checksum    string
	UploadDate  time.Time
}

// RetrievalService lists and streams stored files.
type RetrievalService struct {
	bucket *objectstore.Bucket
}

// NewRetrievalService constructs a RetrievalService.
func NewRetrievalService(bucket *objectstore.Bucket) *RetrievalService {
	return &RetrievalService{bucket: bucket}
}

// ListByCode returns the files stored under code, ordered by filename.
// An unknown or expired code yields an empty slice.
func (s *RetrievalService) ListByCode(ctx context.Context, code models.FetchCode) ([]FileEntry, error) {
	parsed, err := parseCode(string(code))
	if err != nil {
		return nil, err
	}
	blobs, err := s.bucket.Find(ctx, objectstore.Filter{UniqueCode: parsed})
	if err != nil {
		return nil, storeIOError(err)
	}
	entries := make([]FileEntry, 0, len(blobs))
	for _, blob := range blobs {
		entries = append(entries, fileEntry(blob))
	}
	return entries, nil
}

// OpenDownload opens a file for streaming. The caller closes Reader.
func (s *RetrievalService) OpenDownload(ctx context.Context, id string) (*Download, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError(CodeInvalidArgument, "file id is required")
	}
	stream, err := s.bucket.OpenDownloadStream(ctx, id)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, notFoundError(CodeFileNotFound, "file not found")
		}
		return nil, storeIOError(err)
	}
	contentType := stream.Blob.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	return &Download{
		Reader:      stream,
		ID:          stream.Blob.ID,
		Filename:    stream.Blob.Filename,
		ContentType: contentType,
		Length:      stream.Blob.SizeBytes,
		Checksum:    stream.Blob.Checksum,
		UploadDate:  stream.Blob.Metadata.UploadDate,
	}, nil
}

func fileEntry(blob models.FileBlob) FileEntry {
	return FileEntry{
		ID:          blob.ID,
		Filename:    blob.Filename,
		ContentType: blob.ContentType,
		SizeBytes:   blob.SizeBytes,
		UniqueCode:  blob.Metadata.UniqueCode,
		UploadDate:  blob.Metadata.UploadDate,
	}
}
