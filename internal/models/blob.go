package models

import (
	"fmt"
	"strings"
	"time"
)

// StorageBackend names the byte backend holding a blob's content.
type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendS3    StorageBackend = "s3"
)

// DefaultContentType is reported for blobs whose type could not be determined.
const DefaultContentType = "application/octet-stream"

// BlobMetadata is the typed metadata every stored file carries.
type BlobMetadata struct {
	UniqueCode FetchCode `json:"uniqueCode"`
	UploadDate time.Time `json:"uploadDate"`
}

// Validate checks that the metadata carries a well-formed code and timestamp.
func (m BlobMetadata) Validate() error {
	if _, err := ParseFetchCode(string(m.UniqueCode)); err != nil {
		return err
	}
	if m.UploadDate.IsZero() {
		return fmt.Errorf("upload date is required")
	}
	return nil
}

// FileBlob is one uploaded file: content location plus framing metadata.
type FileBlob struct {
	ID             string       `json:"id"`
	Filename       string       `json:"filename"`
	ContentType    string       `json:"content_type"`
	SizeBytes      int64        `json:"size_bytes"`
	Checksum       string       `json:"checksum,omitempty"`
	StorageBackend string       `json:"storage_backend"`
	BlobKey        string       `json:"-"`
	Metadata       BlobMetadata `json:"metadata"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Age reports how long ago the blob was uploaded relative to now.
func (b FileBlob) Age(now time.Time) time.Duration {
	return now.Sub(b.Metadata.UploadDate)
}

// CodeReservation records that a fetch code was handed out.
type CodeReservation struct {
	Code       FetchCode  `json:"code"`
	ReservedAt time.Time  `json:"reserved_at"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
}

// NormalizeFilename strips any client-side directory components from a filename.
func NormalizeFilename(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("filename is required")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("filename contains control characters")
		}
	}
	return name, nil
}
