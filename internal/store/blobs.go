package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"codedrop/internal/models"
)

const blobColumns = "id, filename, content_type, size_bytes, checksum, storage_backend, blob_key, unique_code, upload_date, created_at"

// CreateBlob inserts one blob metadata row. The row makes the file visible to lookups.
func (s *Store) CreateBlob(ctx context.Context, blob *models.FileBlob) error {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	blob.ID = strings.TrimSpace(blob.ID)
	blob.BlobKey = strings.TrimSpace(blob.BlobKey)
	if blob.ID == "" {
		return fmt.Errorf("blob id is required")
	}
	if blob.BlobKey == "" {
		return fmt.Errorf("blob_key is required")
	}
	if blob.SizeBytes < 0 {
		return fmt.Errorf("size_bytes must be >= 0")
	}
	if err := blob.Metadata.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(blob.ContentType) == "" {
		blob.ContentType = models.DefaultContentType
	}
	if strings.TrimSpace(blob.StorageBackend) == "" {
		blob.StorageBackend = string(models.StorageBackendLocal)
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, filename, content_type, size_bytes, checksum, storage_backend, blob_key, unique_code, upload_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		blob.ID,
		blob.Filename,
		blob.ContentType,
		blob.SizeBytes,
		nullIfEmpty(blob.Checksum),
		blob.StorageBackend,
		blob.BlobKey,
		string(blob.Metadata.UniqueCode),
		formatTime(blob.Metadata.UploadDate),
		formatTime(blob.CreatedAt),
	)
	return err
}

// GetBlob returns one blob by id, or nil when it does not exist.
func (s *Store) GetBlob(ctx context.Context, id string) (*models.FileBlob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE id = ?`, id)
	return scanBlob(row)
}

// ListBlobs lists blob metadata. With a code the result is ordered by filename,
// otherwise by id so callers can page with AfterID.
func (s *Store) ListBlobs(ctx context.Context, filter BlobFilter) ([]models.FileBlob, error) {
	query := `SELECT ` + blobColumns + ` FROM blobs`
	where := []string{}
	args := []any{}
	if filter.UniqueCode != "" {
		where = append(where, "unique_code = ?")
		args = append(args, string(filter.UniqueCode))
	}
	if filter.AfterID != "" {
		where = append(where, "id > ?")
		args = append(args, filter.AfterID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.UniqueCode != "" && filter.AfterID == "" {
		query += " ORDER BY filename ASC, id ASC"
	} else {
		query += " ORDER BY id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blobs := []models.FileBlob{}
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			blobs = append(blobs, *blob)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blobs, nil
}

// CountBlobsByCode counts blobs tagged with code.
func (s *Store) CountBlobsByCode(ctx context.Context, code models.FetchCode) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs WHERE unique_code = ?", string(code)).Scan(&count)
	return count, err
}

// DeleteBlob deletes one blob row and reports whether it existed.
func (s *Store) DeleteBlob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanBlob(scanner interface {
	Scan(dest ...any) error
}) (*models.FileBlob, error) {
	blob := models.FileBlob{}
	var checksum sql.NullString
	var code, uploadDate, createdAt string

	err := scanner.Scan(
		&blob.ID,
		&blob.Filename,
		&blob.ContentType,
		&blob.SizeBytes,
		&checksum,
		&blob.StorageBackend,
		&blob.BlobKey,
		&code,
		&uploadDate,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	blob.Checksum = checksum.String
	blob.Metadata.UniqueCode = models.FetchCode(code)

	parsedUpload, err := parseTime(uploadDate)
	if err != nil {
		return nil, fmt.Errorf("parse upload_date: %w", err)
	}
	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	blob.Metadata.UploadDate = parsedUpload
	blob.CreatedAt = parsedCreated

	return &blob, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
