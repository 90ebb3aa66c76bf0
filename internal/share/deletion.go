package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codedrop/internal/models"
	"codedrop/internal/objectstore"
)

// DeleteResult reports the outcome of removing every file under a code.
type DeleteResult struct {
	Code      models.FetchCode `json:"unique_code"`
	Deleted   int              `json:"deleted"`
	Failed    int              `json:"failed,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
}

// DeletionService removes stored files by id or by code.
type DeletionService struct {
	bucket *objectstore.Bucket
	logger *slog.Logger
}

// NewDeletionService constructs a DeletionService.
func NewDeletionService(bucket *objectstore.Bucket, logger *slog.Logger) *DeletionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeletionService{bucket: bucket, logger: logger.With("component", "deletion")}
}

// DeleteBlob removes one file.
func (s *DeletionService) DeleteBlob(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationError(CodeInvalidArgument, "file id is required")
	}
	if err := s.bucket.Delete(ctx, id); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return notFoundError(CodeFileNotFound, "file not found")
		}
		return storeIOError(err)
	}
	return nil
}

// DeleteByCode removes every file tagged with code. No matches is not an error.
// Files that fail to delete are counted and the call returns a store I/O error.
func (s *DeletionService) DeleteByCode(ctx context.Context, code models.FetchCode) (DeleteResult, error) {
	parsed, err := parseCode(string(code))
	if err != nil {
		return DeleteResult{Code: code}, err
	}
	result := DeleteResult{Code: parsed}

	blobs, err := s.bucket.Find(ctx, objectstore.Filter{UniqueCode: parsed})
	if err != nil {
		return result, storeIOError(err)
	}
	for _, blob := range blobs {
		if err := s.DeleteBlob(ctx, blob.ID); err != nil {
			if IsNotFound(err) {
				continue
			}
			result.Failed++
			s.logger.Warn("delete failed", "code", parsed, "id", blob.ID, "error", err)
			continue
		}
		result.Deleted++
	}
	if result.Failed > 0 {
		return result, storeIOError(fmt.Errorf("%d of %d files under code %s could not be deleted", result.Failed, len(blobs), parsed))
	}
	return result, nil
}

func parseCode(raw string) (models.FetchCode, error) {
	if strings.TrimSpace(raw) == "" {
		return "", validationError(CodeMissingCode, "unique code is required")
	}
	code, err := models.ParseFetchCode(raw)
	if err != nil {
		return "", &Error{Kind: KindValidation, Code: CodeInvalidCode, Err: err}
	}
	return code, nil
}
