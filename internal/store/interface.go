package store

import (
	"context"
	"errors"
	"time"

	"codedrop/internal/models"
)

var (
	// ErrCodeTaken is returned when a reservation races with an existing one.
	ErrCodeTaken = errors.New("fetch code already reserved")
	// ErrCodeInUse is returned when a code already received its upload batch.
	ErrCodeInUse = errors.New("fetch code already in use")
)

// BlobFilter narrows ListBlobs. The zero value scans everything.
type BlobFilter struct {
	UniqueCode models.FetchCode
	AfterID    string
	Limit      int
}

// BlobMetaStore is the metadata persistence surface for stored files.
type BlobMetaStore interface {
	CreateBlob(ctx context.Context, blob *models.FileBlob) error
	GetBlob(ctx context.Context, id string) (*models.FileBlob, error)
	ListBlobs(ctx context.Context, filter BlobFilter) ([]models.FileBlob, error)
	CountBlobsByCode(ctx context.Context, code models.FetchCode) (int, error)
	DeleteBlob(ctx context.Context, id string) (bool, error)
}

// CodeStore tracks which fetch codes have been handed out.
type CodeStore interface {
	CodeInUse(ctx context.Context, code models.FetchCode) (bool, error)
	ReserveCode(ctx context.Context, code models.FetchCode, at time.Time) error
	ClaimCode(ctx context.Context, code models.FetchCode, at time.Time) error
	ReleaseCode(ctx context.Context, code models.FetchCode) error
	GetCodeReservation(ctx context.Context, code models.FetchCode) (*models.CodeReservation, error)
	PurgeCodeReservations(ctx context.Context, before time.Time) (int64, error)
}

var (
	_ BlobMetaStore = (*Store)(nil)
	_ CodeStore     = (*Store)(nil)
)
