package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"codedrop/internal/models"
	"codedrop/internal/objectstore"
	"codedrop/internal/store"
)

const (
	DefaultMaxFileBytes  int64 = 8 << 20
	DefaultMaxBatchBytes int64 = 20 << 20

	reserveAttempts = 5
)

var errSessionCancelled = errors.New("upload session cancelled")

// Limits caps upload sizes. MaxFileBytes applies when a batch holds a single file.
type Limits struct {
	MaxFileBytes  int64 `json:"max_file_bytes"`
	MaxBatchBytes int64 `json:"max_batch_bytes"`
}

// DefaultLimits returns the 8 MiB single-file and 20 MiB batch caps.
func DefaultLimits() Limits {
	return Limits{MaxFileBytes: DefaultMaxFileBytes, MaxBatchBytes: DefaultMaxBatchBytes}
}

func (l Limits) normalized() Limits {
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = DefaultMaxFileBytes
	}
	if l.MaxBatchBytes <= 0 {
		l.MaxBatchBytes = DefaultMaxBatchBytes
	}
	return l
}

// UploadFile is one file of a batch. DeclaredSize is what the client claimed;
// the streamed bytes are counted independently.
type UploadFile struct {
	Filename     string
	ContentType  string
	Content      io.Reader
	DeclaredSize int64
}

// UploadResult lists the stored files of a completed batch.
type UploadResult struct {
	Code  models.FetchCode `json:"unique_code"`
	Files []FileEntry      `json:"files"`
}

// UploadService runs upload sessions: reserve a code, stream a batch under it,
// and roll the batch back when any file fails.
type UploadService struct {
	bucket  *objectstore.Bucket
	codes   store.CodeStore
	deleter *DeletionService
	limits  Limits
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[models.FetchCode]*uploadSession
}

type uploadSession struct {
	code       models.FetchCode
	uploadDate time.Time
	cancel     context.CancelCauseFunc
	done       chan struct{}
	batchBytes atomic.Int64
}

// NewUploadService constructs an UploadService.
func NewUploadService(bucket *objectstore.Bucket, codes store.CodeStore, deleter *DeletionService, limits Limits, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		bucket:   bucket,
		codes:    codes,
		deleter:  deleter,
		limits:   limits.normalized(),
		logger:   logger.With("component", "upload"),
		now:      time.Now,
		sessions: map[models.FetchCode]*uploadSession{},
	}
}

// Limits returns the effective size caps.
func (s *UploadService) Limits() Limits {
	return s.limits
}

// BeginSession reserves a fresh code without consuming any file data.
func (s *UploadService) BeginSession(ctx context.Context) (models.FetchCode, error) {
	exists := func(code models.FetchCode) (bool, error) {
		return s.codes.CodeInUse(ctx, code)
	}
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		code, err := store.GenerateFetchCode(exists)
		if err != nil {
			return "", storeIOError(fmt.Errorf("generate fetch code: %w", err))
		}
		err = s.codes.ReserveCode(ctx, code, s.now().UTC())
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return "", storeIOError(fmt.Errorf("reserve fetch code: %w", err))
		}
		s.logger.Debug("code reserved", "code", code)
		return code, nil
	}
	return "", storeIOError(fmt.Errorf("unable to reserve a fetch code"))
}

// UploadFiles stores every file under code. Either all files become visible
// or, after any failure, none do.
func (s *UploadService) UploadFiles(ctx context.Context, code models.FetchCode, files []UploadFile) (UploadResult, error) {
	parsed, err := parseCode(string(code))
	if err != nil {
		return UploadResult{}, err
	}
	names, err := s.validateBatch(files)
	if err != nil {
		return UploadResult{}, err
	}

	if err := s.codes.ClaimCode(ctx, parsed, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrCodeInUse) {
			return UploadResult{}, validationError(CodeCodeInUse, "unique code %s already holds an upload", parsed)
		}
		return UploadResult{}, storeIOError(fmt.Errorf("claim fetch code: %w", err))
	}

	sessionCtx, sess := s.openSession(ctx, parsed)
	defer s.closeSession(sess)

	fileLimit := int64(0)
	if len(files) == 1 {
		fileLimit = s.limits.MaxFileBytes
	}

	stored := make([]models.FileBlob, len(files))
	g, gctx := errgroup.WithContext(sessionCtx)
	for i, file := range files {
		g.Go(func() error {
			blob, err := s.storeFile(gctx, sess, names[i], file, fileLimit)
			if err != nil {
				return err
			}
			stored[i] = blob
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		cause := s.classifyFailure(sessionCtx, err)
		s.rollback(ctx, parsed, cause)
		return UploadResult{}, cause
	}

	result := UploadResult{Code: parsed, Files: make([]FileEntry, 0, len(stored))}
	for _, blob := range stored {
		result.Files = append(result.Files, fileEntry(blob))
	}
	s.logger.Info("upload stored", "code", parsed, "files", len(stored), "bytes", sess.batchBytes.Load())
	return result, nil
}

// CancelSession stops any in-flight upload for code, waits for it to roll back,
// then deletes whatever is stored under the code.
func (s *UploadService) CancelSession(ctx context.Context, code models.FetchCode) (DeleteResult, error) {
	parsed, err := parseCode(string(code))
	if err != nil {
		return DeleteResult{Code: code}, err
	}

	cancelled := false
	s.mu.Lock()
	sess := s.sessions[parsed]
	s.mu.Unlock()
	if sess != nil {
		sess.cancel(errSessionCancelled)
		select {
		case <-sess.done:
		case <-ctx.Done():
			return DeleteResult{Code: parsed}, storeIOError(fmt.Errorf("wait for upload session %s: %w", parsed, ctx.Err()))
		}
		cancelled = true
	}

	result, err := s.deleter.DeleteByCode(ctx, parsed)
	result.Cancelled = cancelled
	return result, err
}

func (s *UploadService) validateBatch(files []UploadFile) ([]string, error) {
	if len(files) == 0 {
		return nil, validationError(CodeNoFiles, "no files were uploaded")
	}

	names := make([]string, len(files))
	var total int64
	for i, file := range files {
		name, err := models.NormalizeFilename(file.Filename)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Code: CodeInvalidFilename, Err: err}
		}
		if file.Content == nil {
			return nil, validationError(CodeInvalidArgument, "file %s has no content", name)
		}
		if file.DeclaredSize > 0 {
			total += file.DeclaredSize
		}
		names[i] = name
	}

	if len(files) == 1 && files[0].DeclaredSize > s.limits.MaxFileBytes {
		return nil, fileTooLarge(names[0], files[0].DeclaredSize, s.limits.MaxFileBytes)
	}
	if total > s.limits.MaxBatchBytes {
		return nil, batchTooLarge(total, s.limits.MaxBatchBytes)
	}
	return names, nil
}

func (s *UploadService) storeFile(ctx context.Context, sess *uploadSession, name string, file UploadFile, fileLimit int64) (models.FileBlob, error) {
	meta := models.BlobMetadata{UniqueCode: sess.code, UploadDate: sess.uploadDate}
	stream, err := s.bucket.OpenUploadStream(ctx, name, meta, objectstore.WithContentType(file.ContentType))
	if err != nil {
		return models.FileBlob{}, storeIOError(fmt.Errorf("open upload stream for %s: %w", name, err))
	}

	src := &capReader{
		ctx:        ctx,
		r:          file.Content,
		name:       name,
		fileLimit:  fileLimit,
		batch:      &sess.batchBytes,
		batchLimit: s.limits.MaxBatchBytes,
	}
	if _, err := io.Copy(stream, src); err != nil {
		stream.Abort(err)
		var shareErr *Error
		if errors.As(err, &shareErr) {
			return models.FileBlob{}, shareErr
		}
		return models.FileBlob{}, storeIOError(fmt.Errorf("stream %s: %w", name, err))
	}
	if err := stream.Close(); err != nil {
		return models.FileBlob{}, storeIOError(err)
	}
	return stream.Blob(), nil
}

func (s *UploadService) openSession(ctx context.Context, code models.FetchCode) (context.Context, *uploadSession) {
	sessionCtx, cancel := context.WithCancelCause(ctx)
	sess := &uploadSession{
		code:       code,
		uploadDate: s.now().UTC(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[code] = sess
	s.mu.Unlock()
	return sessionCtx, sess
}

func (s *UploadService) closeSession(sess *uploadSession) {
	s.mu.Lock()
	if s.sessions[sess.code] == sess {
		delete(s.sessions, sess.code)
	}
	s.mu.Unlock()
	sess.cancel(nil)
	close(sess.done)
}

// classifyFailure prefers the reason the session was stopped over the
// secondary errors it caused in sibling writes.
func (s *UploadService) classifyFailure(sessionCtx context.Context, err error) error {
	if errors.Is(context.Cause(sessionCtx), errSessionCancelled) {
		return validationError(CodeUploadCancelled, "upload under code was cancelled")
	}
	var shareErr *Error
	if errors.As(err, &shareErr) && shareErr.Kind == KindValidation {
		return shareErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return validationError(CodeUploadCancelled, "upload cancelled: %v", err)
	}
	return storeIOError(err)
}

// rollback runs detached from ctx so an aborted request still cleans up.
func (s *UploadService) rollback(ctx context.Context, code models.FetchCode, cause error) {
	ctx = context.WithoutCancel(ctx)
	result, err := s.deleter.DeleteByCode(ctx, code)
	if err != nil {
		s.logger.Error("upload rollback incomplete", "code", code, "deleted", result.Deleted, "failed", result.Failed, "cause", cause, "error", err)
		return
	}
	if err := s.codes.ReleaseCode(ctx, code); err != nil {
		s.logger.Warn("release code after rollback", "code", code, "error", err)
	}
	s.logger.Warn("upload rolled back", "code", code, "deleted", result.Deleted, "cause", cause)
}

// capReader enforces the per-file and per-batch caps on the bytes actually
// streamed and stops once ctx is done.
type capReader struct {
	ctx        context.Context
	r          io.Reader
	name       string
	n          int64
	fileLimit  int64
	batch      *atomic.Int64
	batchLimit int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		if c.fileLimit > 0 && c.n > c.fileLimit {
			return 0, fileTooLarge(c.name, c.n, c.fileLimit)
		}
		if total := c.batch.Add(int64(n)); c.batchLimit > 0 && total > c.batchLimit {
			return 0, batchTooLarge(total, c.batchLimit)
		}
	}
	return n, err
}

func fileTooLarge(name string, size, limit int64) *Error {
	return validationError(CodeFileTooLarge, "file %s is %s, larger than the %s limit",
		name, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
}

func batchTooLarge(size, limit int64) *Error {
	return validationError(CodeBatchTooLarge, "upload totals %s, larger than the %s limit",
		humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
}
