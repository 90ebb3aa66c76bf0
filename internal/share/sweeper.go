package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"codedrop/internal/objectstore"
	"codedrop/internal/store"
)

const (
	DefaultRetention     = 6 * time.Hour
	DefaultSweepInterval = time.Hour
	DefaultSweepBatch    = 500
)

// ErrSweepInProgress is returned by SweepOnce while another sweep is scanning.
var ErrSweepInProgress = &Error{Kind: KindValidation, Code: CodeSweepInProgress, Err: errors.New("sweep already in progress")}

// SweeperConfig controls expiry.
type SweeperConfig struct {
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
}

func (c SweeperConfig) normalized() SweeperConfig {
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Interval <= 0 {
		c.Interval = DefaultSweepInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultSweepBatch
	}
	return c
}

// SweepResult reports one sweep.
type SweepResult struct {
	Scanned        int       `json:"scanned"`
	Expired        int       `json:"expired"`
	Deleted        int       `json:"deleted"`
	Failed         int       `json:"failed"`
	ReclaimedBytes int64     `json:"reclaimed_bytes"`
	PurgedCodes    int64     `json:"purged_codes"`
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
}

// Sweeper deletes files older than the retention window on a fixed interval.
type Sweeper struct {
	bucket  *objectstore.Bucket
	codes   store.CodeStore
	deleter *DeletionService
	cfg     SweeperConfig
	logger  *slog.Logger
	now     func() time.Time

	scanning atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a Sweeper. It does nothing until Start or SweepOnce.
func NewSweeper(bucket *objectstore.Bucket, codes store.CodeStore, deleter *DeletionService, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		bucket:  bucket,
		codes:   codes,
		deleter: deleter,
		cfg:     cfg.normalized(),
		logger:  logger.With("component", "sweeper"),
		now:     time.Now,
	}
}

// Config returns the effective expiry settings.
func (s *Sweeper) Config() SweeperConfig {
	return s.cfg
}

// Start runs a sweep immediately and then once per interval until ctx is
// done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("sweeper already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("sweeper started", "interval", s.cfg.Interval, "retention", s.cfg.Retention)
	return nil
}

// Stop halts the ticker and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			s.logger.Debug("sweep skipped, previous sweep still running")
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sweep failed", "error", err)
	}
}

// SweepOnce runs one sweep synchronously. Per-file failures are counted and
// do not stop the scan.
func (s *Sweeper) SweepOnce(ctx context.Context) (result SweepResult, err error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return SweepResult{}, ErrSweepInProgress
	}
	defer s.scanning.Store(false)

	started := s.now()
	result.StartedAt = started.UTC()
	defer func() {
		result.Duration = s.now().Sub(started).String()
	}()

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := s.bucket.Find(ctx, objectstore.Filter{AfterID: after, Limit: s.cfg.BatchSize})
		if err != nil {
			return result, storeIOError(fmt.Errorf("scan blobs after %q: %w", after, err))
		}
		if len(page) == 0 {
			break
		}

		for _, blob := range page {
			result.Scanned++
			if blob.Age(started) <= s.cfg.Retention {
				continue
			}
			result.Expired++
			if err := s.deleter.DeleteBlob(ctx, blob.ID); err != nil {
				if IsNotFound(err) {
					continue
				}
				result.Failed++
				s.logger.Warn("expired file not deleted", "id", blob.ID, "code", blob.Metadata.UniqueCode, "error", err)
				continue
			}
			result.Deleted++
			result.ReclaimedBytes += blob.SizeBytes
		}

		after = page[len(page)-1].ID
		if len(page) < s.cfg.BatchSize {
			break
		}
	}

	purged, err := s.codes.PurgeCodeReservations(ctx, started.Add(-s.cfg.Retention))
	if err != nil {
		s.logger.Warn("purge code reservations", "error", err)
	}
	result.PurgedCodes = purged

	s.logger.Info("sweep finished",
		"scanned", result.Scanned,
		"expired", result.Expired,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"purged_codes", result.PurgedCodes,
	)
	return result, nil
}
