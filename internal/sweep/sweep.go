// Package sweep schedules audits over the library: an incremental
// quick-mode sweep for background refreshes and a chunked full-mode session
// for interactive audits.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shelfaudit/internal/audit"
	"shelfaudit/internal/config"
	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
	"shelfaudit/internal/task"
	"shelfaudit/internal/timeutil"
)

// Sweeper runs incremental quick-mode audits. Books whose cache entry is at
// least as new as their last modification are skipped entirely, so a sweep
// over an unchanged library performs zero writes.
type Sweeper struct {
	cfg     *config.Config
	library *library.Store
	health  *healthdb.Store
	policy  *audit.Policy
	logger  *slog.Logger

	// Commit persists one batch of verdicts. Tests substitute it to count
	// and fault-inject batch commits; it defaults to the health store.
	Commit func(ctx context.Context, entries []healthdb.Entry) error

	now func() time.Time
}

// New builds a sweeper over the given stores.
func New(cfg *config.Config, lib *library.Store, health *healthdb.Store, policy *audit.Policy, logger *slog.Logger) *Sweeper {
	s := &Sweeper{
		cfg:     cfg,
		library: lib,
		health:  health,
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "sweep"),
		now:     time.Now,
	}
	s.Commit = health.UpsertBatch
	return s
}

// Run executes one incremental sweep. It is shaped as a task.Func so it can
// be submitted to the runtime or invoked directly with a detached handle.
// Cancellation is observed per book; entries committed before a
// cancellation stay committed.
func (s *Sweeper) Run(ctx context.Context, h *task.Handle) error {
	scanTimes, err := s.health.ScanTimes(ctx)
	if err != nil {
		return fmt.Errorf("load scan times: %w", err)
	}
	books, err := s.library.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}

	selection := selectStale(books, scanTimes)
	if len(selection) == 0 {
		h.SetProgress(1, "library up to date")
		s.logger.Info("sweep found nothing to scan", logging.Int("books", len(books)))
		return nil
	}

	h.SetProgress(0, fmt.Sprintf("auditing %d of %d books", len(selection), len(books)))
	s.logger.Info("sweep starting",
		logging.Int("stale", len(selection)),
		logging.Int("books", len(books)))

	batchSize := s.cfg.Audit.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	batch := make([]healthdb.Entry, 0, batchSize)
	processed := 0
	for _, book := range selection {
		if h.CancelRequested() {
			return task.ErrCancelled
		}
		verdict := s.policy.Evaluate(book, s.cfg.Paths.LibraryDir, true)
		batch = append(batch, s.entry(book.ID, verdict))
		processed++

		if len(batch) >= batchSize {
			if err := s.commitBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			progress := float64(processed) / float64(len(selection))
			if err := h.Checkpoint(progress, fmt.Sprintf("audited %d/%d books", processed, len(selection))); err != nil {
				return err
			}
		}
	}
	if err := s.commitBatch(ctx, batch); err != nil {
		return err
	}
	h.SetProgress(1, fmt.Sprintf("audited %d books", processed))
	s.logger.Info("sweep finished", logging.Int("audited", processed))
	return nil
}

// commitBatch retries a failed commit up to the configured limit before
// giving up; one success resets nothing because the batch either lands
// whole or not at all.
func (s *Sweeper) commitBatch(ctx context.Context, batch []healthdb.Entry) error {
	if len(batch) == 0 {
		return nil
	}
	attempts := s.cfg.Workflow.BatchRetryLimit
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = s.Commit(ctx, batch); err == nil {
			return nil
		}
		s.logger.Warn("batch commit failed",
			logging.Int("attempt", attempt),
			logging.Int("size", len(batch)),
			logging.Error(err))
		if attempt < attempts {
			if sleepErr := sleepCtx(ctx, time.Duration(s.cfg.Workflow.ErrorRetryInterval)*time.Second); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return fmt.Errorf("commit batch of %d after %d attempts: %w", len(batch), attempts, err)
}

func (s *Sweeper) entry(bookID int64, verdict audit.Verdict) healthdb.Entry {
	return healthdb.Entry{
		BookID:              bookID,
		IsHealthy:           s.policy.Healthy(verdict),
		HasOriginal:         verdict.HasOriginal,
		HasTranslation:      verdict.HasTranslation,
		HasViewable:         verdict.HasViewable,
		ExtraFormats:        verdict.Extraneous,
		DescriptionLanguage: verdict.DescriptionLanguage,
		RecoveredISBN:       verdict.RecoveredISBN,
		ISBNMissing:         verdict.ISBNMissing,
		LastScan:            s.now(),
	}
}

// selectStale keeps books with no cache entry or modified since their last
// scan, preserving enumeration order. Both sides of the comparison are
// normalized to UTC; the metadata store and the cache do not agree on a
// timestamp representation.
func selectStale(books []*library.BookRecord, scanTimes map[int64]time.Time) []*library.BookRecord {
	stale := make([]*library.BookRecord, 0, len(books))
	for _, book := range books {
		scanned, ok := scanTimes[book.ID]
		if !ok || timeutil.After(book.LastModified, scanned) {
			stale = append(stale, book)
		}
	}
	return stale
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
