package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shelfaudit/internal/audit"
	"shelfaudit/internal/config"
	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
)

// Result is one fully audited book, shaped for presentation.
type Result struct {
	BookID      int64    `json:"book_id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Series      string   `json:"series"`
	SeriesIndex float64  `json:"series_index"`

	HasOriginal         bool     `json:"has_original"`
	HasTranslation      bool     `json:"has_translation"`
	HasViewable         bool     `json:"has_viewable"`
	Extraneous          []string `json:"extraneous"`
	DescriptionLanguage string   `json:"description_language"`
	RecoveredISBN       string   `json:"recovered_isbn,omitempty"`
	ISBNMissing         bool     `json:"isbn_missing"`
	Healthy             bool     `json:"healthy"`
}

// Progress reports how far a session has advanced, with all accumulated
// results so a poller can render the table incrementally. MissingIndices
// lists the gaps in a series' numbering when the session was opened with a
// series filter.
type Progress struct {
	Processed      int      `json:"current"`
	Total          int      `json:"total"`
	Percentage     float64  `json:"percentage"`
	Complete       bool     `json:"complete"`
	Results        []Result `json:"results"`
	MissingIndices []int    `json:"missing_indices,omitempty"`
}

// Session runs a full-mode audit over a bounded selection, one chunk per
// Advance call, so an interactive caller can poll without holding a request
// open for the whole library. The selection is fixed when the session is
// created; each Advance processes exactly one chunk more and never re-scans
// books already accumulated.
type Session struct {
	cfg    *config.Config
	lib    *library.Store
	policy *audit.Policy
	logger *slog.Logger

	// Commit persists one chunk of verdicts. Tests substitute it to
	// fault-inject chunk commits; it defaults to the health store.
	Commit func(ctx context.Context, entries []healthdb.Entry) error

	mu        sync.Mutex
	books     []*library.BookRecord
	missing   []int
	processed int
	results   []Result
	started   time.Time
}

// NewSession snapshots the current library selection for a session. Empty
// author and series filters select the whole library.
func NewSession(ctx context.Context, cfg *config.Config, lib *library.Store, health *healthdb.Store, policy *audit.Policy, logger *slog.Logger, author, series string) (*Session, error) {
	books, err := lib.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	s := &Session{
		cfg:     cfg,
		lib:     lib,
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "audit-session"),
		books:   library.FilterBooks(books, author, series),
		started: time.Now(),
	}
	s.Commit = health.UpsertBatch
	if series != "" {
		s.missing = missingSeriesIndices(s.books)
	}
	return s, nil
}

// Advance audits the next chunk in full mode, refreshes the health cache
// for those books, and returns the accumulated progress. The session only
// moves forward once the chunk is in the cache; a failed commit leaves the
// chunk to be retried by the next call.
func (s *Session) Advance(ctx context.Context) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processed >= len(s.books) {
		return s.progressLocked(), nil
	}

	chunkSize := s.cfg.Audit.SessionChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}
	end := s.processed + chunkSize
	if end > len(s.books) {
		end = len(s.books)
	}

	chunk := s.books[s.processed:end]
	results := make([]Result, 0, len(chunk))
	entries := make([]healthdb.Entry, 0, len(chunk))
	for _, book := range chunk {
		if err := ctx.Err(); err != nil {
			return s.progressLocked(), err
		}
		verdict := s.policy.Evaluate(book, s.cfg.Paths.LibraryDir, false)
		results = append(results, resultFor(book, verdict, s.policy.Healthy(verdict)))
		entries = append(entries, healthdb.Entry{
			BookID:              book.ID,
			IsHealthy:           s.policy.Healthy(verdict),
			HasOriginal:         verdict.HasOriginal,
			HasTranslation:      verdict.HasTranslation,
			HasViewable:         verdict.HasViewable,
			ExtraFormats:        verdict.Extraneous,
			DescriptionLanguage: verdict.DescriptionLanguage,
			RecoveredISBN:       verdict.RecoveredISBN,
			ISBNMissing:         verdict.ISBNMissing,
			LastScan:            time.Now(),
		})
	}

	if err := s.Commit(ctx, entries); err != nil {
		return s.progressLocked(), fmt.Errorf("refresh health cache: %w", err)
	}
	s.results = append(s.results, results...)
	s.processed = end

	s.logger.Info("session chunk audited",
		logging.Int("processed", s.processed),
		logging.Int("total", len(s.books)))
	return s.progressLocked(), nil
}

// Progress returns the accumulated state without advancing.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	total := len(s.books)
	percentage := 100.0
	if total > 0 {
		percentage = float64(s.processed) / float64(total) * 100
	}
	results := make([]Result, len(s.results))
	copy(results, s.results)
	return Progress{
		Processed:      s.processed,
		Total:          total,
		Percentage:     percentage,
		Complete:       s.processed >= total,
		Results:        results,
		MissingIndices: s.missing,
	}
}

func resultFor(book *library.BookRecord, verdict audit.Verdict, healthy bool) Result {
	return Result{
		BookID:              book.ID,
		Title:               book.Title,
		Authors:             book.Authors,
		Series:              book.Series,
		SeriesIndex:         book.SeriesIndex,
		HasOriginal:         verdict.HasOriginal,
		HasTranslation:      verdict.HasTranslation,
		HasViewable:         verdict.HasViewable,
		Extraneous:          verdict.Extraneous,
		DescriptionLanguage: verdict.DescriptionLanguage,
		RecoveredISBN:       verdict.RecoveredISBN,
		ISBNMissing:         verdict.ISBNMissing,
		Healthy:             healthy,
	}
}

// missingSeriesIndices reports the whole-number gaps in a series' numbering
// from 1 up to the highest index present. A fractional index counts toward
// the ceiling but does not fill the slot it sits between.
func missingSeriesIndices(books []*library.BookRecord) []int {
	present := make(map[float64]bool, len(books))
	highest := 0
	for _, book := range books {
		if book.SeriesIndex <= 0 {
			continue
		}
		present[book.SeriesIndex] = true
		if int(book.SeriesIndex) > highest {
			highest = int(book.SeriesIndex)
		}
	}
	var missing []int
	for i := 1; i <= highest; i++ {
		if !present[float64(i)] {
			missing = append(missing, i)
		}
	}
	return missing
}
