package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
)

// Fix removes every extraneous format file of a book: the on-disk file
// first (best effort, failures are logged and do not block the metadata
// removal), then all metadata entries in one transaction. It re-runs a
// full-mode evaluation so remediation always acts on current file content,
// never on a stale cached verdict. After a removal the book is audited
// again and its health cache row rewritten, so listings reflect the
// remediation immediately instead of waiting for the next sweep. Returns
// the number of formats removed.
func (p *Policy) Fix(ctx context.Context, store *library.Store, health *healthdb.Store, book *library.BookRecord, libraryRoot string) (int, error) {
	var formats []string
	for _, decision := range p.classifyFiles(book, libraryRoot, false) {
		if decision.extraneous == "" {
			continue
		}
		path := decision.file.FilePath(libraryRoot, book.Path)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("could not remove extraneous file",
				logging.Int64(logging.FieldBookID, book.ID),
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}
		formats = append(formats, decision.file.Format)
	}
	if len(formats) == 0 {
		return 0, nil
	}
	if err := store.RemoveFormats(ctx, book.ID, formats); err != nil {
		return 0, err
	}
	if err := p.refreshHealth(ctx, store, health, book.ID, libraryRoot); err != nil {
		return len(formats), fmt.Errorf("refresh health cache: %w", err)
	}
	p.logger.Info("remediated book",
		logging.Int64(logging.FieldBookID, book.ID),
		logging.Int("removed", len(formats)))
	return len(formats), nil
}

// FixAll remediates every book in the given list, returning the number of
// books that had at least one format removed. A failure on one book stops
// the run; already-remediated books stay remediated.
func (p *Policy) FixAll(ctx context.Context, store *library.Store, health *healthdb.Store, books []*library.BookRecord, libraryRoot string) (int, error) {
	fixed := 0
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		removed, err := p.Fix(ctx, store, health, book, libraryRoot)
		if err != nil {
			return fixed, err
		}
		if removed > 0 {
			fixed++
		}
	}
	return fixed, nil
}

// refreshHealth re-audits a remediated book and rewrites its cache row
// with the fresh verdict. A book that vanished from the metadata store
// loses its row instead.
func (p *Policy) refreshHealth(ctx context.Context, store *library.Store, health *healthdb.Store, bookID int64, libraryRoot string) error {
	fresh, err := store.GetBook(ctx, bookID)
	if err != nil {
		return fmt.Errorf("reload book %d: %w", bookID, err)
	}
	if fresh == nil {
		return health.Delete(ctx, bookID)
	}
	verdict := p.Evaluate(fresh, libraryRoot, false)
	return health.UpsertBatch(ctx, []healthdb.Entry{{
		BookID:              bookID,
		IsHealthy:           p.Healthy(verdict),
		HasOriginal:         verdict.HasOriginal,
		HasTranslation:      verdict.HasTranslation,
		HasViewable:         verdict.HasViewable,
		ExtraFormats:        verdict.Extraneous,
		DescriptionLanguage: verdict.DescriptionLanguage,
		RecoveredISBN:       verdict.RecoveredISBN,
		ISBNMissing:         verdict.ISBNMissing,
		LastScan:            time.Now(),
	}})
}
