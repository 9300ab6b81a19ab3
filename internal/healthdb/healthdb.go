// Package healthdb persists per-book audit verdicts in a local SQLite
// cache. The cache is derived data: it can be wiped at any time and will
// be rebuilt by the next sweep.
package healthdb

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"shelfaudit/internal/config"
	"shelfaudit/internal/timeutil"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Entry is one cached audit verdict.
type Entry struct {
	BookID              int64
	IsHealthy           bool
	HasOriginal         bool
	HasTranslation      bool
	HasViewable         bool
	ExtraFormats        []string
	DescriptionLanguage string
	RecoveredISBN       string
	ISBNMissing         bool
	LastScan            time.Time
}

// Store provides access to the health cache database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the health cache under the configured data directory,
// creating the schema if needed.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.HealthDBPath())
}

// OpenPath connects to a health cache at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open health db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the health cache location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var current sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current.Valid && current.Int64 > schemaVersion {
		return fmt.Errorf("health db schema version %d is newer than supported %d", current.Int64, schemaVersion)
	}
	if !current.Valid || current.Int64 < schemaVersion {
		_, err = s.db.Exec(
			`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)`,
			schemaVersion,
			timeutil.NormalizeUTC(time.Now()).Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// Get fetches the cached verdict for one book, or nil when the book has
// never been scanned.
func (s *Store) Get(ctx context.Context, bookID int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE book_id = ?`, bookID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpsertBatch writes a batch of verdicts in a single transaction. An empty
// batch is a no-op. Either the whole batch lands or none of it does.
func (s *Store) UpsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin health tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO book_health (
            book_id, is_healthy, has_original, has_translation, has_viewable,
            extra_formats, description_language, recovered_isbn, isbn_missing, last_scan
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(book_id) DO UPDATE SET
            is_healthy = excluded.is_healthy,
            has_original = excluded.has_original,
            has_translation = excluded.has_translation,
            has_viewable = excluded.has_viewable,
            extra_formats = excluded.extra_formats,
            description_language = excluded.description_language,
            recovered_isbn = excluded.recovered_isbn,
            isbn_missing = excluded.isbn_missing,
            last_scan = excluded.last_scan`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		extra, err := json.Marshal(emptyIfNil(entry.ExtraFormats))
		if err != nil {
			return fmt.Errorf("encode extra formats for book %d: %w", entry.BookID, err)
		}
		_, err = stmt.ExecContext(ctx,
			entry.BookID,
			entry.IsHealthy,
			entry.HasOriginal,
			entry.HasTranslation,
			entry.HasViewable,
			string(extra),
			entry.DescriptionLanguage,
			nullableString(entry.RecoveredISBN),
			entry.ISBNMissing,
			timeutil.NormalizeUTC(entry.LastScan).Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("upsert book %d: %w", entry.BookID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit health tx: %w", err)
	}
	return nil
}

// AllUnhealthy returns cached verdicts for books that failed the policy,
// ordered by book id.
func (s *Store) AllUnhealthy(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE is_healthy = 0 ORDER BY book_id`)
	if err != nil {
		return nil, fmt.Errorf("query unhealthy: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ScanTimes returns the last scan timestamp for every cached book.
func (s *Store) ScanTimes(ctx context.Context) (map[int64]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT book_id, last_scan FROM book_health`)
	if err != nil {
		return nil, fmt.Errorf("query scan times: %w", err)
	}
	defer rows.Close()

	times := make(map[int64]time.Time)
	for rows.Next() {
		var (
			bookID int64
			raw    string
		)
		if err := rows.Scan(&bookID, &raw); err != nil {
			return nil, fmt.Errorf("scan time row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse scan time for book %d: %w", bookID, err)
		}
		times[bookID] = t
	}
	return times, rows.Err()
}

// MaxScanTime returns the newest scan timestamp in the cache, or the zero
// time when the cache is empty.
func (s *Store) MaxScanTime(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_scan) FROM book_health`).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("query max scan time: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse max scan time: %w", err)
	}
	return t, nil
}

// Counts returns how many cached books are healthy and the cache size.
func (s *Store) Counts(ctx context.Context) (healthy, total int, err error) {
	err = s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(is_healthy), 0), COUNT(*) FROM book_health`,
	).Scan(&healthy, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("query counts: %w", err)
	}
	return healthy, total, nil
}

// Delete drops one book from the cache. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, bookID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM book_health WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book %d: %w", bookID, err)
	}
	return nil
}

// Clear wipes the whole cache, forcing the next sweep to rescan everything.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM book_health`); err != nil {
		return fmt.Errorf("clear health cache: %w", err)
	}
	return nil
}

const selectColumns = `
    SELECT book_id, is_healthy, has_original, has_translation, has_viewable,
           extra_formats, description_language, recovered_isbn, isbn_missing, last_scan
    FROM book_health`

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry   Entry
		extra   string
		isbn    sql.NullString
		scanned string
	)
	err := scanner.Scan(
		&entry.BookID,
		&entry.IsHealthy,
		&entry.HasOriginal,
		&entry.HasTranslation,
		&entry.HasViewable,
		&extra,
		&entry.DescriptionLanguage,
		&isbn,
		&entry.ISBNMissing,
		&scanned,
	)
	if err != nil {
		return nil, err
	}
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &entry.ExtraFormats); err != nil {
			return nil, fmt.Errorf("decode extra formats for book %d: %w", entry.BookID, err)
		}
	}
	entry.RecoveredISBN = isbn.String
	if t, err := time.Parse(time.RFC3339Nano, scanned); err == nil {
		entry.LastScan = t
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
