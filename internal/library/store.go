// Package library reads book records from a Calibre-compatible metadata
// database. The audit engine treats this store as an external collaborator:
// everything is read-only except the format removal calls, which back
// remediation.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shelfaudit/internal/config"
)

// Store provides access to the library metadata database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the metadata database under the configured library root.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.MetadataDBPath())
}

// OpenPath connects to a metadata database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the metadata database location.
func (s *Store) Path() string {
	return s.path
}

// ListBooks returns every book with its formats, languages, authors, and
// description, ordered by id.
func (s *Store) ListBooks(ctx context.Context) ([]*BookRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, path, series_index, isbn, last_modified FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*BookRecord
	index := make(map[int64]*BookRecord)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
		index[book.ID] = book
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	if err := s.attachFormats(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachLanguages(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachSeries(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachDescriptions(ctx, index); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook fetches a single book by identifier, or nil when absent.
func (s *Store) GetBook(ctx context.Context, id int64) (*BookRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, path, series_index, isbn, last_modified FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	index := map[int64]*BookRecord{book.ID: book}
	if err := s.attachFormats(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachLanguages(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachSeries(ctx, index); err != nil {
		return nil, err
	}
	if err := s.attachDescriptions(ctx, index); err != nil {
		return nil, err
	}
	return book, nil
}

// RemoveFormat deletes a format entry for a book. The caller is responsible
// for removing the underlying file first; a missing entry is not an error.
func (s *Store) RemoveFormat(ctx context.Context, bookID int64, format string) error {
	return s.RemoveFormats(ctx, bookID, []string{format})
}

// RemoveFormats deletes several format entries for one book in a single
// transaction, so remediation of a book is committed as one unit.
func (s *Store) RemoveFormats(ctx context.Context, bookID int64, formats []string) error {
	if len(formats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, format := range formats {
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM data WHERE book = ? AND format = ?`,
			bookID,
			strings.ToUpper(strings.TrimSpace(format)),
		); err != nil {
			return fmt.Errorf("remove format %s for book %d: %w", format, bookID, err)
		}
	}
	// The library application stamps last_modified on every mutation;
	// incremental sweeps key off it to notice changed books.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE books SET last_modified = ? WHERE id = ?`,
		time.Now().UTC().Format("2006-01-02 15:04:05"),
		bookID,
	); err != nil {
		return fmt.Errorf("stamp last_modified for book %d: %w", bookID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove tx: %w", err)
	}
	return nil
}

func scanBook(scanner interface{ Scan(dest ...any) error }) (*BookRecord, error) {
	var (
		id          int64
		title       sql.NullString
		path        sql.NullString
		seriesIndex sql.NullFloat64
		isbn        sql.NullString
		modifiedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &title, &path, &seriesIndex, &isbn, &modifiedRaw); err != nil {
		return nil, err
	}
	book := &BookRecord{
		ID:          id,
		Title:       title.String,
		Path:        path.String,
		SeriesIndex: seriesIndex.Float64,
		ISBN:        strings.TrimSpace(isbn.String),
	}
	if modified, err := parseTimeString(modifiedRaw.String); err == nil {
		book.LastModified = modified
	}
	return book, nil
}

func (s *Store) attachFormats(ctx context.Context, index map[int64]*BookRecord) error {
	rows, err := s.db.QueryContext(ctx, `SELECT book, format, name, uncompressed_size FROM data ORDER BY book, id`)
	if err != nil {
		return fmt.Errorf("query formats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			format sql.NullString
			name   sql.NullString
			size   sql.NullInt64
		)
		if err := rows.Scan(&bookID, &format, &name, &size); err != nil {
			return fmt.Errorf("scan format: %w", err)
		}
		book, ok := index[bookID]
		if !ok {
			continue
		}
		book.Formats = append(book.Formats, FormatFile{
			Format: strings.ToUpper(format.String),
			Name:   name.String,
			Size:   size.Int64,
		})
	}
	return rows.Err()
}

func (s *Store) attachLanguages(ctx context.Context, index map[int64]*BookRecord) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT bll.book, l.lang_code
        FROM books_languages_link bll
        JOIN languages l ON l.id = bll.lang_code
        ORDER BY bll.book, bll.item_order`)
	if err != nil {
		return fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			code   sql.NullString
		)
		if err := rows.Scan(&bookID, &code); err != nil {
			return fmt.Errorf("scan language: %w", err)
		}
		if book, ok := index[bookID]; ok && code.String != "" {
			book.Languages = append(book.Languages, strings.ToLower(code.String))
		}
	}
	return rows.Err()
}

func (s *Store) attachAuthors(ctx context.Context, index map[int64]*BookRecord) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT bal.book, a.name
        FROM books_authors_link bal
        JOIN authors a ON a.id = bal.author
        ORDER BY bal.book, bal.id`)
	if err != nil {
		return fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			name   sql.NullString
		)
		if err := rows.Scan(&bookID, &name); err != nil {
			return fmt.Errorf("scan author: %w", err)
		}
		if book, ok := index[bookID]; ok && name.String != "" {
			book.Authors = append(book.Authors, strings.ReplaceAll(name.String, "|", ","))
		}
	}
	return rows.Err()
}

func (s *Store) attachSeries(ctx context.Context, index map[int64]*BookRecord) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT bsl.book, se.name
        FROM books_series_link bsl
        JOIN series se ON se.id = bsl.series`)
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			name   sql.NullString
		)
		if err := rows.Scan(&bookID, &name); err != nil {
			return fmt.Errorf("scan series: %w", err)
		}
		if book, ok := index[bookID]; ok {
			book.Series = name.String
		}
	}
	return rows.Err()
}

func (s *Store) attachDescriptions(ctx context.Context, index map[int64]*BookRecord) error {
	// Books can carry multiple comment rows; only the first matters for
	// description-language classification.
	rows, err := s.db.QueryContext(ctx, `SELECT book, text FROM comments ORDER BY book, id`)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			text   sql.NullString
		)
		if err := rows.Scan(&bookID, &text); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		if book, ok := index[bookID]; ok && book.Description == "" {
			book.Description = text.String
		}
	}
	return rows.Err()
}

// FilterBooks returns the subset of books matching an author and/or series
// name, preserving enumeration order. Empty filters match everything.
func FilterBooks(books []*BookRecord, author, series string) []*BookRecord {
	if author == "" && series == "" {
		return books
	}
	filtered := make([]*BookRecord, 0, len(books))
	for _, book := range books {
		if series != "" && !strings.EqualFold(book.Series, series) {
			continue
		}
		if author != "" && !hasAuthor(book, author) {
			continue
		}
		filtered = append(filtered, book)
	}
	return filtered
}

func hasAuthor(book *BookRecord, author string) bool {
	for _, name := range book.Authors {
		if strings.EqualFold(name, author) {
			return true
		}
	}
	return false
}

// SortByTitle orders books by title for presentation. Enumeration order
// from ListBooks (by id) is what sweeps rely on; reports prefer titles.
func SortByTitle(books []*BookRecord) {
	sort.SliceStable(books, func(i, j int) bool {
		return strings.ToLower(books[i].Title) < strings.ToLower(books[j].Title)
	})
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
