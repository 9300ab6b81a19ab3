package testsupport

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"shelfaudit/internal/config"
)

// The subset of the Calibre metadata schema the audit engine reads.
const librarySchema = `
CREATE TABLE books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    series_index REAL NOT NULL DEFAULT 1.0,
    isbn TEXT NOT NULL DEFAULT '',
    last_modified TEXT NOT NULL DEFAULT ''
);
CREATE TABLE data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book INTEGER NOT NULL,
    format TEXT NOT NULL,
    uncompressed_size INTEGER NOT NULL DEFAULT 0,
    name TEXT NOT NULL
);
CREATE TABLE languages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lang_code TEXT NOT NULL UNIQUE
);
CREATE TABLE books_languages_link (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book INTEGER NOT NULL,
    lang_code INTEGER NOT NULL,
    item_order INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE authors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE books_authors_link (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book INTEGER NOT NULL,
    author INTEGER NOT NULL
);
CREATE TABLE series (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE books_series_link (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book INTEGER NOT NULL,
    series INTEGER NOT NULL
);
CREATE TABLE comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book INTEGER NOT NULL,
    text TEXT NOT NULL DEFAULT ''
);
`

// BookSpec describes one book to seed into a test library.
type BookSpec struct {
	Title        string
	Path         string
	ISBN         string
	Description  string
	Languages    []string
	Authors      []string
	Series       string
	SeriesIndex  float64
	LastModified time.Time
	Formats      []FormatSpec
}

// FormatSpec describes one format row for a seeded book.
type FormatSpec struct {
	Format string
	Name   string
	Size   int64
}

// Library seeds and mutates a metadata database for tests.
type Library struct {
	t   testing.TB
	db  *sql.DB
	cfg *config.Config
}

// SeedLibrary creates an empty metadata database under cfg's library root.
func SeedLibrary(t testing.TB, cfg *config.Config) *Library {
	t.Helper()

	db, err := sql.Open("sqlite", cfg.MetadataDBPath())
	if err != nil {
		t.Fatalf("open metadata db: %v", err)
	}
	if _, err := db.Exec(librarySchema); err != nil {
		t.Fatalf("create metadata schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Library{t: t, db: db, cfg: cfg}
}

// AddBook inserts a book row plus its formats, languages, authors, series,
// and description, and returns the new book id.
func (l *Library) AddBook(spec BookSpec) int64 {
	l.t.Helper()

	if spec.Path == "" {
		spec.Path = "Author/" + strings.ReplaceAll(spec.Title, " ", "_")
	}
	modified := ""
	if !spec.LastModified.IsZero() {
		modified = spec.LastModified.UTC().Format("2006-01-02 15:04:05")
	}

	result, err := l.db.Exec(
		`INSERT INTO books (title, path, series_index, isbn, last_modified) VALUES (?, ?, ?, ?, ?)`,
		spec.Title, spec.Path, orOne(spec.SeriesIndex), spec.ISBN, modified,
	)
	if err != nil {
		l.t.Fatalf("insert book: %v", err)
	}
	bookID, err := result.LastInsertId()
	if err != nil {
		l.t.Fatalf("book id: %v", err)
	}

	for _, format := range spec.Formats {
		name := format.Name
		if name == "" {
			name = strings.ReplaceAll(spec.Title, " ", "_")
		}
		if _, err := l.db.Exec(
			`INSERT INTO data (book, format, uncompressed_size, name) VALUES (?, ?, ?, ?)`,
			bookID, strings.ToUpper(format.Format), format.Size, name,
		); err != nil {
			l.t.Fatalf("insert format: %v", err)
		}
	}
	for order, code := range spec.Languages {
		langID := l.lookupOrInsert("languages", "lang_code", strings.ToLower(code))
		if _, err := l.db.Exec(
			`INSERT INTO books_languages_link (book, lang_code, item_order) VALUES (?, ?, ?)`,
			bookID, langID, order,
		); err != nil {
			l.t.Fatalf("link language: %v", err)
		}
	}
	for _, author := range spec.Authors {
		authorID := l.lookupOrInsert("authors", "name", author)
		if _, err := l.db.Exec(
			`INSERT INTO books_authors_link (book, author) VALUES (?, ?)`,
			bookID, authorID,
		); err != nil {
			l.t.Fatalf("link author: %v", err)
		}
	}
	if spec.Series != "" {
		seriesID := l.lookupOrInsert("series", "name", spec.Series)
		if _, err := l.db.Exec(
			`INSERT INTO books_series_link (book, series) VALUES (?, ?)`,
			bookID, seriesID,
		); err != nil {
			l.t.Fatalf("link series: %v", err)
		}
	}
	if spec.Description != "" {
		if _, err := l.db.Exec(
			`INSERT INTO comments (book, text) VALUES (?, ?)`,
			bookID, spec.Description,
		); err != nil {
			l.t.Fatalf("insert comment: %v", err)
		}
	}
	return bookID
}

// SetLastModified rewrites a book's modification timestamp, simulating an
// edit by the library application.
func (l *Library) SetLastModified(bookID int64, when time.Time) {
	l.t.Helper()

	_, err := l.db.Exec(
		`UPDATE books SET last_modified = ? WHERE id = ?`,
		when.UTC().Format("2006-01-02 15:04:05"), bookID,
	)
	if err != nil {
		l.t.Fatalf("update last_modified: %v", err)
	}
}

// FormatCodes returns the format codes currently recorded for a book.
func (l *Library) FormatCodes(bookID int64) []string {
	l.t.Helper()

	rows, err := l.db.Query(`SELECT format FROM data WHERE book = ? ORDER BY format`, bookID)
	if err != nil {
		l.t.Fatalf("query formats: %v", err)
	}
	defer rows.Close()

	var formats []string
	for rows.Next() {
		var format string
		if err := rows.Scan(&format); err != nil {
			l.t.Fatalf("scan format: %v", err)
		}
		formats = append(formats, format)
	}
	if err := rows.Err(); err != nil {
		l.t.Fatalf("iterate formats: %v", err)
	}
	return formats
}

// BookDir returns (and creates) the on-disk directory for a seeded book.
func (l *Library) BookDir(spec BookSpec) string {
	l.t.Helper()

	dir := filepath.Join(l.cfg.Paths.LibraryDir, filepath.FromSlash(spec.Path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.t.Fatalf("create book dir: %v", err)
	}
	return dir
}

func (l *Library) lookupOrInsert(table, column, value string) int64 {
	l.t.Helper()

	var id int64
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, table, column)
	err := l.db.QueryRow(query, value).Scan(&id)
	if err == nil {
		return id
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`, table, column)
	result, err := l.db.Exec(insert, value)
	if err != nil {
		l.t.Fatalf("insert into %s: %v", table, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		l.t.Fatalf("row id from %s: %v", table, err)
	}
	return id
}

func orOne(value float64) float64 {
	if value == 0 {
		return 1.0
	}
	return value
}
