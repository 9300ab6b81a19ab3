package library

import (
	"path/filepath"
	"strings"
	"time"
)

// FormatFile is one on-disk format of a book as recorded in the metadata
// store. Format codes are case-insensitive tokens (AZW3, EPUB, DOCX, ...).
type FormatFile struct {
	Format string
	Name   string
	Size   int64
}

// BookRecord is a read-only view of one book from the metadata store.
type BookRecord struct {
	ID           int64
	Title        string
	Authors      []string
	Series       string
	SeriesIndex  float64
	Path         string
	ISBN         string
	Description  string
	Languages    []string
	LastModified time.Time
	Formats      []FormatFile
}

// FilePath derives the absolute path of a format file:
// root + book path + name + "." + lowercase(format).
func (f FormatFile) FilePath(root, bookPath string) string {
	return filepath.Join(root, filepath.FromSlash(bookPath), f.Name+"."+strings.ToLower(f.Format))
}

// HasLanguage reports whether the book carries the given language tag.
func (b *BookRecord) HasLanguage(code string) bool {
	for _, lang := range b.Languages {
		if strings.EqualFold(lang, code) {
			return true
		}
	}
	return false
}
