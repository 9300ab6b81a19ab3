// Package sample extracts bounded plain-text samples from zip-based e-book
// containers. Samples feed the language classifier; they are best effort
// and every failure mode degrades to an empty string.
package sample

import (
	"archive/zip"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Kind selects the container layout to sample.
type Kind string

const (
	// KindEPUB samples reflowable HTML/XHTML parts of an EPUB-style archive.
	KindEPUB Kind = "epub"
	// KindDOCX samples the main document part of a DOCX-style archive.
	KindDOCX Kind = "docx"
)

const (
	epubMaxFileSize = 100 * 1024 * 1024
	docxMaxFileSize = 50 * 1024 * 1024
	epubMaxEntries  = 3
	epubEntryBytes  = 20 * 1024
	docxEntryBytes  = 50 * 1024
	sampleTarget    = 10000
)

// Text returns a plain-text sample from the archive at path. Oversized
// files, unreadable archives, and decode failures all yield an empty
// string; Text never fails.
func Text(path string, kind Kind) string {
	switch kind {
	case KindEPUB:
		return epubText(path)
	case KindDOCX:
		return docxText(path)
	default:
		return ""
	}
}

// KindForFormat maps a format code to a sampler kind. Unknown codes return
// false: formats without a sampler are never content-checked.
func KindForFormat(format string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "epub":
		return KindEPUB, true
	case "docx":
		return KindDOCX, true
	default:
		return "", false
	}
}

func epubText(path string) string {
	if oversized(path, epubMaxFileSize) {
		return ""
	}
	archive, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer archive.Close()

	var builder strings.Builder
	read := 0
	for _, entry := range archive.File {
		if read >= epubMaxEntries {
			break
		}
		if !isContentEntry(entry.Name) {
			continue
		}
		read++
		builder.WriteString(StripTags(readEntry(entry, epubEntryBytes)))
		if utf8.RuneCountInString(builder.String()) > sampleTarget {
			break
		}
	}
	return builder.String()
}

func docxText(path string) string {
	if oversized(path, docxMaxFileSize) {
		return ""
	}
	archive, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.Name != "word/document.xml" {
			continue
		}
		return StripTags(readEntry(entry, docxEntryBytes))
	}
	return ""
}

func oversized(path string, limit int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.Size() > limit
}

func isContentEntry(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xhtml") ||
		strings.HasSuffix(lower, ".html") ||
		strings.HasSuffix(lower, ".htm")
}

// readEntry decodes up to limit raw bytes from a zip entry, dropping any
// invalid UTF-8 sequences rather than failing.
func readEntry(entry *zip.File, limit int64) string {
	rc, err := entry.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil && len(raw) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(raw), "")
}

// StripTags removes markup tags with a tolerant single-pass scan. Each tag
// is replaced by a space so word boundaries survive for the classifier. An
// unterminated tag swallows the remainder of the input, which is acceptable
// for sampling purposes.
func StripTags(markup string) string {
	var builder strings.Builder
	builder.Grow(len(markup))
	inTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			if !inTag {
				builder.WriteByte(' ')
			}
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
