// Package isbn recovers ISBN identifiers from raw e-book files by scanning
// bounded byte windows at the start and end of the file. It works for MOBI,
// AZW, AZW3, EPUB, and to some extent PDF containers.
package isbn

import (
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	headWindow = 64 * 1024
	tailWindow = 32 * 1024
)

// Labelled patterns are tried first; matching near an "ISBN" label is far
// less prone to false positives than a raw digit scan.
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ISBN(?:-13)?:?\s*(97[89][0-9- ]{10,17})`),
	regexp.MustCompile(`(?i)ISBN(?:-10)?:?\s*([0-9- ]{9,13}[0-9Xx])`),
}

var rawISBN13 = regexp.MustCompile(`97[89][0-9]{10}`)

var normalizer = regexp.MustCompile(`[^0-9X]`)

// Extract scans the first 64 KiB and, for larger files, the last 32 KiB of
// the file at path for an ISBN. The head window is checked before the tail
// window. It returns false on any I/O error or when no plausible identifier
// is present; it never fails. Extracted identifiers are not checksum
// validated.
func Extract(path string) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	head := make([]byte, headWindow)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", false
	}
	head = head[:n]

	if id, ok := findInWindow(head); ok {
		return id, true
	}

	info, err := file.Stat()
	if err != nil || info.Size() <= headWindow {
		return "", false
	}

	tail := make([]byte, tailWindow)
	if _, err := file.Seek(-tailWindow, io.SeekEnd); err != nil {
		return "", false
	}
	n, err = io.ReadFull(file, tail)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", false
	}
	return findInWindow(tail[:n])
}

func findInWindow(window []byte) (string, bool) {
	for _, pattern := range labelPatterns {
		for _, match := range pattern.FindAllSubmatch(window, -1) {
			clean := normalizer.ReplaceAllString(strings.ToUpper(string(match[1])), "")
			if len(clean) == 13 && (strings.HasPrefix(clean, "978") || strings.HasPrefix(clean, "979")) {
				return clean, true
			}
			if len(clean) == 10 {
				return clean, true
			}
		}
	}

	// Raw 13-digit scan as a fallback. A raw ISBN-10 scan is skipped: ten
	// consecutive digits match far too much unrelated binary content.
	if match := rawISBN13.Find(window); match != nil {
		return string(match), true
	}
	return "", false
}
