package sample_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfaudit/internal/sample"
)

func writeZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for entryName, content := range entries {
		f, err := w.Create(entryName)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
	return path
}

func TestTextEPUBConcatenatesContentEntries(t *testing.T) {
	path := writeZip(t, "book.epub", map[string]string{
		"mimetype":            "application/epub+zip",
		"OEBPS/chapter1.html": "<html><body><p>first chapter</p></body></html>",
		"OEBPS/chapter2.htm":  "<p>second chapter</p>",
		"OEBPS/style.css":     "p { margin: 0 }",
	})

	text := sample.Text(path, sample.KindEPUB)
	if !strings.Contains(text, "first chapter") {
		t.Fatalf("expected first chapter in sample, got %q", text)
	}
	if !strings.Contains(text, "second chapter") {
		t.Fatalf("expected second chapter in sample, got %q", text)
	}
	if strings.Contains(text, "margin") {
		t.Fatalf("css entry must be skipped, got %q", text)
	}
	if strings.Contains(text, "<") {
		t.Fatalf("expected tags stripped, got %q", text)
	}
}

func TestTextEPUBLimitsEntries(t *testing.T) {
	entries := map[string]string{
		"a.xhtml": "<p>alpha</p>",
		"b.xhtml": "<p>beta</p>",
		"c.xhtml": "<p>gamma</p>",
		"d.xhtml": "<p>delta</p>",
	}
	path := writeZip(t, "book.epub", entries)

	text := sample.Text(path, sample.KindEPUB)
	matched := 0
	for _, word := range []string{"alpha", "beta", "gamma", "delta"} {
		if strings.Contains(text, word) {
			matched++
		}
	}
	if matched != 3 {
		t.Fatalf("expected exactly 3 entries sampled, found %d in %q", matched, text)
	}
}

func TestTextDOCXReadsMainDocument(t *testing.T) {
	path := writeZip(t, "book.docx", map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:document><w:p><w:t>hlavní text dokumentu</w:t></w:p></w:document>",
		"word/styles.xml":     "<w:styles/>",
	})

	text := sample.Text(path, sample.KindDOCX)
	if !strings.Contains(text, "hlavní text dokumentu") {
		t.Fatalf("expected document text, got %q", text)
	}
}

func TestTextDOCXMissingMainDocument(t *testing.T) {
	path := writeZip(t, "book.docx", map[string]string{
		"word/styles.xml": "<w:styles/>",
	})
	if got := sample.Text(path, sample.KindDOCX); got != "" {
		t.Fatalf("expected empty sample, got %q", got)
	}
}

func TestTextCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.epub")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if got := sample.Text(path, sample.KindEPUB); got != "" {
		t.Fatalf("expected empty sample for corrupt archive, got %q", got)
	}
}

func TestTextMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.epub")
	if got := sample.Text(missing, sample.KindEPUB); got != "" {
		t.Fatalf("expected empty sample for missing file, got %q", got)
	}
}

func TestKindForFormat(t *testing.T) {
	cases := []struct {
		format string
		want   sample.Kind
		ok     bool
	}{
		{"EPUB", sample.KindEPUB, true},
		{"docx", sample.KindDOCX, true},
		{" epub ", sample.KindEPUB, true},
		{"AZW3", "", false},
		{"PDF", "", false},
	}
	for _, tc := range cases {
		kind, ok := sample.KindForFormat(tc.format)
		if ok != tc.ok || kind != tc.want {
			t.Fatalf("KindForFormat(%q) = %q, %v; want %q, %v", tc.format, kind, ok, tc.want, tc.ok)
		}
	}
}

func TestStripTagsTolerant(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		expect string
	}{
		{"plain", "no markup", "no markup"},
		{"simple", "<p>hello</p>", " hello "},
		{"unterminated", "before<tag never closes", "before "},
		{"boundaries", "one<br/>two", "one two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sample.StripTags(tc.input); got != tc.expect {
				t.Fatalf("StripTags(%q) = %q, want %q", tc.input, got, tc.expect)
			}
		})
	}
}
