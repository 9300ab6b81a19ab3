package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"testing"
)

// WriteEPUB writes a minimal EPUB-shaped archive whose content entries wrap
// the given chunks in paragraph markup.
func WriteEPUB(t testing.TB, path string, chunks ...string) {
	t.Helper()

	entries := map[string]string{"mimetype": "application/epub+zip"}
	for i, chunk := range chunks {
		name := "OEBPS/part" + string(rune('a'+i)) + ".xhtml"
		entries[name] = "<html><body><p>" + chunk + "</p></body></html>"
	}
	writeArchive(t, path, entries)
}

// WriteDOCX writes a minimal DOCX-shaped archive with the given body text
// in the main document part.
func WriteDOCX(t testing.TB, path, text string) {
	t.Helper()

	writeArchive(t, path, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:document><w:body><w:p><w:t>" + text + "</w:t></w:p></w:body></w:document>",
	})
}

// WriteRawFile writes arbitrary bytes, for formats the sampler never opens.
func WriteRawFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write raw file: %v", err)
	}
}

func writeArchive(t testing.TB, path string, entries map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create archive entry: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write archive entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}
