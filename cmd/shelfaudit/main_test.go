package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shelfaudit/internal/config"
	"shelfaudit/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	seed       *testsupport.Library
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	seed := testsupport.SeedLibrary(t, cfg)

	configPath := filepath.Join(cfg.Paths.DataDir, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, seed: seed, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlibrary_dir = %q\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[logging]\nformat = \"json\"\nlevel = \"error\"\n",
		cfg.Paths.LibraryDir,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func compliantSpec(title string) testsupport.BookSpec {
	return testsupport.BookSpec{
		Title:        title,
		ISBN:         "9788074325356",
		Description:  testsupport.CzechSample,
		Languages:    []string{"ces"},
		LastModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Formats: []testsupport.FormatSpec{
			{Format: "AZW3"},
			{Format: "EPUB"},
			{Format: "DOCX"},
		},
	}
}

func TestCLISweepStatusAndCacheClear(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed.AddBook(compliantSpec("Dobra kniha"))
	env.seed.AddBook(testsupport.BookSpec{
		Title:        "Jen PDF",
		Languages:    []string{"ces"},
		LastModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Formats:      []testsupport.FormatSpec{{Format: "PDF"}},
	})

	out, err := runCLI(t, env.configPath, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	requireContains(t, out, "Cache: 2 books scanned, 1 healthy, 1 unhealthy")

	out, err = runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Books: 2 total, 2 scanned, 1 healthy, 1 unhealthy")
	requireContains(t, out, "Jen PDF")
	requireContains(t, out, "PDF")

	out, err = runCLI(t, env.configPath, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Health cache cleared")

	out, err = runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status after clear: %v", err)
	}
	requireContains(t, out, "Books: 2 total, 0 scanned, 0 healthy, 0 unhealthy")
	requireContains(t, out, "Last scan: never")
}

func TestCLIAuditRendersVerdicts(t *testing.T) {
	env := setupCLITestEnv(t)

	good := compliantSpec("Dobra kniha")
	good.Path = "Autor/Dobra kniha (1)"
	good.Formats = []testsupport.FormatSpec{
		{Format: "AZW3", Name: "Dobra kniha"},
		{Format: "EPUB", Name: "Dobra kniha"},
		{Format: "DOCX", Name: "Dobra kniha"},
	}
	env.seed.AddBook(good)
	goodDir := env.seed.BookDir(good)
	testsupport.WriteDOCX(t, filepath.Join(goodDir, "Dobra kniha.docx"), testsupport.CzechSample)

	bad := compliantSpec("Spatna kniha")
	bad.Path = "Autor/Spatna kniha (2)"
	bad.Formats = []testsupport.FormatSpec{
		{Format: "AZW3", Name: "Spatna kniha"},
		{Format: "EPUB", Name: "Spatna kniha"},
		{Format: "DOCX", Name: "Spatna kniha"},
	}
	env.seed.AddBook(bad)
	badDir := env.seed.BookDir(bad)
	testsupport.WriteDOCX(t, filepath.Join(badDir, "Spatna kniha.docx"), testsupport.EnglishSample)

	out, err := runCLI(t, env.configPath, "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	requireContains(t, out, "Audited 2 books, 1 unhealthy")
	requireContains(t, out, "DOCX (wrong language)")

	out, err = runCLI(t, env.configPath, "audit", "--unhealthy")
	if err != nil {
		t.Fatalf("audit --unhealthy: %v", err)
	}
	requireContains(t, out, "Spatna kniha")
	if strings.Contains(out, "Dobra kniha") {
		t.Fatalf("--unhealthy should hide compliant books, got %q", out)
	}
}

func TestCLIAuditSeriesReportsGaps(t *testing.T) {
	env := setupCLITestEnv(t)
	first := compliantSpec("Prvni dil")
	first.Series = "Spisy"
	first.SeriesIndex = 1
	env.seed.AddBook(first)
	third := compliantSpec("Treti dil")
	third.Series = "Spisy"
	third.SeriesIndex = 3
	env.seed.AddBook(third)

	out, err := runCLI(t, env.configPath, "audit", "--series", "Spisy")
	if err != nil {
		t.Fatalf("audit --series: %v", err)
	}
	requireContains(t, out, "Missing series indices: 2")
}

func TestCLIFixRemovesExtraneousFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.seed.AddBook(testsupport.BookSpec{
		Title:        "Jen PDF",
		Languages:    []string{"ces"},
		LastModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Formats:      []testsupport.FormatSpec{{Format: "PDF"}},
	})

	if _, err := runCLI(t, env.configPath, "sweep"); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	out, err := runCLI(t, env.configPath, "fix", "--all")
	if err != nil {
		t.Fatalf("fix --all: %v", err)
	}
	requireContains(t, out, "Remediated 1 of 1 books")

	if codes := env.seed.FormatCodes(id); len(codes) != 0 {
		t.Fatalf("formats after fix = %v, want none", codes)
	}
}

func TestCLIFixArgumentValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env.configPath, "fix"); err == nil {
		t.Fatal("fix without arguments must fail")
	}
	if _, err := runCLI(t, env.configPath, "fix", "5", "--all"); err == nil {
		t.Fatal("fix with both a book id and --all must fail")
	}
	if _, err := runCLI(t, env.configPath, "fix", "abc"); err == nil {
		t.Fatal("fix with a non-numeric id must fail")
	}
	if _, err := runCLI(t, env.configPath, "fix", "999"); err == nil {
		t.Fatal("fix with an unknown id must fail")
	}
}

func TestCLIConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "conf", "config.toml")

	out, err := runCLI(t, env.configPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCLI(t, env.configPath, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCLI(t, env.configPath, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
}
