// Package testsupport provides helpers for constructing test fixtures:
// temp-dir configurations, a seeded library metadata database, health cache
// stores, and zip-based book files.
package testsupport

import (
	"testing"

	"shelfaudit/internal/config"
	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
)

// Sample texts long enough to trip the language heuristics.
const (
	CzechSample = "Toto je ukázka českého textu, který se v knihovně objevuje " +
		"velmi často a je psaný pro čtenáře, kteří hledají původní vydání."
	EnglishSample = "This is the sample of an English text that appears in the " +
		"library and is written for readers who are looking for the original edition."
)

// NewConfig returns a validated configuration rooted in temp directories.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.LibraryDir = t.TempDir()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate test config: %v", err)
	}
	return &cfg
}

// MustOpenHealthDB opens the health cache for cfg and registers cleanup.
func MustOpenHealthDB(t testing.TB, cfg *config.Config) *healthdb.Store {
	t.Helper()

	store, err := healthdb.Open(cfg)
	if err != nil {
		t.Fatalf("open health db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenLibrary opens the library metadata store for cfg and registers
// cleanup. The database must have been seeded first.
func MustOpenLibrary(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("open library store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
