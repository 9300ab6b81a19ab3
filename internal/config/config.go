package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Audit contains the format compliance policy configuration.
type Audit struct {
	// OriginalFormats are the format codes accepted for the original-edition slot.
	OriginalFormats []string `toml:"original_formats"`
	// ViewableFormat is the format whose mere presence satisfies the viewable slot.
	ViewableFormat string `toml:"viewable_format"`
	// TranslationFormat is the format that must carry translated content.
	TranslationFormat string `toml:"translation_format"`
	// TranslationLanguage is the ISO 639-2 code the translation must match.
	TranslationLanguage string `toml:"translation_language"`
	// OriginalLanguage is the ISO 639-2 code of the original edition.
	OriginalLanguage string `toml:"original_language"`
	// StrictOriginalCheck additionally rejects original-format files whose
	// content reads as the translation language. Off by default.
	StrictOriginalCheck bool `toml:"strict_original_check"`
	// BatchSize is the number of books committed per batch during sweeps.
	BatchSize int `toml:"batch_size"`
	// SessionChunkSize is the number of books evaluated per interactive
	// audit session poll.
	SessionChunkSize int `toml:"session_chunk_size"`
}

// Workflow contains task runtime timing and retry configuration.
type Workflow struct {
	ErrorRetryInterval int `toml:"error_retry_interval"`
	// BatchRetryLimit is the number of consecutive failed batch commits
	// tolerated before a sweep aborts.
	BatchRetryLimit int `toml:"batch_retry_limit"`
	// ResultCacheTTL is the lifetime, in seconds, of memoized dashboard
	// aggregates served between polls.
	ResultCacheTTL int `toml:"result_cache_ttl"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shelfaudit.
//
// Configuration sections by subsystem:
//   - Paths: library root, data directory, and API bind address
//   - Audit: format compliance policy knobs
//   - Workflow: sweep batching, retries, and cache lifetimes
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Audit    Audit    `toml:"audit"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelfaudit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelfaudit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is not created: the library belongs to an external application
// and a missing path is a configuration error, not something to paper over.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HealthDBPath returns the location of the health cache database.
func (c *Config) HealthDBPath() string {
	return filepath.Join(c.Paths.DataDir, "health.db")
}

// MetadataDBPath returns the location of the library metadata database.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Paths.LibraryDir, "metadata.db")
}

// LockFilePath returns the daemon lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "shelfaudit.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
