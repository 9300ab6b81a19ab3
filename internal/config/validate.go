package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return fmt.Errorf("config: paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateAudit() error {
	for _, code := range c.Audit.OriginalFormats {
		if code == c.Audit.ViewableFormat {
			return fmt.Errorf("config: audit.original_formats must not include the viewable format %q", code)
		}
		if code == c.Audit.TranslationFormat {
			return fmt.Errorf("config: audit.original_formats must not include the translation format %q", code)
		}
	}
	if c.Audit.ViewableFormat == c.Audit.TranslationFormat {
		return fmt.Errorf("config: audit.viewable_format and audit.translation_format must differ")
	}
	if len(c.Audit.TranslationLanguage) != 3 {
		return fmt.Errorf("config: audit.translation_language must be an ISO 639-2 code, got %q", c.Audit.TranslationLanguage)
	}
	if len(c.Audit.OriginalLanguage) != 3 {
		return fmt.Errorf("config: audit.original_language must be an ISO 639-2 code, got %q", c.Audit.OriginalLanguage)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
