package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAudit()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeAudit() {
	normalized := make([]string, 0, len(c.Audit.OriginalFormats))
	seen := make(map[string]struct{}, len(c.Audit.OriginalFormats))
	for _, code := range c.Audit.OriginalFormats {
		upper := strings.ToUpper(strings.TrimSpace(code))
		if upper == "" {
			continue
		}
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		normalized = append(normalized, upper)
	}
	if len(normalized) == 0 {
		normalized = defaultOriginalFormats()
	}
	c.Audit.OriginalFormats = normalized

	c.Audit.ViewableFormat = strings.ToUpper(strings.TrimSpace(c.Audit.ViewableFormat))
	if c.Audit.ViewableFormat == "" {
		c.Audit.ViewableFormat = defaultViewableFormat
	}
	c.Audit.TranslationFormat = strings.ToUpper(strings.TrimSpace(c.Audit.TranslationFormat))
	if c.Audit.TranslationFormat == "" {
		c.Audit.TranslationFormat = defaultTranslationFormat
	}
	c.Audit.TranslationLanguage = strings.ToLower(strings.TrimSpace(c.Audit.TranslationLanguage))
	if c.Audit.TranslationLanguage == "" {
		c.Audit.TranslationLanguage = defaultTranslationLanguage
	}
	c.Audit.OriginalLanguage = strings.ToLower(strings.TrimSpace(c.Audit.OriginalLanguage))
	if c.Audit.OriginalLanguage == "" {
		c.Audit.OriginalLanguage = defaultOriginalLanguage
	}
	if c.Audit.BatchSize <= 0 {
		c.Audit.BatchSize = defaultBatchSize
	}
	if c.Audit.SessionChunkSize <= 0 {
		c.Audit.SessionChunkSize = defaultSessionChunkSize
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.BatchRetryLimit <= 0 {
		c.Workflow.BatchRetryLimit = defaultBatchRetryLimit
	}
	if c.Workflow.ResultCacheTTL <= 0 {
		c.Workflow.ResultCacheTTL = defaultResultCacheTTL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
