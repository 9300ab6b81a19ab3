package config

const (
	defaultLibraryDir          = "~/library"
	defaultDataDir             = "~/.local/share/shelfaudit"
	defaultLogDir              = "~/.local/share/shelfaudit/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultViewableFormat      = "EPUB"
	defaultTranslationFormat   = "DOCX"
	defaultTranslationLanguage = "ces"
	defaultOriginalLanguage    = "eng"
	defaultBatchSize           = 20
	defaultSessionChunkSize    = 20
	defaultErrorRetryInterval  = 10
	defaultBatchRetryLimit     = 3
	defaultResultCacheTTL      = 300
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultOriginalFormats() []string {
	return []string{"AZW", "AZW3"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Audit: Audit{
			OriginalFormats:     defaultOriginalFormats(),
			ViewableFormat:      defaultViewableFormat,
			TranslationFormat:   defaultTranslationFormat,
			TranslationLanguage: defaultTranslationLanguage,
			OriginalLanguage:    defaultOriginalLanguage,
			BatchSize:           defaultBatchSize,
			SessionChunkSize:    defaultSessionChunkSize,
		},
		Workflow: Workflow{
			ErrorRetryInterval: defaultErrorRetryInterval,
			BatchRetryLimit:    defaultBatchRetryLimit,
			ResultCacheTTL:     defaultResultCacheTTL,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
