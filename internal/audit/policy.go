// Package audit evaluates books against the library's format compliance
// policy and remediates the ones that fail it. The policy expects every book
// to carry an original-edition file, a viewable copy, and a translation in
// the configured language; everything else is extraneous.
package audit

import (
	"log/slog"
	"strings"

	"shelfaudit/internal/config"
	"shelfaudit/internal/isbn"
	"shelfaudit/internal/langdetect"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
	"shelfaudit/internal/sample"
)

// Policy evaluates books against the configured format rules. The content
// collaborators are injectable so tests can substitute cheap fakes.
type Policy struct {
	originalFormats     map[string]bool
	viewableFormat      string
	translationFormat   string
	translationLanguage string
	originalLanguage    string
	strictOriginal      bool

	sampleText        func(path string, kind sample.Kind) string
	looksTranslated   func(text string) bool
	classify          func(text string) string
	extractIdentifier func(path string) (string, bool)

	logger *slog.Logger
}

// New builds a policy from configuration with the production collaborators
// wired in.
func New(cfg *config.Config, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = logging.NewNop()
	}
	originals := make(map[string]bool, len(cfg.Audit.OriginalFormats))
	for _, format := range cfg.Audit.OriginalFormats {
		originals[strings.ToUpper(format)] = true
	}
	return &Policy{
		originalFormats:     originals,
		viewableFormat:      strings.ToUpper(cfg.Audit.ViewableFormat),
		translationFormat:   strings.ToUpper(cfg.Audit.TranslationFormat),
		translationLanguage: strings.ToLower(cfg.Audit.TranslationLanguage),
		originalLanguage:    strings.ToLower(cfg.Audit.OriginalLanguage),
		strictOriginal:      cfg.Audit.StrictOriginalCheck,
		sampleText:          sample.Text,
		looksTranslated:     langdetect.LooksCzech,
		classify:            langdetect.Classify,
		extractIdentifier:   isbn.Extract,
		logger:              logging.NewComponentLogger(logger, "audit"),
	}
}

// Healthy derives the aggregate health flag for a verdict under this
// policy's accepted description languages.
func (p *Policy) Healthy(v Verdict) bool {
	return v.IsHealthy(p.translationLanguage, p.originalLanguage)
}

// Evaluate classifies every format file of a book and returns the verdict.
// Quick mode trusts the book's language tags instead of sampling file
// content and skips identifier recovery; sweeps use it for throughput.
// Evaluate never fails: unreadable files simply do not count toward a slot.
func (p *Policy) Evaluate(book *library.BookRecord, libraryRoot string, quick bool) Verdict {
	var verdict Verdict
	for _, decision := range p.classifyFiles(book, libraryRoot, quick) {
		switch decision.slot {
		case slotOriginal:
			verdict.HasOriginal = true
		case slotViewable:
			verdict.HasViewable = true
		case slotTranslation:
			verdict.HasTranslation = true
		}
		if decision.extraneous != "" {
			verdict.Extraneous = append(verdict.Extraneous, decision.extraneous)
		}
	}

	verdict.DescriptionLanguage = p.classify(sample.StripTags(book.Description))

	if book.ISBN == "" {
		// The missing flag reflects the metadata store; recovery only
		// populates the advisory field.
		verdict.ISBNMissing = true
		if !quick {
			verdict.RecoveredISBN = p.recoverIdentifier(book, libraryRoot)
		}
	}
	return verdict
}

type slot int

const (
	slotNone slot = iota
	slotOriginal
	slotViewable
	slotTranslation
)

// decision records how one format file was classified: the slot it filled,
// if any, and the extraneous label it earned, if any. A file with neither is
// tolerated but contributes nothing (strict-mode originals).
type decision struct {
	file       library.FormatFile
	slot       slot
	extraneous string
}

func (p *Policy) classifyFiles(book *library.BookRecord, libraryRoot string, quick bool) []decision {
	decisions := make([]decision, 0, len(book.Formats))
	for _, file := range book.Formats {
		code := strings.ToUpper(strings.TrimSpace(file.Format))
		d := decision{file: file}
		switch {
		case p.originalFormats[code]:
			if p.strictOriginal && !quick && p.readsAsTranslation(file.FilePath(libraryRoot, book.Path), code) {
				p.logger.Warn("original-format file reads as translation content",
					logging.Int64(logging.FieldBookID, book.ID),
					logging.String(logging.FieldFormat, code))
			} else {
				d.slot = slotOriginal
			}
		case code == p.viewableFormat:
			d.slot = slotViewable
		case code == p.translationFormat:
			if p.translationAccepted(book, file, libraryRoot, quick) {
				d.slot = slotTranslation
			} else {
				d.extraneous = code + " (wrong language)"
			}
		default:
			d.extraneous = code
		}
		decisions = append(decisions, d)
	}
	return decisions
}

func (p *Policy) translationAccepted(book *library.BookRecord, file library.FormatFile, libraryRoot string, quick bool) bool {
	if quick {
		return len(book.Languages) == 0 || book.HasLanguage(p.translationLanguage)
	}
	return p.readsAsTranslation(file.FilePath(libraryRoot, book.Path), file.Format)
}

func (p *Policy) readsAsTranslation(path, format string) bool {
	kind, ok := sample.KindForFormat(format)
	if !ok {
		return false
	}
	return p.looksTranslated(p.sampleText(path, kind))
}

func (p *Policy) recoverIdentifier(book *library.BookRecord, libraryRoot string) string {
	for _, file := range book.Formats {
		if identifier, ok := p.extractIdentifier(file.FilePath(libraryRoot, book.Path)); ok {
			p.logger.Info("recovered identifier from format file",
				logging.Int64(logging.FieldBookID, book.ID),
				logging.String(logging.FieldFormat, file.Format))
			return identifier
		}
	}
	return ""
}
