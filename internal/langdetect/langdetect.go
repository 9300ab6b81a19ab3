// Package langdetect classifies short text samples as Czech, English, or
// unknown using diacritic-frequency and stop-word heuristics. It is tuned
// for e-book samples and stored descriptions, not arbitrary text; callers
// must treat "unknown" conservatively.
package langdetect

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ISO 639-2 codes returned by Classify.
const (
	Czech   = "ces"
	English = "eng"
	Unknown = "unknown"
)

// czechDiacritics is the full set of accented characters specific to Czech
// orthography, both cases.
const czechDiacritics = "áéíóúůýčďěňřšťžÁÉÍÓÚŮÝČĎĚŇŘŠŤŽ"

// The two diacritic-ratio thresholds are intentionally different: Classify
// answers "what language is this text" and wants high confidence, while
// LooksCzech answers "could this be the Czech edition" and errs towards
// acceptance. Do not unify them.
const (
	classifyRatio   = 0.01
	looksCzechRatio = 0.005
)

var czechParticles = []string{" se ", " je ", " že ", " s ", " v ", " na ", " pro "}

var englishWords = []string{" the ", " and ", " is ", " in ", " with ", " for ", " of ", " that ", " this "}

// Classify returns the ISO 639-2 code of the dominant language in text, or
// Unknown when no heuristic fires. Empty and whitespace-only input is
// Unknown.
func Classify(text string) string {
	if strings.TrimSpace(text) == "" {
		return Unknown
	}
	text = norm.NFC.String(text)

	if diacriticRatio(text) > classifyRatio {
		return Czech
	}

	lower := strings.ToLower(text)
	czech := countPresent(lower, czechParticles)
	english := countPresent(lower, englishWords)

	if czech > english && czech >= 1 {
		return Czech
	}
	if english >= 2 {
		return English
	}
	return Unknown
}

// LooksCzech reports whether text plausibly reads as Czech. It uses a lower
// diacritic threshold than Classify and additionally accepts short samples
// with two or more common particles.
func LooksCzech(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	text = norm.NFC.String(text)

	if diacriticRatio(text) > looksCzechRatio {
		return true
	}
	return countPresent(strings.ToLower(text), czechParticles) >= 2
}

func diacriticRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	count := 0
	for _, r := range text {
		if strings.ContainsRune(czechDiacritics, r) {
			count++
		}
	}
	return float64(count) / float64(total)
}

// countPresent counts how many of the candidate words occur in text at
// least once. Presence, not occurrences: a single repeated particle should
// not outvote a varied vocabulary.
func countPresent(text string, candidates []string) int {
	matches := 0
	for _, candidate := range candidates {
		if strings.Contains(text, candidate) {
			matches++
		}
	}
	return matches
}
