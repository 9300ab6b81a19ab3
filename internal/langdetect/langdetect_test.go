package langdetect_test

import (
	"strings"
	"testing"

	"shelfaudit/internal/langdetect"
)

func TestClassifyEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		if got := langdetect.Classify(input); got != langdetect.Unknown {
			t.Fatalf("Classify(%q) = %q, want unknown", input, got)
		}
	}
}

func TestClassifyCzechByDiacritics(t *testing.T) {
	// Over 1% of runes are Czech diacritics.
	text := "Příliš žluťoučký kůň úpěl ďábelské ódy"
	if got := langdetect.Classify(text); got != langdetect.Czech {
		t.Fatalf("Classify = %q, want ces", got)
	}
}

func TestClassifyDiacriticsShortCircuitParticles(t *testing.T) {
	// Heavy diacritics plus many English words: the diacritic branch is
	// decided before word counting.
	text := strings.Repeat("ž", 5) + " the and is in with for of"
	if got := langdetect.Classify(text); got != langdetect.Czech {
		t.Fatalf("Classify = %q, want ces via diacritic short-circuit", got)
	}
}

func TestClassifyCzechByParticles(t *testing.T) {
	text := "kniha je na stole a text se pro nas hodi v knihovne"
	if got := langdetect.Classify(text); got != langdetect.Czech {
		t.Fatalf("Classify = %q, want ces", got)
	}
}

func TestClassifyEnglish(t *testing.T) {
	text := "This is the story of a traveller lost in the mountains with no map."
	if got := langdetect.Classify(text); got != langdetect.English {
		t.Fatalf("Classify = %q, want eng", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	for _, input := range []string{"lorem ipsum dolor sit amet", "12345 67890"} {
		if got := langdetect.Classify(input); got != langdetect.Unknown {
			t.Fatalf("Classify(%q) = %q, want unknown", input, got)
		}
	}
}

func TestClassifyAlwaysReturnsKnownCode(t *testing.T) {
	inputs := []string{"", "a", "žžž", " the the the ", "na se je", "mixed je the text"}
	for _, input := range inputs {
		got := langdetect.Classify(input)
		switch got {
		case langdetect.Czech, langdetect.English, langdetect.Unknown:
		default:
			t.Fatalf("Classify(%q) returned unexpected code %q", input, got)
		}
	}
}

func TestLooksCzechDiacriticThresholdIsLower(t *testing.T) {
	// Roughly 0.7% diacritics: above the 0.5% LooksCzech threshold but
	// below the 1% Classify threshold.
	text := "ž" + strings.Repeat("a", 140)
	if !langdetect.LooksCzech(text) {
		t.Fatal("LooksCzech should accept 0.7% diacritics")
	}
	if got := langdetect.Classify(text); got == langdetect.Czech {
		t.Fatal("Classify must not take the diacritic branch below 1%")
	}
}

func TestLooksCzechParticleFallback(t *testing.T) {
	// No diacritics at all, but two common particles.
	if !langdetect.LooksCzech("text je psany a slova se opakuji") {
		t.Fatal("LooksCzech should accept two particle matches")
	}
	if langdetect.LooksCzech("plain english text with no particles") {
		t.Fatal("LooksCzech should reject text without signals")
	}
}

func TestLooksCzechEmpty(t *testing.T) {
	if langdetect.LooksCzech("") {
		t.Fatal("LooksCzech must reject empty input")
	}
}
