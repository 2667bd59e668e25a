package language

import (
	"strings"
)

// Stopword profiles for the languages regulatory filings arrive in. Chosen
// for words that are frequent in one language and rare in the others.
var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "that", "is", "for", "with", "shall", "be", "by"},
	"fr": {"le", "la", "les", "des", "une", "est", "dans", "pour", "que", "qui", "sont", "être"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "mit", "für", "auf", "werden", "eine", "den"},
	"es": {"el", "los", "las", "una", "es", "en", "por", "que", "para", "con", "ser", "del"},
}

// Detect returns the BCP 47 primary tag of the dominant language in text.
// Falls back to "en" when no profile scores, so downstream translation is a
// no-op rather than a failure.
func Detect(text string) string {
	words := tokenize(text)
	if len(words) == 0 {
		return "en"
	}

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}

	best := "en"
	bestScore := 0
	for lang, profile := range stopwords {
		score := 0
		for _, sw := range profile {
			score += counts[sw]
		}
		if score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isLetter(r)
	})
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || r >= 0x80
}
