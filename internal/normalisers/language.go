package normalisers

import "strings"

// stopwordSets holds high-frequency function words per language.
// Detection counts hits per set over the first few hundred tokens;
// the set with the most hits wins.
var stopwordSets = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "that", "it", "was", "for", "with", "as", "are", "this", "not"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ein", "eine", "mit", "auf", "für", "von", "sich", "dem", "den"},
	"fr": {"le", "la", "les", "et", "est", "une", "des", "dans", "que", "pour", "pas", "sur", "avec", "qui", "par"},
	"es": {"el", "la", "los", "las", "y", "es", "una", "del", "que", "por", "para", "con", "nos", "sin", "como"},
	"it": {"il", "la", "di", "che", "è", "un", "una", "per", "con", "non", "sono", "del", "della", "gli", "si"},
}

// maxDetectTokens bounds the work done per document.
const maxDetectTokens = 400

// minDetectHits is the minimum stopword count to claim a language.
const minDetectHits = 3

// DetectLanguage guesses the language of a text by stopword frequency.
// Returns an ISO 639-1 code, or empty when no language is confident.
func DetectLanguage(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) > maxDetectTokens {
		tokens = tokens[:maxDetectTokens]
	}
	if len(tokens) == 0 {
		return ""
	}

	counts := make(map[string]int, len(stopwordSets))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		for lang, words := range stopwordSets {
			for _, w := range words {
				if tok == w {
					counts[lang]++
					break
				}
			}
		}
	}

	best, bestCount := "", 0
	for lang, c := range counts {
		if c > bestCount || (c == bestCount && lang < best) {
			best, bestCount = lang, c
		}
	}
	if bestCount < minDetectHits {
		return ""
	}
	return best
}
