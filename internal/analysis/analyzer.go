// Package analysis turns raw text into the ordered term sequences consumed by
// the index and by query construction. It lower-cases input, splits on
// non-alphanumeric boundaries, removes stop-words and stems with the
// Snowball English stemmer.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Analyzer maps text to an ordered sequence of terms.
type Analyzer interface {
	Tokenize(text string) []string
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(text string) []string

func (f AnalyzerFunc) Tokenize(text string) []string {
	return f(text)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "will": {}, "with": {},
}

// EnglishAnalyzer mirrors the usual English analysis chain of IR toolkits:
// lower-casing, stop-word removal and stemming.
type EnglishAnalyzer struct {
	stem bool
}

// NewEnglishAnalyzer returns an analyzer that stems every surviving token.
func NewEnglishAnalyzer() *EnglishAnalyzer {
	return &EnglishAnalyzer{stem: true}
}

// Tokenize breaks text into lower-cased, stemmed terms with stop-words removed.
func (a *EnglishAnalyzer) Tokenize(text string) []string {
	words := split(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		if a.stem {
			word = stem(word)
		}
		if word == "" {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// WhitespaceAnalyzer lower-cases and splits on non-alphanumeric runes and
// nothing else. Test collections use it so term statistics stay predictable.
type WhitespaceAnalyzer struct{}

func (WhitespaceAnalyzer) Tokenize(text string) []string {
	return split(text)
}

func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stem(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stemmed
}
