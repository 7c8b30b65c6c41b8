package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Learning to rank combines many relevance signals into one model. Each
        query-document pair is described by features such as BM25, query likelihood
        and divergence-from-randomness scores, and a ranker learns how to weight them
        from judged examples.`,
	"long": strings.Repeat(`Pseudo-relevance feedback assumes the top retrieved documents are
        relevant and estimates a relevance model from their term distributions. The
        expanded query interpolates the original terms with the most probable feedback
        terms, which often improves recall on short keyword queries. `, 20),
}

func BenchmarkEnglishAnalyzer(b *testing.B) {
	a := analysis.NewEnglishAnalyzer()
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = a.Tokenize(text)
			}
		})
	}
}

func BenchmarkWhitespaceAnalyzer(b *testing.B) {
	a := analysis.WhitespaceAnalyzer{}
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = a.Tokenize(text)
			}
		})
	}
}

func BenchmarkBagOfWords(b *testing.B) {
	a := analysis.NewEnglishAnalyzer()
	query := "international organized crime international crime"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := analysis.BagOfWords(a, query); err != nil {
			b.Fatal(err)
		}
	}
}
