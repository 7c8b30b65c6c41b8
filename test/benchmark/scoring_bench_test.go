package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/rm3"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
)

var vocabulary = strings.Fields(`retrieval ranking relevance feedback query document
	index posting term frequency collection model smoothing dirichlet divergence
	randomness probabilistic vector space judgment topic expansion interpolation
	feature learning training label score length norm average corpus`)

// buildIndex indexes numDocs synthetic documents of 20 to 200 terms.
func buildIndex(numDocs int) *index.MemoryIndex {
	rng := rand.New(rand.NewSource(42))
	idx := index.NewMemoryIndex(analysis.WhitespaceAnalyzer{})
	for i := 0; i < numDocs; i++ {
		n := 20 + rng.Intn(180)
		words := make([]string, n)
		for j := range words {
			// Skewed draw so term statistics look Zipfian.
			words[j] = vocabulary[int(float64(len(vocabulary))*rng.Float64()*rng.Float64())]
		}
		idx.AddText(fmt.Sprintf("doc-%d", i), strings.Join(words, " "))
	}
	return idx
}

func BenchmarkIndexing(b *testing.B) {
	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = buildIndex(n)
			}
		})
	}
}

// BenchmarkScore measures one id-filtered document score per model.
func BenchmarkScore(b *testing.B) {
	idx := buildIndex(2000)
	scorer := search.NewScorer(search.NewIndexSource(idx, index.FieldContents), analysis.WhitespaceAnalyzer{}, nil)
	ctx := context.Background()
	for _, kind := range []similarity.Kind{
		similarity.KindTF, similarity.KindTFIDF, similarity.KindBM25, similarity.KindPL2, similarity.KindQL,
	} {
		m, err := similarity.New(kind, similarity.DefaultParams)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(kind.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := scorer.Score(ctx, m, "relevance feedback model", fmt.Sprintf("doc-%d", i%2000)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRetrieval(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		idx := buildIndex(n)
		source := search.NewIndexSource(idx, index.FieldContents)
		q, _ := analysis.BagOfWords(analysis.WhitespaceAnalyzer{}, "dirichlet smoothing query")
		m := similarity.BM25{K1: 0.9, B: 0.4}
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := source.Search(context.Background(), q, m, search.Filter{}, 100); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRM3Expand(b *testing.B) {
	idx := buildIndex(5000)
	source := search.NewIndexSource(idx, index.FieldContents)
	params := rm3.DefaultParams()
	params.MaxDocFreqRatio = 0
	exp, err := rm3.New(source, idx, index.FieldContents, params)
	if err != nil {
		b.Fatal(err)
	}
	q, _ := analysis.BagOfWords(analysis.WhitespaceAnalyzer{}, "feature learning")
	m := similarity.BM25{K1: 0.9, B: 0.4}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exp.Expand(context.Background(), q, m); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLiveExtraction(b *testing.B) {
	idx := buildIndex(2000)
	extractors, err := ltr.NewRegistry().Build(
		[]string{"tf", "tfidf", "bm25", "pl2", "ql", "doc_length", "query_length", "matched_terms", "sum_idf"},
		ltr.Dependencies{Params: similarity.DefaultParams},
	)
	if err != nil {
		b.Fatal(err)
	}
	live, err := ltr.NewLiveExtractor(extractors)
	if err != nil {
		b.Fatal(err)
	}
	qc, err := ltr.NewQueryContext(analysis.WhitespaceAnalyzer{}, "1", "ranking model training", idx, index.FieldContents)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := ltr.Document{Handle: index.DocHandle(i % 2000), ID: fmt.Sprintf("doc-%d", i%2000)}
		if _, err := live.Provide(context.Background(), doc, qc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNormQuantization(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = similarity.QuantizeLength(i % 100000)
	}
}
