package rm3

import (
	"context"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
)

// Published Lucene 8 similarity scores for a four-document collection,
// plain and with RM3 feedback at the default parameters.
func TestScoresMatchLuceneFixtures(t *testing.T) {
	idx := newTestIndex(
		"dog cat dog cat cat",
		"cat horse rabbit rat rabbit",
		"cat fish horse",
		"dog cat",
	)
	src := search.NewIndexSource(idx, index.FieldContents)
	exp := newExpander(t, idx, DefaultParams())
	scorer := search.NewScorer(src, analysis.WhitespaceAnalyzer{}, exp)

	tf := similarity.TF{}
	tfidf := similarity.TFIDF{}
	bm25 := similarity.BM25{K1: 0.9, B: 0.4}
	pl2 := similarity.PL2{C: 0.1}
	ql := similarity.QL{Mu: 1000}

	tests := []struct {
		model    similarity.Model
		query    string
		docID    string
		feedback bool
		want     float64
	}{
		{tf, "cat", "DOC_1", false, 3},
		{tf, "cat", "DOC_2", false, 1},
		{tf, "dog", "DOC_3", false, 0},
		{tf, "dog", "DOC_4", false, 1},
		{tf, "rabbit", "DOC_1", false, 0},
		{tf, "cat", "DOC_1", true, 1.5},
		{tf, "cat", "DOC_2", true, 0.5},
		{tf, "dog", "DOC_3", true, 0},
		{tf, "dog", "DOC_4", true, 0.5},

		{tfidf, "cat", "DOC_1", false, 0.77459},
		{tfidf, "cat", "DOC_2", false, 0.44721},
		{tfidf, "dog", "DOC_3", false, 0},
		{tfidf, "dog", "DOC_4", false, 1.06831},
		{tfidf, "cat", "DOC_1", true, 0.38729},
		{tfidf, "cat", "DOC_2", true, 0.22360},
		{tfidf, "dog", "DOC_3", true, 0},
		{tfidf, "dog", "DOC_4", true, 0.53415},

		{bm25, "cat", "DOC_1", false, 0.07862},
		{bm25, "cat", "DOC_2", false, 0.05215},
		{bm25, "dog", "DOC_3", false, 0},
		{bm25, "dog", "DOC_4", false, 0.40020},
		{similarity.BM25{K1: 21, B: 1}, "cat", "DOC_1", false, 0.010196},
		{similarity.BM25{K1: 1, B: 1}, "rabbit", "DOC_1", false, 0},
		{bm25, "cat", "DOC_1", true, 0.03931},
		{bm25, "cat", "DOC_2", true, 0.02607},
		{bm25, "dog", "DOC_3", true, 0},
		{bm25, "dog", "DOC_4", true, 0.20010},

		{pl2, "cat", "DOC_1", false, 0.036236},
		{pl2, "cat", "DOC_2", false, 0.014361},
		{pl2, "dog", "DOC_3", false, 0},
		{pl2, "dog", "DOC_4", false, 0.198671},
		{similarity.PL2{C: 1}, "cat", "DOC_1", false, 0.107584},
		{pl2, "cat", "DOC_1", true, 0.018118},
		{pl2, "cat", "DOC_2", true, 0.007180},
		{pl2, "dog", "DOC_3", true, 0},
		{pl2, "dog", "DOC_4", true, 0.099335},

		{ql, "cat", "DOC_1", false, 0.001846},
		{ql, "cat", "DOC_2", false, 0},
		{ql, "dog", "DOC_3", false, 0},
		{ql, "dog", "DOC_4", false, 0.001994},
		{similarity.QL{Mu: 0.3}, "cat", "DOC_1", false, 0.30040},
		{ql, "cat", "DOC_1", true, 0.000923},
		{ql, "cat", "DOC_2", true, 0},
		{ql, "dog", "DOC_3", true, 0},
		{ql, "dog", "DOC_4", true, 0.000997},
	}
	for _, tt := range tests {
		name := tt.model.String() + "/" + tt.query + "/" + tt.docID
		if tt.feedback {
			name += "/rm3"
		}
		t.Run(name, func(t *testing.T) {
			var got float64
			var err error
			if tt.feedback {
				got, err = scorer.ScoreWithFeedback(context.Background(), tt.model, tt.query, tt.docID)
			} else {
				got, err = scorer.Score(context.Background(), tt.model, tt.query, tt.docID)
			}
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("score = %.6f, want %.6f", got, tt.want)
			}
		})
	}
}

func TestExpandFilteredModelHalvesOriginal(t *testing.T) {
	// Every term occurs in at least a quarter of the documents, above the
	// default ratio of 0.1, so no feedback term survives.
	idx := newTestIndex("dog cat dog cat cat", "cat horse rabbit rat rabbit", "cat fish horse", "dog cat")
	e := newExpander(t, idx, DefaultParams())

	got, err := e.Expand(context.Background(), bag(t, "cat dog"), similarity.TF{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expanded query %s, want only the original terms", got)
	}
	for _, term := range []string{"cat", "dog"} {
		if math.Abs(got.Weight(term)-0.25) > 1e-9 {
			t.Errorf("weight(%s) = %v, want 0.25", term, got.Weight(term))
		}
	}
}
