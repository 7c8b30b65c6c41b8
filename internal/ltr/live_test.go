package ltr

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/rm3"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

func newTestIndex() *index.MemoryIndex {
	idx := index.NewMemoryIndex(analysis.WhitespaceAnalyzer{})
	idx.AddText("DOC_1", "dog cat dog cat cat")
	idx.AddText("DOC_2", "dog dog fish")
	idx.AddText("DOC_3", "bird")
	return idx
}

func queryContext(t *testing.T, idx *index.MemoryIndex, text string) QueryContext {
	t.Helper()
	qc, err := NewQueryContext(analysis.WhitespaceAnalyzer{}, "q1", text, idx, index.FieldContents)
	if err != nil {
		t.Fatalf("NewQueryContext: %v", err)
	}
	return qc
}

func TestLiveExtractor(t *testing.T) {
	idx := newTestIndex()
	extractors, err := NewRegistry().Build([]string{"tf", "doc_length", "matched_terms", "query_length"}, Dependencies{Params: similarity.DefaultParams})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	live, err := NewLiveExtractor(extractors)
	if err != nil {
		t.Fatalf("NewLiveExtractor: %v", err)
	}

	v, err := live.Provide(context.Background(), Document{Handle: 0, ID: "DOC_1"}, queryContext(t, idx, "cat bird cat"))
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	// cat counts twice in the query, so tf = 2*3.
	want := []Feature{{1, 6}, {2, 5}, {3, 1}, {4, 3}}
	if len(v.Features) != len(want) {
		t.Fatalf("got %d features, want %d", len(v.Features), len(want))
	}
	for i, f := range want {
		if v.Features[i] != f {
			t.Errorf("feature %d = %+v, want %+v", i, v.Features[i], f)
		}
	}
	if v.QueryID != "q1" || v.DocID != "DOC_1" || v.Comment != "DOC_1" {
		t.Errorf("unexpected identity fields: %+v", v)
	}
	if live.Schema().Len() != 4 {
		t.Errorf("schema size = %d", live.Schema().Len())
	}
}

func TestLiveExtractorFeedbackFeature(t *testing.T) {
	idx := newTestIndex()
	src := search.NewIndexSource(idx, index.FieldContents)
	p := rm3.DefaultParams()
	p.MaxDocFreqRatio = 0
	exp, err := rm3.New(src, idx, index.FieldContents, p)
	if err != nil {
		t.Fatalf("rm3.New: %v", err)
	}
	scorer := search.NewScorer(src, analysis.WhitespaceAnalyzer{}, exp)

	extractors, err := NewRegistry().Build([]string{"tf_rm3"}, Dependencies{Params: similarity.DefaultParams, Scorer: scorer})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	live, err := NewLiveExtractor(extractors)
	if err != nil {
		t.Fatalf("NewLiveExtractor: %v", err)
	}
	v, err := live.Provide(context.Background(), Document{Handle: 0, ID: "DOC_1"}, queryContext(t, idx, "cat"))
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if got := float64(v.Features[0].Value); math.Abs(got-2.8) > 1e-5 {
		t.Errorf("tf_rm3 = %v, want 2.8", got)
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build([]string{"tf", "pagerank"}, Dependencies{Params: similarity.DefaultParams})
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("unknown extractor: expected ErrConfiguration, got %v", err)
	}
	_, err = r.Build([]string{"bm25_rm3"}, Dependencies{Params: similarity.DefaultParams})
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("rm3 without scorer: expected ErrConfiguration, got %v", err)
	}
	if _, err := NewLiveExtractor(nil); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("empty extractor list: expected ErrConfiguration, got %v", err)
	}
	if !r.Has("BM25") {
		t.Error("registry lookups should ignore case")
	}
}

type failingExtractor struct{}

func (failingExtractor) Name() string { return "failing" }

func (failingExtractor) Extract(context.Context, Document, index.TermVector, QueryContext) (float64, error) {
	return 0, errors.New("boom")
}

func TestLiveExtractorFailureIsFatal(t *testing.T) {
	idx := newTestIndex()
	tf, err := NewRegistry().Build([]string{"tf"}, Dependencies{Params: similarity.DefaultParams})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	live, err := NewLiveExtractor(append(tf, failingExtractor{}))
	if err != nil {
		t.Fatalf("NewLiveExtractor: %v", err)
	}
	v, err := live.Provide(context.Background(), Document{Handle: 0, ID: "DOC_1"}, queryContext(t, idx, "cat"))
	if err == nil {
		t.Fatalf("expected an error, got vector %+v", v)
	}
	if v.Len() != 0 {
		t.Errorf("partial vector returned: %+v", v)
	}
}

func TestLiveExtractorUnknownHandle(t *testing.T) {
	idx := newTestIndex()
	tf, _ := NewRegistry().Build([]string{"tf"}, Dependencies{Params: similarity.DefaultParams})
	live, _ := NewLiveExtractor(tf)
	_, err := live.Provide(context.Background(), Document{Handle: 42, ID: "DOC_42"}, queryContext(t, idx, "cat"))
	if !errors.Is(err, apperrors.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
}
