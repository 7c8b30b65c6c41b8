package ltr

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Extractor computes one feature of a document for a query.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document, tv index.TermVector, qc QueryContext) (float64, error)
}

// Dependencies are handed to extractor factories. Scorer is only needed by
// the feedback variants.
type Dependencies struct {
	Params similarity.Params
	Scorer *search.Scorer
}

// Factory builds an extractor.
type Factory func(deps Dependencies) (Extractor, error)

// Registry maps extractor names to factories. Names are resolved once, when
// a LiveExtractor is assembled.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for _, kind := range []similarity.Kind{
		similarity.KindTF, similarity.KindTFIDF, similarity.KindBM25, similarity.KindPL2, similarity.KindQL,
	} {
		r.Register(kind.String(), modelFactory(kind))
		r.Register(kind.String()+"_rm3", feedbackFactory(kind))
	}
	r.Register("doc_length", func(Dependencies) (Extractor, error) { return docLength{}, nil })
	r.Register("query_length", func(Dependencies) (Extractor, error) { return queryLength{}, nil })
	r.Register("matched_terms", func(Dependencies) (Extractor, error) { return matchedTerms{}, nil })
	r.Register("sum_idf", func(Dependencies) (Extractor, error) { return sumIDF{}, nil })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names lists registered extractor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves names in order. Unknown names are a configuration error.
func (r *Registry) Build(names []string, deps Dependencies) ([]Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extractor, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, apperrors.Configurationf("unknown feature extractor %q", name)
		}
		e, err := f(deps)
		if err != nil {
			return nil, fmt.Errorf("building extractor %s: %w", name, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func modelFactory(kind similarity.Kind) Factory {
	return func(deps Dependencies) (Extractor, error) {
		m, err := similarity.New(kind, deps.Params)
		if err != nil {
			return nil, err
		}
		return modelScore{name: kind.String(), model: m}, nil
	}
}

func feedbackFactory(kind similarity.Kind) Factory {
	return func(deps Dependencies) (Extractor, error) {
		if deps.Scorer == nil {
			return nil, apperrors.Configurationf("extractor %s_rm3 needs a relevance scorer", kind)
		}
		m, err := similarity.New(kind, deps.Params)
		if err != nil {
			return nil, err
		}
		return feedbackScore{name: kind.String() + "_rm3", model: m, scorer: deps.Scorer}, nil
	}
}

type modelScore struct {
	name  string
	model similarity.Model
}

func (e modelScore) Name() string { return e.name }

func (e modelScore) Extract(_ context.Context, _ Document, tv index.TermVector, qc QueryContext) (float64, error) {
	score, _ := similarity.ScoreTermVector(e.model, qc.Stats, qc.Field, qc.Query, tv)
	return score, nil
}

type feedbackScore struct {
	name   string
	model  similarity.Model
	scorer *search.Scorer
}

func (e feedbackScore) Name() string { return e.name }

func (e feedbackScore) Extract(ctx context.Context, doc Document, _ index.TermVector, qc QueryContext) (float64, error) {
	return e.scorer.ScoreWithFeedback(ctx, e.model, qc.QueryText, doc.ID)
}

type docLength struct{}

func (docLength) Name() string { return "doc_length" }

func (docLength) Extract(_ context.Context, _ Document, tv index.TermVector, _ QueryContext) (float64, error) {
	return float64(tv.Length()), nil
}

type queryLength struct{}

func (queryLength) Name() string { return "query_length" }

func (queryLength) Extract(_ context.Context, _ Document, _ index.TermVector, qc QueryContext) (float64, error) {
	return qc.Query.TotalWeight(), nil
}

type matchedTerms struct{}

func (matchedTerms) Name() string { return "matched_terms" }

func (matchedTerms) Extract(_ context.Context, _ Document, tv index.TermVector, qc QueryContext) (float64, error) {
	var n int
	for _, wt := range qc.Query.Terms() {
		if tv[wt.Term] > 0 {
			n++
		}
	}
	return float64(n), nil
}

// sumIDF adds the smoothed idf 1+ln((N+1)/(df+1)) of every query term.
type sumIDF struct{}

func (sumIDF) Name() string { return "sum_idf" }

func (sumIDF) Extract(_ context.Context, _ Document, _ index.TermVector, qc QueryContext) (float64, error) {
	n := float64(qc.Stats.CollectionSize())
	var sum float64
	for _, wt := range qc.Query.Terms() {
		df := float64(qc.Stats.DocFreq(wt.Term, qc.Field))
		sum += 1 + math.Log((n+1)/(df+1))
	}
	return sum, nil
}
