// Package rm3 implements RM3 pseudo-relevance feedback: the top documents
// retrieved for a query are treated as relevant, a relevance model over
// their terms is estimated, and the strongest terms are interpolated with
// the original query.
package rm3

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

var feedbackTerm = regexp.MustCompile(`^[a-z0-9]+$`)

// Params controls feedback. MinTermLength and MaxDocFreqRatio filter
// candidate expansion terms; zero disables either filter.
type Params struct {
	FbDocs              int
	FbTerms             int
	OriginalQueryWeight float64
	MinTermLength       int
	MaxDocFreqRatio     float64
}

func DefaultParams() Params {
	return Params{
		FbDocs:              10,
		FbTerms:             10,
		OriginalQueryWeight: 0.5,
		MinTermLength:       2,
		MaxDocFreqRatio:     0.1,
	}
}

func (p Params) Validate() error {
	if p.FbDocs <= 0 {
		return apperrors.Configurationf("rm3 fbDocs must be positive, got %d", p.FbDocs)
	}
	if p.FbTerms <= 0 {
		return apperrors.Configurationf("rm3 fbTerms must be positive, got %d", p.FbTerms)
	}
	if p.OriginalQueryWeight < 0 || p.OriginalQueryWeight > 1 {
		return apperrors.Configurationf("rm3 originalQueryWeight must be in [0,1], got %g", p.OriginalQueryWeight)
	}
	if p.MinTermLength < 0 {
		return apperrors.Configurationf("rm3 minTermLength must not be negative, got %d", p.MinTermLength)
	}
	if p.MaxDocFreqRatio < 0 || p.MaxDocFreqRatio > 1 {
		return apperrors.Configurationf("rm3 maxDocFreqRatio must be in [0,1], got %g", p.MaxDocFreqRatio)
	}
	return nil
}

// Expander rewrites queries with RM3. Feedback documents come from source;
// their term vectors are read from stats, which must share handles with
// source.
type Expander struct {
	source search.RankingSource
	stats  index.Statistics
	field  string
	params Params
	logger *slog.Logger
}

func New(source search.RankingSource, stats index.Statistics, field string, params Params) (*Expander, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Expander{
		source: source,
		stats:  stats,
		field:  field,
		params: params,
		logger: slog.Default().With("component", "rm3"),
	}, nil
}

func (e *Expander) Params() Params {
	return e.params
}

// Expand returns the interpolated query. When retrieval yields no feedback
// documents q is returned as is. An empty relevance model (every candidate
// term filtered out) still goes through interpolation, which leaves each
// original term with OriginalQueryWeight of its normalized weight.
func (e *Expander) Expand(ctx context.Context, q analysis.WeightedQuery, m similarity.Model) (analysis.WeightedQuery, error) {
	if q.Len() == 0 {
		return q, nil
	}
	hits, err := e.source.Search(ctx, q, m, search.Filter{}, e.params.FbDocs)
	if err != nil {
		return analysis.WeightedQuery{}, fmt.Errorf("retrieving feedback documents: %w", err)
	}
	if len(hits) == 0 {
		e.logger.Debug("no feedback documents, keeping original query", "query", q.String())
		return q, nil
	}
	feedback, err := e.RelevanceModel(hits)
	if err != nil {
		return analysis.WeightedQuery{}, err
	}
	if feedback.Len() == 0 {
		e.logger.Debug("no feedback terms survived filtering", "query", q.String(), "feedback_docs", len(hits))
	}
	return Interpolate(q, feedback, e.params.OriginalQueryWeight), nil
}

// RelevanceModel estimates the feedback distribution over the terms of the
// given hits: each term accumulates tf/|d| scaled by the document's score,
// the top FbTerms are kept and the result is normalized to sum to 1.
func (e *Expander) RelevanceModel(hits []search.Hit) (analysis.WeightedQuery, error) {
	n := e.stats.CollectionSize()
	weights := make(map[string]float64)
	for _, h := range hits {
		tv, err := e.stats.TermVector(h.Handle, e.field)
		if err != nil {
			return analysis.WeightedQuery{}, fmt.Errorf("reading term vector of feedback document %d: %w", h.Handle, err)
		}
		docLen := tv.Length()
		if docLen == 0 {
			continue
		}
		for term, freq := range tv {
			if !e.keep(term, n) {
				continue
			}
			weights[term] += float64(freq) / float64(docLen) * h.Score
		}
	}

	terms := make([]analysis.WeightedTerm, 0, len(weights))
	for term, w := range weights {
		if w > 0 {
			terms = append(terms, analysis.WeightedTerm{Term: term, Weight: w})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > e.params.FbTerms {
		terms = terms[:e.params.FbTerms]
	}
	return analysis.NewWeightedQuery(terms).Normalized(), nil
}

func (e *Expander) keep(term string, n int64) bool {
	if len(term) < e.params.MinTermLength {
		return false
	}
	if !feedbackTerm.MatchString(term) {
		return false
	}
	if e.params.MaxDocFreqRatio > 0 && n > 0 {
		ratio := float64(e.stats.DocFreq(term, e.field)) / float64(n)
		if ratio > e.params.MaxDocFreqRatio {
			return false
		}
	}
	return true
}

// Interpolate mixes the normalized original query with a feedback
// distribution: w(t) = alpha*orig(t) + (1-alpha)*fb(t). Original terms come
// first in query order, then feedback-only terms in feedback order. Terms
// whose mixed weight is zero are dropped.
func Interpolate(original, feedback analysis.WeightedQuery, alpha float64) analysis.WeightedQuery {
	orig := original.Normalized()
	fb := feedback.Normalized()

	terms := make([]analysis.WeightedTerm, 0, orig.Len()+fb.Len())
	for _, t := range orig.Terms() {
		terms = append(terms, analysis.WeightedTerm{Term: t.Term, Weight: alpha*t.Weight + (1-alpha)*fb.Weight(t.Term)})
	}
	for _, t := range fb.Terms() {
		if orig.Contains(t.Term) {
			continue
		}
		terms = append(terms, analysis.WeightedTerm{Term: t.Term, Weight: (1 - alpha) * t.Weight})
	}

	kept := terms[:0]
	for _, t := range terms {
		if t.Weight > 0 {
			kept = append(kept, t)
		}
	}
	return analysis.NewWeightedQuery(kept)
}
