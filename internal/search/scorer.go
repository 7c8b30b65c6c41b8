package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// candidateLimit bounds how many id-filtered hits are fetched. More than one
// hit means the collection carries duplicate ids.
const candidateLimit = 10

// Expander rewrites a query using pseudo-relevance feedback under a model.
type Expander interface {
	Expand(ctx context.Context, q analysis.WeightedQuery, m similarity.Model) (analysis.WeightedQuery, error)
}

// Scorer computes the relevance score of one document for a query.
type Scorer struct {
	source   RankingSource
	analyzer analysis.Analyzer
	expander Expander
	logger   *slog.Logger
}

// NewScorer creates a Scorer. expander may be nil, in which case
// ScoreWithFeedback fails with a configuration error.
func NewScorer(source RankingSource, analyzer analysis.Analyzer, expander Expander) *Scorer {
	return &Scorer{
		source:   source,
		analyzer: analyzer,
		expander: expander,
		logger:   slog.Default().With("component", "relevance-scorer"),
	}
}

// Score returns the score of documentID for queryText under m, or 0 when the
// document matches none of the query terms.
func (s *Scorer) Score(ctx context.Context, m similarity.Model, queryText, documentID string) (float64, error) {
	q, err := analysis.BagOfWords(s.analyzer, queryText)
	if err != nil {
		return 0, err
	}
	return s.ScoreQuery(ctx, m, q, documentID)
}

// ScoreWithFeedback expands queryText with RM3 under m and scores the
// expanded query with the same model.
func (s *Scorer) ScoreWithFeedback(ctx context.Context, m similarity.Model, queryText, documentID string) (float64, error) {
	if s.expander == nil {
		return 0, apperrors.Configurationf("feedback scoring requested but no expander configured")
	}
	q, err := analysis.BagOfWords(s.analyzer, queryText)
	if err != nil {
		return 0, err
	}
	expanded, err := s.expander.Expand(ctx, q, m)
	if err != nil {
		return 0, fmt.Errorf("expanding query %q: %w", queryText, err)
	}
	s.logger.Debug("query expanded",
		"query", queryText,
		"model", m.String(),
		"expanded", expanded.String(),
	)
	return s.ScoreQuery(ctx, m, expanded, documentID)
}

// ScoreQuery scores an already weighted query against documentID. The
// top-ranked id-filtered hit must resolve back to documentID; anything else
// means the id index is broken.
func (s *Scorer) ScoreQuery(ctx context.Context, m similarity.Model, q analysis.WeightedQuery, documentID string) (float64, error) {
	if q.Len() == 0 {
		return 0, nil
	}
	hits, err := s.source.Search(ctx, q, m, Filter{DocID: documentID}, candidateLimit)
	if err != nil {
		return 0, fmt.Errorf("searching for document %s: %w", documentID, err)
	}
	if len(hits) == 0 {
		return 0, nil
	}
	if len(hits) > 1 {
		s.logger.Warn("document id matched more than one document",
			"doc_id", documentID,
			"matches", len(hits),
		)
	}
	top := hits[0]
	resolved, err := s.source.ExternalID(top.Handle)
	if err != nil {
		return 0, apperrors.IndexConsistencyf("resolving handle %d for document %s: %v", top.Handle, documentID, err)
	}
	if resolved != documentID {
		s.logger.Error("id filter returned a different document",
			"doc_id", documentID,
			"resolved", resolved,
			"handle", top.Handle,
		)
		return 0, apperrors.IndexConsistencyf("requested document %s but id filter returned %s", documentID, resolved)
	}
	return top.Score, nil
}
