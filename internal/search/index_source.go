package search

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
)

// IndexSource ranks documents of an index.Reader on one field.
type IndexSource struct {
	reader index.Reader
	field  string
}

func NewIndexSource(reader index.Reader, field string) *IndexSource {
	return &IndexSource{reader: reader, field: field}
}

// Search scores every candidate that matches at least one query term. With
// a DocID filter the candidates are the handles carrying that id; otherwise
// they are the union of the query terms' postings.
func (s *IndexSource) Search(ctx context.Context, q analysis.WeightedQuery, m similarity.Model, f Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var candidates []index.DocHandle
	if f.DocID != "" {
		candidates = s.reader.Handles(f.DocID)
	} else {
		seen := make(map[index.DocHandle]struct{})
		for _, wt := range q.Terms() {
			for _, p := range s.reader.Postings(wt.Term, s.field) {
				if _, ok := seen[p.Handle]; ok {
					continue
				}
				seen[p.Handle] = struct{}{}
				candidates = append(candidates, p.Handle)
			}
		}
	}

	hits := make([]Hit, 0, len(candidates))
	for _, h := range candidates {
		score, matched, err := similarity.ScoreDocument(m, s.reader, s.field, q, h)
		if err != nil {
			return nil, fmt.Errorf("scoring document %d: %w", h, err)
		}
		if !matched {
			continue
		}
		hits = append(hits, Hit{Handle: h, Score: score})
	}
	sortHits(hits)
	return truncate(hits, limit), nil
}

func (s *IndexSource) ExternalID(doc index.DocHandle) (string, error) {
	return s.reader.ExternalID(doc)
}
