// Package search evaluates weighted queries against a ranking source and
// scores single documents under a chosen similarity model.
package search

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
)

// Hit is one ranked document.
type Hit struct {
	Handle index.DocHandle `json:"handle"`
	Score  float64         `json:"score"`
}

// Filter restricts a search. An empty DocID matches every document.
type Filter struct {
	DocID string
}

// RankingSource ranks documents for a weighted query under a model and
// resolves handles back to external document ids.
type RankingSource interface {
	Search(ctx context.Context, q analysis.WeightedQuery, m similarity.Model, f Filter, limit int) ([]Hit, error)
	ExternalID(doc index.DocHandle) (string, error)
}

// sortHits orders by descending score, then ascending handle.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Handle < hits[j].Handle
	})
}

func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
