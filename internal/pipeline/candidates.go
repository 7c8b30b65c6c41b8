package pipeline

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
)

// CandidateSource picks the documents a topic gets vectors for.
type CandidateSource interface {
	Candidates(ctx context.Context, qc ltr.QueryContext) ([]ltr.Document, error)
}

// RetrievalCandidates takes the top Depth documents retrieved for the topic
// under Model, in rank order.
type RetrievalCandidates struct {
	Source search.RankingSource
	Model  similarity.Model
	Depth  int
}

func (r RetrievalCandidates) Candidates(ctx context.Context, qc ltr.QueryContext) ([]ltr.Document, error) {
	hits, err := r.Source.Search(ctx, qc.Query, r.Model, search.Filter{}, r.Depth)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates for topic %s: %w", qc.QueryID, err)
	}
	docs := make([]ltr.Document, 0, len(hits))
	for _, h := range hits {
		id, err := r.Source.ExternalID(h.Handle)
		if err != nil {
			return nil, fmt.Errorf("resolving candidate %d for topic %s: %w", h.Handle, qc.QueryID, err)
		}
		docs = append(docs, ltr.Document{Handle: h.Handle, ID: id})
	}
	return docs, nil
}

// FileCandidates reranks the documents a feature file already holds for
// the topic.
type FileCandidates struct {
	Provider *ltr.FileProvider
}

func (f FileCandidates) Candidates(_ context.Context, qc ltr.QueryContext) ([]ltr.Document, error) {
	ids := f.Provider.DocIDs(qc.QueryID)
	docs := make([]ltr.Document, len(ids))
	for i, id := range ids {
		docs[i] = ltr.Document{ID: id}
	}
	return docs, nil
}
