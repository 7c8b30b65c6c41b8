package ltr

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
)

// Document identifies the document a vector is built for.
type Document struct {
	Handle index.DocHandle
	ID     string
}

// QueryContext carries what providers need to know about the query. Stats
// and Field are only consulted by live extraction.
type QueryContext struct {
	QueryID   string
	QueryText string
	Query     analysis.WeightedQuery
	Stats     index.Statistics
	Field     string
}

// NewQueryContext analyzes text into a bag-of-words query.
func NewQueryContext(a analysis.Analyzer, qid, text string, stats index.Statistics, field string) (QueryContext, error) {
	q, err := analysis.BagOfWords(a, text)
	if err != nil {
		return QueryContext{}, err
	}
	return QueryContext{
		QueryID:   qid,
		QueryText: text,
		Query:     q,
		Stats:     stats,
		Field:     field,
	}, nil
}

// Provider produces the feature vector of one document for a query.
type Provider interface {
	Provide(ctx context.Context, doc Document, qc QueryContext) (FeatureVector, error)
}
