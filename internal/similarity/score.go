package similarity

import (
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
)

// Collection reads the field-level statistics of field from stats.
func Collection(stats index.Statistics, field string) CollectionStats {
	return CollectionStats{
		DocCount:       stats.CollectionSize(),
		AvgFieldLength: stats.AvgFieldLength(field),
	}
}

// Term reads the statistics of term in field from stats.
func Term(stats index.Statistics, term, field string) TermStats {
	return TermStats{
		DocFreq:       stats.DocFreq(term, field),
		TotalTermFreq: stats.CollectionFreq(term, field),
	}
}

// ScoreTermVector sums the weighted term scores of q against a document
// described by its term vector. matched reports whether any query term
// occurs in the document.
func ScoreTermVector(m Model, stats index.Statistics, field string, q analysis.WeightedQuery, tv index.TermVector) (score float64, matched bool) {
	coll := Collection(stats, field)
	docLen := tv.Length()
	for _, wt := range q.Terms() {
		freq := tv[wt.Term]
		if freq == 0 {
			continue
		}
		matched = true
		score += TermScore(m, coll, Term(stats, wt.Term, field), wt.Weight, freq, docLen)
	}
	return score, matched
}

// ScoreDocument scores the document behind handle doc against q.
func ScoreDocument(m Model, stats index.Statistics, field string, q analysis.WeightedQuery, doc index.DocHandle) (float64, bool, error) {
	tv, err := stats.TermVector(doc, field)
	if err != nil {
		return 0, false, err
	}
	score, matched := ScoreTermVector(m, stats, field, q, tv)
	return score, matched, nil
}
