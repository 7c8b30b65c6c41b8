package analysis

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// WeightedTerm is a single query term and its weight.
type WeightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// WeightedQuery is an ordered set of unique terms with weights. The zero
// value is an empty query. Values are never mutated after construction.
type WeightedQuery struct {
	terms []WeightedTerm
}

// NewWeightedQuery builds a query from terms in the given order. Duplicate
// terms have their weights summed into the first occurrence.
func NewWeightedQuery(terms []WeightedTerm) WeightedQuery {
	out := make([]WeightedTerm, 0, len(terms))
	pos := make(map[string]int, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Term]; ok {
			out[i].Weight += t.Weight
			continue
		}
		pos[t.Term] = len(out)
		out = append(out, t)
	}
	return WeightedQuery{terms: out}
}

// BagOfWords analyzes text and weights every distinct term by the number of
// times it occurs in the query, so a plain query of unique terms carries
// weight 1.0 per term. Blank text is a parse error; text made only of
// stop-words yields an empty query that matches nothing.
func BagOfWords(a Analyzer, text string) (WeightedQuery, error) {
	if strings.TrimSpace(text) == "" {
		return WeightedQuery{}, apperrors.Parsef("empty query text")
	}
	tokens := a.Tokenize(text)
	terms := make([]WeightedTerm, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, WeightedTerm{Term: tok, Weight: 1})
	}
	return NewWeightedQuery(terms), nil
}

// Terms returns a copy of the weighted terms in query order.
func (q WeightedQuery) Terms() []WeightedTerm {
	out := make([]WeightedTerm, len(q.terms))
	copy(out, q.terms)
	return out
}

func (q WeightedQuery) Len() int {
	return len(q.terms)
}

// Weight returns the weight of term, or 0 when it is not in the query.
func (q WeightedQuery) Weight(term string) float64 {
	for _, t := range q.terms {
		if t.Term == term {
			return t.Weight
		}
	}
	return 0
}

func (q WeightedQuery) Contains(term string) bool {
	for _, t := range q.terms {
		if t.Term == term {
			return true
		}
	}
	return false
}

// TotalWeight is the L1 norm of the query weights.
func (q WeightedQuery) TotalWeight() float64 {
	var sum float64
	for _, t := range q.terms {
		sum += t.Weight
	}
	return sum
}

// Normalized returns the query scaled to unit L1 norm.
func (q WeightedQuery) Normalized() WeightedQuery {
	total := q.TotalWeight()
	if total == 0 {
		return q
	}
	out := make([]WeightedTerm, len(q.terms))
	for i, t := range q.terms {
		out[i] = WeightedTerm{Term: t.Term, Weight: t.Weight / total}
	}
	return WeightedQuery{terms: out}
}

// String renders the query in a stable, term-sorted form, e.g.
// "cat^0.5 dog^0.5". It doubles as a cache key.
func (q WeightedQuery) String() string {
	sorted := q.Terms()
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Term < sorted[j].Term
	})
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = fmt.Sprintf("%s^%g", t.Term, t.Weight)
	}
	return strings.Join(parts, " ")
}
