package search

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

type fixtureHit struct {
	handle index.DocHandle
	docID  string
	score  float64
}

// FixtureSource serves canned ranked lists keyed by the rendered query
// (WeightedQuery.String), independent of the model. It stands in for a live
// index when replaying an existing run.
type FixtureSource struct {
	mu   sync.RWMutex
	runs map[string][]fixtureHit
	ids  map[index.DocHandle]string
	next index.DocHandle
}

func NewFixtureSource() *FixtureSource {
	return &FixtureSource{
		runs: make(map[string][]fixtureHit),
		ids:  make(map[index.DocHandle]string),
	}
}

// Add appends a document to the ranked list of query and returns the
// handle assigned to it.
func (s *FixtureSource) Add(query, docID string, score float64) index.DocHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.ids[h] = docID
	s.runs[query] = append(s.runs[query], fixtureHit{handle: h, docID: docID, score: score})
	return h
}

// AddHandle appends a document with a caller-chosen handle, so the fixture
// can share handles with a term-statistics index.
func (s *FixtureSource) AddHandle(query string, h index.DocHandle, docID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h >= s.next {
		s.next = h + 1
	}
	s.ids[h] = docID
	s.runs[query] = append(s.runs[query], fixtureHit{handle: h, docID: docID, score: score})
}

// SetExternalID overrides the id a handle resolves to, leaving the id the
// filter matches on untouched.
func (s *FixtureSource) SetExternalID(h index.DocHandle, docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[h] = docID
}

func (s *FixtureSource) Search(ctx context.Context, q analysis.WeightedQuery, _ similarity.Model, f Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	run := s.runs[q.String()]
	hits := make([]Hit, 0, len(run))
	for _, fh := range run {
		if f.DocID != "" && fh.docID != f.DocID {
			continue
		}
		hits = append(hits, Hit{Handle: fh.handle, Score: fh.score})
	}
	s.mu.RUnlock()
	sortHits(hits)
	return truncate(hits, limit), nil
}

func (s *FixtureSource) ExternalID(doc index.DocHandle) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[doc]
	if !ok {
		return "", apperrors.Lookupf("no document with handle %d", doc)
	}
	return id, nil
}
