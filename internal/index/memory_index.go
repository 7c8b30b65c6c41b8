// Package index provides an in-memory inverted index that serves term
// statistics, postings and term vectors to the scoring engine.
package index

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

type MemoryIndex struct {
	mu          sync.RWMutex
	analyzer    analysis.Analyzer
	postings    map[string]map[string]PostingList
	vectors     []map[string]TermVector
	ids         []string
	byID        map[string][]DocHandle
	fieldTokens map[string]int64
	logger      *slog.Logger
}

func NewMemoryIndex(analyzer analysis.Analyzer) *MemoryIndex {
	return &MemoryIndex{
		analyzer:    analyzer,
		postings:    make(map[string]map[string]PostingList),
		byID:        make(map[string][]DocHandle),
		fieldTokens: make(map[string]int64),
		logger:      slog.Default().With("component", "memory-index"),
	}
}

// AddDocument analyzes every field of the document and returns the handle
// assigned to it. Adding the same external id twice yields two handles.
func (m *MemoryIndex) AddDocument(docID string, fields map[string]string) DocHandle {
	vectors := make(map[string]TermVector, len(fields))
	for field, text := range fields {
		tv := make(TermVector)
		for _, term := range m.analyzer.Tokenize(text) {
			tv[term]++
		}
		vectors[field] = tv
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	handle := DocHandle(len(m.ids))
	m.ids = append(m.ids, docID)
	m.vectors = append(m.vectors, vectors)
	m.byID[docID] = append(m.byID[docID], handle)

	for field, tv := range vectors {
		terms, ok := m.postings[field]
		if !ok {
			terms = make(map[string]PostingList)
			m.postings[field] = terms
		}
		for term, freq := range tv {
			terms[term] = append(terms[term], Posting{Handle: handle, Frequency: freq})
			m.fieldTokens[field] += int64(freq)
		}
	}
	if len(m.byID[docID]) > 1 {
		m.logger.Warn("duplicate document id indexed", "doc_id", docID, "copies", len(m.byID[docID]))
	}
	return handle
}

// AddText indexes body text under the contents field.
func (m *MemoryIndex) AddText(docID, body string) DocHandle {
	return m.AddDocument(docID, map[string]string{FieldContents: body})
}

func (m *MemoryIndex) Postings(term, field string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pl := m.postings[field][term]
	out := make(PostingList, len(pl))
	copy(out, pl)
	return out
}

func (m *MemoryIndex) DocFreq(term, field string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.postings[field][term]))
}

func (m *MemoryIndex) CollectionFreq(term, field string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, p := range m.postings[field][term] {
		total += int64(p.Frequency)
	}
	return total
}

func (m *MemoryIndex) DocLength(doc DocHandle, field string) (int, error) {
	tv, err := m.TermVector(doc, field)
	if err != nil {
		return 0, err
	}
	return tv.Length(), nil
}

func (m *MemoryIndex) AvgFieldLength(field string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ids) == 0 {
		return 0
	}
	return float64(m.fieldTokens[field]) / float64(len(m.ids))
}

func (m *MemoryIndex) CollectionSize() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.ids))
}

// TermVector returns a copy of the document's term vector for field. A
// document without the field has an empty vector.
func (m *MemoryIndex) TermVector(doc DocHandle, field string) (TermVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc < 0 || int(doc) >= len(m.vectors) {
		return nil, apperrors.Lookupf("no document with handle %d", doc)
	}
	src := m.vectors[doc][field]
	out := make(TermVector, len(src))
	for term, freq := range src {
		out[term] = freq
	}
	return out, nil
}

func (m *MemoryIndex) Handles(docID string) []DocHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handles := m.byID[docID]
	out := make([]DocHandle, len(handles))
	copy(out, handles)
	return out
}

func (m *MemoryIndex) ExternalID(doc DocHandle) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc < 0 || int(doc) >= len(m.ids) {
		return "", apperrors.Lookupf("no document with handle %d", doc)
	}
	return m.ids[doc], nil
}

// Terms lists the vocabulary of field in lexicographic order.
func (m *MemoryIndex) Terms(field string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	terms := make([]string, 0, len(m.postings[field]))
	for term := range m.postings[field] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
