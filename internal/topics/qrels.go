package topics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Qrels holds graded relevance judgments keyed by query and document id.
type Qrels struct {
	judgments map[string]map[string]int
}

// ReadQrels parses TREC qrels lines: "<qid> <iteration> <docid> <grade>".
func ReadQrels(r io.Reader) (*Qrels, error) {
	q := &Qrels{judgments: make(map[string]map[string]int)}
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, apperrors.Parsef("qrels line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		grade, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, apperrors.Parsef("qrels line %d: bad grade %q", lineNo, fields[3])
		}
		byDoc, ok := q.judgments[fields[0]]
		if !ok {
			byDoc = make(map[string]int)
			q.judgments[fields[0]] = byDoc
		}
		byDoc[fields[2]] = grade
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf("reading qrels: %v", err)
	}
	return q, nil
}

func LoadQrels(path string) (*Qrels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOf("opening qrels %s: %v", path, err)
	}
	defer f.Close()
	q, err := ReadQrels(f)
	if err != nil {
		return nil, fmt.Errorf("loading qrels %s: %w", path, err)
	}
	return q, nil
}

// Relevance returns the grade of docID for qid, 0 when unjudged. A nil
// Qrels judges nothing.
func (q *Qrels) Relevance(qid, docID string) int {
	if q == nil {
		return 0
	}
	return q.judgments[qid][docID]
}

// Judged returns the judged document ids of qid in sorted order.
func (q *Qrels) Judged(qid string) []string {
	if q == nil {
		return nil
	}
	byDoc := q.judgments[qid]
	out := make([]string, 0, len(byDoc))
	for id := range byDoc {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (q *Qrels) QueryCount() int {
	if q == nil {
		return 0
	}
	return len(q.judgments)
}
