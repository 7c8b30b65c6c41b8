// Package ltr builds learning-to-rank feature vectors, either live from
// term statistics through a list of extractors or from a precomputed
// LibSVM-style feature file.
package ltr

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Feature is one 1-based feature id and its value.
type Feature struct {
	ID    int     `json:"id"`
	Value float32 `json:"value"`
}

// FeatureVector is the feature representation of one (query, document)
// pair. Features are ordered by ascending id.
type FeatureVector struct {
	QueryID   string    `json:"qid"`
	DocID     string    `json:"docid"`
	Relevance float32   `json:"relevance"`
	Features  []Feature `json:"features"`
	Comment   string    `json:"comment,omitempty"`
}

func (v FeatureVector) Len() int {
	return len(v.Features)
}

// Value returns the value of feature id.
func (v FeatureVector) Value(id int) (float32, bool) {
	for _, f := range v.Features {
		if f.ID == id {
			return f.Value, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of v.
func (v FeatureVector) Clone() FeatureVector {
	out := v
	out.Features = make([]Feature, len(v.Features))
	copy(out.Features, v.Features)
	return out
}

// String renders v as a feature-file line:
// "<relevance> qid:<qid> 1:<v1> ... N:<vN> #<comment>".
func (v FeatureVector) String() string {
	return formatLine(v.Relevance, v.QueryID, v.Features, v.Comment)
}

func formatLine(rel float32, qid string, features []Feature, comment string) string {
	var b strings.Builder
	b.WriteString(formatValue(rel))
	b.WriteString(" qid:")
	b.WriteString(qid)
	for _, f := range features {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(f.ID))
		b.WriteByte(':')
		b.WriteString(formatValue(f.Value))
	}
	if comment != "" {
		b.WriteString(" #")
		b.WriteString(comment)
	}
	return b.String()
}

// formatValue prints the shortest representation that round-trips through
// float32, always with a decimal point: 6 -> "6.0", 3.9999964 -> "3.9999964".
func formatValue(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

var docIDPattern = regexp.MustCompile(`(?:^|\s)docid = (\S+)`)

// documentID extracts the document id from a trimmed record comment: the
// value of a "docid = X" token when present, the whole comment otherwise.
func documentID(comment string) string {
	if m := docIDPattern.FindStringSubmatch(comment); m != nil {
		return m[1]
	}
	return comment
}

// ParseLine parses one feature-file record. Feature ids are returned in
// file order and are not checked against any schema.
func ParseLine(line string) (FeatureVector, error) {
	data, comment, _ := strings.Cut(line, "#")
	comment = strings.TrimSpace(comment)

	fields := strings.Fields(data)
	if len(fields) < 2 {
		return FeatureVector{}, apperrors.Parsef("record %q: expected relevance and qid", line)
	}
	rel, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return FeatureVector{}, apperrors.Parsef("record %q: bad relevance %q", line, fields[0])
	}
	qid, ok := strings.CutPrefix(fields[1], "qid:")
	if !ok || qid == "" {
		return FeatureVector{}, apperrors.Parsef("record %q: expected qid:<id>, got %q", line, fields[1])
	}

	features := make([]Feature, 0, len(fields)-2)
	for _, tok := range fields[2:] {
		idStr, valStr, ok := strings.Cut(tok, ":")
		if !ok {
			return FeatureVector{}, apperrors.Parsef("record %q: bad feature %q", line, tok)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 1 {
			return FeatureVector{}, apperrors.Parsef("record %q: bad feature id %q", line, idStr)
		}
		val, err := strconv.ParseFloat(valStr, 32)
		if err != nil {
			return FeatureVector{}, apperrors.Parsef("record %q: bad value for feature %d: %q", line, id, valStr)
		}
		features = append(features, Feature{ID: id, Value: float32(val)})
	}

	docID := documentID(comment)
	if docID == "" {
		return FeatureVector{}, apperrors.Parsef("record %q: missing document id comment", line)
	}
	return FeatureVector{
		QueryID:   qid,
		DocID:     docID,
		Relevance: float32(rel),
		Features:  features,
		Comment:   comment,
	}, nil
}
