package ltr

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

const (
	headerBegin = "# Begin Feature-Descriptions"
	headerEnd   = "# End Feature-Descriptions"
)

var schemaLine = regexp.MustCompile(`^#\s*(\d+):\s*(.*?)\(default=([^)]*)\)\s*$`)

// FileProvider serves feature vectors parsed once from a feature file. A
// file with a Feature-Descriptions header is sparse: every record is filled
// to the declared schema at load time. It is safe for concurrent use.
type FileProvider struct {
	schema  Schema
	sparse  bool
	records map[string]map[string]FeatureVector
}

// LoadFile opens and parses the feature file at path.
func LoadFile(path string) (*FileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOf("opening feature file %s: %v", path, err)
	}
	defer f.Close()

	p, err := NewFileProvider(f)
	if err != nil {
		return nil, fmt.Errorf("loading feature file %s: %w", path, err)
	}
	slog.Info("feature file loaded",
		"path", path,
		"queries", len(p.records),
		"sparse", p.sparse,
		"schema_size", p.schema.Len(),
	)
	return p, nil
}

type rawRecord struct {
	line   int
	vector FeatureVector
}

// NewFileProvider parses a feature file from r.
func NewFileProvider(r io.Reader) (*FileProvider, error) {
	var (
		entries  []SchemaEntry
		raw      []rawRecord
		inHeader bool
		sparse   bool
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == headerBegin:
			inHeader = true
			sparse = true
			continue
		case line == headerEnd:
			inHeader = false
			continue
		case inHeader:
			entry, ok, err := parseSchemaLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if ok {
				entries = append(entries, entry)
			}
			continue
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		}

		v, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		raw = append(raw, rawRecord{line: lineNo, vector: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf("reading feature file: %v", err)
	}
	if inHeader {
		return nil, apperrors.Parsef("unterminated feature description block")
	}

	p := &FileProvider{
		schema:  NewSchema(entries),
		sparse:  sparse,
		records: make(map[string]map[string]FeatureVector),
	}
	for _, rec := range raw {
		v := rec.vector
		if sparse {
			dense, err := p.schema.Fill(v.Features)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", rec.line, err)
			}
			v.Features = dense
		}
		byDoc, ok := p.records[v.QueryID]
		if !ok {
			byDoc = make(map[string]FeatureVector)
			p.records[v.QueryID] = byDoc
		}
		byDoc[v.DocID] = v
	}
	return p, nil
}

func parseSchemaLine(line string) (SchemaEntry, bool, error) {
	m := schemaLine.FindStringSubmatch(line)
	if m == nil {
		return SchemaEntry{}, false, nil
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id < 1 {
		return SchemaEntry{}, false, apperrors.Parsef("bad feature id in description %q", line)
	}
	def, err := strconv.ParseFloat(strings.TrimSpace(m[3]), 32)
	if err != nil {
		return SchemaEntry{}, false, apperrors.Parsef("bad default in description %q", line)
	}
	return SchemaEntry{ID: id, Name: strings.TrimSpace(m[2]), Default: float32(def)}, true, nil
}

// Provide returns the vector stored for (qc.QueryID, doc.ID) with its
// relevance label reset to 0.
func (p *FileProvider) Provide(_ context.Context, doc Document, qc QueryContext) (FeatureVector, error) {
	v, err := p.Record(qc.QueryID, doc.ID)
	if err != nil {
		return FeatureVector{}, err
	}
	v.Relevance = 0
	return v, nil
}

// Record returns a copy of the parsed record, label included.
func (p *FileProvider) Record(qid, docID string) (FeatureVector, error) {
	byDoc, ok := p.records[qid]
	if !ok {
		return FeatureVector{}, apperrors.Lookupf("query %s not found in feature file", qid)
	}
	v, ok := byDoc[docID]
	if !ok {
		return FeatureVector{}, apperrors.Lookupf("document %s not found for query %s in feature file", docID, qid)
	}
	return v.Clone(), nil
}

func (p *FileProvider) Sparse() bool {
	return p.sparse
}

func (p *FileProvider) Schema() Schema {
	return p.schema
}

// QueryIDs returns the parsed query ids in sorted order.
func (p *FileProvider) QueryIDs() []string {
	ids := make([]string, 0, len(p.records))
	for qid := range p.records {
		ids = append(ids, qid)
	}
	sort.Strings(ids)
	return ids
}

// DocIDs returns the document ids recorded for qid in sorted order.
func (p *FileProvider) DocIDs(qid string) []string {
	byDoc := p.records[qid]
	ids := make([]string, 0, len(byDoc))
	for id := range byDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
