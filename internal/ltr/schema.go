package ltr

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// SchemaEntry declares one feature of a sparse feature file.
type SchemaEntry struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Default float32 `json:"default"`
}

// Schema is the ordered list of declared features.
type Schema struct {
	entries []SchemaEntry
}

func NewSchema(entries []SchemaEntry) Schema {
	out := make([]SchemaEntry, len(entries))
	copy(out, entries)
	return Schema{entries: out}
}

func (s Schema) Entries() []SchemaEntry {
	out := make([]SchemaEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s Schema) Len() int {
	return len(s.entries)
}

// Fill reconstructs a dense feature list from a sparse one in a single
// left-to-right merge: each declared id takes the sparse value when the
// sparse cursor points at it, the declared default otherwise. Sparse ids
// must be ascending and a subset of the schema.
func (s Schema) Fill(sparse []Feature) ([]Feature, error) {
	out := make([]Feature, 0, len(s.entries))
	j := 0
	for _, e := range s.entries {
		if j < len(sparse) && sparse[j].ID == e.ID {
			out = append(out, sparse[j])
			j++
			continue
		}
		out = append(out, Feature{ID: e.ID, Value: e.Default})
	}
	if j < len(sparse) {
		return nil, apperrors.Parsef("sparse feature %d is not declared in the schema or is out of order", sparse[j].ID)
	}
	return out, nil
}

// Sparsify drops features whose value equals the declared default.
func (s Schema) Sparsify(dense []Feature) []Feature {
	defaults := make(map[int]float32, len(s.entries))
	for _, e := range s.entries {
		defaults[e.ID] = e.Default
	}
	out := make([]Feature, 0, len(dense))
	for _, f := range dense {
		if d, ok := defaults[f.ID]; ok && d == f.Value {
			continue
		}
		out = append(out, f)
	}
	return out
}
