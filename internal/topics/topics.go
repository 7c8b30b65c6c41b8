// Package topics reads query topics in the common TREC-style formats and
// relevance judgments (qrels).
package topics

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Topic is one information need. Only ID and Title are guaranteed.
type Topic struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Narrative   string `json:"narrative,omitempty"`
}

// Reader parses topics in one format.
type Reader interface {
	Read(r io.Reader) ([]Topic, error)
}

var readers = map[string]func() Reader{
	"trec":   func() Reader { return trecReader{} },
	"webxml": func() Reader { return webXMLReader{} },
	"web":    func() Reader { return webReader{} },
	"tsv":    func() Reader { return tsvReader{} },
}

// Formats lists the supported topic formats.
func Formats() []string {
	out := make([]string, 0, len(readers))
	for name := range readers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewReader returns the reader registered for format.
func NewReader(format string) (Reader, error) {
	ctor, ok := readers[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, apperrors.Configurationf("unknown topic format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return ctor(), nil
}

// Load reads and merges topics from every path. Later files override
// earlier ones on duplicate ids. The result is sorted by id.
func Load(format string, paths ...string) ([]Topic, error) {
	reader, err := NewReader(format)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Topic)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.IOf("opening topics %s: %v", path, err)
		}
		parsed, err := reader.Read(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading topics %s: %w", path, err)
		}
		for _, t := range parsed {
			byID[t.ID] = t
		}
		slog.Info("topics loaded", "path", path, "format", format, "count", len(parsed))
	}
	out := make([]Topic, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	Sort(out)
	return out, nil
}

// Sort orders topics by id, numerically when both ids are integers.
func Sort(ts []Topic) {
	sort.Slice(ts, func(i, j int) bool {
		a, errA := strconv.Atoi(ts[i].ID)
		b, errB := strconv.Atoi(ts[j].ID)
		if errA == nil && errB == nil {
			return a < b
		}
		return ts[i].ID < ts[j].ID
	})
}
