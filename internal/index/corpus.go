package index

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

const maxCorpusLine = 16 << 20

// LoadCorpus reads "<id>\t<body>" lines into idx under field. Blank lines
// and lines starting with '#' are skipped.
func LoadCorpus(r io.Reader, field string, idx *MemoryIndex) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCorpusLine)
	loaded, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, body, ok := strings.Cut(line, "\t")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return loaded, apperrors.Parsef("corpus line %d: want <id>TAB<body>", lineNo)
		}
		idx.AddDocument(id, map[string]string{field: body})
		loaded++
	}
	if err := sc.Err(); err != nil {
		return loaded, apperrors.IOf("reading corpus: %v", err)
	}
	return loaded, nil
}

// LoadCorpusFile opens path and loads it with LoadCorpus.
func LoadCorpusFile(path, field string, idx *MemoryIndex) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.IOf("opening corpus %s: %v", path, err)
	}
	defer f.Close()
	n, err := LoadCorpus(f, field, idx)
	if err != nil {
		return n, err
	}
	slog.Default().With("component", "index-loader").Info("corpus loaded", "path", path, "field", field, "docs", n)
	return n, nil
}
