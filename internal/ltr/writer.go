package ltr

import (
	"bufio"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Writer serializes feature vectors as feature-file lines. A sparse writer
// emits the Feature-Descriptions header before the first record and omits
// features equal to their declared default.
type Writer struct {
	w             *bufio.Writer
	schema        Schema
	sparse        bool
	headerWritten bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func NewSparseWriter(w io.Writer, schema Schema) *Writer {
	return &Writer{w: bufio.NewWriter(w), schema: schema, sparse: true}
}

func (w *Writer) Write(v FeatureVector) error {
	if w.sparse && !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	features := v.Features
	if w.sparse {
		features = w.schema.Sparsify(features)
	}
	if _, err := fmt.Fprintln(w.w, formatLine(v.Relevance, v.QueryID, features, v.Comment)); err != nil {
		return apperrors.IOf("writing feature vector: %v", err)
	}
	return nil
}

func (w *Writer) writeHeader() error {
	w.headerWritten = true
	if _, err := fmt.Fprintln(w.w, headerBegin); err != nil {
		return apperrors.IOf("writing feature header: %v", err)
	}
	for _, e := range w.schema.entries {
		if _, err := fmt.Fprintf(w.w, "# %d: %s(default=%s)\n", e.ID, e.Name, formatValue(e.Default)); err != nil {
			return apperrors.IOf("writing feature header: %v", err)
		}
	}
	if _, err := fmt.Fprintln(w.w, headerEnd); err != nil {
		return apperrors.IOf("writing feature header: %v", err)
	}
	return nil
}

func (w *Writer) Flush() error {
	if w.sparse && !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	if err := w.w.Flush(); err != nil {
		return apperrors.IOf("flushing feature vectors: %v", err)
	}
	return nil
}
