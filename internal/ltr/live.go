package ltr

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// LiveExtractor builds vectors by running its extractors, in order, over
// the document's term vector. Feature i+1 is the output of extractor i.
type LiveExtractor struct {
	extractors []Extractor
	schema     Schema
	logger     *slog.Logger
}

func NewLiveExtractor(extractors []Extractor) (*LiveExtractor, error) {
	if len(extractors) == 0 {
		return nil, apperrors.Configurationf("live feature extraction needs at least one extractor")
	}
	entries := make([]SchemaEntry, len(extractors))
	for i, e := range extractors {
		entries[i] = SchemaEntry{ID: i + 1, Name: e.Name()}
	}
	l := &LiveExtractor{
		extractors: append([]Extractor(nil), extractors...),
		schema:     NewSchema(entries),
		logger:     slog.Default().With("component", "live-extractor"),
	}
	l.logger.Info("live extractor assembled", "extractors", len(extractors))
	return l, nil
}

// Schema describes the produced features with default 0.
func (l *LiveExtractor) Schema() Schema {
	return l.schema
}

// Provide runs every extractor once. Any failure aborts the vector.
func (l *LiveExtractor) Provide(ctx context.Context, doc Document, qc QueryContext) (FeatureVector, error) {
	if qc.Stats == nil {
		return FeatureVector{}, apperrors.Configurationf("live extraction needs term statistics")
	}
	tv, err := qc.Stats.TermVector(doc.Handle, qc.Field)
	if err != nil {
		return FeatureVector{}, fmt.Errorf("reading term vector of %s: %w", doc.ID, err)
	}
	features := make([]Feature, len(l.extractors))
	for i, e := range l.extractors {
		if err := ctx.Err(); err != nil {
			return FeatureVector{}, err
		}
		val, err := e.Extract(ctx, doc, tv, qc)
		if err != nil {
			return FeatureVector{}, fmt.Errorf("extractor %s on document %s: %w", e.Name(), doc.ID, err)
		}
		features[i] = Feature{ID: i + 1, Value: float32(val)}
	}
	return FeatureVector{
		QueryID:  qc.QueryID,
		DocID:    doc.ID,
		Features: features,
		Comment:  doc.ID,
	}, nil
}
