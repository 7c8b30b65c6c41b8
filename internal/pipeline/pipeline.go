// Package pipeline runs feature extraction over topic sets: candidates are
// picked per topic, turned into vectors by the configured provider, labeled
// from qrels and handed to the sinks. The same path serves Kafka jobs and
// the HTTP features endpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/tracing"
)

// Options configures a Pipeline. Reader may be nil when vectors come from a
// feature file; Qrels and Metrics are optional.
type Options struct {
	Provider     ltr.Provider
	ProviderName string
	Candidates   CandidateSource
	Analyzer     analysis.Analyzer
	Reader       index.Reader
	Field        string
	Qrels        *topics.Qrels
	Concurrency  int
	RunID        string
	Metrics      *metrics.Metrics
}

type Pipeline struct {
	opts   Options
	sinks  []Sink
	logger *slog.Logger
}

// Summary reports what a Run produced.
type Summary struct {
	RunID   string        `json:"run_id"`
	Topics  int           `json:"topics"`
	Vectors int           `json:"vectors"`
	Elapsed time.Duration `json:"elapsed"`
}

func New(opts Options, sinks ...Sink) (*Pipeline, error) {
	if opts.Provider == nil {
		return nil, apperrors.Configurationf("pipeline needs a feature provider")
	}
	if opts.Candidates == nil {
		return nil, apperrors.Configurationf("pipeline needs a candidate source")
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewEnglishAnalyzer()
	}
	if opts.Field == "" {
		opts.Field = index.FieldContents
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "live"
	}
	if opts.RunID == "" {
		opts.RunID = "run-" + time.Now().UTC().Format("20060102T150405")
	}
	return &Pipeline{
		opts:   opts,
		sinks:  sinks,
		logger: slog.Default().With("component", "pipeline", "run_id", opts.RunID),
	}, nil
}

func (p *Pipeline) RunID() string {
	return p.opts.RunID
}

// Run extracts every topic with bounded concurrency and writes the results
// to the sinks in topic order. The first failure cancels the run.
func (p *Pipeline) Run(ctx context.Context, ts []topics.Topic) (Summary, error) {
	start := time.Now()
	results := make([][]ltr.FeatureVector, len(ts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, t := range ts {
		g.Go(func() error {
			vectors, err := p.ExtractTopic(gctx, t)
			if err != nil {
				return fmt.Errorf("topic %s: %w", t.ID, err)
			}
			results[i] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{RunID: p.opts.RunID, Topics: len(ts)}
	for i, vectors := range results {
		if err := p.emit(ctx, vectors); err != nil {
			return summary, fmt.Errorf("writing topic %s: %w", ts[i].ID, err)
		}
		summary.Vectors += len(vectors)
	}
	summary.Elapsed = time.Since(start)
	p.logger.Info("extraction run finished",
		"topics", summary.Topics,
		"vectors", summary.Vectors,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

// ExtractTopic builds the vectors of one topic over its candidates, in
// candidate order.
func (p *Pipeline) ExtractTopic(ctx context.Context, t topics.Topic) ([]ltr.FeatureVector, error) {
	ctx = logger.WithQueryID(ctx, t.ID)
	ctx, span := tracing.StartSpan(ctx, "extract_topic", "")
	defer func() {
		span.End()
		span.Log()
	}()

	qc, err := p.queryContext(t.ID, t.Title)
	if err != nil {
		return nil, err
	}
	_, cspan := tracing.StartChildSpan(ctx, "candidates")
	docs, err := p.opts.Candidates.Candidates(ctx, qc)
	cspan.SetAttr("count", len(docs))
	cspan.End()
	if err != nil {
		return nil, err
	}
	vectors, err := p.provide(ctx, qc, docs)
	if err != nil {
		return nil, err
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.TopicsProcessedTotal.Inc()
	}
	logger.FromContext(ctx).Debug("topic extracted", "candidates", len(docs), "vectors", len(vectors))
	return vectors, nil
}

// Extract builds vectors for explicit document ids. With an index, ids
// must exist in it.
func (p *Pipeline) Extract(ctx context.Context, qid, query string, docIDs []string) ([]ltr.FeatureVector, error) {
	ctx = logger.WithQueryID(ctx, qid)
	qc, err := p.queryContext(qid, query)
	if err != nil {
		return nil, err
	}
	docs, err := p.resolve(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	return p.provide(ctx, qc, docs)
}

// Write hands vectors to the sinks outside of Run.
func (p *Pipeline) Write(ctx context.Context, vectors []ltr.FeatureVector) error {
	return p.emit(ctx, vectors)
}

// Close closes every sink and returns the first error.
func (p *Pipeline) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) queryContext(qid, text string) (ltr.QueryContext, error) {
	var stats index.Statistics
	if p.opts.Reader != nil {
		stats = p.opts.Reader
	}
	qc, err := ltr.NewQueryContext(p.opts.Analyzer, qid, text, stats, p.opts.Field)
	if err != nil {
		return ltr.QueryContext{}, fmt.Errorf("analyzing topic %s: %w", qid, err)
	}
	return qc, nil
}

func (p *Pipeline) resolve(ctx context.Context, docIDs []string) ([]ltr.Document, error) {
	docs := make([]ltr.Document, 0, len(docIDs))
	for _, id := range docIDs {
		if p.opts.Reader == nil {
			docs = append(docs, ltr.Document{ID: id})
			continue
		}
		handles := p.opts.Reader.Handles(id)
		if len(handles) == 0 {
			return nil, apperrors.Lookupf("document %s not in index", id)
		}
		if len(handles) > 1 {
			logger.FromContext(ctx).Warn("document id maps to several documents, using the first", "doc_id", id, "matches", len(handles))
		}
		docs = append(docs, ltr.Document{Handle: handles[0], ID: id})
	}
	return docs, nil
}

func (p *Pipeline) provide(ctx context.Context, qc ltr.QueryContext, docs []ltr.Document) ([]ltr.FeatureVector, error) {
	vectors := make([]ltr.FeatureVector, 0, len(docs))
	for _, d := range docs {
		v, err := p.opts.Provider.Provide(ctx, d, qc)
		if err != nil {
			if p.opts.Metrics != nil {
				p.opts.Metrics.FeatureExtractionErrors.WithLabelValues(p.opts.ProviderName).Inc()
			}
			return nil, err
		}
		v.Relevance = float32(p.opts.Qrels.Relevance(qc.QueryID, d.ID))
		vectors = append(vectors, v)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.FeatureVectorsTotal.WithLabelValues(p.opts.ProviderName).Add(float64(len(vectors)))
	}
	return vectors, nil
}

func (p *Pipeline) emit(ctx context.Context, vectors []ltr.FeatureVector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, s := range p.sinks {
		if err := s.Write(ctx, p.opts.RunID, vectors); err != nil {
			return err
		}
	}
	return nil
}
