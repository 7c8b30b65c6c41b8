// Package app assembles the scoring engine and the feature provider from
// configuration. The scoring service and the extractor share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/rm3"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/postgres"
)

// Options tunes Build. RequireIndex makes a missing index fatal even for
// the file provider.
type Options struct {
	Metrics      *metrics.Metrics
	RequireIndex bool
	Registry     *ltr.Registry
}

// App holds the assembled components. Index, Source, Scorer and Expander
// are nil when no index could be loaded and none was required.
type App struct {
	Config       *config.Config
	Analyzer     analysis.Analyzer
	Params       similarity.Params
	Index        *index.MemoryIndex
	Source       search.RankingSource
	Scorer       *search.Scorer
	Expander     *rm3.Expander
	Provider     ltr.Provider
	ProviderName string
	Schema       ltr.Schema
	File         *ltr.FileProvider
	Postgres     *postgres.Client
	Metrics      *metrics.Metrics
	logger       *slog.Logger
}

func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:       cfg,
		Analyzer:     NewAnalyzer(cfg.Index.Analyzer),
		Params:       SimilarityParams(cfg.Similarity),
		ProviderName: cfg.Features.Provider,
		Metrics:      opts.Metrics,
		logger:       slog.Default().With("component", "app"),
	}
	if cfg.Index.Field != cfg.Features.Field {
		a.logger.Warn("index and features use different fields", "index_field", cfg.Index.Field, "features_field", cfg.Features.Field)
	}

	needIndex := opts.RequireIndex || cfg.Features.Provider == "live"
	if err := a.loadIndex(ctx, needIndex); err != nil {
		a.Close()
		return nil, err
	}
	if a.Index != nil {
		if err := a.buildScorer(); err != nil {
			a.Close()
			return nil, err
		}
	}

	registry := opts.Registry
	if registry == nil {
		registry = ltr.NewRegistry()
	}
	if err := a.buildProvider(registry); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewAnalyzer maps a config name to an analyzer. Unknown names get the
// English analyzer; config validation rejects them earlier.
func NewAnalyzer(name string) analysis.Analyzer {
	if name == "whitespace" {
		return analysis.WhitespaceAnalyzer{}
	}
	return analysis.NewEnglishAnalyzer()
}

func SimilarityParams(c config.SimilarityConfig) similarity.Params {
	return similarity.Params{K1: c.K1, B: c.B, C: c.C, Mu: c.Mu}
}

func RM3Params(c config.RM3Config) rm3.Params {
	return rm3.Params{
		FbDocs:              c.FbDocs,
		FbTerms:             c.FbTerms,
		OriginalQueryWeight: c.OriginalQueryWeight,
		MinTermLength:       c.MinTermLength,
		MaxDocFreqRatio:     c.MaxDocFreqRatio,
	}
}

func (a *App) loadIndex(ctx context.Context, required bool) error {
	cfg := a.Config
	idx := index.NewMemoryIndex(a.Analyzer)

	if cfg.Index.Corpus != "" {
		if _, err := index.LoadCorpusFile(cfg.Index.Corpus, cfg.Index.Field, idx); err != nil {
			return err
		}
	} else {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			if required {
				return apperrors.IOf("no corpus configured and postgres unavailable: %v", err)
			}
			a.logger.Warn("postgres unavailable, running without an index", "error", err)
			return nil
		}
		a.Postgres = pg
		if _, err := index.LoadFromPostgres(ctx, pg.DB, cfg.Index.DocumentsTable, cfg.Index.Field, idx); err != nil {
			return err
		}
	}

	if idx.DocCount() == 0 && required {
		return apperrors.IOf("index is empty")
	}
	a.Index = idx
	if a.Metrics != nil {
		a.Metrics.IndexedDocuments.Set(float64(idx.DocCount()))
	}
	a.logger.Info("index ready", "docs", idx.DocCount(), "analyzer", cfg.Index.Analyzer)
	return nil
}

func (a *App) buildScorer() error {
	field := a.Config.Features.Field
	a.Source = search.NewIndexSource(a.Index, field)
	exp, err := rm3.New(a.Source, a.Index, field, RM3Params(a.Config.RM3))
	if err != nil {
		return err
	}
	a.Expander = exp
	a.Scorer = search.NewScorer(a.Source, a.Analyzer, exp)
	return nil
}

func (a *App) buildProvider(registry *ltr.Registry) error {
	switch a.Config.Features.Provider {
	case "live":
		extractors, err := registry.Build(a.Config.Features.Extractors, ltr.Dependencies{
			Params: a.Params,
			Scorer: a.Scorer,
		})
		if err != nil {
			return err
		}
		live, err := ltr.NewLiveExtractor(extractors)
		if err != nil {
			return err
		}
		a.Provider = live
		a.Schema = live.Schema()
	case "file":
		fp, err := ltr.LoadFile(a.Config.Features.File)
		if err != nil {
			return err
		}
		a.File = fp
		a.Provider = fp
		a.Schema = fp.Schema()
	default:
		return apperrors.Configurationf("unknown features.provider %q", a.Config.Features.Provider)
	}
	return nil
}

// Candidates returns the feature file's own documents for the file
// provider and BM25 retrieval otherwise.
func (a *App) Candidates() (pipeline.CandidateSource, error) {
	if a.File != nil {
		return pipeline.FileCandidates{Provider: a.File}, nil
	}
	if a.Source == nil {
		return nil, apperrors.Configurationf("retrieval candidates need an index")
	}
	model, err := similarity.New(similarity.KindBM25, a.Params)
	if err != nil {
		return nil, err
	}
	return pipeline.RetrievalCandidates{
		Source: a.Source,
		Model:  model,
		Depth:  a.Config.Extraction.CandidateDepth,
	}, nil
}

// NewPipeline builds an extraction pipeline over the assembled provider.
func (a *App) NewPipeline(qrels *topics.Qrels, runID string, sinks ...pipeline.Sink) (*pipeline.Pipeline, error) {
	candidates, err := a.Candidates()
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		Provider:     a.Provider,
		ProviderName: a.ProviderName,
		Candidates:   candidates,
		Analyzer:     a.Analyzer,
		Field:        a.Config.Features.Field,
		Qrels:        qrels,
		Concurrency:  a.Config.Extraction.Concurrency,
		RunID:        runID,
		Metrics:      a.Metrics,
	}
	if a.Index != nil && a.File == nil {
		opts.Reader = a.Index
	}
	return pipeline.New(opts, sinks...)
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a.Postgres == nil {
		return nil
	}
	if err := a.Postgres.Close(); err != nil {
		return fmt.Errorf("closing postgres: %w", err)
	}
	return nil
}
