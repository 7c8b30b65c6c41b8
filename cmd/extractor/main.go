package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/app"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/featurestore"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/resilience"
)

var (
	sinkRetry = resilience.RetryConfig{
		MaxAttempts:    4,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.1,
		AttemptTimeout: 30 * time.Second,
	}
	sinkBreaker = resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute}
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	mode := flag.String("mode", "batch", "batch: extract the configured topics; worker: consume extraction jobs from kafka")
	runID := flag.String("run-id", "", "identifier stored with every vector (default: timestamp)")
	output := flag.String("output", "", "feature file to write (overrides extraction.output)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *output != "" {
		cfg.Extraction.Output = *output
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "batch":
		err = runBatch(ctx, cfg, *runID)
	case "worker":
		err = runWorker(ctx, cfg, *runID)
	default:
		err = apperrors.Configurationf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("extractor failed", "mode", *mode, "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func runBatch(ctx context.Context, cfg *config.Config, runID string) error {
	if len(cfg.Topics.Paths) == 0 {
		return apperrors.Configurationf("topics.paths is empty")
	}
	ts, err := topics.Load(cfg.Topics.Format, cfg.Topics.Paths...)
	if err != nil {
		return err
	}
	var qrels *topics.Qrels
	if cfg.Topics.Qrels != "" {
		if qrels, err = topics.LoadQrels(cfg.Topics.Qrels); err != nil {
			return err
		}
	}

	m := metrics.New()
	a, err := app.Build(ctx, cfg, app.Options{Metrics: m})
	if err != nil {
		return err
	}
	defer a.Close()

	var sinks []pipeline.Sink
	if cfg.Extraction.Output != "" {
		var schema *ltr.Schema
		if cfg.Extraction.Sparse {
			schema = &a.Schema
		}
		fs, err := pipeline.NewFileSink(cfg.Extraction.Output, schema)
		if err != nil {
			return err
		}
		sinks = append(sinks, fs)
	}
	sinks = append(sinks, optionalSinks(ctx, cfg, a)...)
	if len(sinks) == 0 {
		return apperrors.Configurationf("no output configured: set extraction.output, enable kafka or provide postgres")
	}

	p, err := a.NewPipeline(qrels, runID, sinks...)
	if err != nil {
		return err
	}
	summary, runErr := p.Run(ctx, ts)
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("batch extraction complete",
		"run_id", summary.RunID,
		"topics", summary.Topics,
		"vectors", summary.Vectors,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
		"output", cfg.Extraction.Output,
	)
	return nil
}

func runWorker(ctx context.Context, cfg *config.Config, runID string) error {
	if !cfg.Kafka.Enabled {
		return apperrors.Configurationf("worker mode needs kafka.enabled")
	}
	m := metrics.New()
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}
	a, err := app.Build(ctx, cfg, app.Options{Metrics: m})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.NewPipeline(nil, runID, optionalSinks(ctx, cfg, a)...)
	if err != nil {
		return err
	}
	defer p.Close()

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ExtractionJobs, p.HandleJob())
	slog.Info("extraction worker started",
		"topic", cfg.Kafka.Topics.ExtractionJobs,
		"group", cfg.Kafka.ConsumerGroup,
		"run_id", p.RunID(),
	)
	if err := consumer.Start(ctx); err != nil {
		return apperrors.IOf("consuming extraction jobs: %v", err)
	}
	slog.Info("extraction worker stopped")
	return nil
}

// optionalSinks returns the Kafka and feature-store sinks that are
// configured and reachable.
func optionalSinks(ctx context.Context, cfg *config.Config, a *app.App) []pipeline.Sink {
	var sinks []pipeline.Sink
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FeatureVectors)
		sinks = append(sinks, pipeline.Guard("kafka-sink", pipeline.NewKafkaSink(producer), sinkRetry, sinkBreaker))
		slog.Info("publishing feature vectors", "topic", cfg.Kafka.Topics.FeatureVectors)
	}
	if a.Postgres != nil {
		store := featurestore.New(a.Postgres)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("feature store unavailable", "error", err)
		} else {
			sinks = append(sinks, pipeline.Guard("feature-store", pipeline.NewStoreSink(store), sinkRetry, sinkBreaker))
			slog.Info("persisting feature vectors to postgres")
		}
	}
	return sinks
}
