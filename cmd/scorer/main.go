package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/app"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/featurestore"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/scoring/cache"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/scoring/handler"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("scoring service failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
	slog.Info("scoring service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting scoring service", "port", cfg.Server.Port, "provider", cfg.Features.Provider)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}

	a, err := app.Build(ctx, cfg, app.Options{Metrics: m, RequireIndex: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var scoreCache *cache.ScoreCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, score caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		scoreCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("score cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var sinks []pipeline.Sink
	if a.Postgres != nil {
		store := featurestore.New(a.Postgres)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("feature store unavailable, persisted vectors disabled", "error", err)
		} else {
			sinks = append(sinks, pipeline.Guard("feature-store", pipeline.NewStoreSink(store),
				resilience.RetryConfig{MaxAttempts: 3, AttemptTimeout: 10 * time.Second},
				resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute},
			))
		}
	}
	features, err := a.NewPipeline(nil, "api", sinks...)
	if err != nil {
		return err
	}
	defer features.Close()

	checker := health.NewChecker()
	checker.Register("index", health.CountCheck("documents", a.Index.DocCount))
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, true)(ctx)
	})
	if a.Postgres != nil {
		checker.Register("postgres", health.PingCheck(a.Postgres.Ping, true))
	}

	h := handler.New(handler.Options{
		Scorer:   a.Scorer,
		Expander: a.Expander,
		Analyzer: a.Analyzer,
		Params:   a.Params,
		Cache:    scoreCache,
		Features: features,
		Schema:   a.Schema,
		Metrics:  m,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("scoring service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return apperrors.IOf("serving http: %v", err)
	}
	return nil
}
