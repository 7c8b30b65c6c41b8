// Package handler exposes relevance scoring and feature extraction over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/scoring/cache"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/tracing"
)

const defaultModel = "bm25"

// Options wires a Handler. Only Scorer and Analyzer are required; without
// Expander feedback requests fail, without Features the features endpoints
// answer 503.
type Options struct {
	Scorer   *search.Scorer
	Expander search.Expander
	Analyzer analysis.Analyzer
	Params   similarity.Params
	Cache    *cache.ScoreCache
	Features *pipeline.Pipeline
	Schema   ltr.Schema
	Metrics  *metrics.Metrics
}

type Handler struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Handler {
	return &Handler{
		opts:   opts,
		logger: slog.Default().With("component", "score-handler"),
	}
}

// ScoreResponse is the body of a successful score request.
type ScoreResponse struct {
	Model    string  `json:"model"`
	Query    string  `json:"query"`
	DocID    string  `json:"docid"`
	Feedback bool    `json:"feedback"`
	Score    float64 `json:"score"`
	Cached   bool    `json:"cached"`
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/score", h.Score)
	mux.HandleFunc("POST /api/v1/features", h.Features)
	mux.HandleFunc("GET /api/v1/features/schema", h.FeatureSchema)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Score handles GET /api/v1/score?model=bm25&q=...&docid=...&rm3=true.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "score", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.Log()
	}()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	text := params.Get("q")
	docID := params.Get("docid")
	if strings.TrimSpace(text) == "" || docID == "" {
		h.writeError(w, http.StatusBadRequest, "query parameters 'q' and 'docid' are required")
		return
	}
	modelName := params.Get("model")
	if modelName == "" {
		modelName = defaultModel
	}
	feedback := false
	if v := params.Get("rm3"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "rm3 must be a boolean")
			return
		}
		feedback = parsed
	}

	kind, err := similarity.ParseKind(modelName)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	model, err := similarity.New(kind, h.opts.Params)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	query, err := analysis.BagOfWords(h.opts.Analyzer, text)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	span.SetAttr("model", model.String())
	span.SetAttr("feedback", feedback)

	compute := func(ctx context.Context) (float64, error) {
		return h.score(ctx, model, query, docID, feedback)
	}
	var score float64
	cached := false
	if h.opts.Cache != nil {
		key := cache.Key{Model: model.String(), Feedback: feedback, Query: query.String(), DocID: docID}
		score, cached, err = h.opts.Cache.GetOrCompute(ctx, key, compute)
	} else {
		score, err = compute(ctx)
	}
	if err != nil {
		h.fail(w, log, err)
		return
	}

	elapsed := time.Since(start)
	if h.opts.Metrics != nil {
		h.opts.Metrics.ScoresTotal.WithLabelValues(kind.String(), strconv.FormatBool(feedback)).Inc()
		h.opts.Metrics.ScoreLatency.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	}
	log.Info("document scored",
		"model", model.String(),
		"docid", docID,
		"feedback", feedback,
		"score", score,
		"cache_hit", cached,
		"latency_us", elapsed.Microseconds(),
	)
	h.writeJSON(w, http.StatusOK, ScoreResponse{
		Model:    kind.String(),
		Query:    text,
		DocID:    docID,
		Feedback: feedback,
		Score:    score,
		Cached:   cached,
	})
}

func (h *Handler) score(ctx context.Context, m similarity.Model, q analysis.WeightedQuery, docID string, feedback bool) (float64, error) {
	if !feedback {
		return h.opts.Scorer.ScoreQuery(ctx, m, q, docID)
	}
	if h.opts.Expander == nil {
		return 0, apperrors.Configurationf("feedback scoring requested but no expander configured")
	}
	_, span := tracing.StartChildSpan(ctx, "rm3_expand")
	expanded, err := h.opts.Expander.Expand(ctx, q, m)
	if err != nil {
		span.End()
		return 0, fmt.Errorf("expanding query: %w", err)
	}
	span.SetAttr("terms", expanded.Len())
	span.End()
	if h.opts.Metrics != nil {
		h.opts.Metrics.RM3ExpansionsTotal.Inc()
		h.opts.Metrics.RM3ExpandedTerms.Observe(float64(expanded.Len()))
	}
	return h.opts.Scorer.ScoreQuery(ctx, m, expanded, docID)
}

// FeaturesRequest asks for the vectors of one query. Without DocIDs the
// pipeline picks the candidates.
type FeaturesRequest struct {
	QueryID string   `json:"qid"`
	Query   string   `json:"query"`
	DocIDs  []string `json:"docids"`
	Persist bool     `json:"persist"`
}

type FeaturesResponse struct {
	QueryID string              `json:"qid"`
	Vectors []ltr.FeatureVector `json:"vectors"`
	Lines   []string            `json:"lines"`
}

// Features handles POST /api/v1/features.
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	if h.opts.Features == nil {
		h.writeError(w, http.StatusServiceUnavailable, "feature extraction is disabled")
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req FeaturesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.QueryID == "" || strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "fields 'qid' and 'query' are required")
		return
	}

	var vectors []ltr.FeatureVector
	var err error
	if len(req.DocIDs) > 0 {
		vectors, err = h.opts.Features.Extract(ctx, req.QueryID, req.Query, req.DocIDs)
	} else {
		vectors, err = h.opts.Features.ExtractTopic(ctx, topics.Topic{ID: req.QueryID, Title: req.Query})
	}
	if err != nil {
		h.fail(w, log, err)
		return
	}
	if req.Persist {
		if err := h.opts.Features.Write(ctx, vectors); err != nil {
			h.fail(w, log, err)
			return
		}
	}

	lines := make([]string, len(vectors))
	for i, v := range vectors {
		lines[i] = v.String()
	}
	log.Info("features extracted", "qid", req.QueryID, "vectors", len(vectors), "persisted", req.Persist)
	h.writeJSON(w, http.StatusOK, FeaturesResponse{QueryID: req.QueryID, Vectors: vectors, Lines: lines})
}

// FeatureSchema lists the features the configured provider emits.
func (h *Handler) FeatureSchema(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"features": h.opts.Schema.Entries()})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := apperrors.HTTPStatusCode(err)
	if h.opts.Metrics != nil {
		h.opts.Metrics.ScoreErrorsTotal.WithLabelValues(errorKind(err)).Inc()
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Warn("request rejected", "error", err)
	}
	h.writeError(w, status, err.Error())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrConfiguration):
		return "configuration"
	case errors.Is(err, apperrors.ErrParse):
		return "parse"
	case errors.Is(err, apperrors.ErrLookup):
		return "lookup"
	case errors.Is(err, apperrors.ErrIndexConsistency):
		return "index_consistency"
	case errors.Is(err, apperrors.ErrIO):
		return "io"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
