// Package integration runs the index loader, the extraction pipeline and
// the feature store against a real PostgreSQL database. Tests skip when it
// is unreachable.
//
// Run with:
//
//	TEST_POSTGRES_HOST=localhost go test -v ./test/integration/...
package integration

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/featurestore"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/search"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "ltr_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "ltr"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// createDocuments fills a throwaway documents table and drops it on cleanup.
func createDocuments(t *testing.T, db *postgres.Client, docs map[string]string) string {
	t.Helper()
	ctx := context.Background()
	table := fmt.Sprintf("documents_test_%d", time.Now().UnixNano())
	if _, err := db.DB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (id TEXT NOT NULL, body TEXT NOT NULL)`, table)); err != nil {
		t.Fatalf("creating %s: %v", table, err)
	}
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table))
	})
	for id, body := range docs {
		if _, err := db.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, body) VALUES ($1, $2)`, table), id, body); err != nil {
			t.Fatalf("inserting %s: %v", id, err)
		}
	}
	return table
}

func TestLoadFromPostgres(t *testing.T) {
	db := skipIfNoPostgres(t)
	table := createDocuments(t, db, map[string]string{
		"DOC_1": "dog cat dog cat cat",
		"DOC_2": "dog dog fish",
	})

	idx := index.NewMemoryIndex(analysis.WhitespaceAnalyzer{})
	n, err := index.LoadFromPostgres(context.Background(), db.DB, table, index.FieldContents, idx)
	if err != nil {
		t.Fatalf("LoadFromPostgres: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d documents, want 2", n)
	}

	scorer := search.NewScorer(search.NewIndexSource(idx, index.FieldContents), analysis.WhitespaceAnalyzer{}, nil)
	score, err := scorer.Score(context.Background(), similarity.TF{}, "cat", "DOC_1")
	if err != nil || score != 3 {
		t.Errorf("Score = %v, %v; want 3", score, err)
	}
}

func TestPipelineIntoFeatureStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	store := featurestore.New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	runID := fmt.Sprintf("it-%d", time.Now().UnixNano())
	t.Cleanup(func() { store.DeleteRun(context.Background(), runID) })

	idx := index.NewMemoryIndex(analysis.WhitespaceAnalyzer{})
	idx.AddText("DOC_1", "dog cat dog cat cat")
	idx.AddText("DOC_2", "dog dog fish")
	extractors, err := ltr.NewRegistry().Build([]string{"tf", "bm25", "doc_length"}, ltr.Dependencies{Params: similarity.DefaultParams})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	live, err := ltr.NewLiveExtractor(extractors)
	if err != nil {
		t.Fatalf("NewLiveExtractor: %v", err)
	}
	p, err := pipeline.New(pipeline.Options{
		Provider: live,
		Candidates: pipeline.RetrievalCandidates{
			Source: search.NewIndexSource(idx, index.FieldContents),
			Model:  similarity.BM25{K1: 0.9, B: 0.4},
			Depth:  10,
		},
		Analyzer: analysis.WhitespaceAnalyzer{},
		Reader:   idx,
		RunID:    runID,
	}, pipeline.NewStoreSink(store))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	summary, err := p.Run(ctx, []topics.Topic{{ID: "1", Title: "dog"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Vectors != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	stored, err := store.Vectors(ctx, runID, "1")
	if err != nil {
		t.Fatalf("Vectors: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d vectors, want 2", len(stored))
	}
	byDoc := map[string]ltr.FeatureVector{}
	for _, v := range stored {
		byDoc[v.DocID] = v
	}
	if v := byDoc["DOC_1"]; len(v.Features) != 3 || v.Features[0].Value != 2 || v.Features[2].Value != 5 {
		t.Errorf("DOC_1 = %s", v)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	found := false
	for _, r := range runs {
		found = found || r == runID
	}
	if !found {
		t.Errorf("run %s not listed in %v", runID, runs)
	}

	deleted, err := store.DeleteRun(ctx, runID)
	if err != nil || deleted != 2 {
		t.Errorf("DeleteRun = %d, %v; want 2", deleted, err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
