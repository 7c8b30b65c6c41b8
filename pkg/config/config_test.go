package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	s := cfg.Similarity
	if s.K1 != 0.9 || s.B != 0.4 || s.C != 0.1 || s.Mu != 1000 {
		t.Errorf("similarity defaults = %+v", s)
	}
	r := cfg.RM3
	if r.FbDocs != 10 || r.FbTerms != 10 || r.OriginalQueryWeight != 0.5 {
		t.Errorf("rm3 defaults = %+v", r)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
similarity:
  k1: 1.2
  b: 0.75
rm3:
  fbDocs: 5
features:
  provider: file
  file: /data/features.txt
topics:
  format: webxml
  paths: [a.xml, b.xml]
redis:
  cacheTTL: 2m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Similarity.K1 != 1.2 || cfg.Similarity.B != 0.75 || cfg.Similarity.Mu != 1000 {
		t.Errorf("similarity = %+v", cfg.Similarity)
	}
	if cfg.RM3.FbDocs != 5 || cfg.RM3.FbTerms != 10 {
		t.Errorf("rm3 = %+v", cfg.RM3)
	}
	if cfg.Features.Provider != "file" || len(cfg.Topics.Paths) != 2 {
		t.Errorf("features = %+v, topics = %+v", cfg.Features, cfg.Topics)
	}
	if cfg.Redis.CacheTTL != 2*time.Minute {
		t.Errorf("cacheTTL = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, apperrors.ErrIO) {
		t.Errorf("missing file err = %v, want ErrIO", err)
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("similarity: [unclosed"), 0o644)
	if _, err := Load(path); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("bad yaml err = %v, want ErrConfiguration", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LTR_SIMILARITY_MU", "2000")
	t.Setenv("LTR_RM3_FB_TERMS", "20")
	t.Setenv("LTR_FEATURES_EXTRACTORS", "tf,bm25_rm3")
	t.Setenv("LTR_INDEX_CORPUS", "/tmp/corpus.tsv")
	t.Setenv("LTR_KAFKA_ENABLED", "true")
	t.Setenv("LTR_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Similarity.Mu != 2000 || cfg.RM3.FbTerms != 20 {
		t.Errorf("overrides not applied: mu=%v fbTerms=%d", cfg.Similarity.Mu, cfg.RM3.FbTerms)
	}
	if len(cfg.Features.Extractors) != 2 || cfg.Features.Extractors[1] != "bm25_rm3" {
		t.Errorf("extractors = %v", cfg.Features.Extractors)
	}
	if cfg.Index.Corpus != "/tmp/corpus.tsv" || !cfg.Kafka.Enabled {
		t.Errorf("index = %+v, kafka enabled = %v", cfg.Index, cfg.Kafka.Enabled)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("malformed port override changed the port to %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative k1", func(c *Config) { c.Similarity.K1 = -0.1 }},
		{"b above one", func(c *Config) { c.Similarity.B = 1.5 }},
		{"zero c", func(c *Config) { c.Similarity.C = 0 }},
		{"zero mu", func(c *Config) { c.Similarity.Mu = 0 }},
		{"zero fbDocs", func(c *Config) { c.RM3.FbDocs = 0 }},
		{"zero fbTerms", func(c *Config) { c.RM3.FbTerms = 0 }},
		{"alpha above one", func(c *Config) { c.RM3.OriginalQueryWeight = 1.1 }},
		{"unknown provider", func(c *Config) { c.Features.Provider = "remote" }},
		{"file provider without file", func(c *Config) { c.Features.Provider = "file" }},
		{"live provider without extractors", func(c *Config) { c.Features.Extractors = nil }},
		{"unknown topic format", func(c *Config) { c.Topics.Format = "json" }},
		{"unknown analyzer", func(c *Config) { c.Index.Analyzer = "klingon" }},
		{"zero depth", func(c *Config) { c.Extraction.CandidateDepth = 0 }},
		{"zero concurrency", func(c *Config) { c.Extraction.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, apperrors.ErrConfiguration) {
				t.Errorf("Validate() = %v, want ErrConfiguration", err)
			}
		})
	}
}
