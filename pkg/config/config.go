// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Similarity, RM3, Features, Topics, Redis, Postgres, Kafka).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Similarity SimilarityConfig `yaml:"similarity"`
	RM3        RM3Config        `yaml:"rm3"`
	Features   FeaturesConfig   `yaml:"features"`
	Topics     TopicsConfig     `yaml:"topics"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Index      IndexConfig      `yaml:"index"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SimilarityConfig holds the free parameters of the ranking models.
type SimilarityConfig struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	C  float64 `yaml:"c"`
	Mu float64 `yaml:"mu"`
}

// RM3Config controls pseudo-relevance feedback expansion.
type RM3Config struct {
	FbDocs              int     `yaml:"fbDocs"`
	FbTerms             int     `yaml:"fbTerms"`
	OriginalQueryWeight float64 `yaml:"originalQueryWeight"`
	MinTermLength       int     `yaml:"minTermLength"`
	MaxDocFreqRatio     float64 `yaml:"maxDocFreqRatio"`
}

// FeaturesConfig selects the feature-vector provider and its inputs.
type FeaturesConfig struct {
	Provider   string   `yaml:"provider"`
	File       string   `yaml:"file"`
	Field      string   `yaml:"field"`
	Extractors []string `yaml:"extractors"`
}

// TopicsConfig points at the topic and relevance-judgment files.
type TopicsConfig struct {
	Format string   `yaml:"format"`
	Paths  []string `yaml:"paths"`
	Qrels  string   `yaml:"qrels"`
}

// ExtractionConfig controls the batch feature-extraction pipeline.
type ExtractionConfig struct {
	CandidateDepth int    `yaml:"candidateDepth"`
	Concurrency    int    `yaml:"concurrency"`
	Output         string `yaml:"output"`
	Sparse         bool   `yaml:"sparse"`
}

// IndexConfig describes where the in-memory index loads its documents from.
// A non-empty Corpus (a "<id>\t<body>" file) takes precedence over Postgres.
type IndexConfig struct {
	Corpus         string `yaml:"corpus"`
	DocumentsTable string `yaml:"documentsTable"`
	Field          string `yaml:"field"`
	Analyzer       string `yaml:"analyzer"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ExtractionJobs string `yaml:"extractionJobs"`
	FeatureVectors string `yaml:"featureVectors"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.IOf("reading config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Configurationf("parsing config file %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with the reference parameter values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Similarity: SimilarityConfig{
			K1: 0.9,
			B:  0.4,
			C:  0.1,
			Mu: 1000,
		},
		RM3: RM3Config{
			FbDocs:              10,
			FbTerms:             10,
			OriginalQueryWeight: 0.5,
			MinTermLength:       2,
			MaxDocFreqRatio:     0.1,
		},
		Features: FeaturesConfig{
			Provider:   "live",
			Field:      "contents",
			Extractors: []string{"tf", "tfidf", "bm25", "pl2", "ql", "doc_length", "query_length"},
		},
		Topics: TopicsConfig{
			Format: "trec",
		},
		Extraction: ExtractionConfig{
			CandidateDepth: 100,
			Concurrency:    4,
		},
		Index: IndexConfig{
			DocumentsTable: "documents",
			Field:          "contents",
			Analyzer:       "english",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ltr",
			User:            "ltr",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ltr-extractor",
			Topics: KafkaTopics{
				ExtractionJobs: "ltr.extraction-jobs",
				FeatureVectors: "ltr.feature-vectors",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects parameter combinations that cannot be scored.
func (c *Config) Validate() error {
	s := c.Similarity
	if s.K1 < 0 {
		return apperrors.Configurationf("similarity.k1 must be >= 0, got %v", s.K1)
	}
	if s.B < 0 || s.B > 1 {
		return apperrors.Configurationf("similarity.b must be in [0,1], got %v", s.B)
	}
	if s.C <= 0 {
		return apperrors.Configurationf("similarity.c must be > 0, got %v", s.C)
	}
	if s.Mu <= 0 {
		return apperrors.Configurationf("similarity.mu must be > 0, got %v", s.Mu)
	}
	r := c.RM3
	if r.FbDocs <= 0 {
		return apperrors.Configurationf("rm3.fbDocs must be > 0, got %d", r.FbDocs)
	}
	if r.FbTerms <= 0 {
		return apperrors.Configurationf("rm3.fbTerms must be > 0, got %d", r.FbTerms)
	}
	if r.OriginalQueryWeight < 0 || r.OriginalQueryWeight > 1 {
		return apperrors.Configurationf("rm3.originalQueryWeight must be in [0,1], got %v", r.OriginalQueryWeight)
	}
	switch c.Features.Provider {
	case "live":
		if len(c.Features.Extractors) == 0 {
			return apperrors.Configurationf("features.extractors must not be empty for the live provider")
		}
	case "file":
		if c.Features.File == "" {
			return apperrors.Configurationf("features.file is required for the file provider")
		}
	default:
		return apperrors.Configurationf("unknown features.provider %q", c.Features.Provider)
	}
	switch c.Topics.Format {
	case "trec", "webxml", "web", "tsv":
	default:
		return apperrors.Configurationf("unknown topics.format %q", c.Topics.Format)
	}
	switch c.Index.Analyzer {
	case "english", "whitespace":
	default:
		return apperrors.Configurationf("unknown index.analyzer %q", c.Index.Analyzer)
	}
	if c.Extraction.CandidateDepth <= 0 {
		return apperrors.Configurationf("extraction.candidateDepth must be > 0, got %d", c.Extraction.CandidateDepth)
	}
	if c.Extraction.Concurrency <= 0 {
		return apperrors.Configurationf("extraction.concurrency must be > 0, got %d", c.Extraction.Concurrency)
	}
	return nil
}

// applyEnvOverrides reads LTR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LTR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setFloat("LTR_SIMILARITY_K1", &cfg.Similarity.K1)
	setFloat("LTR_SIMILARITY_B", &cfg.Similarity.B)
	setFloat("LTR_SIMILARITY_C", &cfg.Similarity.C)
	setFloat("LTR_SIMILARITY_MU", &cfg.Similarity.Mu)
	setInt("LTR_RM3_FB_DOCS", &cfg.RM3.FbDocs)
	setInt("LTR_RM3_FB_TERMS", &cfg.RM3.FbTerms)
	setFloat("LTR_RM3_ORIGINAL_QUERY_WEIGHT", &cfg.RM3.OriginalQueryWeight)
	if v := os.Getenv("LTR_FEATURES_PROVIDER"); v != "" {
		cfg.Features.Provider = v
	}
	if v := os.Getenv("LTR_FEATURES_FILE"); v != "" {
		cfg.Features.File = v
	}
	if v := os.Getenv("LTR_FEATURES_EXTRACTORS"); v != "" {
		cfg.Features.Extractors = strings.Split(v, ",")
	}
	if v := os.Getenv("LTR_INDEX_CORPUS"); v != "" {
		cfg.Index.Corpus = v
	}
	if v := os.Getenv("LTR_INDEX_ANALYZER"); v != "" {
		cfg.Index.Analyzer = v
	}
	if v := os.Getenv("LTR_TOPICS_FORMAT"); v != "" {
		cfg.Topics.Format = v
	}
	if v := os.Getenv("LTR_TOPICS_PATHS"); v != "" {
		cfg.Topics.Paths = strings.Split(v, ",")
	}
	if v := os.Getenv("LTR_TOPICS_QRELS"); v != "" {
		cfg.Topics.Qrels = v
	}
	if v := os.Getenv("LTR_EXTRACTION_OUTPUT"); v != "" {
		cfg.Extraction.Output = v
	}
	if v := os.Getenv("LTR_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("LTR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	setInt("LTR_POSTGRES_PORT", &cfg.Postgres.Port)
	if v := os.Getenv("LTR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LTR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LTR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LTR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LTR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LTR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LTR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LTR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
