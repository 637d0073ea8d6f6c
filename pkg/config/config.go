// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Indexer, Merger, Search, Corpus, Kafka, Redis, Gateway).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Merger    MergerConfig    `yaml:"merger"`
	Search    SearchConfig    `yaml:"search"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Yomi      YomiConfig      `yaml:"yomi"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Gateway   GatewayConfig   `yaml:"gateway"`
}

// ServerConfig holds HTTP server settings. RateLimit is the number of
// requests each client address may make per minute; zero disables limiting.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// IndexConfig locates the segment directory.
type IndexConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// IndexerConfig controls when the in-memory segment is flushed and how
// documents are read.
type IndexerConfig struct {
	MaxDocs       int           `yaml:"maxDocs"`
	MaxTerms      int           `yaml:"maxTerms"`
	MaxSentences  int           `yaml:"maxSentences"`
	DocType       string        `yaml:"docType"`
	Encoding      string        `yaml:"encoding"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// MergerConfig bounds the size of merged segments. A positive Interval
// lets the indexer service merge on its own schedule.
type MergerConfig struct {
	MaxDocs  int           `yaml:"maxDocs"`
	MaxTerms int           `yaml:"maxTerms"`
	Cleanup  bool          `yaml:"cleanup"`
	Interval time.Duration `yaml:"interval"`
}

// SearchConfig controls query evaluation limits and snippet shape.
type SearchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	PageSize      int           `yaml:"pageSize"`
	MaxPageSize   int           `yaml:"maxPageSize"`
	MaxPredicates int           `yaml:"maxPredicates"`
	Disjunctive   bool          `yaml:"disjunctive"`
	// EMail enables header scopes such as subject: and from: for indexes
	// built from e-mail.
	EMail         bool          `yaml:"email"`
	Snippet       SnippetConfig `yaml:"snippet"`
}

// SnippetConfig shapes the text excerpt returned with each hit.
type SnippetConfig struct {
	MaxSentences int `yaml:"maxSentences"`
	MaxChars     int `yaml:"maxChars"`
	MaxMargin    int `yaml:"maxMargin"`
}

// CorpusConfig selects where documents are read from: "fs", "sqlite" or
// "postgres".
type CorpusConfig struct {
	Type  string `yaml:"type"`
	Dir   string `yaml:"dir"`
	Table string `yaml:"table"`
}

// YomiConfig points at the reading dictionary. An empty path disables
// phonetic queries.
type YomiConfig struct {
	Dictionary string `yaml:"dictionary"`
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

// SQLiteConfig holds the SQLite database file.
type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest   string `yaml:"documentIngest"`
	SegmentPublished string `yaml:"segmentPublished"`
	SearchEvents     string `yaml:"searchEvents"`
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

// AnalyticsConfig controls search analytics. The search service batches one
// event per query onto the search events topic when Enabled; the analytics
// service aggregates them and snapshots the totals into Store ("sqlite",
// "postgres" or "" for none).
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	Store            string        `yaml:"store"`
	TopN             int           `yaml:"topN"`
}

// GatewayConfig locates the services behind the gateway. API keys live in
// KeyStore ("sqlite" or "postgres").
type GatewayConfig struct {
	Port         int    `yaml:"port"`
	SearcherURL  string `yaml:"searcherUrl"`
	IngestionURL string `yaml:"ingestionUrl"`
	AnalyticsURL string `yaml:"analyticsUrl"`
	KeyStore     string `yaml:"keyStore"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// Validate rejects settings the index cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Indexer.MaxDocs <= 0 || c.Indexer.MaxTerms <= 0:
		return fmt.Errorf("indexer thresholds must be positive")
	case c.Indexer.MaxSentences <= 0:
		return fmt.Errorf("indexer.maxSentences must be positive")
	case c.Merger.MaxDocs <= 0 || c.Merger.MaxTerms <= 0:
		return fmt.Errorf("merger thresholds must be positive")
	case c.Search.PageSize <= 0 || c.Search.MaxPageSize < c.Search.PageSize:
		return fmt.Errorf("search.pageSize must be positive and at most search.maxPageSize")
	case c.Search.MaxPredicates <= 0:
		return fmt.Errorf("search.maxPredicates must be positive")
	case c.Server.RateLimit < 0:
		return fmt.Errorf("server.rateLimit must not be negative")
	}
	switch c.Corpus.Type {
	case "fs", "sqlite", "postgres":
	default:
		return fmt.Errorf("corpus.type %q: want fs, sqlite or postgres", c.Corpus.Type)
	}
	switch c.Analytics.Store {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("analytics.store %q: want sqlite, postgres or empty", c.Analytics.Store)
	}
	if c.Analytics.BatchSize <= 0 || c.Analytics.TopN <= 0 {
		return fmt.Errorf("analytics.batchSize and analytics.topN must be positive")
	}
	switch c.Gateway.KeyStore {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("gateway.keyStore %q: want sqlite or postgres", c.Gateway.KeyStore)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Dir:    "./data/index",
			Prefix: "idx",
		},
		Indexer: IndexerConfig{
			MaxDocs:       1000,
			MaxTerms:      50000,
			MaxSentences:  100000,
			DocType:       "PlainText",
			FlushInterval: 30 * time.Second,
		},
		Merger: MergerConfig{
			MaxDocs:  2000,
			MaxTerms: 50000,
			Cleanup:  true,
		},
		Search: SearchConfig{
			Timeout:       5 * time.Second,
			PageSize:      10,
			MaxPageSize:   100,
			MaxPredicates: 10,
			Snippet: SnippetConfig{
				MaxSentences: 3,
				MaxChars:     100,
				MaxMargin:    20,
			},
		},
		Corpus: CorpusConfig{
			Type:  "fs",
			Dir:   "./data/corpus",
			Table: "documents",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bigram",
			User:            "bigram",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path:        "./data/corpus.db",
			BusyTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bigram-indexer",
			Topics: KafkaTopics{
				DocumentIngest:   "document-ingest",
				SegmentPublished: "segment.published",
				SearchEvents:     "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
			Store:            "sqlite",
			TopN:             10,
		},
		Gateway: GatewayConfig{
			Port:         8000,
			SearcherURL:  "http://localhost:8080",
			IngestionURL: "http://localhost:8081",
			AnalyticsURL: "http://localhost:8082",
			KeyStore:     "sqlite",
		},
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// applyEnvOverrides reads BG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	envInt("BG_SERVER_PORT", &cfg.Server.Port)
	envInt("BG_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	if v := os.Getenv("BG_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	envString("BG_INDEX_DIR", &cfg.Index.Dir)
	envString("BG_INDEX_PREFIX", &cfg.Index.Prefix)
	envInt("BG_INDEXER_MAX_DOCS", &cfg.Indexer.MaxDocs)
	envInt("BG_INDEXER_MAX_TERMS", &cfg.Indexer.MaxTerms)
	envString("BG_INDEXER_DOC_TYPE", &cfg.Indexer.DocType)
	envString("BG_INDEXER_ENCODING", &cfg.Indexer.Encoding)
	envDuration("BG_INDEXER_FLUSH_INTERVAL", &cfg.Indexer.FlushInterval)
	envInt("BG_MERGER_MAX_DOCS", &cfg.Merger.MaxDocs)
	envInt("BG_MERGER_MAX_TERMS", &cfg.Merger.MaxTerms)
	envDuration("BG_MERGER_INTERVAL", &cfg.Merger.Interval)
	envDuration("BG_SEARCH_TIMEOUT", &cfg.Search.Timeout)
	envInt("BG_SEARCH_PAGE_SIZE", &cfg.Search.PageSize)
	envString("BG_CORPUS_TYPE", &cfg.Corpus.Type)
	envString("BG_CORPUS_DIR", &cfg.Corpus.Dir)
	envString("BG_CORPUS_TABLE", &cfg.Corpus.Table)
	envString("BG_YOMI_DICTIONARY", &cfg.Yomi.Dictionary)
	envString("BG_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("BG_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("BG_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("BG_POSTGRES_USER", &cfg.Postgres.User)
	envString("BG_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("BG_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	envString("BG_SQLITE_PATH", &cfg.SQLite.Path)
	if v := os.Getenv("BG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	envString("BG_REDIS_ADDR", &cfg.Redis.Addr)
	envString("BG_REDIS_PASSWORD", &cfg.Redis.Password)
	envString("BG_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("BG_LOGGING_FORMAT", &cfg.Logging.Format)
	envInt("BG_METRICS_PORT", &cfg.Metrics.Port)
	envString("BG_ANALYTICS_STORE", &cfg.Analytics.Store)
	envDuration("BG_ANALYTICS_SNAPSHOT_INTERVAL", &cfg.Analytics.SnapshotInterval)
	envInt("BG_GATEWAY_PORT", &cfg.Gateway.Port)
	envString("BG_GATEWAY_SEARCHER_URL", &cfg.Gateway.SearcherURL)
	envString("BG_GATEWAY_INGESTION_URL", &cfg.Gateway.IngestionURL)
	envString("BG_GATEWAY_ANALYTICS_URL", &cfg.Gateway.AnalyticsURL)
	envString("BG_GATEWAY_KEY_STORE", &cfg.Gateway.KeyStore)
	if v := os.Getenv("BG_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
}
