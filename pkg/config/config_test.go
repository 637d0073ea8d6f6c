package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "idx", cfg.Index.Prefix)
	assert.Equal(t, 10, cfg.Search.PageSize)
	assert.Equal(t, "fs", cfg.Corpus.Type)
	assert.Equal(t, "sqlite", cfg.Gateway.KeyStore)
	assert.Equal(t, "search-events", cfg.Kafka.Topics.SearchEvents)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  corsOrigins: ["*"]
search:
  timeout: 2s
  pageSize: 20
merger:
  interval: 5m
gateway:
  keyStore: postgres
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 20, cfg.Search.PageSize)
	assert.Equal(t, 100, cfg.Search.MaxPageSize, "unset fields keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Merger.Interval)
	assert.Equal(t, "postgres", cfg.Gateway.KeyStore)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BG_SERVER_PORT", "8181")
	t.Setenv("BG_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BG_SEARCH_TIMEOUT", "750ms")
	t.Setenv("BG_ANALYTICS_ENABLED", "false")
	t.Setenv("BG_GATEWAY_SEARCHER_URL", "http://search:8080")
	t.Setenv("BG_INDEXER_MAX_DOCS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.Timeout)
	assert.False(t, cfg.Analytics.Enabled)
	assert.Equal(t, "http://search:8080", cfg.Gateway.SearcherURL)
	assert.Equal(t, 1000, cfg.Indexer.MaxDocs, "unparsable values are ignored")
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"page size":   "search:\n  pageSize: 0\n",
		"page bounds": "search:\n  pageSize: 50\n  maxPageSize: 10\n",
		"corpus type": "corpus:\n  type: s3\n",
		"store":       "analytics:\n  store: mongo\n",
		"key store":   "gateway:\n  keyStore: \"\"\n",
		"rate limit":  "server:\n  rateLimit: -1\n",
		"indexer":     "indexer:\n  maxTerms: 0\n",
		"merger":      "merger:\n  maxDocs: -5\n",
		"predicates":  "search:\n  maxPredicates: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Load(writeConfig(t, "server: [1, 2"))
	assert.Error(t, err)
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load("../../configs/development.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Corpus.Type)
	assert.Equal(t, "http://localhost:8081", cfg.Gateway.IngestionURL)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}
