// Package e2e exercises a running deployment through the gateway: ingestion,
// Kafka, the indexer and the search service. Tests skip unless E2E_API_KEY
// holds a gateway key.
//
// Run with:
//
//	E2E_API_KEY=bg_... go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type e2eConfig struct {
	GatewayURL string
	APIKey     string
}

func loadConfig(t *testing.T) e2eConfig {
	t.Helper()
	cfg := e2eConfig{
		GatewayURL: envOrDefault("E2E_GATEWAY_URL", "http://localhost:8000"),
		APIKey:     os.Getenv("E2E_API_KEY"),
	}
	if cfg.APIKey == "" {
		t.Skip("E2E_API_KEY not set")
	}
	return cfg
}

func (c e2eConfig) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, c.GatewayURL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Skipf("gateway unavailable: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestPlatformHealth(t *testing.T) {
	cfg := loadConfig(t)
	status, body := cfg.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status, string(body))
}

// TestIngestAndSearch posts a document with a unique word and polls the
// search service until the indexer has published it.
func TestIngestAndSearch(t *testing.T) {
	cfg := loadConfig(t)
	word := fmt.Sprintf("e2e%d", time.Now().UnixNano())
	loc := "e2e/" + word
	payload, err := json.Marshal(map[string]any{
		"location": loc,
		"title":    "end to end " + word,
		"body":     "この文書は " + word + " を含む検証用の文書です。",
		"mtime":    time.Now().Unix(),
	})
	require.NoError(t, err)

	status, body := cfg.do(t, http.MethodPost, "/documents", string(payload))
	require.Equal(t, http.StatusAccepted, status, string(body))

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		status, body = cfg.do(t, http.MethodGet, "/search?q="+url.QueryEscape(word), "")
		require.Equal(t, http.StatusOK, status, string(body))
		var page struct {
			Results []struct {
				Location string `json:"location"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(body, &page))
		if len(page.Results) > 0 {
			assert.Equal(t, loc, page.Results[0].Location)
			return
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("%s not searchable within 60s", loc)
}

func TestSearchAnalytics(t *testing.T) {
	cfg := loadConfig(t)
	status, _ := cfg.do(t, http.MethodGet, "/search?q="+url.QueryEscape("分析"), "")
	require.Equal(t, http.StatusOK, status)

	status, body := cfg.do(t, http.MethodGet, "/analytics", "")
	if status == http.StatusNotFound {
		t.Skip("analytics not routed by this gateway")
	}
	require.Equal(t, http.StatusOK, status, string(body))
	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Contains(t, stats, "total_searches")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
