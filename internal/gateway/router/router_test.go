package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/auth/apikey"
	gwhandler "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/health"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

type seen struct {
	Path      string `json:"path"`
	Query     string `json:"query"`
	Auth      string `json:"auth"`
	APIKey    string `json:"api_key"`
	RequestID string `json:"request_id"`
}

func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(seen{
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Auth:      r.Header.Get("Authorization"),
			APIKey:    r.Header.Get("X-API-Key"),
			RequestID: r.Header.Get(pkgmw.RequestIDHeader),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	store   *apikey.Store
	handler http.Handler
	admin   string
	user    string
}

func newFixture(t *testing.T, cfg gwhandler.Config) *fixture {
	t.Helper()
	ctx := context.Background()
	client, err := sqlite.Memory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	store, err := apikey.NewStore(client.DB, "sqlite")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	admin, _, err := store.Create(ctx, apikey.NewKey{Name: "ops", Admin: true})
	require.NoError(t, err)
	user, _, err := store.Create(ctx, apikey.NewKey{Name: "app", RateLimit: 100})
	require.NoError(t, err)

	h, err := gwhandler.New(cfg, store)
	require.NoError(t, err)
	return &fixture{
		store:   store,
		handler: New(h, store, pkgmw.NewLimiter(0, time.Minute), Options{Health: health.NewChecker()}),
		admin:   admin,
		user:    user,
	}
}

func (f *fixture) do(method, target, key, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if key != "" {
		r.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func TestRejectsMissingAndBadKeys(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})

	rec := f.do(http.MethodGet, "/search?q=x", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing api key")
	assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))

	rec = f.do(http.MethodGet, "/search?q=x", "bg_nope", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid api key")
}

func TestHealthSkipsAuth(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})
	rec := f.do(http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyStripsCredentials(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})

	r := httptest.NewRequest(http.MethodGet, "/search?q=%E6%97%A5%E6%9C%AC&api_key="+f.user, nil)
	r.Header.Set(pkgmw.RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got seen
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "/search", got.Path)
	assert.Equal(t, "q=%E6%97%A5%E6%9C%AC", got.Query)
	assert.Empty(t, got.Auth)
	assert.Empty(t, got.APIKey)
	assert.Equal(t, "req-7", got.RequestID)

	rec = f.do(http.MethodPost, "/documents", f.user, `{"location":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "/documents", got.Path)
	assert.Empty(t, got.Auth)
}

func TestPerKeyRateLimit(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})
	limited, _, err := f.store.Create(context.Background(), apikey.NewKey{Name: "slow", RateLimit: 2})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/status", limited, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/status", limited, "").Code)
	rec := f.do(http.MethodGet, "/status", limited, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/status", f.user, "").Code, "other keys keep their quota")
}

func TestAdminRoutesNeedAdminKey(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/admin/keys", f.user, "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/refresh", f.user, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/refresh", f.admin, "").Code)
}

func TestKeyLifecycle(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})

	rec := f.do(http.MethodPost, "/admin/keys", f.admin, `{"name":"batch","rate_limit":5,"expires_in":"24h"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		APIKey string         `json:"api_key"`
		Key    apikey.KeyInfo `json:"key"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.APIKey)
	assert.Equal(t, 5, created.Key.RateLimit)
	require.NotNil(t, created.Key.ExpiresAt)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/status", created.APIKey, "").Code)

	rec = f.do(http.MethodGet, "/admin/keys", f.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Equal(t, 3, listed.Count)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/admin/keys/"+created.Key.ID, f.admin, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/status", created.APIKey, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/admin/keys/"+created.Key.ID, f.admin, "").Code)
}

func TestCreateKeyValidation(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/keys", f.admin, `{`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/keys", f.admin, `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/keys", f.admin, `{"name":"x","expires_in":"soon"}`).Code)
}

func TestAnalyticsRoutesOptional(t *testing.T) {
	up := echoUpstream(t)
	f := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL})
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/analytics", f.user, "").Code)

	g := newFixture(t, gwhandler.Config{SearcherURL: up.URL, IngestionURL: up.URL, AnalyticsURL: up.URL})
	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/analytics/snapshots?limit=5", g.user, "").Code)
}

func TestUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	f := newFixture(t, gwhandler.Config{SearcherURL: deadURL, IngestionURL: deadURL})

	rec := f.do(http.MethodGet, "/search?q=x", f.user, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "searcher unavailable")
}
