package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/auth/apikey"
)

type fakeValidator map[string]*apikey.KeyInfo

func (f fakeValidator) Validate(_ context.Context, raw string) (*apikey.KeyInfo, error) {
	if raw == "boom" {
		return nil, errors.New("db down")
	}
	if raw == "old" {
		return nil, apikey.ErrExpiredKey
	}
	if info, ok := f[raw]; ok {
		return info, nil
	}
	return nil, apikey.ErrInvalidKey
}

func TestExtractAPIKeyOrder(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/search?api_key=q", nil)
	assert.Equal(t, "q", ExtractAPIKey(r))
	r.Header.Set("X-API-Key", "h")
	assert.Equal(t, "h", ExtractAPIKey(r))
	r.Header.Set("Authorization", "Bearer b")
	assert.Equal(t, "b", ExtractAPIKey(r))
}

func TestAuth(t *testing.T) {
	v := fakeValidator{"good": {ID: "1", Name: "app"}}
	var got *apikey.KeyInfo
	h := Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetKeyInfo(r.Context())
	}))

	cases := []struct {
		key    string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, "missing api key"},
		{"bad", http.StatusUnauthorized, "invalid api key"},
		{"old", http.StatusUnauthorized, "expired api key"},
		{"boom", http.StatusInternalServerError, "authentication error"},
		{"good", http.StatusOK, ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/search", nil)
		if tc.key != "" {
			r.Header.Set("X-API-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, tc.status, rec.Code, tc.key)
		assert.Contains(t, rec.Body.String(), tc.body, tc.key)
	}
	if assert.NotNil(t, got) {
		assert.Equal(t, "app", got.Name)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/keys", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	r = r.WithContext(WithKeyInfo(r.Context(), &apikey.KeyInfo{ID: "1", Admin: true}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}
