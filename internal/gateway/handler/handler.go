// Package handler implements the gateway: authenticated clients reach the
// search, ingestion and analytics services through reverse proxies, and admin
// keys manage the key store.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/auth/apikey"
	gwmw "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/middleware"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
)

// Config holds the backend base URLs. An empty AnalyticsURL leaves the
// analytics routes unmounted.
type Config struct {
	SearcherURL  string
	IngestionURL string
	AnalyticsURL string
}

// KeyManager is the admin side of the key store.
type KeyManager interface {
	Create(ctx context.Context, nk apikey.NewKey) (string, apikey.KeyInfo, error)
	Revoke(ctx context.Context, id string) error
	List(ctx context.Context) ([]apikey.KeyInfo, error)
}

type Handler struct {
	search    *httputil.ReverseProxy
	ingestion *httputil.ReverseProxy
	analytics *httputil.ReverseProxy
	keys      KeyManager
	logger    *slog.Logger
}

func New(cfg Config, keys KeyManager) (*Handler, error) {
	h := &Handler{
		keys:   keys,
		logger: slog.Default().With("component", "gateway-handler"),
	}
	var err error
	if h.search, err = h.newProxy("searcher", cfg.SearcherURL); err != nil {
		return nil, err
	}
	if h.ingestion, err = h.newProxy("ingestion", cfg.IngestionURL); err != nil {
		return nil, err
	}
	if cfg.AnalyticsURL != "" {
		if h.analytics, err = h.newProxy("analytics", cfg.AnalyticsURL); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Routes mounts the proxied and admin endpoints.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("GET /search", h.search)
	mux.Handle("GET /status", h.search)
	mux.Handle("POST /refresh", gwmw.RequireAdmin(h.search))
	mux.Handle("POST /documents", h.ingestion)
	mux.Handle("POST /documents/batch", h.ingestion)
	if h.analytics != nil {
		mux.Handle("GET /analytics", h.analytics)
		mux.Handle("GET /analytics/snapshots", h.analytics)
	}
	mux.Handle("POST /admin/keys", gwmw.RequireAdmin(http.HandlerFunc(h.CreateKey)))
	mux.Handle("GET /admin/keys", gwmw.RequireAdmin(http.HandlerFunc(h.ListKeys)))
	mux.Handle("DELETE /admin/keys/{id}", gwmw.RequireAdmin(http.HandlerFunc(h.RevokeKey)))
}

// newProxy forwards to target with the caller's credentials removed and the
// request id passed on.
func (h *Handler) newProxy(name, target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s url %q: %w", name, target, apperrors.ErrInvalidInput)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("X-API-Key")
			if q := pr.Out.URL.Query(); q.Has("api_key") {
				q.Del("api_key")
				pr.Out.URL.RawQuery = q.Encode()
			}
			if id := logger.RequestID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(middleware.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.FromContext(r.Context()).Error("upstream request failed", "upstream", name, "path", r.URL.Path, "error", err)
			h.writeError(w, r, http.StatusBadGateway, name+" unavailable")
		},
	}, nil
}

type createKeyRequest struct {
	Name      string `json:"name"`
	RateLimit *int   `json:"rate_limit"`
	Admin     bool   `json:"admin"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// DefaultRateLimit applies when a create request names no limit.
const DefaultRateLimit = 100

// CreateKey answers POST /admin/keys. The raw key appears only in this
// response.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	nk := apikey.NewKey{Name: req.Name, RateLimit: DefaultRateLimit, Admin: req.Admin}
	if req.RateLimit != nil {
		nk.RateLimit = *req.RateLimit
	}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d).UTC().Truncate(time.Second)
		nk.ExpiresAt = &t
	}
	raw, info, err := h.keys.Create(r.Context(), nk)
	if err != nil {
		h.fail(w, r, "creating api key", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": raw,
		"key":     info,
	})
}

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		h.fail(w, r, "listing api keys", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if caller := gwmw.GetKeyInfo(r.Context()); caller != nil && caller.ID == id {
		h.writeError(w, r, http.StatusBadRequest, "cannot revoke the key making the request")
		return
	}
	if err := h.keys.Revoke(r.Context(), id); err != nil {
		h.fail(w, r, "revoking api key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps store errors to a status; internal errors get a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(op+" failed", "error", err)
		h.writeError(w, r, status, op+" failed")
		return
	}
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, r, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": logger.RequestID(r.Context()),
	})
}
