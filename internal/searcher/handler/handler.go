// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/tracing"
)

// SearchExecutor runs searches against the current index.
type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Page, error)
	Refresh() error
	Segments() []string
	Status() (executor.IndexStatus, error)
}

// Tracker receives one event per answered search.
type Tracker interface {
	Track(e analytics.SearchEvent)
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.PageCache
	metrics  *metrics.Metrics
	tracker  Tracker
	logger   *slog.Logger
}

type Option func(*Handler)

// WithTracker reports every successful search to t.
func WithTracker(t Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

// New creates a Handler. queryCache and m may be nil.
func New(exec SearchExecutor, queryCache *cache.PageCache, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		executor: exec,
		cache:    queryCache,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the search endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("POST /refresh", h.Refresh)
}

func parseRequest(r *http.Request) (executor.Request, error) {
	q := r.URL.Query()
	req := executor.Request{
		Query:  q.Get("q"),
		Cursor: q.Get("cursor"),
		Start:  q.Get("start"),
		End:    q.Get("end"),
		Prefix: q.Get("prefix"),
	}
	if req.Query == "" {
		return req, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "query parameter 'q' is required")
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		req.Limit = n
	}
	if s := q.Get("or"); s != "" {
		or, err := strconv.ParseBool(s)
		if err != nil {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "or must be a boolean")
		}
		req.Disjunctive = or
	}
	return req, nil
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var page *executor.Page
	cacheStatus := "disabled"
	if h.cache != nil {
		var cached bool
		key := cache.Key(h.executor.Segments(), req)
		page, cached, err = h.cache.GetOrCompute(ctx, key, func() (*executor.Page, error) {
			return h.executor.Execute(ctx, req)
		})
		cacheStatus = "miss"
		if cached {
			cacheStatus = "hit"
		}
		span.SetAttr("cache", cacheStatus)
	} else {
		page, err = h.executor.Execute(ctx, req)
	}
	if err != nil {
		log.Warn("search failed", "query", req.Query, "error", err)
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Query:      req.Query,
			Predicates: page.Predicates,
			Found:      page.Found,
			Returned:   len(page.Results),
			Resumed:    req.Cursor != "",
			TimedOut:   page.TimedOut,
			Cache:      cacheStatus,
			LatencyMs:  elapsed.Milliseconds(),
			Timestamp:  start.UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}
	log.Info("search completed",
		"query", req.Query,
		"returned", len(page.Results),
		"found", page.Found,
		"timed_out", page.TimedOut,
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, page)
}

type statusResponse struct {
	executor.IndexStatus
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.executor.Status()
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := statusResponse{IndexStatus: st}
	if h.cache != nil {
		resp.CacheHits, resp.CacheMisses = h.cache.Stats()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Refresh reloads the segment list and drops cached pages.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.executor.Refresh(); err != nil {
		h.writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "segments": h.executor.Segments()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
