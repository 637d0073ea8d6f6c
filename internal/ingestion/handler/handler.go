package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

const (
	maxBatchSize    = 100
	maxRequestBytes = 64 << 20
)

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /documents", h.Ingest)
	mux.HandleFunc("POST /documents/batch", h.IngestBatch)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		h.writeValidation(w, err)
		return
	}
	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "location", req.Location, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, publicMessage(err, statusCode))
		return
	}
	log.Info("document ingested", "location", resp.Location, "status", resp.Status)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var reqs []*ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&reqs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(reqs) == 0 || len(reqs) > maxBatchSize {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("batch must hold 1 to %d documents", maxBatchSize))
		return
	}
	for i, req := range reqs {
		if req == nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("document %d is null", i))
			return
		}
		if err := validator.ValidateIngestRequest(req); err != nil {
			var verr *validator.ValidationError
			if errors.As(err, &verr) {
				h.writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":  "validation failed",
					"index":  i,
					"fields": verr.Fields,
				})
				return
			}
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	resps, err := h.publisher.IngestBatch(ctx, reqs)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("batch ingestion failed", "count", len(reqs), "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, publicMessage(err, statusCode))
		return
	}
	log.Info("batch ingested", "count", len(resps))
	h.writeJSON(w, http.StatusAccepted, resps)
}

func publicMessage(err error, status int) string {
	var appErr *apperrors.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		return appErr.Message
	}
	return "ingestion failed"
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
