// Package validator checks ingestion requests before they reach the corpus
// and returns per-field error details.
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
)

const (
	maxLocationLength = 1024
	maxTitleLength    = 1024
	maxBodyLength     = 1 << 20
	maxLabels         = 64
	maxLabelLength    = 128
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks one document. Modification times are stored
// as 32-bit seconds, so later times are rejected.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(req.Location) == "":
		errs["location"] = "location is required"
	case len(req.Location) > maxLocationLength:
		errs["location"] = fmt.Sprintf("location must be at most %d bytes", maxLocationLength)
	case strings.ContainsAny(req.Location, "\x00\n"):
		errs["location"] = "location must not contain NUL or newline"
	}
	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	}
	if strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.Title) == "" {
		errs["body"] = "body or title is required"
	} else if len(req.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	}
	if req.ModTime < 0 || req.ModTime > math.MaxInt32 {
		errs["mtime"] = "mtime must be between 0 and 2147483647"
	}
	if len(req.Labels) > maxLabels {
		errs["labels"] = fmt.Sprintf("at most %d labels are allowed", maxLabels)
	}
	for _, l := range req.Labels {
		if l == "" || len(l) > maxLabelLength || strings.Contains(l, ",") {
			errs["labels"] = fmt.Sprintf("labels must be 1 to %d bytes without commas", maxLabelLength)
			break
		}
	}
	if req.DocType != "" {
		if _, err := corpus.ParseDocType(req.DocType); err != nil {
			errs["doc_type"] = fmt.Sprintf("unknown document type %q", req.DocType)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
