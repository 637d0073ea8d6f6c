// Package publisher stores ingested documents in the SQL corpus and queues
// them for indexing on Kafka.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
)

// DocumentStore persists records; SQLCorpus implements it.
type DocumentStore interface {
	Put(ctx context.Context, r corpus.Record) (bool, error)
}

type Publisher struct {
	store    DocumentStore
	producer kafka.Publisher
	now      func() time.Time
	logger   *slog.Logger
}

func New(store DocumentStore, producer kafka.Publisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

func (p *Publisher) record(req *ingestion.IngestRequest) corpus.Record {
	mtime := req.ModTime
	if mtime == 0 {
		mtime = p.now().Unix()
	}
	return corpus.Record{
		Location: req.Location,
		Title:    req.Title,
		Body:     []byte(req.Body),
		ModTime:  mtime,
		Labels:   req.Labels,
		DocType:  req.DocType,
	}
}

// Ingest stores one document and queues it for indexing.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	resps, err := p.IngestBatch(ctx, []*ingestion.IngestRequest{req})
	if err != nil {
		return nil, err
	}
	return &resps[0], nil
}

// IngestBatch stores the documents in order and queues all of them in one
// publish. Unchanged documents are queued as well; the indexer skips what
// it already holds, so a client retrying after a failed publish still gets
// its documents indexed.
func (p *Publisher) IngestBatch(ctx context.Context, reqs []*ingestion.IngestRequest) ([]ingestion.IngestResponse, error) {
	resps := make([]ingestion.IngestResponse, 0, len(reqs))
	events := make([]kafka.Event, 0, len(reqs))
	for _, req := range reqs {
		rec := p.record(req)
		changed, err := p.store.Put(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("storing document: %w", err)
		}
		status := ingestion.StatusUnchanged
		if changed {
			status = ingestion.StatusAccepted
		}
		resps = append(resps, ingestion.IngestResponse{Location: rec.Location, Status: status})
		events = append(events, kafka.Event{
			Key: rec.Location,
			Value: ingestion.IngestEvent{
				Location:   rec.Location,
				ModTime:    rec.ModTime,
				IngestedAt: p.now().UTC(),
			},
		})
	}
	if err := p.producer.Publish(ctx, events...); err != nil {
		p.logger.Error("documents stored but not queued", "count", len(events), "error", err)
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusServiceUnavailable,
			"%d documents stored but not queued for indexing, retry the request", len(events))
	}
	return resps, nil
}
