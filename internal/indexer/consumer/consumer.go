// Package consumer connects the indexer to Kafka: ingest events drive
// IndexLocation, and published segments are announced to searchers.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/resilience"
)

// LocationIndexer indexes one corpus location.
type LocationIndexer interface {
	IndexLocation(ctx context.Context, loc string) error
}

// HandleMessage returns a MessageHandler that indexes the location named by
// each ingest event. Events for locations the corpus no longer holds are
// dropped; other failures leave the event uncommitted for redelivery.
func HandleMessage(ix LocationIndexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "key", string(key), "error", err)
			return nil
		}
		if event.Location == "" {
			logger.Warn("ingest event without location", "key", string(key))
			return nil
		}
		if err := ix.IndexLocation(ctx, event.Location); err != nil {
			if errors.Is(err, apperrors.ErrLocationNotFound) {
				logger.Warn("ingested location vanished", "location", event.Location)
				return nil
			}
			return err
		}
		logger.Debug("location indexed", "location", event.Location, "mtime", event.ModTime)
		return nil
	}
}

const publishTimeout = 10 * time.Second

// Notifier announces published segments on the segment topic. Notify never
// blocks the caller; events wait in a buffer until Run publishes them.
type Notifier struct {
	dir    *indexdir.Directory
	pub    kafka.Publisher
	events chan ingestion.SegmentEvent
	logger *slog.Logger
}

func NewNotifier(dir *indexdir.Directory, pub kafka.Publisher) *Notifier {
	return &Notifier{
		dir:    dir,
		pub:    pub,
		events: make(chan ingestion.SegmentEvent, 64),
		logger: slog.Default().With("component", "segment-notifier"),
	}
}

// Notify queues an event for the segment name. It is suitable as the
// indexer's publish hook.
func (n *Notifier) Notify(name string) {
	event := ingestion.SegmentEvent{Segment: name, PublishedAt: time.Now().UTC()}
	if r, err := n.dir.SegmentByName(name); err == nil {
		if info, err := r.Info(); err == nil {
			event.Docs = info.Docs
		}
	}
	select {
	case n.events <- event:
	default:
		n.logger.Warn("segment event dropped, buffer full", "segment", name)
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case event := <-n.events:
			n.publish(ctx, event)
		case <-ctx.Done():
			drain, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case event := <-n.events:
					n.publish(drain, event)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) publish(ctx context.Context, event ingestion.SegmentEvent) {
	err := resilience.WithTimeout(ctx, publishTimeout, "segment announce", func(ctx context.Context) error {
		return n.pub.Publish(ctx, kafka.Event{Key: event.Segment, Value: event})
	})
	if err != nil {
		n.logger.Error("failed to announce segment", "segment", event.Segment, "error", err)
		return
	}
	n.logger.Info("segment announced", "segment", event.Segment, "docs", event.Docs)
}
