// Package watcher keeps a search service in step with the indexer by
// reacting to segment publication events.
package watcher

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
)

// Refresher reloads the segment list.
type Refresher interface {
	Refresh() error
}

// Invalidator drops cached pages.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleSegmentEvent returns a MessageHandler that refreshes r for every
// segment event and then invalidates inv, which may be nil. Undecodable
// events are dropped; a failed refresh leaves the event uncommitted.
func HandleSegmentEvent(r Refresher, inv Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "segment-watcher")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.SegmentEvent](value)
		if err != nil {
			logger.Error("failed to decode segment event", "key", string(key), "error", err)
			return nil
		}
		if err := r.Refresh(); err != nil {
			return err
		}
		if inv != nil {
			if err := inv.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation failed", "segment", event.Segment, "error", err)
			}
		}
		logger.Info("segment observed", "segment", event.Segment, "docs", event.Docs)
		return nil
	}
}
