// Package collector ships search events from the search service to Kafka in
// batches, off the request path.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
)

// BatchCollector buffers events and publishes them when batchSize events
// are waiting or every flushInterval. A failed batch is kept for the next
// flush up to three batches' worth; older events are dropped beyond that.
type BatchCollector struct {
	pub           kafka.Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	kick          chan struct{}
	logger        *slog.Logger
}

func NewBatchCollector(pub kafka.Publisher, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		pub:           pub,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		kick:          make(chan struct{}, 1),
		logger:        slog.Default().With("component", "search-event-collector"),
	}
}

// Track queues e. It never blocks on Kafka.
func (bc *BatchCollector) Track(e analytics.SearchEvent) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: analytics.NormalizeQuery(e.Query), Value: e})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()
	if full {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

// Run flushes until ctx is cancelled, then makes a final flush bounded by
// five seconds.
func (bc *BatchCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(bc.flushInterval)
	defer ticker.Stop()
	bc.logger.Info("search event collector started", "batch_size", bc.batchSize, "flush_interval", bc.flushInterval)
	for {
		select {
		case <-ticker.C:
			bc.Flush(ctx)
		case <-bc.kick:
			bc.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			bc.Flush(final)
			cancel()
			return
		}
	}
}

// BufferLen reports how many events wait for the next flush.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.pub.Publish(ctx, batch...); err != nil {
		bc.logger.Error("search event flush failed", "events", len(batch), "error", err)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if limit := bc.batchSize * 3; len(bc.buffer) > limit {
			dropped := len(bc.buffer) - limit
			bc.buffer = bc.buffer[dropped:]
			bc.logger.Warn("search event buffer overflow", "dropped", dropped)
		}
		bc.mu.Unlock()
		return
	}
	bc.logger.Debug("search events flushed", "events", len(batch))
}
