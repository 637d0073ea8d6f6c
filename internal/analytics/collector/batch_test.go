package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	batches [][]kafka.Event
}

func (f *fakePublisher) Publish(ctx context.Context, events ...kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestFlushPublishesOneBatch(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 10, time.Hour)
	bc.Track(analytics.SearchEvent{Query: " 検索  エンジン "})
	bc.Track(analytics.SearchEvent{Query: "b"})
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
	assert.Equal(t, "検索 エンジン", pub.batches[0][0].Key)
	assert.Equal(t, 0, bc.BufferLen())

	bc.Flush(context.Background())
	assert.Len(t, pub.batches, 1, "empty buffer publishes nothing")
}

func TestFailedFlushKeepsNewestEvents(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	bc := NewBatchCollector(pub, 2, time.Hour)
	for i := 0; i < 8; i++ {
		bc.Track(analytics.SearchEvent{Query: string(rune('a' + i))})
	}
	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen())

	pub.err = nil
	bc.Flush(context.Background())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "c", pub.batches[0][0].Key)
}

func TestRunFlushesFullBatchAndOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bc.Run(ctx)
		close(done)
	}()

	bc.Track(analytics.SearchEvent{Query: "a"})
	bc.Track(analytics.SearchEvent{Query: "b"})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	bc.Track(analytics.SearchEvent{Query: "c"})
	cancel()
	<-done
	assert.Equal(t, 3, pub.count())
}
