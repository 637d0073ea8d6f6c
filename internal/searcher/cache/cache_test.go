package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func TestKey(t *testing.T) {
	segs := []string{"idx00001.seg", "idx00000.seg"}
	req := executor.Request{Query: "apple  pie", Limit: 10}
	k := Key(segs, req)
	assert.True(t, strings.HasPrefix(k, keyPrefix))
	assert.Equal(t, k, Key(segs, executor.Request{Query: " apple pie ", Limit: 10}))
	assert.NotEqual(t, k, Key(segs[:1], req))
	assert.NotEqual(t, k, Key(segs, executor.Request{Query: "apple pie", Limit: 20}))
	assert.NotEqual(t, k, Key(segs, executor.Request{Query: "apple pie", Limit: 10, Cursor: "AAAA"}))
}

func TestGetOrComputeCachesPages(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, metrics.New(nil))
	ctx := context.Background()
	calls := 0
	compute := func() (*executor.Page, error) {
		calls++
		return &executor.Page{Query: "apple", Found: 2, Results: []executor.Result{{Location: "d2"}}}, nil
	}

	page, cached, err := c.GetOrCompute(ctx, "search:page:a", compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, page.Found)

	page, cached, err = c.GetOrCompute(ctx, "search:page:a", compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "d2", page.Results[0].Location)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestTimedOutPagesAreNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), "search:page:t", func() (*executor.Page, error) {
		return &executor.Page{TimedOut: true, Cursor: "abc"}, nil
	})
	require.NoError(t, err)
	assert.Zero(t, store.len())
}

func TestComputeErrorsPropagate(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "search:page:e", func() (*executor.Page, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStoreFailuresFallBackToCompute(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, metrics.New(nil))
	for range 10 {
		page, cached, err := c.GetOrCompute(context.Background(), "search:page:f", func() (*executor.Page, error) {
			return &executor.Page{Found: 1}, nil
		})
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, 1, page.Found)
	}
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.Page, error) {
		calls.Add(1)
		<-release
		return &executor.Page{Found: 7}, nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, _, err := c.GetOrCompute(context.Background(), "search:page:c", compute)
			assert.NoError(t, err)
			assert.Equal(t, 7, page.Found)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = []byte("x")
	c := New(store, time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), Key(nil, executor.Request{Query: "q"}), func() (*executor.Page, error) {
		return &executor.Page{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.len())

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, 1, store.len())
}
