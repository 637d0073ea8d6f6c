// Package cache keeps rendered search pages in Redis. Keys cover the
// request and the segment list it ran against, so publishing or merging
// segments never serves stale pages; Invalidate only reclaims space.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/resilience"
)

const keyPrefix = "search:page:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type PageCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. Store failures trip a circuit breaker;
// while it is open every lookup misses and nothing is written.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *PageCache {
	c := &PageCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "page-cache"),
	}
	cbCfg := resilience.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: 10 * time.Second}
	if m != nil {
		cbCfg.OnStateChange = func(name string, s resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		}
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", cbCfg)
	return c
}

// Key identifies req run against segments.
func Key(segments []string, req executor.Request) string {
	raw := fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%s\x00%s\x00%s\x00%t",
		strings.Join(segments, ","), strings.Join(strings.Fields(req.Query), " "),
		req.Cursor, req.Limit, req.Start, req.End, req.Prefix, req.Disjunctive)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

func (c *PageCache) get(ctx context.Context, key string) (*executor.Page, bool) {
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var page executor.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &page, true
}

func (c *PageCache) set(ctx context.Context, key string, page *executor.Page) {
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *PageCache) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.Inc()
	} else {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// GetOrCompute returns the cached page for key or computes it once for all
// concurrent callers. Timed out pages are returned but not cached.
func (c *PageCache) GetOrCompute(ctx context.Context, key string, compute func() (*executor.Page, error)) (page *executor.Page, cached bool, err error) {
	if page, ok := c.get(ctx, key); ok {
		c.record(true)
		return page, true, nil
	}
	c.record(false)
	v, err, _ := c.group.Do(key, func() (any, error) {
		page, err := compute()
		if err != nil {
			return nil, err
		}
		if !page.TimedOut {
			c.set(ctx, key, page)
		}
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*executor.Page), false, nil
}

// Invalidate deletes every cached page.
func (c *PageCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.DeletePrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *PageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
