package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
)

// maxLatencies bounds the latency window used for percentiles.
const maxLatencies = 10000

// Stats is a point-in-time view of an Aggregator.
type Stats struct {
	TotalSearches     int64        `json:"total_searches"`
	FirstPages        int64        `json:"first_pages"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResults       int64        `json:"zero_results"`
	TimedOut          int64        `json:"timed_out"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Since             time.Time    `json:"since"`
	CapturedAt        time.Time    `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator accumulates SearchEvents. Query popularity counts first pages
// only, so paging through one result set counts once.
type Aggregator struct {
	mu          sync.Mutex
	topN        int
	now         func() time.Time
	since       time.Time
	total       int64
	firstPages  int64
	cacheHits   int64
	cacheMisses int64
	zero        int64
	timedOut    int64
	latencies   []int64
	next        int
	queries     map[string]int64
	zeroQueries map[string]int64
	logger      *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	a := &Aggregator{
		topN:        topN,
		now:         time.Now,
		latencies:   make([]int64, 0, 1024),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
	a.since = a.now()
	return a
}

// NormalizeQuery folds whitespace so equivalent queries count together.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func (a *Aggregator) Record(e SearchEvent) {
	q := NormalizeQuery(e.Query)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	switch e.Cache {
	case "hit":
		a.cacheHits++
	case "miss":
		a.cacheMisses++
	}
	if e.TimedOut {
		a.timedOut++
	}
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % maxLatencies
	}
	if e.Resumed || q == "" {
		return
	}
	a.firstPages++
	a.queries[q]++
	if e.Found == 0 && !e.TimedOut {
		a.zero++
		a.zeroQueries[q]++
	}
}

// HandleEvent returns a MessageHandler feeding a. Undecodable events are
// dropped.
func HandleEvent(a *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			a.logger.Error("failed to decode search event", "key", string(key), "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	st := Stats{
		TotalSearches:     a.total,
		FirstPages:        a.firstPages,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResults:       a.zero,
		TimedOut:          a.timedOut,
		TopQueries:        topN(a.queries, a.topN),
		ZeroResultQueries: topN(a.zeroQueries, a.topN),
		Since:             a.since.UTC(),
		CapturedAt:        now.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		st.AvgLatencyMs = float64(sum) / float64(len(sorted))
		st.P50LatencyMs = percentile(sorted, 50)
		st.P95LatencyMs = percentile(sorted, 95)
		st.P99LatencyMs = percentile(sorted, 99)
	}
	if minutes := now.Sub(a.since).Minutes(); minutes > 0 {
		st.QueriesPerMinute = float64(a.total) / minutes
	}
	return st
}

// Restore seeds the counters from a snapshot taken before a restart.
// Latencies are not carried over.
func (a *Aggregator) Restore(st Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += st.TotalSearches
	a.firstPages += st.FirstPages
	a.cacheHits += st.CacheHits
	a.cacheMisses += st.CacheMisses
	a.zero += st.ZeroResults
	a.timedOut += st.TimedOut
	for _, qc := range st.TopQueries {
		a.queries[qc.Query] += qc.Count
	}
	for _, qc := range st.ZeroResultQueries {
		a.zeroQueries[qc.Query] += qc.Count
	}
	if !st.Since.IsZero() && st.Since.Before(a.since) {
		a.since = st.Since
	}
	a.logger.Info("analytics restored from snapshot", "total_searches", st.TotalSearches, "captured_at", st.CapturedAt)
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[min(pct*len(sorted)/100, len(sorted)-1)]
}

func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(x, y QueryCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Query, y.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
