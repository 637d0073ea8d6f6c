// Package analytics aggregates search events into query statistics: volume,
// cache effectiveness, latency percentiles, and the most frequent and
// zero-result queries.
package analytics

import "time"

// SearchEvent describes one answered search page.
type SearchEvent struct {
	Query      string    `json:"query"`
	Predicates []string  `json:"predicates"`
	Found      int       `json:"found"`
	Returned   int       `json:"returned"`
	Resumed    bool      `json:"resumed"`
	TimedOut   bool      `json:"timed_out"`
	Cache      string    `json:"cache"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}
