package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a token bucket per client key. Each key holds up to limit
// tokens and regains them continuously over window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket and reports whether one was left.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, l.limit)
}

// AllowN is Allow with a per-key limit, for callers whose clients carry
// their own quota.
func (l *Limiter) AllowN(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	capacity := float64(limit)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * capacity / l.window.Seconds()
	b.tokens = min(b.tokens, capacity)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is how long a drained bucket of the given limit takes to
// regain one token.
func (l *Limiter) RetryAfter(limit int) time.Duration {
	return l.window / time.Duration(max(limit, 1))
}

// Prune forgets keys idle for two windows.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	n := 0
	for key, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// RunPruner calls Prune every window until ctx is done.
func (l *Limiter) RunPruner(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// RateLimit rejects requests with 429 once the client address has used up
// its bucket. Health probes are never limited. A nil limiter disables it.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || l.Allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", clientKey(r), "path", r.URL.Path)
			TooManyRequests(w, r, l.RetryAfter(l.limit))
		})
	}
}

// TooManyRequests writes the 429 response shared by the rate limiters.
func TooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	retry := max(1, int(retryAfter.Round(time.Second)/time.Second))
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      "rate limit exceeded",
		"request_id": logger.RequestID(r.Context()),
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
