package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
)

// RateLimit applies each key's own per-minute quota. Requests that carry no
// key info (health checks) pass through.
func RateLimit(l *pkgmw.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil || l.AllowN(info.ID, info.RateLimit) {
				next.ServeHTTP(w, r)
				return
			}
			logger.FromContext(r.Context()).Warn("key rate limit exceeded", "key_id", info.ID, "limit", info.RateLimit)
			pkgmw.TooManyRequests(w, r, l.RetryAfter(info.RateLimit))
		})
	}
}
