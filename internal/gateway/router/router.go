// Package router assembles the gateway's routes and middleware chain.
package router

import (
	"net/http"
	"time"

	gwhandler "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
)

type Options struct {
	CORSOrigins []string
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Health      *health.Checker
}

// New builds the gateway handler.
//
//	GET    /search, /status           searcher
//	POST   /refresh                   searcher (admin)
//	POST   /documents[/batch]         ingestion
//	GET    /analytics[/snapshots]     analytics
//	POST   /admin/keys                create key (admin)
//	GET    /admin/keys                list keys (admin)
//	DELETE /admin/keys/{id}           revoke key (admin)
//	GET    /health/live, /health/ready
//
// Middleware, outermost first: RequestID, Metrics, CORS, Auth, RateLimit,
// Timeout.
func New(h *gwhandler.Handler, v gwmw.KeyValidator, l *pkgmw.Limiter, opts Options) http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)
	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	var chain http.Handler = mux
	chain = pkgmw.Timeout(opts.Timeout)(chain)
	chain = gwmw.RateLimit(l)(chain)
	chain = gwmw.Auth(v)(chain)
	chain = pkgmw.CORS(opts.CORSOrigins)(chain)
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	return pkgmw.RequestID(chain)
}
