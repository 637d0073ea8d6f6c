// Command searcher serves the search HTTP API over an index directory.
//
// It listens for segment events on Kafka to pick up new and merged
// segments, caches rendered pages in Redis when available, and exposes
// Prometheus metrics and health probes.
//
// Usage:
//
//	searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	analyticscollector "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/watcher"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Index.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, true)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer dir.Close()
	slog.Info("index opened", "segments", dir.Len())

	var dict *yomi.Dictionary
	if cfg.Yomi.Dictionary != "" {
		dict, err = yomi.Init(ctx, cfg.Yomi.Dictionary)
		if err != nil {
			slog.Warn("reading dictionary unavailable, phonetic queries disabled", "error", err)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}
	m.SegmentCount.Set(float64(dir.Len()))

	var pageCache *cache.PageCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		pageCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	exec := executor.New(dir, cfg.Search, dict, m)

	var inv watcher.Invalidator
	if pageCache != nil {
		inv = pageCache
	}
	hostname, _ := os.Hostname()
	group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, hostname)
	segmentConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SegmentPublished, group, watcher.HandleSegmentEvent(exec, inv))
	defer segmentConsumer.Close()
	go func() {
		if err := segmentConsumer.Start(ctx); err != nil {
			slog.Error("segment consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if dir.Len() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d segments", dir.Len())}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, false)(ctx)
	})

	var handlerOpts []handler.Option
	if cfg.Analytics.Enabled {
		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer events.Close()
		collector := analyticscollector.NewBatchCollector(events, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collectorDone := make(chan struct{})
		go func() {
			collector.Run(ctx)
			close(collectorDone)
		}()
		defer func() { <-collectorDone }()
		handlerOpts = append(handlerOpts, handler.WithTracker(collector))
		slog.Info("search analytics enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	h := handler.New(exec, pageCache, m, handlerOpts...)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.RunPruner(ctx)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
