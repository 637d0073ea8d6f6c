// Command analytics aggregates search events published by the search
// service: query volume, cache hit rate, latency percentiles, and the most
// frequent and zero-result queries. Totals are snapshotted to SQLite or
// PostgreSQL and served at GET /analytics.
//
// Usage:
//
//	analytics [-config configs/development.yaml]
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/middleware"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port, "store", cfg.Analytics.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator(cfg.Analytics.TopN)
	checker := health.NewChecker()

	var store *aggregator.Store
	if cfg.Analytics.Store != "" {
		db, closeDB, err := database.Open(ctx, cfg, cfg.Analytics.Store)
		if err != nil {
			slog.Error("failed to open analytics store", "error", err)
			os.Exit(1)
		}
		defer closeDB()
		store, err = aggregator.NewStore(db, cfg.Analytics.Store)
		if err == nil {
			err = store.EnsureSchema(ctx)
		}
		if err != nil {
			slog.Error("failed to prepare analytics store", "error", err)
			os.Exit(1)
		}
		if st, ok, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not load previous snapshot", "error", err)
		} else if ok {
			agg.Restore(st)
		}
		checker.Register("store", health.PingCheck(db.PingContext, false))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	group := cfg.Kafka.ConsumerGroup + "-analytics"
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, group, analytics.HandleEvent(agg))
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("search event consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.SearchEvents, "group", group)

	snapshotDone := make(chan struct{})
	if store != nil && cfg.Analytics.SnapshotInterval > 0 {
		go func() {
			store.RunPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			close(snapshotDone)
		}()
	} else {
		close(snapshotDone)
	}

	var lister analytics.SnapshotLister
	if store != nil {
		lister = store
	}
	mux := http.NewServeMux()
	analytics.NewHandler(agg, lister).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-snapshotDone
	slog.Info("analytics service stopped")
}
