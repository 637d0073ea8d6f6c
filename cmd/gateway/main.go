// Command gateway is the authenticated entry point for external clients. It
// validates API keys against the key store, applies each key's rate limit and
// proxies to the search, ingestion and analytics services.
//
// Usage:
//
//	gateway [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/auth/apikey"
	gwhandler "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/health"
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
	slog.Info("starting gateway service",
		"port", cfg.Gateway.Port,
		"searcher_url", cfg.Gateway.SearcherURL,
		"ingestion_url", cfg.Gateway.IngestionURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := database.Open(ctx, cfg, cfg.Gateway.KeyStore)
	if err != nil {
		slog.Error("failed to open key store", "error", err)
		os.Exit(1)
	}
	defer closeDB()
	keys, err := apikey.NewStore(db, cfg.Gateway.KeyStore)
	if err == nil {
		err = keys.EnsureSchema(ctx)
	}
	if err != nil {
		slog.Error("failed to prepare key store", "error", err)
		os.Exit(1)
	}

	h, err := gwhandler.New(gwhandler.Config{
		SearcherURL:  cfg.Gateway.SearcherURL,
		IngestionURL: cfg.Gateway.IngestionURL,
		AnalyticsURL: cfg.Gateway.AnalyticsURL,
	}, keys)
	if err != nil {
		slog.Error("invalid gateway configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	probe := &http.Client{Timeout: 3 * time.Second}
	checker := health.NewChecker()
	checker.Register("keystore", health.PingCheck(db.PingContext, true))
	checker.Register("searcher", health.HTTPCheck(probe, healthURL(cfg.Gateway.SearcherURL), true))
	checker.Register("ingestion", health.HTTPCheck(probe, healthURL(cfg.Gateway.IngestionURL), false))
	if cfg.Gateway.AnalyticsURL != "" {
		checker.Register("analytics", health.HTTPCheck(probe, healthURL(cfg.Gateway.AnalyticsURL), false))
	}

	limiter := middleware.NewLimiter(0, time.Minute)
	go limiter.RunPruner(ctx)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: router.New(h, keys, limiter, router.Options{
			CORSOrigins: cfg.Server.CORSOrigins,
			Timeout:     cfg.Server.WriteTimeout,
			Metrics:     m,
			Health:      checker,
		}),
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

	slog.Info("gateway service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway service stopped")
}

func healthURL(base string) string {
	return strings.TrimRight(base, "/") + "/health/live"
}
