// Command indexer runs the indexing service: it consumes ingest events from
// Kafka, indexes the named locations from the configured corpus, flushes
// segments on a timer, optionally merges them, and announces every
// published segment so searchers can refresh.
//
// Usage:
//
//	indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
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
	slog.Info("starting indexer service", "index", cfg.Index.Dir, "corpus", cfg.Corpus.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, closeCorpus, err := corpus.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open corpus", "error", err)
		os.Exit(1)
	}
	defer closeCorpus()

	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, true)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer dir.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SegmentPublished)
	defer producer.Close()
	notifier := consumer.NewNotifier(dir, producer)
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	notifierDone := make(chan struct{})
	go func() {
		notifier.Run(notifierCtx)
		close(notifierDone)
	}()

	opts := []indexer.Option{indexer.WithMetrics(m), indexer.WithPublishHook(notifier.Notify)}
	if cfg.Yomi.Dictionary != "" {
		dict, err := yomi.Init(ctx, cfg.Yomi.Dictionary)
		if err != nil {
			slog.Error("failed to load reading dictionary", "error", err)
			os.Exit(1)
		}
		opts = append(opts, indexer.WithYomi(dict))
	}
	ix := indexer.New(dir, c, cfg.Indexer, opts...)
	flushDone := ix.StartFlushLoop(ctx)

	if cfg.Merger.Interval > 0 {
		go mergeLoop(ctx, ix, merger.New(dir, cfg.Merger, m), dir, notifier, cfg.Merger.Interval)
	}

	ingestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, cfg.Kafka.ConsumerGroup, consumer.HandleMessage(ix))
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := ingestConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	if err := ingestConsumer.Close(); err != nil {
		slog.Error("closing consumer", "error", err)
	}

	<-flushDone
	stopNotifier()
	<-notifierDone
	st := ix.Stats()
	slog.Info("indexer service stopped", "indexed", st.Indexed, "unchanged", st.Unchanged, "skipped", st.Skipped, "segments", st.Segments)
}

// mergeLoop compacts the index every interval while indexing is paused and
// announces the resulting newest segment.
func mergeLoop(ctx context.Context, ix *indexer.Indexer, m *merger.Merger, dir *indexdir.Directory, n *consumer.Notifier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := dir.Len()
			if before < 2 {
				continue
			}
			err := ix.Exclusive(func() error { return m.Run(ctx) })
			if err != nil {
				slog.Error("scheduled merge failed", "error", err)
				continue
			}
			if segs := dir.Segments(); len(segs) > 0 && len(segs) != before {
				n.Notify(segs[0])
			}
		}
	}
}
