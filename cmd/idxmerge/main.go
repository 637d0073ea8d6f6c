// Command idxmerge compacts the segments of an index into fewer segments,
// dropping stale revisions of each location, and removes the segments
// retired by earlier merges.
//
// Usage:
//
//	idxmerge [-config file] [-index dir] [-max-docs n] [-max-terms n] [-cleanup-only]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxmerge: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("idxmerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	indexDir := fs.String("index", "", "index directory (overrides index.dir)")
	prefix := fs.String("prefix", "", "three-letter segment prefix (overrides index.prefix)")
	maxDocs := fs.Int("max-docs", 0, "documents per merged segment (overrides merger.maxDocs)")
	maxTerms := fs.Int("max-terms", 0, "estimated terms per merged segment (overrides merger.maxTerms)")
	keep := fs.Bool("keep", false, "keep retired segments instead of removing them")
	cleanupOnly := fs.Bool("cleanup-only", false, "only remove segments retired by earlier merges")
	level := fs.String("log-level", "info", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", apperrors.ErrInvalidInput, fs.Args())
	}
	logger.SetupWriter(stderr, *level, "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *indexDir != "" {
		cfg.Index.Dir = *indexDir
	}
	if *prefix != "" {
		cfg.Index.Prefix = *prefix
	}
	if *maxDocs > 0 {
		cfg.Merger.MaxDocs = *maxDocs
	}
	if *maxTerms > 0 {
		cfg.Merger.MaxTerms = *maxTerms
	}
	if *keep {
		cfg.Merger.Cleanup = false
	}

	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, false)
	if err != nil {
		return err
	}
	defer dir.Close()

	m := merger.New(dir, cfg.Merger, nil)
	if *cleanupOnly {
		return m.Cleanup()
	}
	before := dir.Len()
	if err := m.Run(ctx); err != nil {
		return err
	}
	slog.Info("index merged", "index", cfg.Index.Dir, "segments_before", before, "segments_after", dir.Len())
	return nil
}
