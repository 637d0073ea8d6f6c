// Command idxmake builds or updates an index from a corpus.
//
// Every location of the corpus is indexed unless locations are named on
// the command line. Locations already indexed with the same modification
// time are skipped, so rerunning idxmake only picks up changes.
//
// Usage:
//
//	idxmake [-config file] [-index dir] [-corpus dir] [-type T|C|H|E] [location ...]
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

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxmake: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("idxmake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	indexDir := fs.String("index", "", "index directory (overrides index.dir)")
	prefix := fs.String("prefix", "", "three-letter segment prefix (overrides index.prefix)")
	corpusDir := fs.String("corpus", "", "directory of documents; selects the filesystem corpus")
	docType := fs.String("type", "", "document type: T, C, H or E (overrides indexer.docType)")
	encoding := fs.String("encoding", "", "charset of the documents (overrides indexer.encoding)")
	title := fs.Bool("title", false, "use file names as titles")
	maxDocs := fs.Int("max-docs", 0, "documents per segment (overrides indexer.maxDocs)")
	maxTerms := fs.Int("max-terms", 0, "terms per segment (overrides indexer.maxTerms)")
	yomiPath := fs.String("yomi", "", "reading dictionary; adds phonetic bigrams (overrides yomi.dictionary)")
	level := fs.String("log-level", "info", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	logger.SetupWriter(stderr, *level, "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	setString(&cfg.Index.Dir, *indexDir)
	setString(&cfg.Index.Prefix, *prefix)
	setString(&cfg.Indexer.DocType, *docType)
	setString(&cfg.Indexer.Encoding, *encoding)
	setString(&cfg.Yomi.Dictionary, *yomiPath)
	if *maxDocs > 0 {
		cfg.Indexer.MaxDocs = *maxDocs
	}
	if *maxTerms > 0 {
		cfg.Indexer.MaxTerms = *maxTerms
	}
	if *corpusDir != "" {
		cfg.Corpus.Type = "fs"
		cfg.Corpus.Dir = *corpusDir
	}

	var c corpus.Corpus
	if cfg.Corpus.Type == "fs" {
		dt, err := corpus.ParseDocType(cfg.Indexer.DocType)
		if err != nil {
			return err
		}
		fsys, err := storage.OS(cfg.Corpus.Dir, false)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		c = corpus.NewFilesystem(fsys, dt, cfg.Indexer.Encoding, *title)
	} else {
		sc, closeCorpus, err := corpus.OpenSQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeCorpus()
		c = sc
	}

	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, true)
	if err != nil {
		return err
	}
	defer dir.Close()

	var opts []indexer.Option
	if cfg.Yomi.Dictionary != "" {
		dict, err := yomi.Init(ctx, cfg.Yomi.Dictionary)
		if err != nil {
			return err
		}
		opts = append(opts, indexer.WithYomi(dict))
	}
	ix := indexer.New(dir, c, cfg.Indexer, opts...)

	if fs.NArg() == 0 {
		err = ix.IndexAll(ctx)
	} else {
		for _, loc := range fs.Args() {
			if err = ix.IndexLocation(ctx, loc); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}
	if err := ix.Finish(); err != nil {
		return err
	}
	st := ix.Stats()
	slog.Info("index updated",
		"index", cfg.Index.Dir,
		"indexed", st.Indexed,
		"unchanged", st.Unchanged,
		"skipped", st.Skipped,
		"segments_written", st.Segments,
		"segments", dir.Len(),
	)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
