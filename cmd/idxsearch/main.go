// Command idxsearch queries an index and prints one page of hits.
//
// When the time budget runs out before the page is full, the hits found so
// far are printed together with a cursor; pass it back with -cursor to
// continue where the search stopped.
//
// Usage:
//
//	idxsearch [-config file] [-index dir] [-n 10] [-cursor c] [-json] query ...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxsearch: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("idxsearch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	indexDir := fs.String("index", "", "index directory (overrides index.dir)")
	prefix := fs.String("prefix", "", "three-letter segment prefix (overrides index.prefix)")
	limit := fs.Int("n", 0, "hits per page (default search.pageSize)")
	cursor := fs.String("cursor", "", "resume a search from this cursor")
	start := fs.String("start", "", "start at this location")
	end := fs.String("end", "", "stop before this location")
	under := fs.String("under", "", "only locations with this prefix")
	or := fs.Bool("or", false, "match any term instead of all terms")
	timeout := fs.Duration("timeout", 0, "time budget (overrides search.timeout)")
	email := fs.Bool("email", false, "enable header scopes such as subject: and from:")
	yomiPath := fs.String("yomi", "", "reading dictionary for phonetic queries (overrides yomi.dictionary)")
	asJSON := fs.Bool("json", false, "print the page as JSON")
	level := fs.String("log-level", "warn", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	q := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: no query given", apperrors.ErrInvalidQuery)
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
	if *timeout > 0 {
		cfg.Search.Timeout = *timeout
	}
	if *email {
		cfg.Search.EMail = true
	}
	if *yomiPath != "" {
		cfg.Yomi.Dictionary = *yomiPath
	}

	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, false)
	if err != nil {
		return err
	}
	defer dir.Close()

	var dict *yomi.Dictionary
	if cfg.Yomi.Dictionary != "" {
		if dict, err = yomi.Init(ctx, cfg.Yomi.Dictionary); err != nil {
			return err
		}
	}

	var opts []executor.Option
	if !*asJSON {
		opts = append(opts, executor.WithMarkup(
			func(s string) string { return s },
			func(s string) string { return "[" + s + "]" },
		))
	}
	exec := executor.New(dir, cfg.Search, dict, nil, opts...)
	page, err := exec.Execute(ctx, executor.Request{
		Query:       q,
		Cursor:      *cursor,
		Limit:       *limit,
		Start:       *start,
		End:         *end,
		Prefix:      *under,
		Disjunctive: *or,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(page); err != nil {
			return err
		}
	} else {
		printPage(stdout, page)
	}
	if page.TimedOut {
		return fmt.Errorf("%w: resume with -cursor %s", apperrors.ErrSearchTimeout, page.Cursor)
	}
	return nil
}

func printPage(w io.Writer, page *executor.Page) {
	for _, r := range page.Results {
		fmt.Fprintf(w, "%s\t%s\n", r.Location, r.ModTime.Local().Format(time.DateTime))
		if r.Title != "" {
			fmt.Fprintf(w, "  %s\n", r.Title)
		}
		fmt.Fprintf(w, "  %s\n", r.Snippet)
	}
	status := fmt.Sprintf("%d hits", page.Found)
	if !page.Exhausted {
		status += fmt.Sprintf(" so far, about %d more", page.Estimate)
	}
	fmt.Fprintf(w, "# %s (%s)\n", status, strings.Join(page.Predicates, " "))
	if page.Cursor != "" {
		fmt.Fprintf(w, "# cursor %s\n", page.Cursor)
	}
}
