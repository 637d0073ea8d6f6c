// Command idxdump prints the contents of index segments: the summary
// record, every key in readable form and, on request, posting lists,
// documents and sentences.
//
// Usage:
//
//	idxdump [-index dir] [-postings] [-docs] [-sentences] [segment ...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxdump: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}

type dumpOptions struct {
	postings  bool
	docs      bool
	sentences bool
	keys      bool
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("idxdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	indexDir := fs.String("index", "", "index directory (overrides index.dir)")
	prefix := fs.String("prefix", "", "three-letter segment prefix (overrides index.prefix)")
	var opts dumpOptions
	fs.BoolVar(&opts.keys, "keys", true, "list posting keys")
	fs.BoolVar(&opts.postings, "postings", false, "print posting lists")
	fs.BoolVar(&opts.docs, "docs", false, "print document records")
	fs.BoolVar(&opts.sentences, "sentences", false, "print stored sentences")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	logger.SetupWriter(stderr, "warn", "text")

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
	dir, err := indexdir.OpenPath(cfg.Index.Dir, cfg.Index.Prefix, false)
	if err != nil {
		return err
	}
	defer dir.Close()

	names := fs.Args()
	if len(names) == 0 {
		names = dir.Segments()
	}
	for _, name := range names {
		r, err := dir.SegmentByName(name)
		if err != nil {
			return err
		}
		if err := dump(stdout, r, opts); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func dump(w io.Writer, r *segment.Reader, opts dumpOptions) error {
	info, err := r.Info()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "== %s created %s docs %d terms %d records %d\n",
		r.Name(), r.CreatedAt().Format("2006-01-02 15:04:05"), info.Docs, info.Terms, r.Len())

	for i := 0; i < r.Len(); i++ {
		key := r.Key(i)
		if key == "" {
			continue
		}
		tag := key[0]
		switch {
		case tag == segment.TagSentence:
			if !opts.sentences {
				continue
			}
			docID, sentID, err := segment.DecodeSentenceKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "sent(%d,%d)\t%s\n", docID, sentID, r.Value(i))
		case tag == segment.TagDoc:
			if !opts.docs {
				continue
			}
			docID, err := segment.DecodeDocInfoKey(key)
			if err != nil {
				return err
			}
			mtime, loc, err := segment.DecodeDocValue(r.Value(i))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "doc(%d)\tmtime %d\t%s\n", docID, mtime, loc)
		case tag == segment.TagLocation || tag == segment.TagInfo:
			continue
		default:
			if !opts.keys && !opts.postings {
				continue
			}
			display, err := segment.DecodeKey(key)
			if err != nil {
				return err
			}
			if !opts.postings {
				fmt.Fprintln(w, display)
				continue
			}
			list, err := segment.DecodePosting(r.Value(i))
			if err != nil {
				return fmt.Errorf("%s: %w", display, err)
			}
			pairs := make([]string, len(list))
			for j, p := range list {
				pairs[j] = fmt.Sprintf("%d:%d", p.DocID, p.Pos)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", display, len(list), strings.Join(pairs, " "))
		}
	}
	return nil
}
