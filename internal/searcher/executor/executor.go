// Package executor runs one page of a search against the index directory:
// it parses the query, resumes the selection from the request cursor and
// renders titles and snippets for the hits.
package executor

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/tracing"
)

// Request is one page request.
type Request struct {
	Query       string `json:"q"`
	Cursor      string `json:"cursor,omitempty"`
	Limit       int    `json:"limit"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	Disjunctive bool   `json:"or,omitempty"`
}

// Result is one hit as returned to clients. Title and Snippet are HTML with
// matches wrapped in <b> unless WithMarkup says otherwise.
type Result struct {
	Location string    `json:"location"`
	Title    string    `json:"title"`
	Snippet  string    `json:"snippet"`
	ModTime  time.Time `json:"mtime"`
	Segment  string    `json:"segment"`
}

// Page is the outcome of a Request.
type Page struct {
	Query      string   `json:"query"`
	Predicates []string `json:"predicates"`
	Results    []Result `json:"results"`
	Found      int      `json:"found"`
	Estimate   int      `json:"estimate"`
	Exhausted  bool     `json:"exhausted"`
	TimedOut   bool     `json:"timed_out"`
	Cursor     string   `json:"cursor,omitempty"`
}

type Executor struct {
	dir       *indexdir.Directory
	cfg       config.SearchConfig
	dict      *yomi.Dictionary
	metrics   *metrics.Metrics
	normal    func(string) string
	highlight func(string) string
	logger    *slog.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithMarkup replaces the HTML rendering of titles and snippets. normal
// renders unmatched text and highlight renders matches.
func WithMarkup(normal, highlight func(string) string) Option {
	return func(e *Executor) {
		e.normal, e.highlight = normal, highlight
	}
}

// New creates an Executor. dict may be nil, which disables phonetic
// queries.
func New(dir *indexdir.Directory, cfg config.SearchConfig, dict *yomi.Dictionary, m *metrics.Metrics, opts ...Option) *Executor {
	e := &Executor{
		dir:       dir,
		cfg:       cfg,
		dict:      dict,
		metrics:   m,
		normal:    html.EscapeString,
		highlight: highlightHTML,
		logger:    slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limit clamps a requested page size to the configured bounds.
func (e *Executor) Limit(n int) int {
	switch {
	case n <= 0:
		return e.cfg.PageSize
	case n > e.cfg.MaxPageSize:
		return e.cfg.MaxPageSize
	}
	return n
}

// Refresh reloads the segment list after segments were published or merged.
func (e *Executor) Refresh() error {
	if err := e.dir.Refresh(); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SegmentCount.Set(float64(e.dir.Len()))
	}
	e.logger.Info("index refreshed", "segments", e.dir.Len())
	return nil
}

// IndexStatus describes the segments the executor searches.
type IndexStatus struct {
	Segments []string  `json:"segments"`
	Docs     int       `json:"docs"`
	ModTime  time.Time `json:"mtime"`
}

// Segments lists the searched segments, newest first.
func (e *Executor) Segments() []string {
	return e.dir.Segments()
}

func (e *Executor) Status() (IndexStatus, error) {
	docs, err := e.dir.TotalDocs()
	if err != nil {
		return IndexStatus{}, err
	}
	mt, err := e.dir.ModTime()
	if err != nil {
		return IndexStatus{}, err
	}
	return IndexStatus{Segments: e.dir.Segments(), Docs: docs, ModTime: mt.UTC()}, nil
}

func (e *Executor) selectionOptions(req Request, disjunctive bool) query.SelectionOptions {
	opts := query.SelectionOptions{
		Disjunctive:   disjunctive || req.Disjunctive || e.cfg.Disjunctive,
		Timeout:       e.cfg.Timeout,
		StartLocation: req.Start,
		EndLocation:   req.End,
		Cursor:        req.Cursor,
		Snippet: query.SnippetOptions{
			MaxSentences: e.cfg.Snippet.MaxSentences,
			MaxChars:     e.cfg.Snippet.MaxChars,
			MaxMargin:    e.cfg.Snippet.MaxMargin,
		},
	}
	if req.Prefix != "" {
		prefix := req.Prefix
		opts.DocPredicates = append(opts.DocPredicates, func(loc string) int {
			if strings.HasPrefix(loc, prefix) {
				return 0
			}
			return -1
		})
	}
	return opts
}

func highlightHTML(s string) string {
	return "<b>" + html.EscapeString(s) + "</b>"
}

// Execute returns the next page of hits for req. Running out of time is not
// an error: the page is marked TimedOut and its cursor resumes the search.
func (e *Executor) Execute(ctx context.Context, req Request) (*Page, error) {
	log := logger.FromContext(ctx)
	page, err := e.execute(ctx, req)
	if e.metrics != nil {
		outcome := "hit"
		switch {
		case err != nil:
			outcome = "error"
		case page.TimedOut:
			outcome = "timeout"
		case len(page.Results) == 0:
			outcome = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			e.metrics.SearchResultsCount.Observe(float64(len(page.Results)))
		}
	}
	if err != nil {
		return nil, err
	}
	log.Debug("query executed",
		"query", req.Query,
		"predicates", page.Predicates,
		"found", page.Found,
		"returned", len(page.Results),
		"timed_out", page.TimedOut,
	)
	return page, nil
}

func (e *Executor) execute(ctx context.Context, req Request) (*Page, error) {
	_, span := tracing.Start(ctx, "parse")
	disjunctive, preds, err := query.ParsePredicates(req.Query, e.cfg.MaxPredicates, query.Options{
		EMail:      e.cfg.EMail,
		Dictionary: e.dict,
	})
	span.SetAttr("predicates", len(preds))
	span.End()
	if err != nil {
		return nil, err
	}
	sel, err := query.NewSelection(e.dir, preds, e.selectionOptions(req, disjunctive))
	if err != nil {
		return nil, err
	}

	page := &Page{Query: req.Query, Results: []Result{}}
	for _, p := range sel.Predicates() {
		page.Predicates = append(page.Predicates, p.String())
	}
	_, span = tracing.Start(ctx, "select")
	hits, err := sel.Next(ctx, e.Limit(req.Limit))
	span.SetAttr("hits", len(hits))
	span.SetAttr("narrowed", sel.Narrowed())
	span.End()
	switch {
	case errors.Is(err, apperrors.ErrSearchTimeout):
		page.TimedOut = true
	case err != nil:
		return nil, err
	}
	_, span = tracing.Start(ctx, "render")
	defer span.End()
	for _, hit := range hits {
		title, err := sel.Title(hit)
		if err != nil {
			return nil, err
		}
		snippet, err := sel.Snippet(hit, e.normal, e.highlight)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, Result{
			Location: hit.Location,
			Title:    e.normal(title),
			Snippet:  snippet,
			ModTime:  time.Unix(hit.ModTime, 0).UTC(),
			Segment:  hit.Segment,
		})
	}
	page.Found = sel.Found()
	page.Exhausted, page.Estimate = sel.Status()
	page.Cursor = sel.Cursor()
	return page, nil
}
