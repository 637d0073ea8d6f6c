// Package indexer turns corpus documents into index segments. Documents
// accumulate in a memory index that is written out as one immutable
// segment whenever it grows past the configured thresholds.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
)

// Stats counts what an Indexer has done since it was created.
type Stats struct {
	Indexed   int
	Skipped   int
	Unchanged int
	Segments  int
}

// Option customises an Indexer.
type Option func(*Indexer)

// WithYomi adds reading bigrams of every sentence to the index so that
// phonetic queries can narrow on them.
func WithYomi(d *yomi.Dictionary) Option {
	return func(ix *Indexer) { ix.yomi = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// WithPublishHook calls fn with the file name of every published segment.
func WithPublishHook(fn func(name string)) Option {
	return func(ix *Indexer) { ix.onPublish = fn }
}

// Indexer is the single writer of an index directory. Its methods are
// safe for concurrent use; calls are serialised.
type Indexer struct {
	dir       *indexdir.Directory
	corpus    corpus.Corpus
	cfg       config.IndexerConfig
	yomi      *yomi.Dictionary
	metrics   *metrics.Metrics
	onPublish func(name string)
	logger    *slog.Logger

	mu     sync.Mutex
	mem    *index.MemoryIndex
	nextID int
	stats  Stats
}

// New creates an Indexer writing into dir. c may be nil when documents
// are only passed to IndexDocument.
func New(dir *indexdir.Directory, c corpus.Corpus, cfg config.IndexerConfig, opts ...Option) *Indexer {
	ix := &Indexer{
		dir:    dir,
		corpus: c,
		cfg:    cfg,
		mem:    index.NewMemoryIndex(),
		nextID: dir.NextSegmentID(),
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// sentence is one analysed sentence waiting to be added.
type sentence struct {
	pos  int32
	text string
	keys []string
}

// analysis is the complete feature set of one document. It is built
// before anything is added so a failing document leaves no trace.
type analysis struct {
	features  []string
	sentences []sentence
}

func (ix *Indexer) sentenceKeys(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("sentence %q: %w", text, apperrors.ErrTokenize)
	}
	terms := tokenizer.IndexSplit(text)
	keys := make([]string, 0, len(terms))
	for _, t := range terms {
		keys = append(keys, segment.WordKey(t.Boundary, t.Text))
	}
	if ix.yomi != nil {
		for _, k := range yomi.Bigrams(text, ix.yomi) {
			keys = append(keys, segment.YomiKey([]byte(k)))
		}
	}
	return keys, nil
}

func (ix *Indexer) analyze(ctx context.Context, doc corpus.Document) (*analysis, error) {
	a := &analysis{}
	if ix.corpus != nil {
		labels, err := ix.corpus.Labels(ctx, doc.Location())
		if err != nil && !errors.Is(err, apperrors.ErrLocationNotFound) {
			return nil, fmt.Errorf("labels of %s: %w", doc.Location(), err)
		}
		a.features = append(a.features, corpus.LabelFeatures(labels)...)
	}
	a.features = append(a.features, doc.Features()...)

	var pos int32
	add := func(text string) error {
		keys, err := ix.sentenceKeys(text)
		if err != nil {
			return err
		}
		a.sentences = append(a.sentences, sentence{pos: pos, text: text, keys: keys})
		pos++
		return nil
	}
	if title := tokenizer.Normalize(doc.Title()); title != "" {
		if err := add(title); err != nil {
			return nil, err
		}
	}
	for s, err := range doc.Sentences() {
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", doc.Location(), apperrors.ErrDocumentParse, err)
		}
		if ix.cfg.MaxSentences > 0 && int(pos) >= ix.cfg.MaxSentences {
			break
		}
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%s: sentence %d: %w", doc.Location(), pos, apperrors.ErrTokenize)
		}
		s = tokenizer.Normalize(s)
		if s == "" {
			continue
		}
		if err := add(s); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// IndexDocument adds doc and its sub-documents. A document that cannot be
// parsed or tokenized is not added and its error is returned; failing
// sub-documents are skipped.
func (ix *Indexer) IndexDocument(ctx context.Context, doc corpus.Document) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.indexDocument(ctx, doc)
}

func (ix *Indexer) indexDocument(ctx context.Context, doc corpus.Document) error {
	a, err := ix.analyze(ctx, doc)
	if err != nil {
		if isDocumentError(err) {
			ix.skipped(doc.Location(), err)
		}
		return err
	}
	docID := ix.mem.AddDocument(doc.Location(), doc.ModifiedTime())
	ix.mem.AddFeatures(docID, 0, a.features)
	for _, s := range a.sentences {
		ix.mem.AddSentence(docID, s.pos, s.text)
		ix.mem.AddFeatures(docID, s.pos, s.keys)
	}
	ix.stats.Indexed++
	if ix.metrics != nil {
		ix.metrics.DocsIndexedTotal.Inc()
	}
	ix.logger.Debug("document indexed",
		"location", doc.Location(),
		"doc_id", docID,
		"sentences", len(a.sentences),
		"terms", ix.mem.TermCount(),
	)

	if ix.mem.DocCount() >= ix.cfg.MaxDocs || ix.mem.TermCount() >= ix.cfg.MaxTerms {
		ix.logger.Info("memory index reached threshold, flushing",
			"docs", ix.mem.DocCount(),
			"terms", ix.mem.TermCount(),
		)
		if err := ix.flushLocked(); err != nil {
			return err
		}
	}

	for _, sub := range doc.SubDocuments() {
		if err := ix.indexDocument(ctx, sub); err != nil && !isDocumentError(err) {
			return err
		}
	}
	return nil
}

func isDocumentError(err error) bool {
	return errors.Is(err, apperrors.ErrDocumentParse) || errors.Is(err, apperrors.ErrTokenize)
}

func (ix *Indexer) skipped(loc string, err error) {
	ix.stats.Skipped++
	reason := "parse"
	if errors.Is(err, apperrors.ErrTokenize) {
		reason = "tokenize"
	}
	if ix.metrics != nil {
		ix.metrics.DocsSkippedTotal.WithLabelValues(reason).Inc()
	}
	ix.logger.Warn("document skipped", "location", loc, "reason", reason, "error", err)
}

// IndexLocation reads loc from the corpus and indexes it, unless the newest
// segment holding loc already has it at the same modification time.
// Documents that fail to parse are logged and skipped.
func (ix *Indexer) IndexLocation(ctx context.Context, loc string) error {
	if ix.corpus == nil {
		return fmt.Errorf("indexing %s: no corpus configured", loc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	unchanged, err := ix.unchanged(ctx, loc)
	if err != nil {
		return err
	}
	if unchanged {
		ix.stats.Unchanged++
		if ix.metrics != nil {
			ix.metrics.DocsSkippedTotal.WithLabelValues("unchanged").Inc()
		}
		ix.logger.Debug("document unchanged", "location", loc)
		return nil
	}
	doc, err := ix.corpus.Document(ctx, loc)
	if err != nil {
		if isDocumentError(err) {
			ix.skipped(loc, err)
			return nil
		}
		return fmt.Errorf("loading %s: %w", loc, err)
	}
	if err := ix.indexDocument(ctx, doc); err != nil && !isDocumentError(err) {
		return err
	}
	return nil
}

// unchanged reports whether the newest revision of loc, pending or
// published, has the corpus modification time. Callers hold ix.mu.
func (ix *Indexer) unchanged(ctx context.Context, loc string) (bool, error) {
	indexed, ok := ix.mem.Pending(loc)
	if ok {
		indexed = int64(int32(indexed))
	} else {
		seg, docID, found, err := ix.dir.LocationIndexed(loc)
		if err != nil || !found {
			return false, err
		}
		r, err := ix.dir.Segment(seg)
		if err != nil {
			return false, err
		}
		var present bool
		indexed, _, present, err = r.Doc(docID)
		if err != nil || !present {
			return false, err
		}
	}
	mtime, err := ix.corpus.ModifiedTime(ctx, loc)
	if err != nil {
		return false, fmt.Errorf("modification time of %s: %w", loc, err)
	}
	return indexed == int64(int32(mtime)), nil
}

// IndexAll indexes every location of the corpus in its listing order.
func (ix *Indexer) IndexAll(ctx context.Context) error {
	if ix.corpus == nil {
		return fmt.Errorf("indexing corpus: no corpus configured")
	}
	locs, err := ix.corpus.Locations(ctx)
	if err != nil {
		return fmt.Errorf("listing corpus: %w", err)
	}
	for _, loc := range locs {
		if err := ix.IndexLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the memory index as a new segment.
func (ix *Indexer) Flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.flushLocked()
}

func (ix *Indexer) flushLocked() error {
	if ix.mem.DocCount() == 0 {
		return nil
	}
	start := time.Now()
	if next := ix.dir.NextSegmentID(); next > ix.nextID {
		ix.nextID = next
	}
	w, err := ix.dir.NewSegmentWriter(ix.nextID)
	if err != nil {
		ix.flushFailed()
		return fmt.Errorf("creating segment: %w", err)
	}
	if err := ix.write(w); err != nil {
		w.Abort()
		ix.flushFailed()
		return fmt.Errorf("writing segment %s: %w", w.Name(), err)
	}
	if err := w.Commit(); err != nil {
		w.Abort()
		ix.flushFailed()
		return fmt.Errorf("publishing segment %s: %w", w.Name(), err)
	}

	ix.logger.Info("segment flushed",
		"segment", w.Name(),
		"docs", ix.mem.DocCount(),
		"terms", ix.mem.TermCount(),
		"refs", ix.mem.RefCount(),
		"duration", time.Since(start),
	)
	ix.mem.Reset()
	ix.nextID++
	ix.stats.Segments++
	if ix.metrics != nil {
		ix.metrics.IndexFlushesTotal.WithLabelValues("success").Inc()
		ix.metrics.SegmentsPublished.Inc()
	}
	if ix.onPublish != nil {
		ix.onPublish(w.Name())
	}
	return nil
}

func (ix *Indexer) write(w *segment.Writer) error {
	for _, t := range ix.mem.Snapshot() {
		if err := w.AddPosting(t.Key, t.Postings); err != nil {
			return err
		}
	}
	for _, s := range ix.mem.Sentences() {
		if err := w.AddSentence(s.DocID, s.Pos, s.Text); err != nil {
			return err
		}
	}
	for _, d := range ix.mem.Docs() {
		if err := w.AddDoc(d.DocID, d.ModTime, d.Location); err != nil {
			return err
		}
	}
	return w.SetInfo(segment.Info{Docs: ix.mem.DocCount(), Terms: ix.mem.TermCount()})
}

func (ix *Indexer) flushFailed() {
	if ix.metrics != nil {
		ix.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
	}
}

// Finish flushes pending documents and refreshes the directory so the new
// segments become visible.
func (ix *Indexer) Finish() error {
	if err := ix.Flush(); err != nil {
		return err
	}
	if err := ix.dir.Refresh(); err != nil {
		return err
	}
	if ix.metrics != nil {
		ix.metrics.SegmentCount.Set(float64(ix.dir.Len()))
	}
	return nil
}

// Exclusive runs fn while no document is being indexed or flushed. The
// indexer service merges segments this way.
func (ix *Indexer) Exclusive(fn func() error) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return fn()
}

// Pending returns the number of documents not yet flushed.
func (ix *Indexer) Pending() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.mem.DocCount()
}

func (ix *Indexer) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.stats
}

// StartFlushLoop flushes pending documents every FlushInterval until ctx
// is cancelled, then performs a final Finish.
func (ix *Indexer) StartFlushLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	interval := ix.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				ix.logger.Info("flush loop stopping, performing final flush")
				if err := ix.Finish(); err != nil {
					ix.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if ix.Pending() == 0 {
					continue
				}
				if err := ix.Finish(); err != nil {
					ix.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
	return done
}
