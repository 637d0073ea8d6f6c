// Package merger compacts the segments of an index into fewer, larger ones.
// DocIDs are renumbered so every location appears once in the output, keeping
// the identity of its newest revision.
package merger

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
)

// EstimateTerms guesses the number of distinct terms in the union of
// segments with the given term counts, assuming a quarter of each new
// segment's terms are already known.
func EstimateTerms(terms []int) int {
	total := 0
	for _, n := range terms {
		total += max(n-total/4, 0)
	}
	return total
}

// Merger rewrites the segments of one index directory. It must be the only
// writer of the directory while it runs.
type Merger struct {
	dir     *indexdir.Directory
	cfg     config.MergerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(dir *indexdir.Directory, cfg config.MergerConfig, m *metrics.Metrics) *Merger {
	return &Merger{
		dir:     dir,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "merger"),
	}
}

type batch struct {
	names []string
	docs  int
	terms []int
}

// Run groups the segments oldest first into batches bounded by the doc and
// term thresholds and replaces each batch by one segment. Output segments
// are numbered from 0 so the result stays ordered by age.
func (m *Merger) Run(ctx context.Context) error {
	if err := m.dir.Refresh(); err != nil {
		return err
	}
	names := m.dir.Segments()
	var (
		cur   batch
		outID int
	)
	for i := len(names) - 1; i >= 0; i-- {
		r, err := m.dir.SegmentByName(names[i])
		if err != nil {
			return err
		}
		info, err := r.Info()
		if err != nil {
			return err
		}
		if (m.cfg.MaxDocs > 0 && m.cfg.MaxDocs < cur.docs) ||
			(m.cfg.MaxTerms > 0 && m.cfg.MaxTerms < EstimateTerms(cur.terms)) {
			if err := m.flush(ctx, outID, cur.names); err != nil {
				return err
			}
			outID++
			cur = batch{}
		}
		cur.names = append(cur.names, names[i])
		cur.docs += info.Docs
		cur.terms = append(cur.terms, info.Terms)
	}
	if err := m.flush(ctx, outID, cur.names); err != nil {
		return err
	}
	if m.cfg.Cleanup {
		if err := m.Cleanup(); err != nil {
			return err
		}
	}
	if err := m.dir.Refresh(); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.SegmentCount.Set(float64(m.dir.Len()))
	}
	return nil
}

// flush replaces the segments in names, oldest first, by segment id.
func (m *Merger) flush(ctx context.Context, id int, names []string) error {
	if len(names) == 0 {
		return nil
	}
	output := m.dir.SegmentName(id)
	if len(names) == 1 {
		if names[0] == output {
			m.logger.Debug("segment remains", "segment", output)
			return nil
		}
		m.logger.Info("renaming segment", "from", names[0], "to", output)
		return m.dir.Rename(names[0], output)
	}

	start := time.Now()
	inputs := make([]*segment.Reader, len(names))
	for i, name := range names {
		r, err := m.dir.SegmentByName(name)
		if err != nil {
			return err
		}
		inputs[i] = r
	}
	w, err := m.dir.NewSegmentWriter(id)
	if err != nil {
		return fmt.Errorf("creating merged segment: %w", err)
	}
	info, err := MergeSegments(ctx, inputs, w)
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		w.Abort()
		m.recordMerge("error")
		return fmt.Errorf("merging into %s: %w", output, err)
	}
	for _, name := range names {
		if err := m.dir.Backup(name); err != nil {
			w.Abort()
			m.recordMerge("error")
			return err
		}
	}
	if err := w.Publish(); err != nil {
		m.recordMerge("error")
		return fmt.Errorf("publishing %s: %w", output, err)
	}
	m.dir.Evict(output)
	m.recordMerge("success")
	m.logger.Info("segments merged",
		"segment", output,
		"inputs", len(names),
		"docs", info.Docs,
		"terms", info.Terms,
		"duration", time.Since(start),
	)
	return nil
}

func (m *Merger) recordMerge(status string) {
	if m.metrics != nil {
		m.metrics.MergesTotal.WithLabelValues(status).Inc()
	}
}

// Cleanup removes the segments retired by earlier merges.
func (m *Merger) Cleanup() error {
	return m.dir.Cleanup()
}

// input is one segment being merged with its DocID translation.
type input struct {
	r *segment.Reader
	// age is 0 for the newest input.
	age     int
	old2new []int32
	stale   *roaring.Bitmap
	next    int
}

func (in *input) remap(docID int32) (int32, bool) {
	if docID <= 0 || int(docID) >= len(in.old2new) || in.stale.Contains(uint32(docID)) {
		return 0, false
	}
	id := in.old2new[docID]
	return id, id != 0
}

type docRecord struct {
	id  int32
	loc string
}

// MergeSegments writes the union of inputs, given oldest first, to w. Each
// location keeps one DocID, taken from its newest occurrence; older
// occurrences are dropped along with their postings and sentences. Output
// DocIDs run from 1 with the newest documents highest. w is not closed.
func MergeSegments(ctx context.Context, inputs []*segment.Reader, w *segment.Writer) (segment.Info, error) {
	ins := make([]*input, len(inputs))
	for i, r := range inputs {
		ins[i] = &input{r: r, age: len(inputs) - 1 - i, stale: roaring.New()}
	}

	// Pass 1: newest first, hand out sequence numbers in descending DocID
	// order. DocID n+1-seq then makes the newest documents highest.
	loc2seq := make(map[string]int32)
	var seq int32
	for i := len(ins) - 1; i >= 0; i-- {
		in := ins[i]
		var docs []docRecord
		var derr error
		maxID := int32(0)
		in.r.Scan(string([]byte{segment.TagDoc}), func(key string, value []byte) bool {
			id, err := segment.DecodeDocInfoKey(key)
			if err != nil {
				derr = err
				return false
			}
			_, loc, err := segment.DecodeDocValue(value)
			if err != nil {
				derr = err
				return false
			}
			docs = append(docs, docRecord{id: id, loc: loc})
			maxID = max(maxID, id)
			return true
		})
		if derr != nil {
			return segment.Info{}, fmt.Errorf("%s: %w", in.r.Name(), derr)
		}
		in.old2new = make([]int32, maxID+1)
		for j := len(docs) - 1; j >= 0; j-- {
			d := docs[j]
			if _, seen := loc2seq[d.loc]; seen {
				in.stale.Add(uint32(d.id))
				continue
			}
			seq++
			loc2seq[d.loc] = seq
			in.old2new[d.id] = seq
		}
	}
	n := seq
	for _, in := range ins {
		for old, s := range in.old2new {
			if s != 0 {
				in.old2new[old] = n + 1 - s
			}
		}
		if !in.stale.IsEmpty() {
			slog.Debug("dropping stale revisions", "segment", in.r.Name(), "docs", in.stale.GetCardinality())
		}
	}

	// Pass 2: co-iterate the sorted key spaces.
	h := make(keyHeap, 0, len(ins))
	for _, in := range ins {
		if in.r.Len() > 0 {
			h = append(h, in)
		}
	}
	heap.Init(&h)
	terms := 0
	group := make([]*input, 0, len(ins))
	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return segment.Info{}, err
		}
		key := h[0].r.Key(h[0].next)
		group = group[:0]
		for h.Len() > 0 && h[0].r.Key(h[0].next) == key {
			group = append(group, h[0])
			h[0].next++
			if h[0].next < h[0].r.Len() {
				heap.Fix(&h, 0)
			} else {
				heap.Pop(&h)
			}
		}
		added, err := mergeKey(key, group, w)
		if err != nil {
			return segment.Info{}, err
		}
		if added {
			terms++
		}
	}

	for loc, s := range loc2seq {
		if loc == "" {
			continue
		}
		if err := w.Add(segment.LocationKey(loc), segment.EncodeDocID(n+1-s)); err != nil {
			return segment.Info{}, err
		}
	}
	info := segment.Info{Docs: int(n), Terms: terms}
	if err := w.SetInfo(info); err != nil {
		return segment.Info{}, err
	}
	return info, nil
}

// mergeKey writes the merged record for key, found at the current position
// of every input in group. It reports whether a posting list was written.
func mergeKey(key string, group []*input, w *segment.Writer) (bool, error) {
	switch key[0] {
	case segment.TagLocation, segment.TagInfo:
		return false, nil
	case segment.TagSentence:
		docID, sentID, err := segment.DecodeSentenceKey(key)
		if err != nil {
			return false, err
		}
		for _, in := range group {
			if id, ok := in.remap(docID); ok {
				if err := w.Add(segment.SentenceKey(id, sentID), in.r.Value(in.next-1)); err != nil {
					return false, err
				}
			}
		}
		return false, nil
	case segment.TagDoc:
		docID, err := segment.DecodeDocInfoKey(key)
		if err != nil {
			return false, err
		}
		for _, in := range group {
			if id, ok := in.remap(docID); ok {
				if err := w.Add(segment.DocInfoKey(id), in.r.Value(in.next-1)); err != nil {
					return false, err
				}
			}
		}
		return false, nil
	}

	// Newest input first keeps the concatenation in descending order.
	ordered := slices.Clone(group)
	slices.SortFunc(ordered, func(a, b *input) int { return a.age - b.age })
	var merged index.List
	for _, in := range ordered {
		pairs, err := segment.DecodePosting(in.r.Value(in.next - 1))
		if err != nil {
			return false, fmt.Errorf("%s: key %q: %w", in.r.Name(), key, err)
		}
		for _, p := range pairs {
			if id, ok := in.remap(p.DocID); ok {
				merged = append(merged, index.Pair{DocID: id, Pos: p.Pos})
			}
		}
	}
	if len(merged) == 0 {
		return false, nil
	}
	if err := w.AddPosting(key, merged); err != nil {
		return false, err
	}
	return true, nil
}

// keyHeap orders inputs by their current key.
type keyHeap []*input

func (h keyHeap) Len() int { return len(h) }

func (h keyHeap) Less(i, j int) bool {
	ki, kj := h[i].r.Key(h[i].next), h[j].r.Key(h[j].next)
	if ki != kj {
		return ki < kj
	}
	return h[i].age < h[j].age
}

func (h keyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *keyHeap) Push(x interface{}) {
	*h = append(*h, x.(*input))
}

func (h *keyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
