package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// State is the progress of a Selection.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateExhausted
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateExhausted:
		return "exhausted"
	case StateTimedOut:
		return "timed out"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DocPredicate judges a document by its location before its text is
// verified: negative rejects it, positive accepts it, zero leaves the
// decision to the term predicates.
type DocPredicate func(loc string) int

// SelectionOptions configures a Selection.
type SelectionOptions struct {
	// Disjunctive accepts documents matching any positive predicate instead
	// of all of them.
	Disjunctive bool
	// Timeout bounds the time spent in Step, counted from construction or
	// the last SetTimeout.
	Timeout time.Duration
	// StartLocation starts the search at this document, inclusive.
	StartLocation string
	// EndLocation stops the search before this document.
	EndLocation string
	// Cursor resumes an earlier search; it overrides StartLocation.
	Cursor        string
	DocPredicates []DocPredicate
	Snippet       SnippetOptions
}

// Hit is one accepted document.
type Hit struct {
	Segment     string
	DocID       int32
	Location    string
	ModTime     int64
	SentenceIDs []int32
}

// clue is where one predicate may have matched a candidate.
type clue struct {
	positions []int32
	pred      *Predicate
}

type candidate struct {
	docID int32
	clues []clue
}

// Selection evaluates predicates against the segments of an index, newest
// segment first and highest DocID first within a segment. It is not safe
// for concurrent use.
type Selection struct {
	dir      *indexdir.Directory
	segments []string
	index    uint32
	docs     []int
	pos      []*Predicate
	neg      []*Predicate
	opts     SelectionOptions
	deadline time.Time

	seg      int
	bound    int32
	endSeg   int
	endBound int32

	cands    []candidate
	loaded   bool
	found    int
	narrowed int
	state    State
	logger   *slog.Logger
}

// NewSelection prepares a search of dir. The segment list is fixed at
// construction.
func NewSelection(dir *indexdir.Directory, preds []*Predicate, opts SelectionOptions) (*Selection, error) {
	s := &Selection{
		dir:      dir,
		opts:     opts,
		bound:    startCursor.Bound,
		logger:   slog.Default().With("component", "selection"),
	}
	s.segments = dir.Segments()
	s.index = uint32(xxhash.Sum64String(strings.Join(s.segments, "\x00")))
	if s.opts.Snippet == (SnippetOptions{}) {
		s.opts.Snippet = DefaultSnippetOptions
	}
	for _, p := range preds {
		if p.Negated() {
			s.neg = append(s.neg, p)
		} else {
			s.pos = append(s.pos, p)
		}
	}
	byPriority := func(a, b *Predicate) int { return b.Priority() - a.Priority() }
	slices.SortStableFunc(s.pos, byPriority)
	slices.SortStableFunc(s.neg, byPriority)

	s.docs = make([]int, len(s.segments))
	for i, name := range s.segments {
		r, err := dir.SegmentByName(name)
		if err != nil {
			return nil, err
		}
		info, err := r.Info()
		if err != nil {
			return nil, err
		}
		s.docs[i] = info.Docs
	}

	s.endSeg = len(s.segments) - 1
	if opts.EndLocation != "" {
		seg, docID, err := s.locate(opts.EndLocation)
		if err != nil {
			return nil, err
		}
		s.endSeg, s.endBound = seg, docID
	}
	switch {
	case opts.Cursor != "":
		c, err := DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		if c.Index != s.index || c.Segment > len(s.segments) {
			return nil, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "index changed since the cursor was issued")
		}
		s.seg, s.bound, s.found = c.Segment, c.Bound, c.Found
	case opts.StartLocation != "":
		seg, docID, err := s.locate(opts.StartLocation)
		if err != nil {
			return nil, err
		}
		s.seg, s.bound = seg, docID+1
	}
	s.SetTimeout(opts.Timeout)
	return s, nil
}

// locate finds the newest document indexed at loc.
func (s *Selection) locate(loc string) (int, int32, error) {
	for i := range s.segments {
		r, err := s.reader(i)
		if err != nil {
			return 0, 0, err
		}
		docID, ok, err := r.DocID(loc)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			return i, docID, nil
		}
	}
	return 0, 0, apperrors.Newf(apperrors.ErrLocationNotFound, http.StatusNotFound, "location %q is not indexed", loc)
}

// SetTimeout restarts the time budget. Zero disables it.
func (s *Selection) SetTimeout(d time.Duration) {
	s.opts.Timeout = d
	s.deadline = time.Time{}
	if d > 0 {
		s.deadline = time.Now().Add(d)
	}
}

// Predicates returns the positive predicates followed by the negative ones.
func (s *Selection) Predicates() []*Predicate {
	return append(slices.Clone(s.pos), s.neg...)
}

func (s *Selection) State() State {
	return s.state
}

// Found returns the number of hits, including those before the cursor the
// selection resumed from.
func (s *Selection) Found() int {
	return s.found
}

// Narrowed returns the number of candidates examined.
func (s *Selection) Narrowed() int {
	return s.narrowed
}

// Cursor returns the token resuming after the last examined candidate, or
// "" when the search is exhausted.
func (s *Selection) Cursor() string {
	if s.state == StateExhausted {
		return ""
	}
	return Cursor{Segment: s.seg, Bound: s.bound, Found: s.found, Index: s.index}.Encode()
}

func (s *Selection) reader(seg int) (*segment.Reader, error) {
	return s.dir.SegmentByName(s.segments[seg])
}

// Step examines exactly one candidate. It returns the hit when the
// candidate was accepted, and more is false once the search is exhausted.
// When the time budget runs out after a candidate, the error is
// ErrSearchTimeout and Cursor resumes after that candidate.
func (s *Selection) Step(ctx context.Context) (hit *Hit, more bool, err error) {
	if s.state == StateExhausted {
		return nil, false, nil
	}
	s.state = StateSearching
	for {
		if s.seg >= len(s.segments) || s.seg > s.endSeg {
			s.state = StateExhausted
			return nil, false, nil
		}
		if !s.loaded {
			cands, err := s.candidates()
			if err != nil {
				return nil, true, err
			}
			s.cands, s.loaded = cands, true
		}
		if len(s.cands) > 0 {
			break
		}
		s.seg++
		s.bound = math.MaxInt32
		s.loaded = false
	}

	c := s.cands[0]
	s.cands = s.cands[1:]
	s.bound = c.docID
	hit, err = s.examine(c)
	if err != nil {
		return nil, true, err
	}
	if err := s.expired(ctx); err != nil {
		s.state = StateTimedOut
		s.logger.Debug("search timed out", "segment", s.segments[s.seg], "doc_id", c.docID, "found", s.found)
		return hit, true, err
	}
	return hit, true, nil
}

func (s *Selection) expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", apperrors.ErrSearchTimeout, err)
		}
		return err
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return apperrors.New(apperrors.ErrSearchTimeout, http.StatusGatewayTimeout, "search timed out")
	}
	return nil
}

// Hits iterates over the remaining hits. A timeout is yielded as the final
// error.
func (s *Selection) Hits(ctx context.Context) iter.Seq2[*Hit, error] {
	return func(yield func(*Hit, error) bool) {
		for {
			hit, more, err := s.Step(ctx)
			if hit != nil && !yield(hit, nil) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !more {
				return
			}
		}
	}
}

// Next returns up to n further hits. On timeout it returns the hits found
// so far together with the error.
func (s *Selection) Next(ctx context.Context, n int) ([]*Hit, error) {
	var hits []*Hit
	if n <= 0 {
		return hits, nil
	}
	for hit, err := range s.Hits(ctx) {
		if err != nil {
			return hits, err
		}
		hits = append(hits, hit)
		if len(hits) >= n {
			break
		}
	}
	return hits, nil
}

// Status reports whether every document has been searched and estimates
// the total number of hits from the rate observed so far.
func (s *Selection) Status() (exhausted bool, estimate int) {
	total, searched := 0, 0
	for i, n := range s.docs {
		total += n
		switch {
		case i < s.seg:
			searched += n
		case i == s.seg:
			searched += n - (min(int(s.bound), n+1) - 1)
		}
	}
	if s.state == StateExhausted {
		searched = total
	}
	if searched == total {
		return true, s.found
	}
	return false, s.found + s.found*(total-searched)/max(searched, 1)
}

// candidates computes the documents of the current segment that every
// positive predicate (any, when disjunctive) narrows to and no negative one
// does, highest DocID first.
func (s *Selection) candidates() ([]candidate, error) {
	r, err := s.reader(s.seg)
	if err != nil {
		return nil, err
	}
	hi := min(s.bound-1, int32(s.docs[s.seg]))
	lo := int32(0)
	if s.seg == s.endSeg {
		lo = s.endBound
	}
	if hi <= lo {
		return nil, nil
	}
	inRange := func(p index.Pair) bool { return p.DocID <= hi && p.DocID > lo }

	docs := make(map[int32][]clue)
	if len(s.pos) == 0 {
		for id := hi; id > lo; id-- {
			docs[id] = nil
		}
	}
	seeded := false
	for _, p := range s.pos {
		pairs, err := p.Narrow(r)
		if err != nil {
			return nil, err
		}
		grouped := groupByDoc(pairs.Filter(inRange))
		if len(grouped) == 0 {
			if s.opts.Disjunctive {
				continue
			}
			return nil, nil
		}
		switch {
		case s.opts.Disjunctive:
			for id, positions := range grouped {
				docs[id] = append(docs[id], clue{positions: positions, pred: p})
			}
		case !seeded:
			for id, positions := range grouped {
				docs[id] = []clue{{positions: positions, pred: p}}
			}
		default:
			next := make(map[int32][]clue, len(docs))
			for id, positions := range grouped {
				if prev, ok := docs[id]; ok {
					next[id] = append(prev, clue{positions: positions, pred: p})
				}
			}
			docs = next
		}
		seeded = true
	}

	excluded := roaring.New()
	for _, p := range s.neg {
		pairs, err := p.Narrow(r)
		if err != nil {
			return nil, err
		}
		for _, x := range pairs {
			if inRange(x) {
				excluded.Add(uint32(x.DocID))
			}
		}
	}

	cands := make([]candidate, 0, len(docs))
	for id, clues := range docs {
		if !excluded.Contains(uint32(id)) {
			cands = append(cands, candidate{docID: id, clues: clues})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int { return int(b.docID - a.docID) })
	return cands, nil
}

// groupByDoc collects the sentence positions of each document in
// ascending order.
func groupByDoc(pairs index.List) map[int32][]int32 {
	out := make(map[int32][]int32)
	for i := len(pairs) - 1; i >= 0; i-- {
		p := pairs[i]
		out[p.DocID] = append(out[p.DocID], p.Pos)
	}
	return out
}

// examine applies the document predicates and verifies the clues of c
// against the stored sentences.
func (s *Selection) examine(c candidate) (*Hit, error) {
	r, err := s.reader(s.seg)
	if err != nil {
		return nil, err
	}
	mtime, loc, ok, err := r.Doc(c.docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: doc %d: %w: no document record", r.Name(), c.docID, apperrors.ErrSegmentCorrupted)
	}
	stale, err := s.stale(loc)
	if err != nil || stale {
		return nil, err
	}

	verdict := 0
	for _, dp := range s.opts.DocPredicates {
		if verdict = dp(loc); verdict != 0 {
			break
		}
	}
	s.narrowed++
	var ids []int32
	if verdict == 0 {
		verdict = 1
		for _, cl := range c.clues {
			matched := false
			for _, pos := range cl.positions {
				text, ok := r.Sentence(c.docID, pos)
				if (ok || cl.pred.check == nil) && cl.pred.Check(text) {
					ids = append(ids, pos)
					matched = true
					break
				}
			}
			if !matched && !s.opts.Disjunctive {
				verdict = -1
				break
			}
		}
		if len(c.clues) > 0 && len(ids) == 0 {
			verdict = -1
		}
	}
	if verdict < 0 {
		return nil, nil
	}
	s.found++
	return &Hit{
		Segment:     s.segments[s.seg],
		DocID:       c.docID,
		Location:    loc,
		ModTime:     mtime,
		SentenceIDs: ids,
	}, nil
}

// stale reports whether loc was indexed again in a newer segment.
func (s *Selection) stale(loc string) (bool, error) {
	for i := range s.seg {
		r, err := s.reader(i)
		if err != nil {
			return false, err
		}
		_, ok, err := r.DocID(loc)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
