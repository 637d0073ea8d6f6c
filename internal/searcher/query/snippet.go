package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// SnippetOptions bounds the text around each matched sentence.
type SnippetOptions struct {
	// MaxSentences is the number of sentences read from each match.
	MaxSentences int
	// MaxChars caps the whole snippet, in characters.
	MaxChars int
	// MaxMargin is the context kept left and right of a highlight.
	MaxMargin int
}

var DefaultSnippetOptions = SnippetOptions{MaxSentences: 3, MaxChars: 100, MaxMargin: 20}

// part is a run of text inside (depth > 0) or outside the matches.
type part struct {
	depth int
	text  string
}

type edge struct {
	pos   int
	delta int
}

// matchedRanges cuts s at the bounds of every positive predicate's matches.
// The first and last parts are always outside a match. It returns a single
// part when nothing matched.
func (s *Selection) matchedRanges(text string) []part {
	var edges []edge
	for _, p := range s.pos {
		for _, m := range p.Extract(text) {
			if m[0] < m[1] {
				edges = append(edges, edge{m[0], 1}, edge{m[1], -1})
			}
		}
	}
	if len(edges) == 0 {
		return []part{{text: text}}
	}
	slices.SortFunc(edges, func(a, b edge) int {
		return cmp.Or(cmp.Compare(a.pos, b.pos), cmp.Compare(a.delta, b.delta))
	})
	parts := make([]part, 0, len(edges)+1)
	depth, p0 := 0, 0
	for _, e := range edges {
		parts = append(parts, part{depth: depth, text: text[p0:e.pos]})
		p0 = e.pos
		depth += e.delta
	}
	return append(parts, part{text: text[p0:]})
}

func firstRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		if n--; n == 0 {
			return s[i:]
		}
	}
	return s
}

func (s *Selection) context(r *segment.Reader, docID, from int32) (string, error) {
	opts := s.opts.Snippet
	var sents []string
	chars := 0
	err := r.Sentences(docID, func(sentID int32, text string) bool {
		if sentID < from {
			return true
		}
		sents = append(sents, text)
		chars += utf8.RuneCountInString(text)
		return len(sents) < opts.MaxSentences && chars < opts.MaxChars
	})
	return strings.Join(sents, " "), err
}

// Snippet renders the sentences where hit matched, passing plain text
// through normal and matched text through highlight. A hit without matched
// sentences shows the beginning of its document.
func (s *Selection) Snippet(hit *Hit, normal, highlight func(string) string) (string, error) {
	r, err := s.dir.SegmentByName(hit.Segment)
	if err != nil {
		return "", err
	}
	opts := s.opts.Snippet
	ids := slices.Clone(hit.SentenceIDs)
	if len(ids) == 0 {
		ids = []int32{0}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var b strings.Builder
	for _, id := range ids {
		text, err := s.context(r, hit.DocID, id)
		if err != nil {
			return "", fmt.Errorf("%s: doc %d: %w: %v", hit.Segment, hit.DocID, apperrors.ErrSegmentCorrupted, err)
		}
		parts := s.matchedRanges(text)
		if len(parts) == 1 {
			b.WriteString(normal(firstRunes(text, opts.MaxChars)))
			b.WriteString("...")
		} else {
			b.WriteString("... ")
			b.WriteString(normal(lastRunes(parts[0].text, opts.MaxMargin)))
			for _, p := range parts[1 : len(parts)-1] {
				switch {
				case p.text == "":
				case p.depth > 0:
					b.WriteString(highlight(p.text))
				default:
					b.WriteString(normal(p.text))
				}
			}
			b.WriteString(normal(firstRunes(parts[len(parts)-1].text, opts.MaxMargin)))
			b.WriteString("...")
		}
		if opts.MaxChars-utf8.RuneCountInString(b.String()) < opts.MaxMargin {
			break
		}
	}
	return b.String(), nil
}

// Title returns the first sentence of the hit's document.
func (s *Selection) Title(hit *Hit) (string, error) {
	r, err := s.dir.SegmentByName(hit.Segment)
	if err != nil {
		return "", err
	}
	title, _ := r.Sentence(hit.DocID, 0)
	return title, nil
}
