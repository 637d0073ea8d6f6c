// Package query evaluates searches against an index: predicates narrow each
// segment to candidate sentences through posting lists, and a Selection
// combines them, verifies candidates against the stored text and pages
// through the hits.
package query

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// HeaderLimit bounds the sentence positions that hold e-mail headers.
const HeaderLimit = 100

// Matcher finds a predicate's text in a sentence. *regexp.Regexp and
// *yomi.Pattern implement it.
type Matcher interface {
	MatchString(s string) bool
	FindAllStringIndex(s string, n int) [][]int
}

// Kind names the matching strategy of a predicate.
type Kind int

const (
	KindKeyword Kind = iota
	KindStrict
	KindYomi
)

// Options changes how terms are read.
type Options struct {
	// EMail enables header scopes (subject:, from:, ...). Without it title:
	// restricts a term to the document title.
	EMail bool
	// Dictionary resolves kanji readings for phonetic predicates.
	// ParsePredicates reads terms phonetically only when it is set.
	Dictionary *yomi.Dictionary
}

// Predicate is one query term compiled against the key space of a segment.
// It is immutable once built.
type Predicate struct {
	query    string
	kind     Kind
	priority int
	negated  bool

	head   []string
	middle [][]string
	tail   []string
	keep   func(index.Pair) bool

	// check verifies a candidate sentence; nil accepts any stored sentence.
	check Matcher
	// extract finds ranges to highlight.
	extract Matcher
}

var (
	headerPattern = regexp.MustCompile(`(?is)^(title|subject|from|to|cc|rcpt|addr|message-id|references):(.*)$`)
	msgIDPattern  = regexp.MustCompile(`<([^>]+)>`)
	alphabetic    = regexp.MustCompile(`^\|?[\p{L}\p{N}_\s]+\|?$`)
)

var headerNames = map[string]string{
	"rcpt":  "(?:to|cc)",
	"addr":  "(?:from|to|cc)",
	"title": "subject",
}

// NewPredicate reads a keyword term: words and bigrams that must appear in
// one sentence, separated by nothing but punctuation or spaces.
func NewPredicate(term string, opts Options) (*Predicate, error) {
	return newPredicate(term, KindKeyword, opts)
}

// NewStrictPredicate reads a term whose punctuation and symbols must appear
// exactly, with only the spacing left free.
func NewStrictPredicate(term string, opts Options) (*Predicate, error) {
	return newPredicate(term, KindStrict, opts)
}

// NewYomiPredicate reads a romaji or kana term and matches any text with
// that reading.
func NewYomiPredicate(term string, opts Options) (*Predicate, error) {
	return newPredicate(term, KindYomi, opts)
}

func invalid(term, reason string) error {
	return apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, "term %q: %s", term, reason)
}

func newPredicate(term string, kind Kind, opts Options) (*Predicate, error) {
	s := tokenizer.Normalize(term)
	p := &Predicate{query: s, kind: kind}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "!") {
		s = s[1:]
		p.negated = true
	}
	if s == "" {
		return nil, invalid(term, "empty term")
	}
	var err error
	switch {
	case strings.HasPrefix(s, "date:"):
		err = p.setupDate(s[len("date:"):])
	case opts.EMail && headerPattern.MatchString(s):
		err = p.setupHeader(s, opts)
	case strings.HasPrefix(s, "title:"):
		p.keep = func(x index.Pair) bool { return x.Pos == 0 }
		err = p.setupTerm(s[len("title:"):], opts)
	default:
		err = p.setupTerm(s, opts)
	}
	if err != nil {
		return nil, err
	}
	if len(p.head) == 0 && len(p.middle) == 0 && len(p.tail) == 0 {
		return nil, invalid(term, "nothing searchable")
	}
	return p, nil
}

func (p *Predicate) setupDate(expr string) error {
	keys := DateKeys(strings.Split(expr, ","))
	if len(keys) == 0 {
		return invalid(expr, "no valid date range")
	}
	p.priority = 1
	p.head = keys
	return nil
}

func (p *Predicate) setupHeader(s string, opts Options) error {
	m := headerPattern.FindStringSubmatch(s)
	name, value := strings.ToLower(m[1]), m[2]
	p.keep = func(x index.Pair) bool { return x.Pos < HeaderLimit }
	switch name {
	case "message-id":
		if id := msgIDPattern.FindStringSubmatch(value); id != nil {
			p.middle = [][]string{{segment.MessageIDKey(id[1])}}
		}
		return nil
	case "references":
		for _, id := range msgIDPattern.FindAllStringSubmatch(value, -1) {
			p.head = append(p.head, segment.MessageIDKey(id[1]), segment.ReferenceKey(id[1]))
		}
		return nil
	}
	if err := p.setupTerm(value, opts); err != nil {
		return err
	}
	if h, ok := headerNames[name]; ok {
		name = h
	}
	p.check = headerMatcher{prefix: regexp.MustCompile(`(?i)^` + name + `:`), text: p.check}
	return nil
}

// headerMatcher accepts a header line of the given name holding text.
type headerMatcher struct {
	prefix *regexp.Regexp
	text   Matcher
}

func (m headerMatcher) MatchString(s string) bool {
	return m.prefix.MatchString(s) && (m.text == nil || m.text.MatchString(s))
}

func (m headerMatcher) FindAllStringIndex(s string, n int) [][]int {
	if !m.prefix.MatchString(s) || m.text == nil {
		return nil
	}
	return m.text.FindAllStringIndex(s, n)
}

func (p *Predicate) setupTerm(s string, opts Options) error {
	if p.kind == KindYomi {
		return p.setupYomi(s, opts.Dictionary)
	}
	split := tokenizer.QuerySplit(s)
	p.head = wordKeys(split.Head)
	p.tail = wordKeys(split.Tail)
	for _, g := range split.Middle {
		p.middle = append(p.middle, wordKeys(g))
	}

	var parts []string
	for _, c := range tokenizer.SplitChars(s) {
		if c.Class != tokenizer.Transparent {
			parts = append(parts, regexp.QuoteMeta(c.Text))
		}
	}
	if len(parts) == 0 {
		return invalid(s, "no word characters")
	}
	p.extract = regexp.MustCompile(`(?i)` + strings.Join(parts, `[^\p{L}\p{N}_]*`))
	p.check = p.extract
	if p.kind == KindStrict && !alphabetic.MatchString(s) {
		var exact []string
		for _, r := range s {
			if r != ' ' {
				exact = append(exact, regexp.QuoteMeta(string(r)))
			}
		}
		p.check = regexp.MustCompile(strings.Join(exact, `\s*`))
	}
	return nil
}

func (p *Predicate) setupYomi(s string, d *yomi.Dictionary) error {
	y, ok := yomi.FromTerm(s)
	if !ok {
		return invalid(s, "not a reading")
	}
	if d == nil {
		d = yomi.NewDictionary()
	}
	for _, k := range yomi.Keys(y) {
		p.middle = append(p.middle, []string{segment.YomiKey([]byte(k))})
	}
	pat := yomi.NewPattern(y, d)
	p.extract = pat
	p.check = pat
	return nil
}

func wordKeys(terms []tokenizer.Term) []string {
	keys := make([]string, len(terms))
	for i, t := range terms {
		keys[i] = segment.WordKey(t.Boundary, t.Text)
	}
	return keys
}

// Negated reports whether the predicate excludes documents.
func (p *Predicate) Negated() bool {
	return p.negated
}

func (p *Predicate) Priority() int {
	return p.priority
}

func (p *Predicate) Kind() Kind {
	return p.kind
}

// String returns the term as written, wrapped as {term} for phonetic and
// <term> for strict predicates.
func (p *Predicate) String() string {
	switch p.kind {
	case KindYomi:
		return "{" + p.query + "}"
	case KindStrict:
		return "<" + p.query + ">"
	}
	return p.query
}

// Check verifies that sentence holds the predicate's text.
func (p *Predicate) Check(sentence string) bool {
	return p.check == nil || p.check.MatchString(sentence)
}

// Extract returns the byte ranges of sentence to highlight.
func (p *Predicate) Extract(sentence string) [][]int {
	if p.extract == nil {
		return nil
	}
	return p.extract.FindAllStringIndex(sentence, -1)
}

// postings returns the lists of the keys present in r.
func postings(r *segment.Reader, keys []string) ([]index.List, error) {
	var lists []index.List
	for _, k := range keys {
		l, err := r.Postings(k)
		if err != nil {
			return nil, err
		}
		if len(l) > 0 {
			lists = append(lists, l)
		}
	}
	return lists, nil
}

// Narrow returns the (DocID, sentence) pairs of r that may hold the
// predicate, in descending order. Head and tail groups must be present when
// the predicate has them. With a middle group, its intersection is kept
// where every present boundary group confirms it; otherwise the head is
// merged and confined by the tail.
func (p *Predicate) Narrow(r *segment.Reader) (index.List, error) {
	head, err := postings(r, p.head)
	if err != nil {
		return nil, err
	}
	if len(p.head) > 0 && len(head) == 0 {
		return nil, nil
	}
	tail, err := postings(r, p.tail)
	if err != nil {
		return nil, err
	}
	if len(p.tail) > 0 && len(tail) == 0 {
		return nil, nil
	}

	var refs index.List
	switch {
	case len(p.middle) > 0:
		groups := make([]index.List, 0, len(p.middle))
		for _, g := range p.middle {
			lists, err := postings(r, g)
			if err != nil {
				return nil, err
			}
			if len(lists) == 0 {
				return nil, nil
			}
			groups = append(groups, index.Merge(lists...))
		}
		refs = index.Intersect(groups...)
		var confirm [][]index.List
		if len(head) > 0 {
			confirm = append(confirm, head)
		}
		if len(tail) > 0 {
			confirm = append(confirm, tail)
		}
		if len(confirm) > 0 {
			refs = index.Union(refs, confirm...)
		}
	case len(head) > 0 && len(tail) > 0:
		refs = index.Union(index.Merge(head...), tail)
	case len(head) > 0:
		refs = index.Merge(head...)
	default:
		refs = index.Merge(tail...)
	}
	if p.keep != nil {
		refs = refs.Filter(p.keep)
	}
	return refs, nil
}
