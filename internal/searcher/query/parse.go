package query

import (
	"net/http"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/yomi"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

var (
	termPattern  = regexp.MustCompile(`"[^"]+"|\S+`)
	alphaPattern = regexp.MustCompile(`^[-a-zA-Z]+$`)
)

type queryTerm struct {
	text   string
	quoted bool
}

// ParsePredicates splits a query into at most maxPreds terms. A quoted term
// becomes a strict predicate. When a dictionary is configured and every term
// spells a reading, the terms are searched phonetically; a single
// alphabetic term is then searched both ways, which is reported by
// disjunctive.
func ParsePredicates(q string, maxPreds int, opts Options) (disjunctive bool, preds []*Predicate, err error) {
	var terms []queryTerm
	readable := 0
	for _, s := range termPattern.FindAllString(q, -1) {
		t := queryTerm{text: s}
		if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
			t = queryTerm{text: s[1 : len(s)-1], quoted: true}
		}
		terms = append(terms, t)
		if opts.Dictionary != nil && !t.quoted && yomi.CanBeYomi(t.text) {
			readable++
		}
		if maxPreds > 0 && len(terms) >= maxPreds {
			break
		}
	}
	if len(terms) == 0 {
		return false, nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "empty query")
	}
	if readable == len(terms) {
		if preds, ok := phoneticPredicates(terms, opts); ok {
			return len(preds) > len(terms), preds, nil
		}
	}
	for _, t := range terms {
		newPred := NewPredicate
		if t.quoted {
			newPred = NewStrictPredicate
		}
		p, err := newPred(t.text, opts)
		if err != nil {
			return false, nil, err
		}
		preds = append(preds, p)
	}
	return false, preds, nil
}

// phoneticPredicates builds one phonetic predicate per term, preceded by a
// keyword predicate when the query is a single alphabetic term. It fails
// when a term is too short to carry a reading bigram.
func phoneticPredicates(terms []queryTerm, opts Options) ([]*Predicate, bool) {
	var preds []*Predicate
	if len(terms) == 1 && alphaPattern.MatchString(terms[0].text) {
		p, err := NewPredicate(terms[0].text, opts)
		if err != nil {
			return nil, false
		}
		preds = append(preds, p)
	}
	for _, t := range terms {
		p, err := NewYomiPredicate(t.text, opts)
		if err != nil {
			return nil, false
		}
		preds = append(preds, p)
	}
	return preds, true
}
