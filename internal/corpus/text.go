package corpus

import (
	"iter"
	"regexp"
	"strings"
)

var (
	// A sentence ends at CJK or ASCII terminal punctuation, or at a line
	// break that does not follow a hyphen, space, comma or word character.
	plainEOS = regexp.MustCompile(`[。．！？!?]|[^- ,\p{L}\p{N}_]\n`)
	htmlEOS  = regexp.MustCompile(`[。．！？!?]`)
	preEOS   = regexp.MustCompile(`[。．！？!?\n]`)
)

// splitSentences yields the pieces of text ending at each eos match,
// followed by the remainder.
func splitSentences(text string, eos *regexp.Regexp, yield func(string) bool) bool {
	pos := 0
	for _, m := range eos.FindAllStringIndex(text, -1) {
		if !yield(text[pos:m[1]]) {
			return false
		}
		pos = m[1]
	}
	return yield(text[pos:])
}

// PlainTextDocument splits its text into sentences at terminal punctuation.
type PlainTextDocument struct {
	base
}

func NewPlainText(src Source) (Document, error) {
	return &PlainTextDocument{base{src: src}}, nil
}

func (d *PlainTextDocument) Sentences() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text := Decode(d.src.Data, d.src.Encoding)
		splitSentences(text, plainEOS, func(s string) bool { return yield(s, nil) })
	}
}

// SourceCodeDocument treats every line as a sentence.
type SourceCodeDocument struct {
	base
}

func NewSourceCode(src Source) (Document, error) {
	return &SourceCodeDocument{base{src: src}}, nil
}

func (d *SourceCodeDocument) Sentences() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text := Decode(d.src.Data, d.src.Encoding)
		for line := range strings.Lines(text) {
			if !yield(line, nil) {
				return
			}
		}
	}
}
