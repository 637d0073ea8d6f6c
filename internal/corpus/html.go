package corpus

import (
	"io"
	"iter"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var breakTags = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Dd: true,
	atom.Dt: true, atom.Td: true, atom.Th: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Title: true,
	atom.Pre: true, atom.Blockquote: true, atom.Address: true,
}

var ignoreTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true,
}

// HTMLDocument extracts the text of an HTML page. Block-level elements end
// a sentence; script and style contents are skipped.
type HTMLDocument struct {
	base
}

func NewHTML(src Source) (Document, error) {
	return &HTMLDocument{base{src: src}}, nil
}

func (d *HTMLDocument) Sentences() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text := Decode(d.src.Data, d.src.Encoding)
		ripHTML(strings.NewReader(text), func(s string) bool { return yield(s, nil) })
	}
}

// ripHTML streams the sentences of an HTML document to yield.
func ripHTML(r io.Reader, yield func(string) bool) {
	z := html.NewTokenizer(r)
	var buf strings.Builder
	eos := htmlEOS
	ignore := 0
	flush := func() bool {
		s := buf.String()
		buf.Reset()
		return yield(s)
	}
	characters := func(data string) bool {
		for {
			loc := eos.FindStringIndex(data)
			if loc == nil {
				buf.WriteString(data)
				return true
			}
			buf.WriteString(data[:loc[1]])
			if !flush() {
				return false
			}
			data = data[loc[1]:]
		}
	}
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return
		case html.TextToken:
			if ignore > 0 {
				continue
			}
			if !characters(string(z.Text())) {
				return
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if ignoreTags[tok.DataAtom] {
				if tt == html.StartTagToken {
					ignore++
				}
				continue
			}
			if breakTags[tok.DataAtom] && !flush() {
				return
			}
			switch tok.DataAtom {
			case atom.Pre:
				eos = preEOS
			case atom.Img:
				for _, a := range tok.Attr {
					if a.Key == "alt" && a.Val != "" {
						buf.WriteString("[" + a.Val + "]")
					}
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			if ignoreTags[tok.DataAtom] {
				if ignore > 0 {
					ignore--
				}
				continue
			}
			if breakTags[tok.DataAtom] && !flush() {
				return
			}
			if tok.DataAtom == atom.Pre {
				eos = htmlEOS
			}
		}
	}
}
