package corpus

import (
	"bytes"
	"encoding/base64"
	"io"
	"iter"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
)

const (
	maxMessageSize = 1000000
	maxPartDepth   = 8
)

// Headers indexed as "Name: value" sentences ahead of the body.
var indexHeaders = []string{"From", "Subject", "To", "Cc", "Bcc", "Date"}

var msgIDHeaders = []struct {
	name string
	tag  byte
}{
	{"Message-Id", segment.TagMessageID},
	{"In-Reply-To", segment.TagReference},
	{"References", segment.TagReference},
}

var msgIDPattern = regexp.MustCompile(`<([^>]+)>`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func decodeHeader(s string) string {
	d, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return d
}

// EMailDocument is an RFC 5322 message or one text part of it. Messages
// carry Message-ID features and expose their parts as sub-documents.
type EMailDocument struct {
	base
	header    textproto.MIMEHeader
	raw       []byte
	mediaType string
	params    map[string]string
	message   bool
	headers   []string
}

// NewEMail parses a message. Input without a header block is treated as a
// bare body.
func NewEMail(src Source) (Document, error) {
	data := src.Data
	if len(data) > maxMessageSize {
		data = data[:maxMessageSize]
	}
	header, body := parseMessage(data)
	return newMailPart(src, header, body, true), nil
}

func parseMessage(data []byte) (textproto.MIMEHeader, []byte) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return textproto.MIMEHeader{}, data
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return textproto.MIMEHeader(msg.Header), nil
	}
	return textproto.MIMEHeader(msg.Header), body
}

func mediaTypeOf(h textproto.MIMEHeader) (string, map[string]string) {
	ct := h.Get("Content-Type")
	if ct == "" {
		return "text/plain", map[string]string{}
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "text/plain", map[string]string{}
	}
	return mt, params
}

func newMailPart(src Source, h textproto.MIMEHeader, raw []byte, message bool) *EMailDocument {
	mt, params := mediaTypeOf(h)
	d := &EMailDocument{
		header:    h,
		raw:       raw,
		mediaType: mt,
		params:    params,
		message:   message,
	}
	title := ""
	for _, name := range indexHeaders {
		for _, v := range h.Values(name) {
			if v == "" {
				continue
			}
			v = decodeHeader(v)
			d.headers = append(d.headers, name+": "+v)
			switch name {
			case "Date":
				if t, err := mail.ParseDate(v); err == nil {
					src.ModTime = t.Unix()
				}
			case "Subject":
				title = v
			}
		}
	}
	if title == "" {
		title = d.filename()
	}
	if title != "" {
		src.Title = title
	}
	d.src = src
	return d
}

func (d *EMailDocument) filename() string {
	if _, params, err := mime.ParseMediaType(d.header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return decodeHeader(name)
		}
	}
	if name := d.params["name"]; name != "" {
		return decodeHeader(name)
	}
	return ""
}

func (d *EMailDocument) multipart() bool {
	return strings.HasPrefix(d.mediaType, "multipart/")
}

// Headers returns the indexed header lines.
func (d *EMailDocument) Headers() []string {
	return d.headers
}

func (d *EMailDocument) Sentences() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, h := range d.headers {
			if !yield(h, nil) {
				return
			}
		}
		if d.multipart() {
			return
		}
		charset := d.params["charset"]
		if charset == "" {
			charset = DefaultMailCharset
		}
		text := Decode(decodeTransfer(d.header, d.raw), charset)
		emit := func(s string) bool { return yield(s, nil) }
		if d.mediaType == "text/html" {
			ripHTML(strings.NewReader(text), emit)
			return
		}
		splitSentences(text, plainEOS, emit)
	}
}

func (d *EMailDocument) Features() []string {
	feats := d.base.Features()
	if !d.message {
		return feats
	}
	for _, mh := range msgIDHeaders {
		for _, v := range d.header.Values(mh.name) {
			for _, m := range msgIDPattern.FindAllStringSubmatch(v, -1) {
				feats = append(feats, segment.FeatureKey(mh.tag, []byte(m[1])))
			}
		}
	}
	return feats
}

// SubDocuments returns the text, HTML and embedded message parts of a
// multipart message, numbered in depth-first order.
func (d *EMailDocument) SubDocuments() []Document {
	if !d.message || !d.multipart() {
		return nil
	}
	var subs []Document
	n := 0
	var walk func(h textproto.MIMEHeader, raw []byte, depth int)
	walk = func(h textproto.MIMEHeader, raw []byte, depth int) {
		idx := n
		n++
		mt, params := mediaTypeOf(h)
		if strings.HasPrefix(mt, "multipart/") {
			if depth >= maxPartDepth {
				return
			}
			mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
			for {
				p, err := mr.NextRawPart()
				if err != nil {
					return
				}
				body, err := io.ReadAll(p)
				if err != nil {
					return
				}
				walk(p.Header, body, depth+1)
			}
		}
		if idx == 0 {
			return
		}
		src := Source{Location: SubLocation(d.src.Location, idx), ModTime: d.src.ModTime}
		switch {
		case mt == "text/plain", mt == "text/html":
			subs = append(subs, newMailPart(src, h, raw, false))
		case strings.HasPrefix(mt, "message/"):
			header, body := parseMessage(decodeTransfer(h, raw))
			subs = append(subs, newMailPart(src, header, body, true))
		}
	}
	walk(d.header, d.raw, 0)
	return subs
}

// decodeTransfer undoes the Content-Transfer-Encoding of a part body.
func decodeTransfer(h textproto.MIMEHeader, raw []byte) []byte {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(raw))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(raw))
	default:
		return raw
	}
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return raw
	}
	return out
}
