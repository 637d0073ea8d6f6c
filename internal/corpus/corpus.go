// Package corpus supplies the documents the indexer reads: where they are
// stored (filesystem, SQL table, memory) and how their bytes become a title,
// sentences and features (plain text, source code, HTML, e-mail).
package corpus

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// Document is one indexable unit. Sentences yields the body text lazily and
// reports a decoding failure as a final error value.
type Document interface {
	Location() string
	Title() string
	Sentences() iter.Seq2[string, error]
	Features() []string
	ModifiedTime() int64
	SubDocuments() []Document
}

// Corpus locates documents by their Location.
type Corpus interface {
	Document(ctx context.Context, loc string) (Document, error)
	Exists(ctx context.Context, loc string) (bool, error)
	ModifiedTime(ctx context.Context, loc string) (int64, error)
	Labels(ctx context.Context, loc string) ([]string, error)
	Locations(ctx context.Context) ([]string, error)
}

// Source is the raw material a DocType turns into a Document.
type Source struct {
	Location string
	Title    string
	ModTime  int64
	Encoding string
	Data     []byte
}

// DocType builds a Document from its source.
type DocType func(src Source) (Document, error)

var docTypes = map[string]DocType{
	"T":          NewPlainText,
	"PlainText":  NewPlainText,
	"C":          NewSourceCode,
	"SourceCode": NewSourceCode,
	"H":          NewHTML,
	"HTML":       NewHTML,
	"E":          NewEMail,
	"EMail":      NewEMail,
}

// ParseDocType resolves a document type by its long or one-letter name.
func ParseDocType(name string) (DocType, error) {
	if name == "" {
		return NewPlainText, nil
	}
	if dt, ok := docTypes[name]; ok {
		return dt, nil
	}
	for k, dt := range docTypes {
		if strings.EqualFold(k, name) {
			return dt, nil
		}
	}
	return nil, fmt.Errorf("document type %q: %w", name, apperrors.ErrInvalidInput)
}

// DateFeatures returns the year, month and day keys of mtime in local time.
func DateFeatures(mtime int64) []string {
	y, m, d := time.Unix(mtime, 0).Date()
	return []string{
		segment.DateKey(y, 0, 0),
		segment.DateKey(y, int(m), 0),
		segment.DateKey(y, int(m), d),
	}
}

// SubLocation names the i-th part of the document at loc.
func SubLocation(loc string, i int) string {
	return fmt.Sprintf("%s#%d", loc, i)
}

// LabelFeatures encodes corpus labels as feature keys.
func LabelFeatures(labels []string) []string {
	keys := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			keys = append(keys, segment.LabelKey(l))
		}
	}
	return keys
}

// base carries the fields every document type shares.
type base struct {
	src Source
}

func (b *base) Location() string {
	return b.src.Location
}

func (b *base) Title() string {
	return b.src.Title
}

func (b *base) ModifiedTime() int64 {
	return b.src.ModTime
}

func (b *base) Features() []string {
	if b.src.ModTime == 0 {
		return nil
	}
	return DateFeatures(b.src.ModTime)
}

func (b *base) SubDocuments() []Document {
	return nil
}

// docSource is implemented by corpora that store documents as bytes.
type docSource interface {
	source(ctx context.Context, loc string) (Source, error)
}

func load(ctx context.Context, c docSource, docType DocType, loc string) (Document, error) {
	src, err := c.source(ctx, loc)
	if err != nil {
		return nil, err
	}
	doc, err := docType(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", loc, apperrors.ErrDocumentParse, err)
	}
	return doc, nil
}
