package corpus

import (
	"context"
	"fmt"
	"slices"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

type memEntry struct {
	title  string
	data   []byte
	mtime  int64
	labels []string
}

// MemoryCorpus keeps documents in memory, in insertion order.
type MemoryCorpus struct {
	mu       sync.RWMutex
	docType  DocType
	encoding string
	entries  map[string]memEntry
	order    []string
}

func NewMemory(docType DocType, encoding string) *MemoryCorpus {
	if docType == nil {
		docType = NewPlainText
	}
	return &MemoryCorpus{
		docType:  docType,
		encoding: encoding,
		entries:  make(map[string]memEntry),
	}
}

// Put stores or replaces the document at loc.
func (c *MemoryCorpus) Put(loc, title string, data []byte, mtime int64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[loc]; !ok {
		c.order = append(c.order, loc)
	}
	c.entries[loc] = memEntry{title: title, data: slices.Clone(data), mtime: mtime, labels: slices.Clone(labels)}
}

func (c *MemoryCorpus) entry(loc string) (memEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[loc]
	if !ok {
		return memEntry{}, fmt.Errorf("%s: %w", loc, apperrors.ErrLocationNotFound)
	}
	return e, nil
}

func (c *MemoryCorpus) source(_ context.Context, loc string) (Source, error) {
	e, err := c.entry(loc)
	if err != nil {
		return Source{}, err
	}
	return Source{Location: loc, Title: e.title, ModTime: e.mtime, Encoding: c.encoding, Data: e.data}, nil
}

func (c *MemoryCorpus) Document(ctx context.Context, loc string) (Document, error) {
	return load(ctx, c, c.docType, loc)
}

func (c *MemoryCorpus) Exists(_ context.Context, loc string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[loc]
	return ok, nil
}

func (c *MemoryCorpus) ModifiedTime(_ context.Context, loc string) (int64, error) {
	e, err := c.entry(loc)
	return e.mtime, err
}

func (c *MemoryCorpus) Labels(_ context.Context, loc string) ([]string, error) {
	e, err := c.entry(loc)
	return e.labels, err
}

func (c *MemoryCorpus) Locations(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order), nil
}
