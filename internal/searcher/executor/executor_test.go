package executor

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/metrics"
)

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		Timeout:       5 * time.Second,
		PageSize:      10,
		MaxPageSize:   100,
		MaxPredicates: 10,
		Snippet:       config.SnippetConfig{MaxSentences: 3, MaxChars: 100, MaxMargin: 20},
	}
}

func newExecutor(t *testing.T, put func(c *corpus.MemoryCorpus)) (*Executor, *indexdir.Directory) {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	dir, err := indexdir.Open(fsys, "")
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })

	c := corpus.NewMemory(corpus.NewPlainText, "")
	put(c)
	ix := indexer.New(dir, c, config.IndexerConfig{MaxDocs: 1000, MaxTerms: 50000, MaxSentences: 1000})
	require.NoError(t, ix.IndexAll(context.Background()))
	require.NoError(t, ix.Finish())
	return New(dir, searchConfig(), nil, metrics.New(nil)), dir
}

func fruit(c *corpus.MemoryCorpus) {
	c.Put("d1", "", []byte("apple banana"), 100)
	c.Put("d2", "", []byte("apple cherry"), 200)
	c.Put("d3", "", []byte("banana cherry"), 300)
}

func TestLimit(t *testing.T) {
	e := New(nil, searchConfig(), nil, nil)
	assert.Equal(t, 10, e.Limit(0))
	assert.Equal(t, 10, e.Limit(-3))
	assert.Equal(t, 7, e.Limit(7))
	assert.Equal(t, 100, e.Limit(1000))
}

func TestExecutePagesWithCursor(t *testing.T) {
	e, _ := newExecutor(t, fruit)
	ctx := context.Background()

	page, err := e.Execute(ctx, Request{Query: "apple", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "d2", page.Results[0].Location)
	assert.Equal(t, time.Unix(200, 0).UTC(), page.Results[0].ModTime)
	assert.False(t, page.TimedOut)
	require.NotEmpty(t, page.Cursor)

	page, err = e.Execute(ctx, Request{Query: "apple", Limit: 1, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "d1", page.Results[0].Location)

	page, err = e.Execute(ctx, Request{Query: "apple", Limit: 1, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.True(t, page.Exhausted)
}

func TestExecuteOptions(t *testing.T) {
	e, _ := newExecutor(t, fruit)
	ctx := context.Background()

	page, err := e.Execute(ctx, Request{Query: "apple cherry", Disjunctive: true})
	require.NoError(t, err)
	var locs []string
	for _, r := range page.Results {
		locs = append(locs, r.Location)
	}
	assert.Equal(t, []string{"d3", "d2", "d1"}, locs)

	page, err = e.Execute(ctx, Request{Query: "banana", Prefix: "d3"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "d3", page.Results[0].Location)

	page, err = e.Execute(ctx, Request{Query: "banana", Start: "d3", End: "d1"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "d3", page.Results[0].Location)
}

func TestExecuteEscapesHTML(t *testing.T) {
	e, _ := newExecutor(t, func(c *corpus.MemoryCorpus) {
		c.Put("page", "a <b> title", []byte("x <apple> & pie"), 100)
	})
	page, err := e.Execute(context.Background(), Request{Query: "apple"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	r := page.Results[0]
	assert.Equal(t, "a &lt;b&gt; title", r.Title)
	assert.Contains(t, r.Snippet, "<b>apple</b>")
	assert.Contains(t, r.Snippet, "&lt;")
	assert.Contains(t, r.Snippet, "&amp;")
	assert.Equal(t, []string{"apple"}, page.Predicates)
}

func TestExecuteErrors(t *testing.T) {
	e, _ := newExecutor(t, fruit)
	ctx := context.Background()

	_, err := e.Execute(ctx, Request{Query: "apple", Cursor: "!!"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))

	_, err = e.Execute(ctx, Request{Query: "   "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	_, err = e.Execute(ctx, Request{Query: "apple", Start: "nowhere"})
	assert.ErrorIs(t, err, apperrors.ErrLocationNotFound)
}

func TestStatusAndRefresh(t *testing.T) {
	e, dir := newExecutor(t, fruit)
	st, err := e.Status()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Docs)
	assert.Equal(t, []string{"idx00000.seg"}, st.Segments)
	assert.Equal(t, dir.Segments(), e.Segments())
	require.NoError(t, e.Refresh())
}
