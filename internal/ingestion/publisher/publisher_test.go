package publisher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, events ...kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func newStore(t *testing.T) *corpus.SQLCorpus {
	t.Helper()
	ctx := context.Background()
	client, err := sqlite.Memory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	c, err := corpus.NewSQL(client.DB, corpus.DialectSQLite, "documents", nil, "")
	require.NoError(t, err)
	require.NoError(t, c.EnsureSchema(ctx))
	return c
}

func TestIngestStoresAndQueues(t *testing.T) {
	store := newStore(t)
	prod := &fakeProducer{}
	p := New(store, prod)
	ctx := context.Background()

	req := &ingestion.IngestRequest{Location: "a", Title: "Title", Body: "body text", ModTime: 100, Labels: []string{"news"}}
	resp, err := p.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ingestion.IngestResponse{Location: "a", Status: ingestion.StatusAccepted}, *resp)

	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Title", rec.Title)
	assert.Equal(t, []byte("body text"), rec.Body)
	assert.Equal(t, []string{"news"}, rec.Labels)

	resp, err = p.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusUnchanged, resp.Status)

	require.Len(t, prod.events, 2)
	assert.Equal(t, "a", prod.events[0].Key)
	event := prod.events[0].Value.(ingestion.IngestEvent)
	assert.Equal(t, "a", event.Location)
	assert.Equal(t, int64(100), event.ModTime)
}

func TestIngestDefaultsModTime(t *testing.T) {
	store := newStore(t)
	p := New(store, &fakeProducer{})
	p.now = func() time.Time { return time.Unix(5000, 0) }

	_, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Location: "b", Body: "x"})
	require.NoError(t, err)
	mtime, err := store.ModifiedTime(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), mtime)
}

func TestIngestBatch(t *testing.T) {
	store := newStore(t)
	prod := &fakeProducer{}
	p := New(store, prod)

	resps, err := p.IngestBatch(context.Background(), []*ingestion.IngestRequest{
		{Location: "x", Body: "one", ModTime: 1},
		{Location: "y", Body: "two", ModTime: 2},
	})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, "y", resps[1].Location)
	assert.Len(t, prod.events, 2)

	locs, err := store.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, locs)
}

func TestPublishFailureIsRetryable(t *testing.T) {
	store := newStore(t)
	prod := &fakeProducer{err: errors.New("broker down")}
	p := New(store, prod)
	ctx := context.Background()
	req := &ingestion.IngestRequest{Location: "c", Body: "text", ModTime: 10}

	_, err := p.Ingest(ctx, req)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))

	prod.err = nil
	resp, err := p.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusUnchanged, resp.Status)
	assert.Len(t, prod.events, 1, "a retried document is queued again")
}
