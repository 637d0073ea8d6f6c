package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

type discard struct{ n int }

func (d *discard) Publish(_ context.Context, events ...kafka.Event) error {
	d.n += len(events)
	return nil
}

func newMux(t *testing.T) (*http.ServeMux, *discard) {
	t.Helper()
	ctx := context.Background()
	client, err := sqlite.Memory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	store, err := corpus.NewSQL(client.DB, corpus.DialectSQLite, "", nil, "")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	pub := &discard{}
	mux := http.NewServeMux()
	New(publisher.New(store, pub)).Routes(mux)
	return mux, pub
}

func post(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestIngest(t *testing.T) {
	mux, pub := newMux(t)

	rec := post(mux, "/documents", `{"location":"a","title":"T","body":"hello","mtime":100}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp ingestion.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ingestion.IngestResponse{Location: "a", Status: ingestion.StatusAccepted}, resp)
	assert.Equal(t, 1, pub.n)

	rec = post(mux, "/documents", `{"location":"","body":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"location"`)

	rec = post(mux, "/documents", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestBatch(t *testing.T) {
	mux, pub := newMux(t)

	rec := post(mux, "/documents/batch", `[{"location":"a","body":"one","mtime":1},{"location":"b","body":"two","mtime":2}]`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resps []ingestion.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resps))
	assert.Len(t, resps, 2)
	assert.Equal(t, 2, pub.n)

	rec = post(mux, "/documents/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(mux, "/documents/batch", `[{"location":"a","body":"one"},{"location":"b","body":"x","mtime":-5}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"index":1`)
	assert.Equal(t, 2, pub.n, "nothing is stored when one document is invalid")
}
