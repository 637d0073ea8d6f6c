package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator(t *testing.T) (*Aggregator, *time.Time) {
	t.Helper()
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	a := NewAggregator(2)
	a.now = func() time.Time { return now }
	a.since = now
	return a, &now
}

func TestAggregatorStats(t *testing.T) {
	a, now := newAggregator(t)
	a.Record(SearchEvent{Query: "検索  エンジン", Found: 3, Cache: "miss", LatencyMs: 10})
	a.Record(SearchEvent{Query: "検索 エンジン", Found: 3, Cache: "hit", LatencyMs: 2})
	a.Record(SearchEvent{Query: "検索 エンジン", Found: 3, Resumed: true, Cache: "miss", LatencyMs: 30})
	a.Record(SearchEvent{Query: "無い", Found: 0, Cache: "miss", LatencyMs: 4})
	a.Record(SearchEvent{Query: "遅い", Found: 0, TimedOut: true, Cache: "disabled", LatencyMs: 5000})
	*now = now.Add(2 * time.Minute)

	st := a.Stats()
	assert.Equal(t, int64(5), st.TotalSearches)
	assert.Equal(t, int64(4), st.FirstPages)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(3), st.CacheMisses)
	assert.Equal(t, int64(1), st.ZeroResults, "timed out pages are not zero-result")
	assert.Equal(t, int64(1), st.TimedOut)
	assert.Equal(t, []QueryCount{{"検索 エンジン", 2}, {"無い", 1}}, st.TopQueries)
	assert.Equal(t, []QueryCount{{"無い", 1}}, st.ZeroResultQueries)
	assert.Equal(t, int64(10), st.P50LatencyMs)
	assert.Equal(t, int64(5000), st.P99LatencyMs)
	assert.InDelta(t, 2.5, st.QueriesPerMinute, 1e-9)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	a, _ := newAggregator(t)
	for i := 0; i < maxLatencies+5; i++ {
		a.Record(SearchEvent{Query: "q", Found: 1, LatencyMs: int64(i)})
	}
	assert.Len(t, a.latencies, maxLatencies)
	assert.Equal(t, int64(maxLatencies+4), a.latencies[4])
}

func TestAggregatorRestore(t *testing.T) {
	a, _ := newAggregator(t)
	a.Record(SearchEvent{Query: "a", Found: 1})
	a.Restore(Stats{
		TotalSearches: 10,
		FirstPages:    8,
		TopQueries:    []QueryCount{{"a", 4}, {"b", 3}},
		Since:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	st := a.Stats()
	assert.Equal(t, int64(11), st.TotalSearches)
	assert.Equal(t, []QueryCount{{"a", 5}, {"b", 3}}, st.TopQueries)
	assert.Equal(t, 3, int(st.Since.Month()))
}

func TestHandleEvent(t *testing.T) {
	a, _ := newAggregator(t)
	h := HandleEvent(a)
	body, err := json.Marshal(SearchEvent{Query: "x", Found: 1})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), nil, body))
	require.NoError(t, h(context.Background(), nil, []byte("{broken")))
	assert.Equal(t, int64(1), a.Stats().TotalSearches)
}

type fakeSnapshots struct {
	snaps []Stats
	err   error
	limit int
}

func (f *fakeSnapshots) ListSnapshots(ctx context.Context, limit int) ([]Stats, error) {
	f.limit = limit
	return f.snaps, f.err
}

func TestHandler(t *testing.T) {
	a, _ := newAggregator(t)
	a.Record(SearchEvent{Query: "x", Found: 1})
	snaps := &fakeSnapshots{snaps: []Stats{{TotalSearches: 7}}}
	mux := http.NewServeMux()
	NewHandler(a, snaps).Routes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(1), st.TotalSearches)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/snapshots?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, snaps.limit)
	assert.Contains(t, rec.Body.String(), `"total_searches":7`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	snaps.err = errors.New("db down")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestHandlerWithoutStore(t *testing.T) {
	a, _ := newAggregator(t)
	mux := http.NewServeMux()
	NewHandler(a, nil).Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/snapshots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
