package elasticsearch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedResponse struct {
	status int
	body   string
}

// fakeTransport replays canned responses in order, repeating the last one.
type fakeTransport struct {
	mu        sync.Mutex
	responses []cannedResponse
	requests  []*http.Request
	bodies    []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	canned := f.responses[idx]

	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: canned.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(canned.body)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testConfig() config.ElasticsearchConfig {
	return config.ElasticsearchConfig{
		URL:        "es.internal:9200",
		MaxRetries: -1,
		Retry: config.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
		},
		Breaker: config.BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute},
	}
}

func newClient(t *testing.T, ft *fakeTransport) *elasticsearch.Client {
	t.Helper()
	c, err := elasticsearch.NewClient(testConfig(), logger.NewNop(), elasticsearch.WithTransport(ft))
	require.NoError(t, err)
	return c
}

const searchBody = `{
  "took": 3,
  "timed_out": false,
  "hits": {
    "total": {"value": 2, "relation": "eq"},
    "hits": [
      {"_index": "ocds", "_id": "a", "_source": {"doc": {"ocid": "ocds-1"}}},
      {"_index": "ocds", "_id": "b", "_source": {"doc": {"ocid": "ocds-2"}}}
    ]
  },
  "aggregations": {"compradores_total": {"value": 7}}
}`

func TestSearch_DecodesHitsAndAggregations(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusOK, searchBody}}}
	c := newClient(t, ft)

	res, err := c.Search(context.Background(), "ocds", map[string]any{"size": 10})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Hits.Total.Value)
	require.Len(t, res.Hits.Hits, 2)
	assert.Equal(t, "b", res.Hits.Hits[1].ID)
	assert.JSONEq(t, `{"value": 7}`, string(res.Aggregations["compradores_total"]))

	var src struct {
		Doc struct {
			OCID string `json:"ocid"`
		} `json:"doc"`
	}
	require.NoError(t, res.Hits.Hits[0].DecodeSource(&src))
	assert.Equal(t, "ocds-1", src.Doc.OCID)

	require.Equal(t, 1, ft.calls())
	assert.Equal(t, "/ocds/_search", ft.requests[0].URL.Path)
	assert.Equal(t, "es.internal:9200", ft.requests[0].URL.Host)
	assert.JSONEq(t, `{"size": 10}`, ft.bodies[0])
}

func TestSearch_RetriesDisabledUsesDefaultTransport(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, searchBody)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.URL = srv.URL
	require.Equal(t, -1, cfg.MaxRetries)

	c, err := elasticsearch.NewClient(cfg, logger.NewNop())
	require.NoError(t, err)

	var res *elasticsearch.SearchResponse
	require.NotPanics(t, func() {
		res, err = c.Search(context.Background(), "ocds", map[string]any{})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Hits.Total.Value)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

// stallingTransport never answers; it returns once the request context ends.
type stallingTransport struct{}

func (stallingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func TestSearch_ClientTimeoutIsUnavailable(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	c, err := elasticsearch.NewClient(cfg, logger.NewNop(), elasticsearch.WithTransport(stallingTransport{}))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Search(context.Background(), "ocds", map[string]any{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUnavailable), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearch_LegacyNumericTotal(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusOK, `{"hits": {"total": 42, "hits": []}}`}}}
	c := newClient(t, ft)

	res, err := c.Search(context.Background(), "contracts", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Hits.Total.Value)
}

func TestSearch_RetriesUnavailable(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{
		{http.StatusServiceUnavailable, `{"error": {"type": "unavailable_shards_exception", "reason": "busy"}}`},
		{http.StatusOK, searchBody},
	}}
	c := newClient(t, ft)

	_, err := c.Search(context.Background(), "ocds", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, ft.calls())
}

func TestSearch_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantKind  apperrors.Kind
		wantCalls int
	}{
		{"too many requests", http.StatusTooManyRequests, apperrors.KindUnavailable, 2},
		{"gateway timeout", http.StatusGatewayTimeout, apperrors.KindUnavailable, 2},
		{"bad request", http.StatusBadRequest, apperrors.KindInternal, 1},
		{"missing index", http.StatusNotFound, apperrors.KindInternal, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ft := &fakeTransport{responses: []cannedResponse{{tt.status, `{"error": {"type": "x", "reason": "y"}}`}}}
			c := newClient(t, ft)

			_, err := c.Search(context.Background(), "ocds", map[string]any{})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
			assert.Equal(t, tt.wantCalls, ft.calls())
		})
	}
}

func TestSearch_BreakerOpensOnRepeatedOutage(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusBadGateway, `bad gateway`}}}
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	cfg.Breaker.FailureThreshold = 2
	c, err := elasticsearch.NewClient(cfg, logger.NewNop(), elasticsearch.WithTransport(ft))
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		_, _ = c.Search(ctx, "ocds", map[string]any{})
	}
	require.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err = c.Search(ctx, "ocds", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrCircuitOpen))
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
	assert.Equal(t, 2, ft.calls(), "open circuit must not reach the cluster")
}

func TestSearch_BadQueriesDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusBadRequest, `{}`}}}
	c := newClient(t, ft)

	for range 5 {
		_, _ = c.Search(context.Background(), "ocds", map[string]any{})
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestCount_SendsOnlyQuery(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusOK, `{"count": 118}`}}}
	c := newClient(t, ft)

	n, err := c.Count(context.Background(), "ocds", map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"size":  10,
		"aggs":  map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(118), n)
	assert.Equal(t, "/ocds/_count", ft.requests[0].URL.Path)
	assert.JSONEq(t, `{"query": {"match_all": {}}}`, ft.bodies[0])
}

func TestScroll_OpenNextClear(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{
		{http.StatusOK, `{"_scroll_id": "s1", "hits": {"total": 3, "hits": [{"_id": "1"}, {"_id": "2"}]}}`},
		{http.StatusOK, `{"_scroll_id": "s1", "hits": {"total": 3, "hits": [{"_id": "3"}]}}`},
		{http.StatusOK, `{"succeeded": true, "num_freed": 1}`},
	}}
	c := newClient(t, ft)
	ctx := context.Background()

	first, err := c.OpenScroll(ctx, "ocds", map[string]any{"size": 2}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "s1", first.ScrollID)
	assert.NotEmpty(t, ft.requests[0].URL.Query().Get("scroll"))

	next, err := c.NextScroll(ctx, first.ScrollID, time.Minute)
	require.NoError(t, err)
	require.Len(t, next.Hits.Hits, 1)
	assert.True(t, strings.HasPrefix(ft.requests[1].URL.Path, "/_search/scroll"))

	require.NoError(t, c.ClearScroll(ctx, first.ScrollID))
	assert.Equal(t, http.MethodDelete, ft.requests[2].Method)
}

func TestHealth_ReturnsStatus(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{{http.StatusOK, `{"cluster_name": "portal", "status": "yellow"}`}}}
	c := newClient(t, ft)

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yellow", status)
}

func TestConnect_RetriesPing(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{responses: []cannedResponse{
		{http.StatusServiceUnavailable, `{}`},
		{http.StatusOK, `{}`},
	}}
	c := newClient(t, ft)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 2, ft.calls())
}

func TestTotal_UnmarshalNull(t *testing.T) {
	t.Parallel()

	var hits elasticsearch.Hits
	require.NoError(t, json.Unmarshal([]byte(`{"total": null, "hits": []}`), &hits))
	assert.Equal(t, int64(0), hits.Total.Value)
}
