package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/stretchr/testify/require"
)

// call is one recorded request. body is the JSON encoding, which has sorted keys.
type call struct {
	index string
	body  string
}

// fakeSearcher answers searches with respond and counts with total.
type fakeSearcher struct {
	mu       sync.Mutex
	searches []call
	counts   []call
	respond  func(index, body string) (*elasticsearch.SearchResponse, error)
	total    int64
	countErr error
}

func (f *fakeSearcher) Search(_ context.Context, index string, body map[string]any) (*elasticsearch.SearchResponse, error) {
	encoded := encode(body)
	f.mu.Lock()
	f.searches = append(f.searches, call{index: index, body: encoded})
	f.mu.Unlock()

	if f.respond == nil {
		return &elasticsearch.SearchResponse{}, nil
	}
	return f.respond(index, encoded)
}

func (f *fakeSearcher) Count(_ context.Context, index string, body map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, call{index: index, body: encode(body)})
	return f.total, f.countErr
}

func (f *fakeSearcher) searchCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.searches...)
}

// fakeScroller serves pages in order, one per OpenScroll/NextScroll call.
type fakeScroller struct {
	pages     []*elasticsearch.SearchResponse
	next      int
	opened    string
	keepAlive time.Duration
	cleared   []string
}

func (f *fakeScroller) OpenScroll(_ context.Context, _ string, body map[string]any, keepAlive time.Duration) (*elasticsearch.SearchResponse, error) {
	f.opened = encode(body)
	f.keepAlive = keepAlive
	return f.page(), nil
}

func (f *fakeScroller) NextScroll(context.Context, string, time.Duration) (*elasticsearch.SearchResponse, error) {
	return f.page(), nil
}

func (f *fakeScroller) ClearScroll(_ context.Context, scrollID string) error {
	f.cleared = append(f.cleared, scrollID)
	return nil
}

func (f *fakeScroller) page() *elasticsearch.SearchResponse {
	if f.next >= len(f.pages) {
		return &elasticsearch.SearchResponse{ScrollID: "scroll-1"}
	}
	p := f.pages[f.next]
	f.next++
	return p
}

func encode(body map[string]any) string {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// response decodes a canned _search answer.
func response(t *testing.T, raw string) *elasticsearch.SearchResponse {
	t.Helper()

	var res elasticsearch.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	return &res
}

// compact re-encodes a JSON fragment the way encode does, for substring assertions.
func compact(t *testing.T, fragment string) string {
	t.Helper()

	var v any
	require.NoError(t, json.Unmarshal([]byte(fragment), &v))
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.TrimSpace(string(raw))
}
