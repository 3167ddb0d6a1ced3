package service

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// hitSource pages over the hits of one search request. Count uses _count; Slice runs
// the request with from/size and keeps the response so aggregations can be read afterwards.
type hitSource struct {
	searcher Searcher
	index    string
	req      *query.Request
	last     *elasticsearch.SearchResponse
}

func newHitSource(s Searcher, index string, req *query.Request) *hitSource {
	return &hitSource{searcher: s, index: index, req: req}
}

func (h *hitSource) Count(ctx context.Context) (int64, error) {
	n, err := h.searcher.Count(ctx, h.index, h.req.Body())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", h.index, err)
	}
	return n, nil
}

func (h *hitSource) Slice(ctx context.Context, offset, limit int) ([]elasticsearch.Hit, error) {
	h.req.From = offset
	h.req.Size = limit

	res, err := h.searcher.Search(ctx, h.index, h.req.Body())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", h.index, err)
	}
	h.last = res
	return res.Hits.Hits, nil
}

// response returns the last search response, running a size-0 search when the
// set was empty and Slice never ran.
func (h *hitSource) response(ctx context.Context) (*elasticsearch.SearchResponse, error) {
	if h.last != nil {
		return h.last, nil
	}
	h.req.From = 0
	h.req.Size = 0
	res, err := h.searcher.Search(ctx, h.index, h.req.Body())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", h.index, err)
	}
	h.last = res
	return res, nil
}
