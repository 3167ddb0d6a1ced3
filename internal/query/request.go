package query

// Request is a search request under construction.
type Request struct {
	Bool *Bool
	From int
	Size int
	Sort []Clause
	// Source is a field list, false, or nil for the whole document.
	Source any
	Aggs   map[string]any
	// TrackTotalHits asks for an exact hits.total beyond 10000.
	TrackTotalHits bool
}

// NewRequest returns a request over b with exact totals.
func NewRequest(b *Bool) *Request {
	if b == nil {
		b = NewBool()
	}
	return &Request{Bool: b, TrackTotalHits: true}
}

// Page sets from/size for a 1-based page.
func (r *Request) Page(page, perPage int) *Request {
	if page < 1 {
		page = 1
	}
	r.From = (page - 1) * perPage
	r.Size = perPage
	return r
}

// WithSource restricts _source to fields.
func (r *Request) WithSource(fields ...string) *Request {
	r.Source = fields
	return r
}

// WithoutSource disables _source.
func (r *Request) WithoutSource() *Request {
	r.Source = false
	return r
}

// WithSort sets the sort array.
func (r *Request) WithSort(sort []Clause) *Request {
	r.Sort = sort
	return r
}

// WithAggs attaches aggregations.
func (r *Request) WithAggs(aggs map[string]any) *Request {
	r.Aggs = aggs
	return r
}

// Body renders the request body.
func (r *Request) Body() map[string]any {
	body := map[string]any{
		"query": r.Bool.Query(),
		"size":  r.Size,
	}
	if r.From > 0 {
		body["from"] = r.From
	}
	if len(r.Sort) > 0 {
		body["sort"] = r.Sort
	}
	if r.Source != nil {
		body["_source"] = r.Source
	}
	if len(r.Aggs) > 0 {
		body["aggs"] = r.Aggs
	}
	if r.TrackTotalHits {
		body["track_total_hits"] = true
	}
	return body
}
