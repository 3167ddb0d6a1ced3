package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchResponse is the subset of the _search (and _search/scroll) answer the portal reads.
type SearchResponse struct {
	ScrollID     string                     `json:"_scroll_id,omitempty"`
	Took         int                        `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	Hits         Hits                       `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
}

// Hits is the hits envelope.
type Hits struct {
	Total    Total    `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Total is hits.total. Older clusters send a bare number, newer ones an object.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// UnmarshalJSON accepts both `12` and `{"value":12,"relation":"eq"}`.
func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Total{}
		return nil
	}
	if data[0] != '{' {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode hits.total: %w", err)
		}
		*t = Total{Value: n, Relation: "eq"}
		return nil
	}

	type plain Total
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode hits.total: %w", err)
	}
	*t = Total(p)
	return nil
}

// Hit is one document in hits.hits.
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    json.RawMessage     `json:"_source,omitempty"`
	Sort      []any               `json:"sort,omitempty"`
	InnerHits map[string]InnerHit `json:"inner_hits,omitempty"`
}

// InnerHit is the hits envelope returned for a nested query with inner_hits.
type InnerHit struct {
	Hits Hits `json:"hits"`
}

// DecodeSource unmarshals the hit's _source into v.
func (h Hit) DecodeSource(v any) error {
	if len(h.Source) == 0 {
		return fmt.Errorf("hit %s has no _source", h.ID)
	}
	if err := json.Unmarshal(h.Source, v); err != nil {
		return fmt.Errorf("decode _source of %s: %w", h.ID, err)
	}
	return nil
}

// countResponse is the _count answer.
type countResponse struct {
	Count int64 `json:"count"`
}

// errorResponse is the error envelope of a failed request.
type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// clusterHealth is the _cluster/health answer.
type clusterHealth struct {
	ClusterName string `json:"cluster_name"`
	Status      string `json:"status"`
}
