package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Result is a decoded aggregation level: aggregation name to raw JSON.
// The top-level response "aggregations", a nested aggregation and a bucket all decode to Result.
type Result map[string]json.RawMessage

// metricValue is a single-value metric such as sum, max or cardinality.
type metricValue struct {
	Value         *float64 `json:"value"`
	ValueAsString string   `json:"value_as_string"`
}

// Value returns a single-value metric. ok is false when the metric is absent or null
// (max of an empty set, for example).
func (r Result) Value(name string) (float64, bool) {
	raw, found := r[name]
	if !found {
		return 0, false
	}
	var m metricValue
	if err := json.Unmarshal(raw, &m); err != nil || m.Value == nil {
		return 0, false
	}
	return *m.Value, true
}

// ValueOrZero returns the metric, treating absent and null as 0.
func (r Result) ValueOrZero(name string) float64 {
	v, _ := r.Value(name)
	return v
}

// ValueString returns value_as_string of a metric, used by max/min over dates.
// It is empty when the metric is null.
func (r Result) ValueString(name string) string {
	raw, found := r[name]
	if !found {
		return ""
	}
	var m metricValue
	if err := json.Unmarshal(raw, &m); err != nil || m.Value == nil {
		return ""
	}
	return m.ValueAsString
}

// Sub decodes a single-bucket aggregation (nested, reverse_nested, filter) into its level.
func (r Result) Sub(name string) (Result, error) {
	raw, found := r[name]
	if !found {
		return Result{}, nil
	}
	var sub Result
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode aggregation %q: %w", name, err)
	}
	return sub, nil
}

// DocCount returns doc_count of this level.
func (r Result) DocCount() int64 {
	raw, found := r["doc_count"]
	if !found {
		return 0
	}
	var n int64
	_ = json.Unmarshal(raw, &n)
	return n
}

// Buckets decodes a multi-bucket aggregation (terms, date_histogram).
func (r Result) Buckets(name string) ([]Bucket, error) {
	raw, found := r[name]
	if !found {
		return nil, nil
	}
	var envelope struct {
		Buckets []Bucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode buckets of %q: %w", name, err)
	}
	return envelope.Buckets, nil
}

// Raw returns the undecoded aggregation, for echoing facets as-is.
func (r Result) Raw(name string) json.RawMessage {
	if raw, found := r[name]; found {
		return raw
	}
	return json.RawMessage(`{"buckets":[]}`)
}

// Bucket is one bucket of a multi-bucket aggregation.
type Bucket struct {
	Key         json.RawMessage
	KeyAsString string
	DocCount    int64
	// Aggs holds the bucket's sub-aggregations.
	Aggs Result
}

// UnmarshalJSON separates key fields from sub-aggregations.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	b.Key = all["key"]
	if raw, ok := all["key_as_string"]; ok {
		if err := json.Unmarshal(raw, &b.KeyAsString); err != nil {
			return fmt.Errorf("decode key_as_string: %w", err)
		}
	}
	if raw, ok := all["doc_count"]; ok {
		if err := json.Unmarshal(raw, &b.DocCount); err != nil {
			return fmt.Errorf("decode doc_count: %w", err)
		}
	}

	delete(all, "key")
	delete(all, "key_as_string")
	delete(all, "doc_count")
	b.Aggs = all
	return nil
}

// KeyString returns key_as_string when present, otherwise the key rendered as text.
func (b Bucket) KeyString() string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	raw := bytes.TrimSpace(b.Key)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, convErr := strconv.ParseInt(n.String(), 10, 64); convErr == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(raw)
}

// MarshalJSON renders the bucket in the Elasticsearch shape so facets can be returned as-is.
func (b Bucket) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Aggs)+3)
	for k, v := range b.Aggs {
		out[k] = v
	}
	if len(b.Key) > 0 {
		out["key"] = b.Key
	}
	if b.KeyAsString != "" {
		out["key_as_string"] = b.KeyAsString
	}
	out["doc_count"] = b.DocCount
	return json.Marshal(out)
}

// StringKey builds a bucket with a string key, used for synthetic buckets.
func StringKey(key string, docCount int64) Bucket {
	raw, _ := json.Marshal(key)
	return Bucket{Key: raw, DocCount: docCount}
}
