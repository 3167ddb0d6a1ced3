// Package aggregation builds aggregation requests and decodes their bucket trees.
package aggregation

import (
	"fmt"
	"maps"
)

// Agg is one aggregation node. Sub-aggregations are attached with Sub.
type Agg struct {
	kind string
	body map[string]any
	subs map[string]Agg
}

// Map is a named set of aggregations, the value of a request's "aggs" key.
type Map map[string]Agg

func newAgg(kind string, body map[string]any) Agg {
	return Agg{kind: kind, body: body}
}

// Terms buckets documents by the values of field.
func Terms(field string, size int) Agg {
	body := map[string]any{"field": field}
	if size > 0 {
		body["size"] = size
	}
	return newAgg("terms", body)
}

// Missing labels the bucket of documents without field. Only meaningful on terms.
func (a Agg) Missing(label string) Agg {
	return a.with("missing", label)
}

// OrderBy sorts terms buckets by a metric path such as "contratos>suma".
func (a Agg) OrderBy(path string, desc bool) Agg {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	return a.with("order", map[string]any{path: dir})
}

// Cardinality counts distinct values of field.
func Cardinality(field string, precision int) Agg {
	body := map[string]any{"field": field}
	if precision > 0 {
		body["precision_threshold"] = precision
	}
	return newAgg("cardinality", body)
}

// Sum adds up field.
func Sum(field string) Agg { return newAgg("sum", map[string]any{"field": field}) }

// Avg averages field.
func Avg(field string) Agg { return newAgg("avg", map[string]any{"field": field}) }

// Min takes the minimum of field.
func Min(field string) Agg { return newAgg("min", map[string]any{"field": field}) }

// Max takes the maximum of field.
func Max(field string) Agg { return newAgg("max", map[string]any{"field": field}) }

// ValueCount counts values of field.
func ValueCount(field string) Agg { return newAgg("value_count", map[string]any{"field": field}) }

// Interval is a calendar interval for date histograms.
type Interval string

const (
	Month Interval = "month"
	Year  Interval = "year"
)

// DateHistogram buckets field by calendar interval, keyed with format.
func DateHistogram(field string, interval Interval, format string, minDocCount int) Agg {
	return newAgg("date_histogram", map[string]any{
		"field":             field,
		"calendar_interval": string(interval),
		"format":            format,
		"min_doc_count":     minDocCount,
	})
}

// Nested scopes sub-aggregations to the nested array at path.
func Nested(path string) Agg {
	return newAgg("nested", map[string]any{"path": path})
}

// ReverseNested joins back from a nested scope to the root document.
func ReverseNested() Agg {
	return newAgg("reverse_nested", map[string]any{})
}

// Filter restricts sub-aggregations to documents matching q.
func Filter(q map[string]any) Agg {
	return newAgg("filter", q)
}

// BucketSelector keeps parent buckets where `params.<variable> <op> <value>` holds.
// variable is bound to path through buckets_path.
func BucketSelector(variable, path, op, value string) Agg {
	return newAgg("bucket_selector", map[string]any{
		"buckets_path": map[string]any{variable: path},
		"script":       fmt.Sprintf("params.%s %s %s", variable, op, value),
	})
}

// Sub attaches a named sub-aggregation and returns the updated node.
func (a Agg) Sub(name string, sub Agg) Agg {
	subs := make(map[string]Agg, len(a.subs)+1)
	maps.Copy(subs, a.subs)
	subs[name] = sub
	a.subs = subs
	return a
}

// Child returns the named sub-aggregation.
func (a Agg) Child(name string) (Agg, bool) {
	sub, ok := a.subs[name]
	return sub, ok
}

// Kind returns the aggregation type, e.g. "terms".
func (a Agg) Kind() string { return a.kind }

func (a Agg) with(key string, value any) Agg {
	body := make(map[string]any, len(a.body)+1)
	maps.Copy(body, a.body)
	body[key] = value
	a.body = body
	return a
}

// DSL renders the node as {"<kind>": {...}, "aggs": {...}}.
func (a Agg) DSL() map[string]any {
	out := map[string]any{a.kind: a.body}
	if len(a.subs) > 0 {
		out["aggs"] = Map(a.subs).DSL()
	}
	return out
}

// DSL renders every aggregation of m.
func (m Map) DSL() map[string]any {
	out := make(map[string]any, len(m))
	for name, agg := range m {
		out[name] = agg.DSL()
	}
	return out
}
