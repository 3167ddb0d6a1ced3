// Package shaper turns aggregation results into tables: flattening, merging,
// top-N views and percentage breakdowns.
package shaper

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
)

// Row is one table row keyed by the grouping value.
type Row struct {
	Key      string             `json:"key"`
	Measures map[string]float64 `json:"measures"`
	Labels   map[string]string  `json:"labels,omitempty"`
}

// Flatten emits one row per bucket using fn.
func Flatten[T any](buckets []aggregation.Bucket, fn func(aggregation.Bucket) T) []T {
	out := make([]T, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, fn(b))
	}
	return out
}

// FlattenNested walks a two-level terms tree (for example buyer id then buyer name)
// and emits one row per (parent, child) pair.
func FlattenNested[T any](buckets []aggregation.Bucket, child string, fn func(parent, child aggregation.Bucket) T) ([]T, error) {
	var out []T
	for _, parent := range buckets {
		children, err := parent.Aggs.Buckets(child)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			out = append(out, fn(parent, c))
		}
	}
	return out, nil
}

// Merge groups rows from several result sets by key. Measures are summed and
// labels take the first non-empty value. Output is sorted by key.
func Merge(sets ...[]Row) []Row {
	byKey := map[string]*Row{}
	for _, set := range sets {
		for _, r := range set {
			acc, ok := byKey[r.Key]
			if !ok {
				acc = &Row{Key: r.Key, Measures: map[string]float64{}}
				byKey[r.Key] = acc
			}
			for name, v := range r.Measures {
				acc.Measures[name] += v
			}
			for name, v := range r.Labels {
				if v == "" {
					continue
				}
				if acc.Labels == nil {
					acc.Labels = map[string]string{}
				}
				if acc.Labels[name] == "" {
					acc.Labels[name] = v
				}
			}
		}
	}

	out := make([]Row, 0, len(byKey))
	for _, key := range slices.Sorted(maps.Keys(byKey)) {
		out = append(out, *byKey[key])
	}
	return out
}

// TopN sorts items by value descending, keeps the first n, then reverses the result
// so callers receive the selection in ascending order. Ties keep input order.
func TopN[T any](items []T, n int, value func(T) float64) []T {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(value(b), value(a))
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	slices.Reverse(sorted)
	return sorted
}

// Share is one category of a distribution.
type Share struct {
	Key        string  `json:"key"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"porcentaje"`
}

// Percentages computes each bucket's share of the summed doc counts, rounded to two decimals.
func Percentages(buckets []aggregation.Bucket) []Share {
	var total int64
	for _, b := range buckets {
		total += b.DocCount
	}

	out := make([]Share, 0, len(buckets))
	for _, b := range buckets {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(b.DocCount)*10000/float64(total)) / 100
		}
		out = append(out, Share{Key: b.KeyString(), Count: b.DocCount, Percentage: pct})
	}
	return out
}
