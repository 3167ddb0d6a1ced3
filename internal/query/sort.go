package query

import (
	"regexp"
	"strings"
)

var sortTermPattern = regexp.MustCompile(`^(asc|desc)\(\s*([A-Za-z0-9_]+)\s*\)$`)

// SortTerm is one parsed `asc(column)` or `desc(column)` entry of ordenarPor.
type SortTerm struct {
	Column string
	Desc   bool
}

// Order returns "asc" or "desc".
func (t SortTerm) Order() string {
	if t.Desc {
		return "desc"
	}
	return "asc"
}

// ParseSort parses a comma-separated ordenarPor value such as "asc(comprador),desc(monto)".
// Malformed entries and repeated columns are skipped.
func ParseSort(raw string) []SortTerm {
	var terms []SortTerm
	seen := map[string]bool{}
	for part := range strings.SplitSeq(raw, ",") {
		m := sortTermPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil || seen[m[2]] {
			continue
		}
		seen[m[2]] = true
		terms = append(terms, SortTerm{Column: m[2], Desc: m[1] == "desc"})
	}
	return terms
}

// SortField maps a sortable column to its document field.
type SortField struct {
	Field string
	// Nested is the nested path for fields inside document arrays.
	Nested string
}

// BuildSort renders terms as an Elasticsearch sort array. Unknown columns are dropped.
func BuildSort(terms []SortTerm, fields map[string]SortField) []Clause {
	var out []Clause
	for _, t := range terms {
		f, ok := fields[t.Column]
		if !ok {
			continue
		}
		opts := map[string]any{"order": t.Order()}
		if f.Nested != "" {
			opts["nested"] = map[string]any{"path": f.Nested}
		}
		out = append(out, Clause{f.Field: opts})
	}
	return out
}
