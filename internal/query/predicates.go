package query

// Clause is one query DSL node.
type Clause = map[string]any

// Match builds {"match": {field: value}}.
func Match(field string, value any) Clause {
	return Clause{"match": map[string]any{field: value}}
}

// MatchPhrase builds {"match_phrase": {field: value}}.
func MatchPhrase(field string, value any) Clause {
	return Clause{"match_phrase": map[string]any{field: value}}
}

// Exists builds {"exists": {"field": field}}.
func Exists(field string) Clause {
	return Clause{"exists": map[string]any{"field": field}}
}

// Wildcard builds {"wildcard": {field: pattern}}.
func Wildcard(field, pattern string) Clause {
	return Clause{"wildcard": map[string]any{field: pattern}}
}

// Range builds {"range": {field: bounds}}.
func Range(field string, bounds map[string]any) Clause {
	return Clause{"range": map[string]any{field: bounds}}
}

// Nested scopes q to the nested document array at path.
func Nested(path string, q Clause) Clause {
	return Clause{"nested": map[string]any{"path": path, "query": q}}
}

// NestedInnerHits is Nested returning up to size matching nested documents as inner_hits.
func NestedInnerHits(path string, q Clause, size int) Clause {
	return Clause{"nested": map[string]any{
		"path":       path,
		"query":      q,
		"inner_hits": map[string]any{"size": size},
	}}
}

// Should builds a disjunction that needs one clause to match.
func Should(clauses ...Clause) Clause {
	return Clause{"bool": map[string]any{
		"should":               clauses,
		"minimum_should_match": 1,
	}}
}

// Not builds a bool query with clauses under must_not.
func Not(clauses ...Clause) Clause {
	return Clause{"bool": map[string]any{"must_not": clauses}}
}

// Bool accumulates clauses for a top-level bool query.
type Bool struct {
	Must    []Clause
	Filter  []Clause
	MustNot []Clause
}

// NewBool returns an empty bool query.
func NewBool() *Bool {
	return &Bool{}
}

// AddMust appends scoring clauses.
func (b *Bool) AddMust(clauses ...Clause) *Bool {
	b.Must = append(b.Must, clauses...)
	return b
}

// AddFilter appends non-scoring clauses.
func (b *Bool) AddFilter(clauses ...Clause) *Bool {
	b.Filter = append(b.Filter, clauses...)
	return b
}

// AddMustNot appends exclusions.
func (b *Bool) AddMustNot(clauses ...Clause) *Bool {
	b.MustNot = append(b.MustNot, clauses...)
	return b
}

// Empty reports whether no clause was added.
func (b *Bool) Empty() bool {
	return b == nil || len(b.Must)+len(b.Filter)+len(b.MustNot) == 0
}

// Query renders the bool query, or match_all when it is empty.
func (b *Bool) Query() Clause {
	if b.Empty() {
		return Clause{"match_all": map[string]any{}}
	}
	inner := map[string]any{}
	if len(b.Must) > 0 {
		inner["must"] = b.Must
	}
	if len(b.Filter) > 0 {
		inner["filter"] = b.Filter
	}
	if len(b.MustNot) > 0 {
		inner["must_not"] = b.MustNot
	}
	return Clause{"bool": inner}
}
