package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the layout date parameters are sent and compared in.
const (
	DateFormat   = "yyyy-MM-dd"
	dateLayoutGo = "2006-01-02"
)

// Kind selects how a parameter compiles.
type Kind int

const (
	// KindMatch is a full-text match on the field.
	KindMatch Kind = iota
	// KindMatchPhrase is an exact phrase match.
	KindMatchPhrase
	// KindNumber is a comparison-prefixed number.
	KindNumber
	// KindDate is a comparison-prefixed yyyy-MM-dd date.
	KindDate
	// KindWildcard matches the value anywhere inside the field.
	KindWildcard
)

// FilterSpec binds one query-string parameter to a document field.
type FilterSpec struct {
	Param string
	Field string
	Kind  Kind
	// Nested wraps the predicate in a nested query on this path.
	Nested string
}

// Params is the filter parameter set of one request: recognised keys mapped to raw values.
type Params map[string]string

// ParamsFromValues takes the first value of every key.
func ParamsFromValues(values url.Values) Params {
	p := make(Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// Get returns the trimmed value of key. Whitespace-only values read as empty.
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Has reports whether key carries a non-blank value.
func (p Params) Has(key string) bool {
	return p.Get(key) != ""
}

// GetDefault returns the value of key, or def when it is blank.
func (p Params) GetDefault(key, def string) string {
	if v := p.Get(key); v != "" {
		return v
	}
	return def
}

// Ignored describes a parameter that was present but compiled to nothing.
type Ignored struct {
	Param  string
	Value  string
	Reason string
}

// Apply compiles every spec whose parameter is present into b.
// Positive predicates go to filter, != predicates to must_not.
// Parameters with an unknown operator or a malformed operand are returned as Ignored.
func (b *Bool) Apply(params Params, specs []FilterSpec) []Ignored {
	var ignored []Ignored
	for _, spec := range specs {
		raw := params.Get(spec.Param)
		if raw == "" {
			continue
		}

		clause, negate, reason := compile(spec, raw)
		if reason != "" {
			ignored = append(ignored, Ignored{Param: spec.Param, Value: raw, Reason: reason})
			continue
		}
		if spec.Nested != "" {
			clause = Nested(spec.Nested, clause)
		}
		if negate {
			b.AddMustNot(clause)
		} else {
			b.AddFilter(clause)
		}
	}
	return ignored
}

func compile(spec FilterSpec, raw string) (Clause, bool, string) {
	switch spec.Kind {
	case KindMatch:
		return Match(spec.Field, raw), false, ""
	case KindMatchPhrase:
		return MatchPhrase(spec.Field, raw), false, ""
	case KindWildcard:
		return Wildcard(spec.Field, "*"+raw+"*"), false, ""
	case KindNumber:
		cmp, ok := ParseComparison(raw)
		if !ok {
			return nil, false, "unknown operator"
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(cmp.Value), 64)
		if err != nil {
			return nil, false, "operand is not a number"
		}
		clause, negate := comparisonClause(spec.Field, cmp.Op, n, "")
		return clause, negate, ""
	case KindDate:
		cmp, ok := ParseComparison(raw)
		if !ok {
			return nil, false, "unknown operator"
		}
		value := strings.TrimSpace(cmp.Value)
		if _, err := time.Parse(dateLayoutGo, value); err != nil {
			return nil, false, "operand is not a yyyy-MM-dd date"
		}
		clause, negate := comparisonClause(spec.Field, cmp.Op, value, DateFormat)
		return clause, negate, ""
	default:
		return nil, false, "unsupported filter kind"
	}
}

// comparisonClause maps == to match, != to a negated match and the ordering operators to range.
func comparisonClause(field string, op Operator, value any, format string) (Clause, bool) {
	switch op {
	case OpEq:
		return Match(field, value), false
	case OpNe:
		return Match(field, value), true
	}

	key, _ := op.rangeKey()
	bounds := map[string]any{key: value}
	if format != "" {
		bounds["format"] = format
	}
	return Range(field, bounds), false
}

// YearRange covers [Jan 1 of year, Jan 1 of year+1).
func YearRange(field string, year int) Clause {
	return Range(field, map[string]any{
		"gte":    strconv.Itoa(year) + "-01-01",
		"lt":     strconv.Itoa(year+1) + "-01-01",
		"format": DateFormat,
	})
}
