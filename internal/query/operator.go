// Package query compiles portal query-string parameters into Elasticsearch query DSL.
package query

import "strings"

// Operator is a comparison prefix accepted on numeric and date parameters.
type Operator string

const (
	OpEq  Operator = "=="
	OpNe  Operator = "!="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
)

// Two-character operators must be tried before their one-character prefixes.
var operatorsByLength = []Operator{OpEq, OpNe, OpLte, OpGte, OpLt, OpGt}

// Comparison is a parsed `<op><value>` parameter such as ">=1000000".
type Comparison struct {
	Op    Operator
	Value string
}

// ParseComparison splits raw into operator and operand.
// It reports false when raw has no recognised operator or nothing after it.
func ParseComparison(raw string) (Comparison, bool) {
	raw = strings.TrimSpace(raw)
	for _, op := range operatorsByLength {
		rest, found := strings.CutPrefix(raw, string(op))
		if !found {
			continue
		}
		if strings.TrimSpace(rest) == "" {
			return Comparison{}, false
		}
		return Comparison{Op: op, Value: rest}, true
	}
	return Comparison{}, false
}

// rangeKey maps an ordering operator to its range bound key.
func (o Operator) rangeKey() (string, bool) {
	switch o {
	case OpLt:
		return "lt", true
	case OpLte:
		return "lte", true
	case OpGt:
		return "gt", true
	case OpGte:
		return "gte", true
	default:
		return "", false
	}
}

// Matches reports whether the operator accepts a three-way comparison result c.
func (o Operator) Matches(c int) bool {
	switch o {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	default:
		return false
	}
}
