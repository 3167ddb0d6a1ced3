package shaper

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldKey lowercases s and strips diacritics so "Secretaría" and "secretaria" sort together.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// CompareFolded orders strings accent- and case-insensitively.
func CompareFolded(a, b string) int {
	return cmp.Compare(FoldKey(a), FoldKey(b))
}

// Comparator orders two rows on one column.
type Comparator[T any] func(a, b T) int

// SortByColumns sorts items in place by the sort terms, in order of precedence.
// Terms naming a column without a comparator are dropped.
func SortByColumns[T any](items []T, terms []query.SortTerm, columns map[string]Comparator[T]) {
	type key struct {
		compare Comparator[T]
		desc    bool
	}
	var keys []key
	for _, t := range terms {
		if c, ok := columns[t.Column]; ok {
			keys = append(keys, key{compare: c, desc: t.Desc})
		}
	}
	if len(keys) == 0 {
		return
	}

	slices.SortStableFunc(items, func(a, b T) int {
		for _, k := range keys {
			c := k.compare(a, b)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
