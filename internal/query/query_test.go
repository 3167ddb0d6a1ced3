package query_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toJSON normalises DSL maps for structural comparison.
func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestParseComparison_AllOperators(t *testing.T) {
	t.Parallel()

	for _, op := range []query.Operator{query.OpEq, query.OpNe, query.OpLt, query.OpLte, query.OpGt, query.OpGte} {
		for _, value := range []string{"1000000", "2019-01-31", "0.5"} {
			cmp, ok := query.ParseComparison(string(op) + value)
			if !ok {
				t.Errorf("ParseComparison(%q) not recognised", string(op)+value)
				continue
			}
			if cmp.Op != op || cmp.Value != value {
				t.Errorf("ParseComparison(%q) = (%q, %q), want (%q, %q)", string(op)+value, cmp.Op, cmp.Value, op, value)
			}
		}
	}
}

func TestParseComparison_Rejects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "1000", "=1000", "=>5", "~5", "<=", "!"} {
		if cmp, ok := query.ParseComparison(raw); ok {
			t.Errorf("ParseComparison(%q) = %+v, want not recognised", raw, cmp)
		}
	}
}

func TestApply_NumberComparisons(t *testing.T) {
	t.Parallel()

	specs := []query.FilterSpec{
		{Param: "montoContratado", Field: "doc.compiledRelease.tender.extra.sumContracts", Kind: query.KindNumber},
	}

	tests := []struct {
		raw     string
		filter  string
		mustNot string
	}{
		{">=1000000", `[{"range":{"doc.compiledRelease.tender.extra.sumContracts":{"gte":1000000}}}]`, ``},
		{"<5", `[{"range":{"doc.compiledRelease.tender.extra.sumContracts":{"lt":5}}}]`, ``},
		{"==12.5", `[{"match":{"doc.compiledRelease.tender.extra.sumContracts":12.5}}]`, ``},
		{"!=0", ``, `[{"match":{"doc.compiledRelease.tender.extra.sumContracts":0}}]`},
	}

	for _, tt := range tests {
		b := query.NewBool()
		ignored := b.Apply(query.Params{"montoContratado": tt.raw}, specs)
		require.Empty(t, ignored, tt.raw)

		if tt.filter != "" {
			assert.JSONEq(t, tt.filter, toJSON(t, b.Filter), tt.raw)
		} else {
			assert.Empty(t, b.Filter, tt.raw)
		}
		if tt.mustNot != "" {
			assert.JSONEq(t, tt.mustNot, toJSON(t, b.MustNot), tt.raw)
		} else {
			assert.Empty(t, b.MustNot, tt.raw)
		}
	}
}

func TestApply_DatesCarryFormat(t *testing.T) {
	t.Parallel()

	b := query.NewBool()
	ignored := b.Apply(query.Params{"fechaFirma": "<=2020-06-30"}, []query.FilterSpec{
		{Param: "fechaFirma", Field: "dateSigned", Kind: query.KindDate},
	})
	require.Empty(t, ignored)
	assert.JSONEq(t,
		`[{"range":{"dateSigned":{"lte":"2020-06-30","format":"yyyy-MM-dd"}}}]`,
		toJSON(t, b.Filter))
}

func TestApply_IgnoresMalformedAndBlank(t *testing.T) {
	t.Parallel()

	specs := []query.FilterSpec{
		{Param: "monto", Field: "value.amount", Kind: query.KindNumber},
		{Param: "fecha", Field: "extra.transactionLastDate", Kind: query.KindDate},
		{Param: "titulo", Field: "title", Kind: query.KindMatch},
	}
	b := query.NewBool()
	ignored := b.Apply(query.Params{
		"monto":  "~100",
		"fecha":  ">=31/12/2020",
		"titulo": "   ",
	}, specs)

	assert.True(t, b.Empty())
	require.Len(t, ignored, 2)
	assert.Equal(t, "monto", ignored[0].Param)
	assert.Equal(t, "fecha", ignored[1].Param)
}

func TestApply_NestedScope(t *testing.T) {
	t.Parallel()

	b := query.NewBool()
	b.Apply(query.Params{"proveedor": "Acme"}, []query.FilterSpec{
		{Param: "proveedor", Field: "suppliers.name", Kind: query.KindMatch, Nested: "suppliers"},
	})
	assert.JSONEq(t,
		`[{"nested":{"path":"suppliers","query":{"match":{"suppliers.name":"Acme"}}}}]`,
		toJSON(t, b.Filter))
}

func TestBuyerScope_DefaultPagination(t *testing.T) {
	t.Parallel()

	b := query.NewBool().AddFilter(query.MatchPhrase("extra.parentTop.name.keyword", "Secretaria de Finanzas de Honduras"))
	body := query.NewRequest(b).Page(1, 10).Body()

	assert.JSONEq(t, `{
		"query": {"bool": {"filter": [{"match_phrase": {"extra.parentTop.name.keyword": "Secretaria de Finanzas de Honduras"}}]}},
		"size": 10,
		"track_total_hits": true
	}`, toJSON(t, body))
}

func TestRequest_Body(t *testing.T) {
	t.Parallel()

	body := query.NewRequest(nil).
		Page(3, 25).
		WithSource("doc.ocid", "extra").
		WithSort(query.BuildSort(query.ParseSort("desc(monto)"), map[string]query.SortField{
			"monto": {Field: "value.amount"},
		})).
		Body()

	assert.JSONEq(t, `{
		"query": {"match_all": {}},
		"from": 50,
		"size": 25,
		"_source": ["doc.ocid", "extra"],
		"sort": [{"value.amount": {"order": "desc"}}],
		"track_total_hits": true
	}`, toJSON(t, body))
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	got := query.ParseSort("asc(comprador), desc(monto),bogus,desc(comprador),asc()")
	want := []query.SortTerm{
		{Column: "comprador"},
		{Column: "monto", Desc: true},
	}
	assert.Equal(t, want, got)
}

func TestBuildSort_NestedAndUnknown(t *testing.T) {
	t.Parallel()

	fields := map[string]query.SortField{
		"year":  {Field: "doc.compiledRelease.date"},
		"monto": {Field: "doc.compiledRelease.contracts.extra.sumTransactions", Nested: "doc.compiledRelease.contracts"},
	}
	sort := query.BuildSort(query.ParseSort("desc(monto),asc(nope),asc(year)"), fields)

	assert.JSONEq(t, `[
		{"doc.compiledRelease.contracts.extra.sumTransactions": {"order": "desc", "nested": {"path": "doc.compiledRelease.contracts"}}},
		{"doc.compiledRelease.date": {"order": "asc"}}
	]`, toJSON(t, sort))
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	assert.JSONEq(t,
		`{"bool":{"should":[{"match_phrase":{"a":"1"}},{"match_phrase":{"b":"1"}}],"minimum_should_match":1}}`,
		toJSON(t, query.Should(query.MatchPhrase("a", "1"), query.MatchPhrase("b", "1"))))
	assert.JSONEq(t,
		`{"range":{"d":{"gte":"2019-01-01","lt":"2020-01-01","format":"yyyy-MM-dd"}}}`,
		toJSON(t, query.YearRange("d", 2019)))
	assert.JSONEq(t,
		`{"nested":{"path":"p","query":{"exists":{"field":"p.id"}},"inner_hits":{"size":1}}}`,
		toJSON(t, query.NestedInnerHits("p", query.Exists("p.id"), 1)))
}

func TestParamsFromValues(t *testing.T) {
	t.Parallel()

	p := query.ParamsFromValues(url.Values{"a": {" x ", "y"}, "b": {}})
	assert.Equal(t, "x", p.Get("a"))
	assert.False(t, p.Has("b"))
	assert.Equal(t, "nombre", p.GetDefault("tid", "nombre"))
}
