package shaper_test

import (
	"encoding/json"
	"testing"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/shaper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthRows(measures map[string]float64, label string, keys ...string) []shaper.Row {
	rows := make([]shaper.Row, 0, len(keys))
	for _, k := range keys {
		m := map[string]float64{}
		for name, v := range measures {
			m[name] = v
		}
		rows = append(rows, shaper.Row{Key: k, Measures: m, Labels: map[string]string{"mes": label}})
	}
	return rows
}

func TestMerge_SumsAndIsCommutative(t *testing.T) {
	t.Parallel()

	signed := monthRows(map[string]float64{"monto": 100, "cantidad": 2}, "firmados", "2019-01", "2019-02")
	started := monthRows(map[string]float64{"monto": 50, "cantidad": 1}, "", "2019-02", "2019-03")

	ab := shaper.Merge(signed, started)
	ba := shaper.Merge(started, signed)
	assert.Equal(t, ab, ba)

	require.Len(t, ab, 3)
	assert.Equal(t, "2019-02", ab[1].Key)
	assert.InDelta(t, 150.0, ab[1].Measures["monto"], 0)
	assert.InDelta(t, 3.0, ab[1].Measures["cantidad"], 0)
	assert.Equal(t, "firmados", ab[1].Labels["mes"], "first non-empty label wins")
	assert.InDelta(t, 50.0, ab[2].Measures["monto"], 0)
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	a := monthRows(map[string]float64{"monto": 10}, "x", "2018-12", "2019-01")
	b := monthRows(map[string]float64{"monto": 5}, "x", "2020-01")

	once := shaper.Merge(a, b)
	assert.Equal(t, once, shaper.Merge(once))
	assert.Equal(t, once, shaper.Merge(once, nil))
}

func TestTopN_ReturnsAscending(t *testing.T) {
	t.Parallel()

	type buyer struct {
		name  string
		total float64
	}
	buyers := []buyer{{"a", 5}, {"b", 50}, {"c", 1}, {"d", 20}, {"e", 30}}

	got := shaper.TopN(buyers, 3, func(b buyer) float64 { return b.total })
	assert.Equal(t, []buyer{{"d", 20}, {"e", 30}, {"b", 50}}, got)

	all := shaper.TopN(buyers, 10, func(b buyer) float64 { return b.total })
	require.Len(t, all, 5)
	assert.Equal(t, "c", all[0].name)
	assert.Equal(t, "a", buyers[0].name, "input slice is not reordered")
}

func TestPercentages(t *testing.T) {
	t.Parallel()

	buckets := []aggregation.Bucket{
		aggregation.StringKey("goods", 1),
		aggregation.StringKey("works", 2),
	}
	got := shaper.Percentages(buckets)
	require.Len(t, got, 2)
	assert.InDelta(t, 33.33, got[0].Percentage, 0.001)
	assert.InDelta(t, 66.67, got[1].Percentage, 0.001)

	assert.Empty(t, shaper.Percentages(nil))
	zero := shaper.Percentages([]aggregation.Bucket{aggregation.StringKey("x", 0)})
	assert.InDelta(t, 0.0, zero[0].Percentage, 0)
}

func TestFlattenNested(t *testing.T) {
	t.Parallel()

	var r aggregation.Result
	require.NoError(t, json.Unmarshal([]byte(`{"ids": {"buckets": [
		{"key": "1", "doc_count": 3, "names": {"buckets": [{"key": "A", "doc_count": 2}, {"key": "A2", "doc_count": 1}]}},
		{"key": "2", "doc_count": 1, "names": {"buckets": [{"key": "B", "doc_count": 1}]}}
	]}}`), &r))
	ids, err := r.Buckets("ids")
	require.NoError(t, err)

	rows, err := shaper.FlattenNested(ids, "names", func(p, c aggregation.Bucket) string {
		return p.KeyString() + "/" + c.KeyString()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1/A", "1/A2", "2/B"}, rows)
}

func TestFoldKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "secretaria de educacion", shaper.FoldKey("Secretaría de Educación"))
	assert.Equal(t, 0, shaper.CompareFolded("ÁREA", "area"))
}

func TestSortByColumns(t *testing.T) {
	t.Parallel()

	type row struct {
		name     string
		procesos float64
	}
	rows := []row{{"Ñandú", 1}, {"Árbol", 2}, {"nube", 2}, {"Zeta", 1}}
	columns := map[string]shaper.Comparator[row]{
		"name":     func(a, b row) int { return shaper.CompareFolded(a.name, b.name) },
		"procesos": func(a, b row) int { return compareFloat(a.procesos, b.procesos) },
	}

	shaper.SortByColumns(rows, query.ParseSort("desc(procesos),asc(unknown),asc(name)"), columns)
	assert.Equal(t, []row{{"Árbol", 2}, {"nube", 2}, {"Ñandú", 1}, {"Zeta", 1}}, rows)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
