package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/export"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_ScrollsAndClears(t *testing.T) {
	t.Parallel()

	scroller := &fakeScroller{pages: []*elasticsearch.SearchResponse{
		response(t, `{"_scroll_id": "s1", "hits": {"hits": [
			{"_id": "a", "_source": {"doc": {"compiledRelease": {"ocid": "ocds-a", "tender": {"title": "Medicinas"}}}}},
			{"_id": "broken", "_source": "not a document"}
		]}}`),
		response(t, `{"_scroll_id": "s2", "hits": {"hits": [
			{"_id": "b", "_source": {"doc": {"compiledRelease": {"ocid": "ocds-b", "tender": {"title": "Papel"}}}}}
		]}}`),
		{ScrollID: "s2"},
	}}
	svc := newSearchService(&fakeSearcher{}, scroller)

	var buf bytes.Buffer
	w := export.NewCSV(&buf)
	n, err := svc.Export(context.Background(), export.KindProcesses, query.Params{"categoria": "goods"}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"s2"}, scroller.cleared)
	assert.Contains(t, scroller.opened, `"sort":[{"_doc":"asc"}]`)
	assert.Contains(t, scroller.opened, `"size":2`)
	assert.NotContains(t, scroller.opened, "track_total_hits")
	assert.Contains(t, scroller.opened,
		compact(t, `{"match_phrase":{"doc.compiledRelease.tender.mainProcurementCategory":"goods"}}`))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, export.Header(export.KindProcesses), records[0])
	assert.Equal(t, "ocds-a", records[1][0])
	assert.Equal(t, "Medicinas", records[1][1])
	assert.Equal(t, "ocds-b", records[2][0])
}

func TestExport_WithoutScroller(t *testing.T) {
	t.Parallel()

	svc := newSearchService(&fakeSearcher{}, nil)
	_, err := svc.Export(context.Background(), export.KindProcesses, query.Params{}, export.NewCSV(&bytes.Buffer{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrExportsDisabled))
}

func TestExport_FileName(t *testing.T) {
	t.Parallel()

	svc := newSearchService(&fakeSearcher{}, nil)
	at := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "portalocdspy-contratos-20240102030405.xlsx", svc.FileName(export.KindContracts, export.FormatXLSX, at))
}
