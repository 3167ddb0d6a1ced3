package service_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{}
	svc := service.NewRecordService(fake, service.DefaultSettings())

	got, err := svc.Records(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Contains(t, fake.searchCalls()[0].body, `"size":10`)
}

func TestRecord(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{}
	fake.respond = func(string, string) (*elasticsearch.SearchResponse, error) {
		return response(t, `{"hits": {"hits": [{"_id": "1", "_source": {"ocid": "ocds-lcuori-1"}}]}}`), nil
	}
	svc := service.NewRecordService(fake, service.DefaultSettings())

	got, err := svc.Record(context.Background(), "ocds-lcuori-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ocid": "ocds-lcuori-1"}`, string(got))
	assert.Contains(t, fake.searchCalls()[0].body, compact(t, `{"match_phrase":{"doc.ocid.keyword":"ocds-lcuori-1"}}`))

	empty := service.NewRecordService(&fakeSearcher{}, service.DefaultSettings())
	_, err = empty.Record(context.Background(), "ocds-missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
