package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

const recordSampleSize = 10

// RecordService reads whole process documents.
type RecordService struct {
	searcher Searcher
	settings Settings
}

// NewRecordService creates a RecordService.
func NewRecordService(searcher Searcher, settings Settings) *RecordService {
	return &RecordService{searcher: searcher, settings: settings}
}

// Records returns the first hits of the process index.
func (s *RecordService) Records(ctx context.Context) ([]elasticsearch.Hit, error) {
	req := query.NewRequest(nil).Page(1, recordSampleSize)
	req.TrackTotalHits = false

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if res.Hits.Hits == nil {
		return []elasticsearch.Hit{}, nil
	}
	return res.Hits.Hits, nil
}

// Record returns the _source of the process document with ocid.
func (s *RecordService) Record(ctx context.Context, ocid string) (json.RawMessage, error) {
	req := query.NewRequest(query.NewBool().AddFilter(query.MatchPhrase(fieldRecordOCID, ocid))).Page(1, 1)
	req.TrackTotalHits = false

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", ocid, err)
	}
	if len(res.Hits.Hits) == 0 {
		return nil, apperrors.NotFound("record %q not found", ocid)
	}
	return res.Hits.Hits[0].Source, nil
}
