package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/export"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// ExportSettings tune the scroll behind exports.
type ExportSettings struct {
	ScrollSize int
	KeepAlive  time.Duration
	FilePrefix string
}

// ExportSettingsFromConfig extracts ExportSettings from the loaded configuration.
func ExportSettingsFromConfig(cfg *config.Config) ExportSettings {
	return ExportSettings{
		ScrollSize: cfg.Exports.ScrollSize,
		KeepAlive:  cfg.Exports.ScrollKeepAlive,
		FilePrefix: cfg.Exports.FilePrefix,
	}
}

// ErrExportsDisabled is returned when the service was built without a scroller.
var ErrExportsDisabled = errors.New("exports are not configured")

// FileName names the attachment of an export started at.
func (s *SearchService) FileName(kind export.Kind, format export.Format, at time.Time) string {
	return export.FileName(s.exports.FilePrefix, kind, format, at)
}

// Export scrolls every document matching the buscador parameters and writes the rows of kind
// to w, flushing after each batch. It returns the number of data rows written.
func (s *SearchService) Export(ctx context.Context, kind export.Kind, params query.Params, w export.Writer) (int, error) {
	if s.scroller == nil {
		return 0, apperrors.Internal("export", ErrExportsDisabled)
	}
	method := searchMethod(params)
	b, err := s.settings.searchFilters(method, params)
	if err != nil {
		return 0, err
	}

	req := query.NewRequest(b).WithSource(searchSource...).WithSort([]query.Clause{{"_doc": "asc"}})
	req.Size = s.exports.ScrollSize
	req.TrackTotalHits = false

	if err = w.Write(export.Header(kind)); err != nil {
		return 0, fmt.Errorf("write export header: %w", err)
	}

	res, err := s.scroller.OpenScroll(ctx, s.settings.ProcessIndex, req.Body(), s.exports.KeepAlive)
	if err != nil {
		return 0, fmt.Errorf("open export scroll: %w", err)
	}
	scrollID := res.ScrollID
	defer func() {
		if scrollID == "" {
			return
		}
		if clearErr := s.scroller.ClearScroll(context.WithoutCancel(ctx), scrollID); clearErr != nil {
			logger.FromContext(ctx).Warn("Failed to clear export scroll", logger.Error(clearErr))
		}
	}()

	written := 0
	for len(res.Hits.Hits) > 0 {
		batch := 0
		for _, hit := range res.Hits.Hits {
			rows, rowErr := export.Rows(kind, hit.Source)
			if rowErr != nil {
				logger.FromContext(ctx).Warn("Skipping undecodable export document",
					logger.String("id", hit.ID), logger.Error(rowErr))
				continue
			}
			for _, row := range rows {
				if err = w.Write(row); err != nil {
					return written, fmt.Errorf("write export row: %w", err)
				}
			}
			batch += len(rows)
		}
		if err = w.Flush(); err != nil {
			return written, fmt.Errorf("flush export batch: %w", err)
		}
		written += batch
		s.metrics.AddExportRows(string(kind), string(w.Format()), batch)

		if res.ScrollID != "" {
			scrollID = res.ScrollID
		}
		res, err = s.scroller.NextScroll(ctx, scrollID, s.exports.KeepAlive)
		if err != nil {
			return written, fmt.Errorf("continue export scroll: %w", err)
		}
	}
	if res.ScrollID != "" {
		scrollID = res.ScrollID
	}
	return written, nil
}
