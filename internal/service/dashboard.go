package service

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"golang.org/x/sync/errgroup"
)

const maxSupplierBuckets = 100000

// DashboardService computes the landing page counters.
type DashboardService struct {
	searcher Searcher
	settings Settings
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(searcher Searcher, settings Settings) *DashboardService {
	return &DashboardService{searcher: searcher, settings: settings}
}

// Dashboard runs the publisher totals and the red flag count concurrently.
func (s *DashboardService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	totals := query.NewRequest(query.NewBool().AddFilter(query.MatchPhrase(fieldSourcesID, s.settings.DNCPSourceID)))
	totals.WithAggs(aggregation.Map{
		"contratos": aggregation.Nested(pathContracts).
			Sub("distinct_contracts", aggregation.Cardinality(fieldContractID+".keyword", s.settings.Precision)),
		"distinct_buyers":       aggregation.Cardinality(fieldBuyerID, s.settings.Precision),
		"procesos_contratacion": aggregation.ValueCount(fieldOCID),
		"red_flags":             aggregation.ValueCount(fieldRedFlagTitle),
		"proveedores_dncp":      aggregation.Terms(fieldSuppliersName, maxSupplierBuckets),
	}.DSL())

	flagged := query.NewRequest(query.NewBool().AddFilter(query.Exists("banderas")))

	var totalsRes, flaggedRes *elasticsearch.SearchResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.searcher.Search(gctx, s.settings.ProcessIndex, totals.Body())
		if err != nil {
			return fmt.Errorf("dashboard totals: %w", err)
		}
		totalsRes = res
		return nil
	})
	g.Go(func() error {
		res, err := s.searcher.Search(gctx, s.settings.ProcessIndex, flagged.Body())
		if err != nil {
			return fmt.Errorf("dashboard red flags: %w", err)
		}
		flaggedRes = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggs := aggregation.Result(totalsRes.Aggregations)
	contracts, err := aggs.Sub("contratos")
	if err != nil {
		return nil, apperrors.Internal("dashboard", err)
	}
	suppliers, err := aggs.Buckets("proveedores_dncp")
	if err != nil {
		return nil, apperrors.Internal("dashboard", err)
	}
	distinct := make(map[string]struct{}, len(suppliers))
	for _, b := range suppliers {
		distinct[b.KeyString()] = struct{}{}
	}

	return &domain.Dashboard{
		Contratos:      contracts.ValueOrZero("distinct_contracts"),
		Procesos:       aggs.ValueOrZero("procesos_contratacion"),
		RedFlags:       aggs.ValueOrZero("red_flags"),
		UniqueRedFlags: flaggedRes.Hits.Total.Value,
		Compradores:    aggs.ValueOrZero("distinct_buyers"),
		Proveedores:    len(distinct),
	}, nil
}
