package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/shaper"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopN        = 10
	maxCategoryBuckets = 100
)

// StatisticsService computes the chart series of the statistics pages.
type StatisticsService struct {
	searcher Searcher
	settings Settings
}

// NewStatisticsService creates a StatisticsService.
func NewStatisticsService(searcher Searcher, settings Settings) *StatisticsService {
	return &StatisticsService{searcher: searcher, settings: settings}
}

// ContractsPerMonth sums contract amounts per month of year. Contracts without a signature
// date are placed by the start of their period.
func (s *StatisticsService) ContractsPerMonth(ctx context.Context, rawYear string) ([]domain.MonthlyContracts, error) {
	if rawYear == "" {
		return nil, apperrors.Invalid("year is required")
	}
	year, err := parseYear(rawYear)
	if err != nil {
		return nil, err
	}

	signed := query.NewBool().AddFilter(query.Exists(cFieldDateSigned), query.YearRange(cFieldDateSigned, year))
	unsigned := query.NewBool().AddMustNot(query.Exists(cFieldDateSigned)).
		AddFilter(query.YearRange(cFieldPeriodStart, year))

	var signedRows, unsignedRows []shaper.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, monthErr := s.months(gctx, signed, cFieldDateSigned)
		signedRows = rows
		return monthErr
	})
	g.Go(func() error {
		rows, monthErr := s.months(gctx, unsigned, cFieldPeriodStart)
		unsignedRows = rows
		return monthErr
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	merged := shaper.Merge(signedRows, unsignedRows)
	out := make([]domain.MonthlyContracts, 0, len(merged))
	for _, r := range merged {
		out = append(out, domain.MonthlyContracts{
			Mes:      r.Key,
			Monto:    r.Measures["monto"],
			Cantidad: int64(r.Measures["cantidad"]),
		})
	}
	return out, nil
}

func (s *StatisticsService) months(ctx context.Context, b *query.Bool, field string) ([]shaper.Row, error) {
	req := query.NewRequest(b).WithAggs(aggregation.Map{
		"meses": aggregation.DateHistogram(field, aggregation.Month, "yyyy-MM", 1).
			Sub("monto", aggregation.Sum(cFieldAmount)),
	}.DSL())
	req.TrackTotalHits = false

	res, err := s.searcher.Search(ctx, s.settings.ContractIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("contracts per month by %s: %w", field, err)
	}
	buckets, err := aggregation.Result(res.Aggregations).Buckets("meses")
	if err != nil {
		return nil, apperrors.Internal("contracts per month", err)
	}
	return shaper.Flatten(buckets, func(b aggregation.Bucket) shaper.Row {
		return shaper.Row{
			Key: b.KeyString(),
			Measures: map[string]float64{
				"monto":    b.Aggs.ValueOrZero("monto"),
				"cantidad": float64(b.DocCount),
			},
		}
	}), nil
}

// TopBuyers returns the n buyers with the largest contracted amount, smallest first.
func (s *StatisticsService) TopBuyers(ctx context.Context, rawN string) ([]domain.TopBuyer, error) {
	n := defaultTopN
	if rawN != "" {
		parsed, err := strconv.Atoi(rawN)
		if err != nil {
			return nil, apperrors.Invalid("n must be an integer, got %q", rawN)
		}
		if parsed > 0 {
			n = parsed
		}
	}
	if s.settings.MaxTopN > 0 {
		n = min(n, s.settings.MaxTopN)
	}

	buyers := aggregation.Terms(fieldParentTopName, n).
		OrderBy("contratos>suma", true).
		Sub("contratos", aggregation.Nested(pathContracts).Sub("suma", aggregation.Sum(fieldContractAmount))).
		Sub("procesos", aggregation.Cardinality(fieldOCID, s.settings.Precision))

	req := query.NewRequest(nil).WithAggs(aggregation.Map{"compradores": buyers}.DSL())
	req.TrackTotalHits = false

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("top buyers: %w", err)
	}
	buckets, err := aggregation.Result(res.Aggregations).Buckets("compradores")
	if err != nil {
		return nil, apperrors.Internal("top buyers", err)
	}

	rows := shaper.Flatten(buckets, func(b aggregation.Bucket) domain.TopBuyer {
		var amount float64
		if contracts, subErr := b.Aggs.Sub("contratos"); subErr == nil {
			amount = contracts.ValueOrZero("suma")
		}
		return domain.TopBuyer{Nombre: b.KeyString(), Monto: amount, Procesos: b.Aggs.ValueOrZero("procesos")}
	})
	return shaper.TopN(rows, n, func(b domain.TopBuyer) float64 { return b.Monto }), nil
}

// Categories returns the share of processes per main procurement category.
func (s *StatisticsService) Categories(ctx context.Context) ([]domain.CategoryShare, error) {
	req := query.NewRequest(query.NewBool().AddFilter(query.Exists(fieldMainCategory))).
		WithAggs(aggregation.Map{
			"categorias": aggregation.Terms(fieldMainCategory+".keyword", maxCategoryBuckets),
		}.DSL())
	req.TrackTotalHits = false

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	buckets, err := aggregation.Result(res.Aggregations).Buckets("categorias")
	if err != nil {
		return nil, apperrors.Internal("categories", err)
	}

	shares := shaper.Percentages(buckets)
	out := make([]domain.CategoryShare, 0, len(shares))
	for _, sh := range shares {
		out = append(out, domain.CategoryShare{Categoria: sh.Key, Procesos: sh.Count, Porcentaje: sh.Percentage})
	}
	return out, nil
}
