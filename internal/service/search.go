package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// Search methods.
const (
	MethodProcess  = "proceso"
	MethodContract = "contrato"
	MethodPayment  = "pago"
)

const (
	maxInstitutionBuckets = 10000
	maxFunderBuckets      = 2000
)

var searchSource = []string{"doc.compiledRelease", "extra", "banderas"}

var searchEcho = []string{
	"term", "moneda", "redFlag", "metodo_seleccion", "institucion", "categoria", "year", "organismo", "ordenarPor",
}

// SearchService serves the process search and its exports.
type SearchService struct {
	searcher Searcher
	scroller Scroller
	settings Settings
	exports  ExportSettings
	metrics  *metrics.Metrics
}

// NewSearchService creates a SearchService. scroller may be nil when exports are not served.
func NewSearchService(searcher Searcher, scroller Scroller, settings Settings, exports ExportSettings, m *metrics.Metrics) *SearchService {
	return &SearchService{searcher: searcher, scroller: scroller, settings: settings, exports: exports, metrics: m}
}

// searchMethod reads metodo; unknown values search processes.
func searchMethod(params query.Params) string {
	switch m := params.Get("metodo"); m {
	case MethodContract, MethodPayment:
		return m
	default:
		return MethodProcess
	}
}

// searchFilters compiles the buscador parameters. Exports share it.
func (s Settings) searchFilters(method string, params query.Params) (*query.Bool, error) {
	b := query.NewBool()

	switch method {
	case MethodProcess:
		b.AddFilter(query.Exists(fieldTenderID), query.Exists(fieldMainCategory))
	case MethodContract:
		b.AddMust(query.Nested(pathContracts, query.Exists(fieldContractID)))
	}

	if moneda := params.Get("moneda"); moneda != "" {
		if m := unescapePartie(moneda); m == NoCurrencyLabel || m == NoPaymentCurrencyLabel {
			b.AddMustNot(query.Nested(pathContracts, query.Exists(fieldContractCcy)))
		} else {
			b.AddMust(query.Nested(pathContracts, query.Match(fieldContractCcy, moneda)))
		}
	}
	if v := params.Get("metodo_seleccion"); v != "" {
		b.AddFilter(query.MatchPhrase(fieldMethodDetails, v))
	}
	if v := params.Get("institucion"); v != "" {
		b.AddFilter(query.MatchPhrase(fieldParentTopName, v))
	}
	if v := params.Get("categoria"); v != "" {
		b.AddFilter(query.MatchPhrase(fieldMainCategory, v))
	}
	if raw := params.Get("year"); raw != "" {
		year, err := parseYear(raw)
		if err != nil {
			return nil, err
		}
		field := fieldTenderStart
		if method != MethodProcess {
			field = fieldReleaseDate
		}
		b.AddFilter(query.YearRange(field, year))
	}
	if term := params.Get("term"); term != "" {
		if method == MethodProcess {
			b.AddFilter(query.Match(fieldTenderTitle, term))
		} else {
			b.AddMust(query.Nested(pathContracts, query.Wildcard(fieldContractDesc, "*"+term+"*")))
		}
	}
	if v := params.Get("organismo"); v != "" {
		b.AddFilter(query.MatchPhrase(fieldOrganismo, v))
	}
	if raw := params.Get("redFlag"); raw != "" {
		for flag := range strings.SplitSeq(raw, ",") {
			if flag = strings.TrimSpace(flag); flag != "" {
				b.AddMust(query.MatchPhrase(fieldRedFlagTitle, flag))
			}
		}
	}
	return b, nil
}

func (s Settings) searchAggs(method string) aggregation.Map {
	histogramField := fieldTenderStart
	if method == MethodContract {
		histogramField = fieldReleaseDate
	}

	contracts := aggregation.Nested(pathContracts).
		Sub("monedas", aggregation.Terms(fieldContractCcy+".keyword", 0).Sub("nProcesos", aggregation.ReverseNested())).
		Sub("promedio_montos_contrato", aggregation.Avg(fieldContractAmount)).
		Sub("promedio_montos_pago", aggregation.Avg(fieldPaymentAmount)).
		Sub("distinct_proveedores_pagos", aggregation.Cardinality(fieldPaymentPayeeID, s.Precision))

	aggs := aggregation.Map{
		"redFlags":                       aggregation.Terms(fieldRedFlagTitle, 0),
		"metodos_de_seleccion":           aggregation.Terms(fieldMethodDetails+".keyword", 0),
		"instituciones":                  aggregation.Terms(fieldParentTopName, maxInstitutionBuckets),
		"categorias":                     aggregation.Terms(fieldMainCategory+".keyword", 0),
		"organismosFinanciadores":        aggregation.Terms(fieldFinanciador, maxFunderBuckets),
		"años":                           aggregation.DateHistogram(histogramField, aggregation.Year, "yyyy", 1),
		"distinct_proveedores_contratos": aggregation.Cardinality(fieldSuppliersName, s.Precision),
		"compradores_total":              aggregation.Cardinality(fieldBuyerID, s.Precision),
	}
	switch method {
	case MethodProcess:
		aggs["procesos_total"] = aggregation.ValueCount(fieldOCID)
	case MethodContract:
		contracts = contracts.Sub("procesos_total", aggregation.Cardinality(fieldContractID+".keyword", s.Precision))
	}
	aggs["contratos"] = contracts
	return aggs
}

// Search runs the buscador: filtered, sorted process hits with facets and a summary.
func (s *SearchService) Search(ctx context.Context, params query.Params) (*domain.SearchResult, error) {
	method := searchMethod(params)
	b, err := s.settings.searchFilters(method, params)
	if err != nil {
		return nil, err
	}

	req := query.NewRequest(b).
		WithSource(searchSource...).
		WithSort(query.BuildSort(query.ParseSort(params.Get("ordenarPor")), searchSort)).
		WithAggs(s.settings.searchAggs(method).DSL())

	src := newHitSource(s.searcher, s.settings.ProcessIndex, req)
	result, err := pagination.Paginate[elasticsearch.Hit](ctx, src, page(params), s.settings.PageSize)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", method, err)
	}
	res, err := src.response(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s facets: %w", method, err)
	}

	aggs := aggregation.Result(res.Aggregations)
	contracts, err := aggs.Sub("contratos")
	if err != nil {
		return nil, apperrors.Internal("search", err)
	}
	currencies, err := s.currencyFacet(method, contracts, result.Meta.TotalItems)
	if err != nil {
		return nil, apperrors.Internal("search", err)
	}

	return &domain.SearchResult{
		Paginador: result.Meta,
		Parametros: echo(params, map[string]any{
			"metodo": method,
			"pagina": result.Meta.Page,
		}, searchEcho...),
		Resumen: summarize(method, aggs, contracts),
		Filtros: map[string]json.RawMessage{
			"redFlags":                aggs.Raw("redFlags"),
			"monedas":                 currencies,
			"años":                    aggs.Raw("años"),
			"categorias":              aggs.Raw("categorias"),
			"instituciones":           aggs.Raw("instituciones"),
			"metodos_de_seleccion":    aggs.Raw("metodos_de_seleccion"),
			"organismosFinanciadores": aggs.Raw("organismosFinanciadores"),
		},
		Resultados: result.Items,
	}, nil
}

// currencyFacet counts processes, not contracts, per currency when searching processes,
// and adds a bucket for the processes without any contract amount.
func (s *SearchService) currencyFacet(method string, contracts aggregation.Result, total int64) (json.RawMessage, error) {
	if method != MethodProcess || total == 0 {
		return contracts.Raw("monedas"), nil
	}

	buckets, err := contracts.Buckets("monedas")
	if err != nil {
		return nil, err
	}
	var withCurrency int64
	for i := range buckets {
		processes, subErr := buckets[i].Aggs.Sub("nProcesos")
		if subErr != nil {
			return nil, subErr
		}
		buckets[i].DocCount = processes.DocCount()
		withCurrency += buckets[i].DocCount
	}
	if without := total - withCurrency; without > 0 {
		buckets = append(buckets, aggregation.StringKey(NoCurrencyLabel, without))
	}
	if buckets == nil {
		buckets = []aggregation.Bucket{}
	}

	raw, err := json.Marshal(map[string]any{"buckets": buckets})
	if err != nil {
		return nil, fmt.Errorf("encode currency facet: %w", err)
	}
	return raw, nil
}

func summarize(method string, aggs, contracts aggregation.Result) domain.Summary {
	sum := domain.Summary{CompradoresTotal: aggs.ValueOrZero("compradores_total")}
	switch method {
	case MethodProcess:
		sum.MontoPromedio = contracts.ValueOrZero("promedio_montos_contrato")
		sum.ProcesosTotal = aggs.ValueOrZero("procesos_total")
		sum.ProveedoresTotal = aggs.ValueOrZero("distinct_proveedores_contratos")
	case MethodContract:
		sum.MontoPromedio = contracts.ValueOrZero("promedio_montos_contrato")
		sum.ProcesosTotal = contracts.ValueOrZero("procesos_total")
		sum.ProveedoresTotal = aggs.ValueOrZero("distinct_proveedores_contratos")
	}
	return sum
}
