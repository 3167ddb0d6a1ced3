package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/aggregation"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/shaper"
)

// BuyerService serves the buyer table, buyer parties and per-buyer listings.
type BuyerService struct {
	searcher Searcher
	settings Settings
}

// NewBuyerService creates a BuyerService.
func NewBuyerService(searcher Searcher, settings Settings) *BuyerService {
	return &BuyerService{searcher: searcher, settings: settings}
}

// metricSelectors are the comparison parameters evaluated by bucket_selector.
var metricSelectors = []struct {
	param string
	path  string
}{
	{param: "tmc", path: "contratos.suma"},
	{param: "pmc", path: "contratos.promedio"},
	{param: "mamc", path: "contratos.maximo"},
	{param: "memc", path: "contratos.minimo"},
	{param: "cp", path: "procesos"},
}

var buyerEcho = []string{
	"nombre", "identificacion", "tmc", "pmc", "mamc", "memc", "fup", "cp", "dependencias", "ordenarPor",
}

// Buyers aggregates processes and contract amounts per buyer.
func (s *BuyerService) Buyers(ctx context.Context, params query.Params) (*domain.BuyerList, error) {
	perPage, err := s.settings.perPage(params)
	if err != nil {
		return nil, err
	}
	tid, err := parseTID(params, TIDName)
	if err != nil {
		return nil, err
	}
	dependencias := params.Get("dependencias") == "1"

	b := query.NewBool()
	if nombre := params.Get("nombre"); nombre != "" {
		field := fieldParentTopText
		if dependencias {
			field = fieldBuyerFullText
		}
		b.AddFilter(query.Match(field, nombre))
	}
	if ident := params.Get("identificacion"); ident != "" {
		field := fieldParentTopIDText
		if dependencias {
			field = fieldBuyerID
		}
		b.AddFilter(query.Match(field, ident))
	}

	nameField, idField := fieldParentTopName, fieldParentTopID
	if dependencias {
		nameField, idField = fieldBuyerFullName, fieldBuyerID
	}

	perBuyer := s.buyerMetrics(ctx, aggregation.Terms(nameField, s.settings.MaxBuyerBuckets), params)
	group := perBuyer
	if tid == TIDID {
		group = aggregation.Terms(idField, s.settings.MaxBuyerBuckets).Sub("nombre", perBuyer)
	}

	req := query.NewRequest(b).WithAggs(aggregation.Map{"compradores": group}.DSL())
	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, fmt.Errorf("aggregate buyers: %w", err)
	}

	buckets, err := aggregation.Result(res.Aggregations).Buckets("compradores")
	if err != nil {
		return nil, apperrors.Internal("buyers", err)
	}

	var rows []domain.BuyerRow
	if tid == TIDID {
		rows, err = shaper.FlattenNested(buckets, "nombre", func(parent, child aggregation.Bucket) domain.BuyerRow {
			row := buyerRow(child)
			row.ID = parent.KeyString()
			return row
		})
		if err != nil {
			return nil, apperrors.Internal("buyers", err)
		}
	} else {
		rows = shaper.Flatten(buckets, buyerRow)
	}

	rows = filterLastProcess(ctx, rows, params.Get("fup"))
	shaper.SortByColumns(rows, query.ParseSort(params.Get("ordenarPor")), buyerColumns)

	result, err := pagination.Paginate[domain.BuyerRow](ctx, pagination.SliceSource[domain.BuyerRow](rows), page(params), perPage)
	if err != nil {
		return nil, fmt.Errorf("paginate buyers: %w", err)
	}

	return &domain.BuyerList{
		Paginador: result.Meta,
		Parametros: echo(params, map[string]any{
			"pagina":     result.Meta.Page,
			"paginarPor": perPage,
			"tid":        tid,
		}, buyerEcho...),
		Resultados: result.Items,
	}, nil
}

// buyerMetrics attaches the per-buyer metrics and the bucket selectors to group.
func (s *BuyerService) buyerMetrics(ctx context.Context, group aggregation.Agg, params query.Params) aggregation.Agg {
	contracts := aggregation.Nested(pathContracts).
		Sub("suma", aggregation.Sum(fieldContractAmount)).
		Sub("promedio", aggregation.Avg(fieldContractAmount)).
		Sub("maximo", aggregation.Max(fieldContractAmount)).
		Sub("minimo", aggregation.Min(fieldContractAmount))

	group = group.
		Sub("procesos", aggregation.Cardinality(fieldOCID, s.settings.Precision)).
		Sub("contratos", contracts).
		Sub("fecha_ultimo_proceso", aggregation.Max(fieldTenderStart))

	var ignored []query.Ignored
	for _, sel := range metricSelectors {
		raw := params.Get(sel.param)
		if raw == "" {
			continue
		}
		c, ok := query.ParseComparison(raw)
		if !ok {
			ignored = append(ignored, query.Ignored{Param: sel.param, Value: raw, Reason: "unknown operator"})
			continue
		}
		operand := strings.TrimSpace(c.Value)
		n, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			ignored = append(ignored, query.Ignored{Param: sel.param, Value: raw, Reason: "operand is not a number"})
			continue
		}
		group = group.Sub("filtro_"+sel.param,
			aggregation.BucketSelector(sel.param, sel.path, string(c.Op), strconv.FormatFloat(n, 'f', -1, 64)))
	}
	logIgnored(ctx, ignored)
	return group
}

func buyerRow(b aggregation.Bucket) domain.BuyerRow {
	name := b.KeyString()
	row := domain.BuyerRow{
		Name:     name,
		Procesos: b.Aggs.ValueOrZero("procesos"),
		URI:      url.QueryEscape(name),
	}
	if contracts, err := b.Aggs.Sub("contratos"); err == nil {
		row.TotalMontoContratado = optional(contracts.Value("suma"))
		row.PromedioMontoContratado = optional(contracts.Value("promedio"))
		row.MayorMontoContratado = optional(contracts.Value("maximo"))
		row.MenorMontoContratado = optional(contracts.Value("minimo"))
	}
	if last := b.Aggs.ValueString("fecha_ultimo_proceso"); last != "" {
		row.FechaUltimoProceso = &last
	}
	return row
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// filterLastProcess applies the fup comparison in memory. == compares the calendar day;
// rows without a last process date only pass !=.
func filterLastProcess(ctx context.Context, rows []domain.BuyerRow, raw string) []domain.BuyerRow {
	if raw == "" {
		return rows
	}
	c, ok := query.ParseComparison(raw)
	if !ok {
		logIgnored(ctx, []query.Ignored{{Param: "fup", Value: raw, Reason: "unknown operator"}})
		return rows
	}
	operand, err := time.Parse(time.DateOnly, strings.TrimSpace(c.Value))
	if err != nil {
		logIgnored(ctx, []query.Ignored{{Param: "fup", Value: raw, Reason: "operand is not a yyyy-MM-dd date"}})
		return rows
	}

	out := make([]domain.BuyerRow, 0, len(rows))
	for _, row := range rows {
		last, parsed := parseTimestamp(row.FechaUltimoProceso)
		if !parsed {
			if c.Op == query.OpNe {
				out = append(out, row)
			}
			continue
		}
		var cmp int
		if c.Op == query.OpEq {
			cmp = strings.Compare(last.UTC().Format(time.DateOnly), operand.Format(time.DateOnly))
		} else {
			cmp = last.Compare(operand)
		}
		if c.Op.Matches(cmp) {
			out = append(out, row)
		}
	}
	return out
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02T15:04:05", time.DateOnly}

func parseTimestamp(v *string) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func compareOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

var buyerColumns = map[string]shaper.Comparator[domain.BuyerRow]{
	"id":   func(a, b domain.BuyerRow) int { return strings.Compare(a.ID, b.ID) },
	"name": func(a, b domain.BuyerRow) int { return shaper.CompareFolded(a.Name, b.Name) },
	"procesos": func(a, b domain.BuyerRow) int {
		return compareOptional(&a.Procesos, &b.Procesos)
	},
	"total_monto_contratado": func(a, b domain.BuyerRow) int {
		return compareOptional(a.TotalMontoContratado, b.TotalMontoContratado)
	},
	"promedio_monto_contratado": func(a, b domain.BuyerRow) int {
		return compareOptional(a.PromedioMontoContratado, b.PromedioMontoContratado)
	},
	"mayor_monto_contratado": func(a, b domain.BuyerRow) int {
		return compareOptional(a.MayorMontoContratado, b.MayorMontoContratado)
	},
	"menor_monto_contratado": func(a, b domain.BuyerRow) int {
		return compareOptional(a.MenorMontoContratado, b.MenorMontoContratado)
	},
	"fecha_ultimo_proceso": func(a, b domain.BuyerRow) int {
		ta, okA := parseTimestamp(a.FechaUltimoProceso)
		tb, okB := parseTimestamp(b.FechaUltimoProceso)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return -1
		case !okB:
			return 1
		default:
			return ta.Compare(tb)
		}
	},
}

// Buyer returns the party record of a buyer, looked up by name or id.
// A name that matches no party is retried through the buyer id of the latest process
// of the dependency with that name.
func (s *BuyerService) Buyer(ctx context.Context, partieID string, params query.Params) (json.RawMessage, error) {
	tid, err := parseTID(params, TIDName)
	if err != nil {
		return nil, err
	}
	partie := unescapePartie(partieID)

	field := fieldPartyName
	if tid == TIDID {
		field = fieldPartyID
	}
	party, found, err := s.findParty(ctx, field, partie)
	if err != nil {
		return nil, err
	}
	if found {
		return party, nil
	}

	buyerID, found, err := s.latestBuyerID(ctx, partie)
	if err != nil {
		return nil, err
	}
	if found {
		party, found, err = s.findParty(ctx, fieldPartyID, buyerID)
		if err != nil {
			return nil, err
		}
		if found {
			return party, nil
		}
	}
	return nil, apperrors.NotFound("buyer %q not found", partie)
}

func (s *BuyerService) findParty(ctx context.Context, field, value string) (json.RawMessage, bool, error) {
	b := query.NewBool().AddMust(query.NestedInnerHits(pathParties, query.MatchPhrase(field, value), 1))
	req := query.NewRequest(b).
		Page(1, 1).
		WithoutSource().
		WithSort([]query.Clause{{fieldReleaseDate: map[string]any{"order": "desc"}}})

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return nil, false, fmt.Errorf("find party %q: %w", value, err)
	}
	if len(res.Hits.Hits) == 0 {
		return nil, false, nil
	}
	inner, ok := res.Hits.Hits[0].InnerHits[pathParties]
	if !ok || len(inner.Hits.Hits) == 0 {
		return nil, false, nil
	}
	return inner.Hits.Hits[0].Source, true, nil
}

func (s *BuyerService) latestBuyerID(ctx context.Context, name string) (string, bool, error) {
	b := query.NewBool().AddMust(query.MatchPhrase(fieldBuyerFullName, name))
	req := query.NewRequest(b).
		Page(1, 1).
		WithSource("doc.compiledRelease.buyer.id").
		WithSort([]query.Clause{{fieldReleaseDate: map[string]any{"order": "desc"}}})

	res, err := s.searcher.Search(ctx, s.settings.ProcessIndex, req.Body())
	if err != nil {
		return "", false, fmt.Errorf("find buyer %q: %w", name, err)
	}
	if len(res.Hits.Hits) == 0 {
		return "", false, nil
	}

	var doc struct {
		Doc struct {
			CompiledRelease struct {
				Buyer struct {
					ID string `json:"id"`
				} `json:"buyer"`
			} `json:"compiledRelease"`
		} `json:"doc"`
	}
	if err = res.Hits.Hits[0].DecodeSource(&doc); err != nil {
		return "", false, apperrors.Internal("buyer", err)
	}
	id := doc.Doc.CompiledRelease.Buyer.ID
	return id, id != "", nil
}
