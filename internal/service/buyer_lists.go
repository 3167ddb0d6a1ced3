package service

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// listSpec describes one of the per-buyer hit listings.
type listSpec struct {
	name       string
	index      func(Settings) string
	defaultTID string
	filters    []query.FilterSpec
	sort       map[string]query.SortField
	source     []string
	scope      func(s Settings, b *query.Bool, partie, tid string, dependencias bool)
}

var processList = listSpec{
	name:       "procesos",
	index:      func(s Settings) string { return s.ProcessIndex },
	defaultTID: TIDName,
	filters:    processFilters,
	sort:       processSort,
	source:     processSource,
	scope: func(s Settings, b *query.Bool, partie, tid string, dependencias bool) {
		if tid == TIDID {
			b.AddFilter(query.Should(
				query.MatchPhrase(fieldBuyerID, partie),
				query.MatchPhrase(fieldParent1ID, partie),
				query.MatchPhrase(fieldParent2ID, partie),
			))
		} else {
			b.AddFilter(nameScope(partie, dependencias))
		}
		b.AddMustNot(query.MatchPhrase(fieldSourcesID+".keyword", s.SEFINSourceID))
		b.AddFilter(query.Exists(fieldTender))
	},
}

var contractList = listSpec{
	name:       "contratos",
	index:      func(s Settings) string { return s.ContractIndex },
	defaultTID: TIDID,
	filters:    contractFilters,
	sort:       contractSort,
	scope: func(s Settings, b *query.Bool, partie, tid string, dependencias bool) {
		b.AddMustNot(query.MatchPhrase(cFieldSourcesID, s.SEFINSourceID))
		if tid == TIDID {
			b.AddFilter(query.Should(
				query.MatchPhrase(cFieldBuyerID, partie),
				query.MatchPhrase(fieldParent1ID, partie),
				query.MatchPhrase(fieldParent2ID, partie),
			))
			return
		}
		b.AddFilter(nameScope(partie, dependencias))
	},
}

var paymentList = listSpec{
	name:       "pagos",
	index:      func(s Settings) string { return s.ContractIndex },
	defaultTID: TIDName,
	filters:    paymentFilters,
	sort:       paymentSort,
	scope: func(_ Settings, b *query.Bool, partie, tid string, dependencias bool) {
		b.AddFilter(query.Exists(cFieldImplementation))
		if tid == TIDID {
			b.AddFilter(query.MatchPhrase(cFieldBuyerID, partie))
			return
		}
		b.AddFilter(nameScope(partie, dependencias))
	},
}

// nameScope selects a buyer by name: the dependency itself, or every dependency under a top-level institution.
func nameScope(name string, dependencias bool) query.Clause {
	if dependencias {
		return query.MatchPhrase(fieldBuyerFullName, name)
	}
	return query.MatchPhrase(fieldParentTopName, name)
}

// Processes lists the contracting processes of a buyer.
func (s *BuyerService) Processes(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error) {
	return s.list(ctx, processList, partieID, params)
}

// Contracts lists the contracts signed by a buyer.
func (s *BuyerService) Contracts(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error) {
	return s.list(ctx, contractList, partieID, params)
}

// Payments lists the contracts of a buyer that carry payment transactions.
func (s *BuyerService) Payments(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error) {
	return s.list(ctx, paymentList, partieID, params)
}

func (s *BuyerService) list(ctx context.Context, spec listSpec, partieID string, params query.Params) (*domain.HitList, error) {
	perPage, err := s.settings.perPage(params)
	if err != nil {
		return nil, err
	}
	tid, err := parseTID(params, spec.defaultTID)
	if err != nil {
		return nil, err
	}

	partie := unescapePartie(partieID)
	dependencias := params.Get("dependencias") == "1"

	b := query.NewBool()
	spec.scope(s.settings, b, partie, tid, dependencias)
	logIgnored(ctx, b.Apply(params, spec.filters))

	req := query.NewRequest(b).WithSort(query.BuildSort(query.ParseSort(params.Get("ordenarPor")), spec.sort))
	if len(spec.source) > 0 {
		req.WithSource(spec.source...)
	}

	src := newHitSource(s.searcher, spec.index(s.settings), req)
	result, err := pagination.Paginate[elasticsearch.Hit](ctx, src, page(params), perPage)
	if err != nil {
		return nil, fmt.Errorf("list %s of %q: %w", spec.name, partie, err)
	}

	keys := make([]string, 0, len(spec.filters)+3)
	for _, f := range spec.filters {
		keys = append(keys, f.Param)
	}
	keys = append(keys, "dependencias", "ordenarPor")

	return &domain.HitList{
		Paginador: result.Meta,
		Parametros: echo(params, map[string]any{
			"paginarPor": perPage,
			"tid":        tid,
			"partieId":   partie,
			"pagina":     result.Meta.Page,
		}, keys...),
		Resultados: result.Items,
	}, nil
}
