package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buyerBuckets = `{
	"aggregations": {"compradores": {"buckets": [
		{
			"key": "Secretaria de Salud", "doc_count": 10,
			"procesos": {"value": 10},
			"contratos": {"doc_count": 4,
				"suma": {"value": 1000}, "promedio": {"value": 250},
				"maximo": {"value": 600}, "minimo": {"value": 100}},
			"fecha_ultimo_proceso": {"value": 1577836800000, "value_as_string": "2020-01-01T00:00:00.000Z"}
		},
		{
			"key": "Alcaldía de Tela", "doc_count": 3,
			"procesos": {"value": 3},
			"contratos": {"doc_count": 0,
				"suma": {"value": 0}, "promedio": {"value": null},
				"maximo": {"value": null}, "minimo": {"value": null}},
			"fecha_ultimo_proceso": {"value": null}
		},
		{
			"key": "Banco Central", "doc_count": 5,
			"procesos": {"value": 5},
			"contratos": {"doc_count": 2,
				"suma": {"value": 5000}, "promedio": {"value": 2500},
				"maximo": {"value": 4000}, "minimo": {"value": 1000}},
			"fecha_ultimo_proceso": {"value": 1590969600000, "value_as_string": "2020-06-01T00:00:00.000Z"}
		}
	]}}
}`

func newBuyerService(fake *fakeSearcher) *service.BuyerService {
	return service.NewBuyerService(fake, service.DefaultSettings())
}

func buyerFake(t *testing.T) *fakeSearcher {
	t.Helper()

	fake := &fakeSearcher{}
	fake.respond = func(string, string) (*elasticsearch.SearchResponse, error) {
		return response(t, buyerBuckets), nil
	}
	return fake
}

func names(rows []domain.BuyerRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestBuyers_RowsAndNullMetrics(t *testing.T) {
	t.Parallel()

	svc := newBuyerService(buyerFake(t))

	got, err := svc.Buyers(context.Background(), query.Params{})
	require.NoError(t, err)
	require.Len(t, got.Resultados, 3)

	salud := got.Resultados[0]
	assert.Equal(t, "Secretaria de Salud", salud.Name)
	assert.Equal(t, "Secretaria+de+Salud", salud.URI)
	assert.InDelta(t, 10, salud.Procesos, 0)
	require.NotNil(t, salud.TotalMontoContratado)
	assert.InDelta(t, 1000, *salud.TotalMontoContratado, 0)
	require.NotNil(t, salud.FechaUltimoProceso)
	assert.Equal(t, "2020-01-01T00:00:00.000Z", *salud.FechaUltimoProceso)

	tela := got.Resultados[1]
	assert.Nil(t, tela.PromedioMontoContratado)
	assert.Nil(t, tela.MayorMontoContratado)
	assert.Nil(t, tela.FechaUltimoProceso)

	assert.Equal(t, service.TIDName, got.Parametros["tid"])
	assert.Equal(t, 10, got.Parametros["paginarPor"])
}

func TestBuyers_SortAndPaginate(t *testing.T) {
	t.Parallel()

	svc := newBuyerService(buyerFake(t))

	got, err := svc.Buyers(context.Background(), query.Params{"ordenarPor": "asc(name)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alcaldía de Tela", "Banco Central", "Secretaria de Salud"}, names(got.Resultados))

	got, err = svc.Buyers(context.Background(), query.Params{"ordenarPor": "desc(promedio_monto_contratado)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Banco Central", "Secretaria de Salud", "Alcaldía de Tela"}, names(got.Resultados),
		"null metrics sort as the smallest value")

	got, err = svc.Buyers(context.Background(), query.Params{
		"ordenarPor": "asc(name)",
		"paginarPor": "2",
		"pagina":     "2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Secretaria de Salud"}, names(got.Resultados))
	assert.Equal(t, 2, got.Paginador.NumPages)
	assert.Equal(t, int64(3), got.Paginador.TotalItems)
	assert.True(t, got.Paginador.HasPrevious)
}

func TestBuyers_LastProcessFilter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		fup  string
		want []string
	}{
		{name: "after", fup: ">=2020-03-01", want: []string{"Banco Central"}},
		{name: "same calendar day", fup: "==2020-01-01", want: []string{"Secretaria de Salud"}},
		{
			name: "not equal keeps buyers without processes",
			fup:  "!=2020-01-01",
			want: []string{"Alcaldía de Tela", "Banco Central"},
		},
		{
			name: "malformed operand is ignored",
			fup:  ">=ayer",
			want: []string{"Secretaria de Salud", "Alcaldía de Tela", "Banco Central"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newBuyerService(buyerFake(t))
			got, err := svc.Buyers(context.Background(), query.Params{"fup": tc.fup})
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got.Resultados))
		})
	}
}

func TestBuyers_BucketSelectors(t *testing.T) {
	t.Parallel()

	fake := buyerFake(t)
	svc := newBuyerService(fake)

	_, err := svc.Buyers(context.Background(), query.Params{
		"tmc":  ">=1000",
		"cp":   "<5",
		"pmc":  "abc",
		"mamc": ">=mucho",
	})
	require.NoError(t, err)

	calls := fake.searchCalls()
	require.Len(t, calls, 1)
	body := calls[0].body
	assert.Contains(t, body, compact(t,
		`{"bucket_selector":{"buckets_path":{"tmc":"contratos.suma"},"script":"params.tmc >= 1000"}}`))
	assert.Contains(t, body, compact(t,
		`{"bucket_selector":{"buckets_path":{"cp":"procesos"},"script":"params.cp < 5"}}`))
	assert.NotContains(t, body, "filtro_pmc")
	assert.NotContains(t, body, "filtro_mamc")
}

func TestBuyers_GroupByID(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{}
	fake.respond = func(string, string) (*elasticsearch.SearchResponse, error) {
		return response(t, `{"aggregations": {"compradores": {"buckets": [
			{"key": "HN-1", "doc_count": 3, "nombre": {"buckets": [
				{"key": "Secretaria de Salud", "doc_count": 3, "procesos": {"value": 3}}
			]}}
		]}}}`), nil
	}
	svc := newBuyerService(fake)

	got, err := svc.Buyers(context.Background(), query.Params{"tid": "id"})
	require.NoError(t, err)
	require.Len(t, got.Resultados, 1)
	assert.Equal(t, "HN-1", got.Resultados[0].ID)
	assert.Equal(t, "Secretaria de Salud", got.Resultados[0].Name)
	assert.Nil(t, got.Resultados[0].TotalMontoContratado)

	assert.Contains(t, fake.searchCalls()[0].body, `"field":"extra.parentTop.id.keyword"`)
}

func TestBuyers_InvalidParameters(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		params query.Params
	}{
		{name: "tid", params: query.Params{"tid": "codigo"}},
		{name: "paginarPor", params: query.Params{"paginarPor": "diez"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := buyerFake(t)
			_, err := newBuyerService(fake).Buyers(context.Background(), tc.params)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))
			assert.Empty(t, fake.searchCalls())
		})
	}
}

func TestBuyer_PartyLookup(t *testing.T) {
	t.Parallel()

	party := `{"id": "HN-77", "name": "Alcaldía Municipal de Tela", "roles": ["buyer"]}`
	fake := &fakeSearcher{}
	fake.respond = func(_, body string) (*elasticsearch.SearchResponse, error) {
		switch {
		case strings.Contains(body, `"doc.compiledRelease.parties.id.keyword":"HN-77"`):
			return response(t, `{"hits": {"hits": [{"_id": "p", "inner_hits": {
				"doc.compiledRelease.parties": {"hits": {"hits": [{"_id": "p", "_source": `+party+`}]}}
			}}]}}`), nil
		case strings.Contains(body, `"extra.buyerFullName.keyword"`):
			return response(t, `{"hits": {"hits": [{"_id": "x",
				"_source": {"doc": {"compiledRelease": {"buyer": {"id": "HN-77"}}}}}]}}`), nil
		default:
			return response(t, `{"hits": {"hits": []}}`), nil
		}
	}
	svc := newBuyerService(fake)

	got, err := svc.Buyer(context.Background(), "Alcald%C3%ADa+de+Tela", query.Params{})
	require.NoError(t, err)
	assert.JSONEq(t, party, string(got))

	calls := fake.searchCalls()
	require.Len(t, calls, 3, "name lookup, latest buyer id, id lookup")
	assert.Contains(t, calls[0].body, `"doc.compiledRelease.parties.name.keyword":"Alcaldía de Tela"`)
	assert.Contains(t, calls[0].body, `"_source":false`)
}

func TestBuyer_NotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{}
	_, err := newBuyerService(fake).Buyer(context.Background(), "Nadie", query.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestBuyerLists_Scope(t *testing.T) {
	t.Parallel()

	settings := service.DefaultSettings()
	sefin := compact(t, `{"match_phrase":{"extra.sources.id":"`+settings.SEFINSourceID+`"}}`)

	testCases := []struct {
		name   string
		run    func(*service.BuyerService) (*domain.HitList, error)
		index  string
		want   []string
		absent []string
	}{
		{
			name: "processes by institution name",
			run: func(s *service.BuyerService) (*domain.HitList, error) {
				return s.Processes(context.Background(), "Secretaria+de+Salud", query.Params{
					"montoContratado": ">=1000000",
				})
			},
			index: settings.ProcessIndex,
			want: []string{
				compact(t, `{"match_phrase":{"extra.parentTop.name.keyword":"Secretaria de Salud"}}`),
				compact(t, `{"match_phrase":{"doc.compiledRelease.sources.id.keyword":"`+settings.SEFINSourceID+`"}}`),
				compact(t, `{"exists":{"field":"doc.compiledRelease.tender"}}`),
				compact(t, `{"range":{"doc.compiledRelease.tender.extra.sumContracts":{"gte":1000000}}}`),
			},
		},
		{
			name: "processes of a dependency",
			run: func(s *service.BuyerService) (*domain.HitList, error) {
				return s.Processes(context.Background(), "Hospital Escuela", query.Params{"dependencias": "1"})
			},
			index: settings.ProcessIndex,
			want:  []string{compact(t, `{"match_phrase":{"extra.buyerFullName.keyword":"Hospital Escuela"}}`)},
		},
		{
			name: "contracts by buyer id exclude SEFIN",
			run: func(s *service.BuyerService) (*domain.HitList, error) {
				return s.Contracts(context.Background(), "HN-1", query.Params{"estado": "active"})
			},
			index: settings.ContractIndex,
			want: []string{
				sefin,
				compact(t, `{"match_phrase":{"extra.buyer.id.keyword":"HN-1"}}`),
				compact(t, `{"match_phrase":{"extra.parent1.id.keyword":"HN-1"}}`),
				compact(t, `{"match":{"status":"active"}}`),
			},
		},
		{
			name: "payments require an implementation",
			run: func(s *service.BuyerService) (*domain.HitList, error) {
				return s.Payments(context.Background(), "HN-1", query.Params{"tid": "id", "proveedor": "Farmacia"})
			},
			index: settings.ContractIndex,
			want: []string{
				compact(t, `{"exists":{"field":"implementation"}}`),
				compact(t, `{"match_phrase":{"extra.buyer.id.keyword":"HN-1"}}`),
				compact(t, `{"nested":{"path":"implementation.transactions","query":{"match":{"implementation.transactions.payee.name":"Farmacia"}}}}`),
			},
			absent: []string{sefin},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeSearcher{total: 1}
			got, err := tc.run(newBuyerService(fake))
			require.NoError(t, err)
			assert.NotNil(t, got.Resultados)

			calls := fake.searchCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.index, calls[0].index)
			for _, w := range tc.want {
				assert.Contains(t, calls[0].body, w)
			}
			for _, a := range tc.absent {
				assert.NotContains(t, calls[0].body, a)
			}
		})
	}
}

func TestBuyerLists_PageAndEcho(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{total: 45}
	fake.respond = func(string, string) (*elasticsearch.SearchResponse, error) {
		return response(t, `{"hits": {"total": {"value": 45, "relation": "eq"}, "hits": [{"_id": "c1"}]}}`), nil
	}
	svc := newBuyerService(fake)

	got, err := svc.Contracts(context.Background(), "HN-1", query.Params{
		"paginarPor": "20",
		"pagina":     "3",
		"ordenarPor": "desc(monto)",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, got.Paginador.Page)
	assert.Equal(t, 3, got.Paginador.NumPages)
	assert.Equal(t, 20, got.Parametros["paginarPor"])
	assert.Equal(t, service.TIDID, got.Parametros["tid"])
	assert.Equal(t, "HN-1", got.Parametros["partieId"])
	assert.Equal(t, "desc(monto)", got.Parametros["ordenarPor"])
	assert.Equal(t, 3, got.Parametros["pagina"])

	body := fake.searchCalls()[0].body
	assert.Contains(t, body, `"from":40`)
	assert.Contains(t, body, `"size":20`)
	assert.Contains(t, body, compact(t, `[{"value.amount":{"order":"desc"}}]`))

	got, err = svc.Contracts(context.Background(), "HN-1", query.Params{"paginarPor": "20", "pagina": "99"})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Paginador.Page)
	assert.Equal(t, 3, got.Parametros["pagina"])

	_, err = svc.Contracts(context.Background(), "HN-1", query.Params{"paginarPor": "veinte"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))
}
