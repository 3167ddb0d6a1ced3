package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/cache"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/export"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
)

// DashboardProvider computes the /inicio counts.
type DashboardProvider interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
}

// ProcessSearcher runs the buscador and its exports.
type ProcessSearcher interface {
	Search(ctx context.Context, params query.Params) (*domain.SearchResult, error)
	Export(ctx context.Context, kind export.Kind, params query.Params, w export.Writer) (int, error)
	FileName(kind export.Kind, format export.Format, at time.Time) string
}

// BuyerProvider serves the buyers table, a buyer and its lists.
type BuyerProvider interface {
	Buyers(ctx context.Context, params query.Params) (*domain.BuyerList, error)
	Buyer(ctx context.Context, partieID string, params query.Params) (json.RawMessage, error)
	Processes(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error)
	Contracts(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error)
	Payments(ctx context.Context, partieID string, params query.Params) (*domain.HitList, error)
}

// RecordProvider reads compiled records.
type RecordProvider interface {
	Records(ctx context.Context) ([]elasticsearch.Hit, error)
	Record(ctx context.Context, ocid string) (json.RawMessage, error)
}

// ReleaseProvider reads stored releases.
type ReleaseProvider interface {
	Releases(ctx context.Context, publisher, rawPage string, self *url.URL) (*domain.ReleasePage, error)
	Release(ctx context.Context, releaseID string) (map[string]any, error)
}

// DownloadProvider lists bulk files and resolves download redirects.
type DownloadProvider interface {
	List(ctx context.Context, baseURL string) ([]domain.DownloadFile, error)
	Target(file string) (service.DownloadTarget, error)
}

// StatisticsProvider computes the estadisticas series.
type StatisticsProvider interface {
	ContractsPerMonth(ctx context.Context, rawYear string) ([]domain.MonthlyContracts, error)
	TopBuyers(ctx context.Context, rawN string) ([]domain.TopBuyer, error)
	Categories(ctx context.Context) ([]domain.CategoryShare, error)
}

// Services are the operations behind the routes. Releases and Downloads are nil
// when the relational store is disabled.
type Services struct {
	Dashboard  DashboardProvider
	Search     ProcessSearcher
	Buyers     BuyerProvider
	Records    RecordProvider
	Releases   ReleaseProvider
	Downloads  DownloadProvider
	Statistics StatisticsProvider
}

// Handler holds HTTP request handlers
type Handler struct {
	svc   Services
	cache *cache.Cache
	now   func() time.Time
}

// NewHandler creates a handler. c may be nil to disable response caching.
func NewHandler(svc Services, c *cache.Cache) *Handler {
	return &Handler{svc: svc, cache: c, now: time.Now}
}

func params(c *gin.Context) query.Params {
	return query.ParamsFromValues(c.Request.URL.Query())
}

// respond writes v as JSON, or the error.
func respond[T any](c *gin.Context, v T, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// cached serves the response of load from the cache, keyed by route and query string.
func cached[T any](c *gin.Context, h *Handler, scope string, load func(context.Context) (T, error)) {
	key := cache.Key(scope+c.FullPath(), c.Request.URL.Query())
	v, err := cache.GetOrLoad(c.Request.Context(), h.cache, key, load)
	respond(c, v, err)
}

// Dashboard handles GET /inicio.
func (h *Handler) Dashboard(c *gin.Context) {
	cached(c, h, "", h.svc.Dashboard.Dashboard)
}

// Search handles GET /buscador.
func (h *Handler) Search(c *gin.Context) {
	result, err := h.svc.Search.Search(c.Request.Context(), params(c))
	respond(c, result, err)
}

// Buyers handles GET /compradores.
func (h *Handler) Buyers(c *gin.Context) {
	result, err := h.svc.Buyers.Buyers(c.Request.Context(), params(c))
	respond(c, result, err)
}

// Buyer handles GET /compradores/:partieId.
func (h *Handler) Buyer(c *gin.Context) {
	party, err := h.svc.Buyers.Buyer(c.Request.Context(), c.Param("partieId"), params(c))
	respond(c, party, err)
}

// BuyerProcesses handles GET /compradores/:partieId/procesos.
func (h *Handler) BuyerProcesses(c *gin.Context) {
	result, err := h.svc.Buyers.Processes(c.Request.Context(), c.Param("partieId"), params(c))
	respond(c, result, err)
}

// BuyerContracts handles GET /compradores/:partieId/contratos.
func (h *Handler) BuyerContracts(c *gin.Context) {
	result, err := h.svc.Buyers.Contracts(c.Request.Context(), c.Param("partieId"), params(c))
	respond(c, result, err)
}

// BuyerPayments handles GET /compradores/:partieId/pagos.
func (h *Handler) BuyerPayments(c *gin.Context) {
	result, err := h.svc.Buyers.Payments(c.Request.Context(), c.Param("partieId"), params(c))
	respond(c, result, err)
}

// Records handles GET /record.
func (h *Handler) Records(c *gin.Context) {
	hits, err := h.svc.Records.Records(c.Request.Context())
	respond(c, hits, err)
}

// Record handles GET /record/:ocid.
func (h *Handler) Record(c *gin.Context) {
	record, err := h.svc.Records.Record(c.Request.Context(), c.Param("ocid"))
	respond(c, record, err)
}

// ContractsPerMonth handles GET /estadisticas/contratos-por-mes.
func (h *Handler) ContractsPerMonth(c *gin.Context) {
	year := c.Query("year")
	cached(c, h, "", func(ctx context.Context) ([]domain.MonthlyContracts, error) {
		return h.svc.Statistics.ContractsPerMonth(ctx, year)
	})
}

// TopBuyers handles GET /estadisticas/top-compradores.
func (h *Handler) TopBuyers(c *gin.Context) {
	n := c.Query("n")
	cached(c, h, "", func(ctx context.Context) ([]domain.TopBuyer, error) {
		return h.svc.Statistics.TopBuyers(ctx, n)
	})
}

// Categories handles GET /estadisticas/categorias.
func (h *Handler) Categories(c *gin.Context) {
	cached(c, h, "", h.svc.Statistics.Categories)
}
