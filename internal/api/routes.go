package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RouteOptions bound the request contexts of the portal routes.
type RouteOptions struct {
	RequestTimeout time.Duration
	ExportTimeout  time.Duration
	ExportLimiter  *rate.Limiter
}

// SetupRoutes registers the portal routes under /api/v1. Exports get their own group
// with a longer timeout and the rate limiter.
func SetupRoutes(router *gin.Engine, h *Handler, opts RouteOptions) {
	v1 := router.Group("/api/v1", TimeoutMiddleware(opts.RequestTimeout))
	{
		v1.GET("/inicio", h.Dashboard)
		v1.GET("/buscador", h.Search)

		buyers := v1.Group("/compradores")
		buyers.GET("", h.Buyers)
		buyers.GET("/:partieId", h.Buyer)
		buyers.GET("/:partieId/procesos", h.BuyerProcesses)
		buyers.GET("/:partieId/contratos", h.BuyerContracts)
		buyers.GET("/:partieId/pagos", h.BuyerPayments)

		v1.GET("/record", h.Records)
		v1.GET("/record/:ocid", h.Record)

		v1.GET("/releases", h.Releases)
		v1.GET("/releases/:id", h.Release)

		v1.GET("/descargas", h.Downloads)
		v1.GET("/descargas/:file", h.Download)

		stats := v1.Group("/estadisticas")
		stats.GET("/contratos-por-mes", h.ContractsPerMonth)
		stats.GET("/top-compradores", h.TopBuyers)
		stats.GET("/categorias", h.Categories)
	}

	exports := router.Group("/api/v1/buscador/exportar",
		RateLimitMiddleware(opts.ExportLimiter),
		TimeoutMiddleware(opts.ExportTimeout),
	)
	exports.GET("/:tipo", h.Export)
}
