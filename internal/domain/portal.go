// Package domain holds the response shapes of the portal API.
package domain

import (
	"encoding/json"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
)

// Parameters echoes the request parameters back under "parametros".
type Parameters map[string]any

// Dashboard is the /inicio summary.
type Dashboard struct {
	Contratos      float64 `json:"contratos"`
	Procesos       float64 `json:"procesos"`
	RedFlags       float64 `json:"redFlags"`
	UniqueRedFlags int64   `json:"uniqueRedFlags"`
	Compradores    float64 `json:"compradores"`
	Proveedores    int     `json:"proveedores"`
}

// HitList is a paginated list of raw search hits.
type HitList struct {
	Paginador  pagination.Meta     `json:"paginador"`
	Parametros Parameters          `json:"parametros"`
	Resultados []elasticsearch.Hit `json:"resultados"`
}

// Summary is the "resumen" block of the process search.
type Summary struct {
	ProveedoresTotal float64 `json:"proveedores_total"`
	CompradoresTotal float64 `json:"compradores_total"`
	ProcesosTotal    float64 `json:"procesos_total"`
	MontoPromedio    float64 `json:"monto_promedio"`
}

// SearchResult is the /buscador response.
type SearchResult struct {
	Paginador  pagination.Meta            `json:"paginador"`
	Parametros Parameters                 `json:"parametros"`
	Resumen    Summary                    `json:"resumen"`
	Filtros    map[string]json.RawMessage `json:"filtros"`
	Resultados []elasticsearch.Hit        `json:"resultados"`
}

// BuyerRow is one row of the buyers table. Metrics are null when the buyer has no contracts.
type BuyerRow struct {
	ID                      string   `json:"id,omitempty"`
	Name                    string   `json:"name"`
	Procesos                float64  `json:"procesos"`
	TotalMontoContratado    *float64 `json:"total_monto_contratado"`
	PromedioMontoContratado *float64 `json:"promedio_monto_contratado"`
	MayorMontoContratado    *float64 `json:"mayor_monto_contratado"`
	MenorMontoContratado    *float64 `json:"menor_monto_contratado"`
	FechaUltimoProceso      *string  `json:"fecha_ultimo_proceso"`
	URI                     string   `json:"uri"`
}

// BuyerList is the /compradores response.
type BuyerList struct {
	Paginador  pagination.Meta `json:"paginador"`
	Parametros Parameters      `json:"parametros"`
	Resultados []BuyerRow      `json:"resultados"`
}

// MonthlyContracts is one month of the contracts-per-month statistic.
type MonthlyContracts struct {
	Mes      string  `json:"mes"`
	Monto    float64 `json:"monto"`
	Cantidad int64   `json:"cantidad"`
}

// TopBuyer is one entry of the top buyers statistic.
type TopBuyer struct {
	Nombre   string  `json:"nombre"`
	Monto    float64 `json:"monto"`
	Procesos float64 `json:"procesos"`
}

// CategoryShare is one category of the process distribution.
type CategoryShare struct {
	Categoria  string  `json:"categoria"`
	Procesos   int64   `json:"procesos"`
	Porcentaje float64 `json:"porcentaje"`
}
