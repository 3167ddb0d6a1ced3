package service

import "github.com/jonesrussell/north-cloud/ocds-portal/internal/query"

// Document paths of the process index.
const (
	fieldOCID            = "doc.compiledRelease.ocid.keyword"
	fieldRecordOCID      = "doc.ocid.keyword"
	fieldReleaseDate     = "doc.compiledRelease.date"
	fieldBuyerID         = "doc.compiledRelease.buyer.id.keyword"
	fieldBuyerFullName   = "extra.buyerFullName.keyword"
	fieldParentTopName   = "extra.parentTop.name.keyword"
	fieldParentTopID     = "extra.parentTop.id.keyword"
	fieldParent1ID       = "extra.parent1.id.keyword"
	fieldParent2ID       = "extra.parent2.id.keyword"
	fieldSourcesID       = "doc.compiledRelease.sources.id"
	fieldTender          = "doc.compiledRelease.tender"
	fieldTenderID        = "doc.compiledRelease.tender.id"
	fieldTenderTitle     = "doc.compiledRelease.tender.title"
	fieldTenderStart     = "doc.compiledRelease.tender.tenderPeriod.startDate"
	fieldTenderEnd       = "doc.compiledRelease.tender.tenderPeriod.endDate"
	fieldMethodDetails   = "doc.compiledRelease.tender.procurementMethodDetails"
	fieldMainCategory    = "doc.compiledRelease.tender.mainProcurementCategory"
	fieldSumContracts    = "doc.compiledRelease.tender.extra.sumContracts"
	fieldSuppliersName   = "doc.compiledRelease.awards.suppliers.name.keyword"
	fieldRedFlagTitle    = "banderas.title.keyword"
	fieldOrganismo       = "doc.compiledRelease.planning.budget.budgetBreakdown.classifications.organismo"
	fieldFinanciador     = "doc.compiledRelease.planning.budget.budgetBreakdown.classifications.financiador.keyword"
	pathContracts        = "doc.compiledRelease.contracts"
	fieldContractID      = "doc.compiledRelease.contracts.id"
	fieldContractAmount  = "doc.compiledRelease.contracts.value.amount"
	fieldContractCcy     = "doc.compiledRelease.contracts.value.currency"
	fieldContractDesc    = "doc.compiledRelease.contracts.description"
	fieldPaymentAmount   = "doc.compiledRelease.contracts.implementation.transactions.value.amount"
	fieldPaymentPayeeID  = "doc.compiledRelease.contracts.implementation.transactions.payee.id.keyword"
	pathParties          = "doc.compiledRelease.parties"
	fieldPartyName       = "doc.compiledRelease.parties.name.keyword"
	fieldPartyID         = "doc.compiledRelease.parties.id.keyword"
	fieldBuyerFullText   = "extra.buyerFullName"
	fieldParentTopText   = "extra.parentTop.name"
	fieldParentTopIDText = "extra.parentTop.id"
)

// Document paths of the contract index.
const (
	cFieldSourcesID      = "extra.sources.id"
	cFieldBuyerID        = "extra.buyer.id.keyword"
	cFieldDateSigned     = "dateSigned"
	cFieldPeriodStart    = "period.startDate"
	cFieldAmount         = "value.amount"
	cFieldImplementation = "implementation"
)

// Currency sentinels for processes and payments without a contract amount.
const (
	NoCurrencyLabel        = "Sin monto de contrato"
	NoPaymentCurrencyLabel = "Sin monto pagado"
)

// processFilters are the filters of /compradores/:id/procesos.
var processFilters = []query.FilterSpec{
	{Param: "comprador", Field: fieldBuyerFullText, Kind: query.KindMatch},
	{Param: "ocid", Field: fieldRecordOCID, Kind: query.KindMatch},
	{Param: "titulo", Field: fieldTenderTitle, Kind: query.KindMatch},
	{Param: "categoriaCompra", Field: fieldMethodDetails, Kind: query.KindMatch},
	{Param: "estado", Field: "extra.lastSection.keyword", Kind: query.KindMatch},
	{Param: "montoContratado", Field: fieldSumContracts, Kind: query.KindNumber},
	{Param: "fechaInicio", Field: fieldTenderStart, Kind: query.KindDate},
	{Param: "fechaRecepcion", Field: fieldTenderEnd, Kind: query.KindDate},
	{Param: "fechaPublicacion", Field: fieldReleaseDate, Kind: query.KindDate},
}

var processSort = map[string]query.SortField{
	"comprador":        {Field: fieldBuyerFullName},
	"ocid":             {Field: fieldRecordOCID},
	"titulo":           {Field: "doc.compiledRelease.tender.title.keyword"},
	"categoriaCompra":  {Field: "doc.compiledRelease.tender.procurementMethodDetails.keyword"},
	"estado":           {Field: "extra.lastSection.keyword"},
	"montoContratado":  {Field: fieldSumContracts},
	"fechaInicio":      {Field: fieldTenderStart},
	"fechaRecepcion":   {Field: fieldTenderEnd},
	"fechaPublicacion": {Field: fieldReleaseDate},
}

var processSource = []string{
	"doc.ocid",
	"doc.compiledRelease.date",
	"doc.compiledRelease.tender",
	"doc.compiledRelease.contracts",
	"doc.compiledRelease.buyer",
	"extra",
}

// contractFilters are the filters of /compradores/:id/contratos.
var contractFilters = []query.FilterSpec{
	{Param: "proveedor", Field: "suppliers.name", Kind: query.KindMatch, Nested: "suppliers"},
	{Param: "titulo", Field: "title", Kind: query.KindMatch},
	{Param: "descripcion", Field: "description", Kind: query.KindMatch},
	{Param: "tituloLicitacion", Field: "extra.tenderTitle", Kind: query.KindMatch},
	{Param: "categoriaCompra", Field: "extra.tenderMainProcurementCategory", Kind: query.KindMatchPhrase},
	{Param: "estado", Field: "status", Kind: query.KindMatch},
	{Param: "fechaInicio", Field: cFieldPeriodStart, Kind: query.KindDate},
	{Param: "fechaFirma", Field: cFieldDateSigned, Kind: query.KindDate},
	{Param: "monto", Field: cFieldAmount, Kind: query.KindNumber},
}

var contractSort = map[string]query.SortField{
	"comprador":        {Field: fieldBuyerFullName},
	"titulo":           {Field: "title.keyword"},
	"tituloLicitacion": {Field: "extra.tenderTitle.keyword"},
	"categoriaCompra":  {Field: "extra.tenderMainProcurementCategory.keyword"},
	"estado":           {Field: "status.keyword"},
	"monto":            {Field: cFieldAmount},
	"fechaFirma":       {Field: cFieldDateSigned},
	"fechaInicio":      {Field: cFieldPeriodStart},
}

// paymentFilters are the filters of /compradores/:id/pagos.
var paymentFilters = []query.FilterSpec{
	{Param: "comprador", Field: fieldBuyerFullText, Kind: query.KindMatch},
	{
		Param:  "proveedor",
		Field:  "implementation.transactions.payee.name",
		Kind:   query.KindMatch,
		Nested: "implementation.transactions",
	},
	{Param: "titulo", Field: "title", Kind: query.KindMatch},
	{Param: "fecha", Field: "extra.transactionLastDate", Kind: query.KindDate},
	{Param: "monto", Field: cFieldAmount, Kind: query.KindNumber},
	{Param: "pagos", Field: "extra.sumTransactions", Kind: query.KindNumber},
}

var paymentSort = map[string]query.SortField{
	"comprador": {Field: fieldBuyerFullName},
	"titulo":    {Field: "title.keyword"},
	"fecha":     {Field: "extra.transactionLastDate"},
	"monto":     {Field: cFieldAmount},
	"pagos":     {Field: "extra.sumTransactions"},
}

// searchSort is the ordenarPor mapping of /buscador.
var searchSort = map[string]query.SortField{
	"year":        {Field: fieldReleaseDate},
	"institucion": {Field: "doc.compiledRelease.buyer.name.keyword"},
	"categoria":   {Field: "doc.compiledRelease.tender.mainProcurementCategory.keyword"},
	"modalidad":   {Field: "doc.compiledRelease.tender.procurementMethodDetails.keyword"},
	"proveedor": {
		Field:  "doc.compiledRelease.contracts.implementation.transactions.payee.name.keyword",
		Nested: pathContracts,
	},
	"monto":     {Field: "doc.compiledRelease.contracts.extra.sumTransactions", Nested: pathContracts},
	"organismo": {Field: fieldFinanciador},
}
