package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Header returns the column names of kind.
func Header(kind Kind) []string {
	switch kind {
	case KindContracts:
		return []string{
			"ocid", "contrato", "comprador", "titulo", "descripcion", "proveedores",
			"estado", "fecha_firma", "fecha_inicio", "monto", "moneda",
		}
	case KindItems:
		return []string{
			"ocid", "comprador", "proceso", "producto", "descripcion", "clasificacion",
			"cantidad", "unidad", "precio_unitario", "moneda",
		}
	default:
		return []string{
			"ocid", "titulo", "comprador", "institucion", "categoria", "modalidad",
			"estado", "fecha_inicio", "fecha_recepcion", "monto_contratado", "moneda",
		}
	}
}

type value struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

type period struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type item struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	Quantity       *float64 `json:"quantity"`
	Classification struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"classification"`
	Unit struct {
		Name  string `json:"name"`
		Value value  `json:"value"`
	} `json:"unit"`
}

type contract struct {
	ID          string `json:"id"`
	AwardID     string `json:"awardID"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DateSigned  string `json:"dateSigned"`
	Period      period `json:"period"`
	Value       value  `json:"value"`
}

type award struct {
	ID        string `json:"id"`
	Suppliers []struct {
		Name string `json:"name"`
	} `json:"suppliers"`
}

// document is the part of a process search document the exports read.
type document struct {
	Doc struct {
		OCID            string `json:"ocid"`
		CompiledRelease struct {
			OCID  string `json:"ocid"`
			Buyer struct {
				Name string `json:"name"`
			} `json:"buyer"`
			Tender struct {
				Title                    string `json:"title"`
				Status                   string `json:"status"`
				ProcurementMethodDetails string `json:"procurementMethodDetails"`
				MainProcurementCategory  string `json:"mainProcurementCategory"`
				TenderPeriod             period `json:"tenderPeriod"`
				Items                    []item `json:"items"`
			} `json:"tender"`
			Awards    []award    `json:"awards"`
			Contracts []contract `json:"contracts"`
		} `json:"compiledRelease"`
	} `json:"doc"`
	Extra struct {
		BuyerFullName string `json:"buyerFullName"`
		LastSection   string `json:"lastSection"`
		ParentTop     struct {
			Name string `json:"name"`
		} `json:"parentTop"`
	} `json:"extra"`
}

func (d *document) ocid() string {
	if d.Doc.CompiledRelease.OCID != "" {
		return d.Doc.CompiledRelease.OCID
	}
	return d.Doc.OCID
}

func (d *document) buyer() string {
	if d.Extra.BuyerFullName != "" {
		return d.Extra.BuyerFullName
	}
	return d.Doc.CompiledRelease.Buyer.Name
}

// Rows turns one search document into the rows of kind: one per process, contract or tender item.
func Rows(kind Kind, source json.RawMessage) ([][]string, error) {
	var d document
	if err := json.Unmarshal(source, &d); err != nil {
		return nil, fmt.Errorf("decode export document: %w", err)
	}
	switch kind {
	case KindContracts:
		return contractRows(&d), nil
	case KindItems:
		return itemRows(&d), nil
	default:
		return [][]string{processRow(&d)}, nil
	}
}

func processRow(d *document) []string {
	rel := d.Doc.CompiledRelease
	status := d.Extra.LastSection
	if status == "" {
		status = rel.Tender.Status
	}

	var total float64
	var currency string
	var priced bool
	for _, c := range rel.Contracts {
		if c.Value.Amount == nil {
			continue
		}
		total += *c.Value.Amount
		priced = true
		if currency == "" {
			currency = c.Value.Currency
		}
	}
	amount := ""
	if priced {
		amount = formatNumber(&total)
	}

	return []string{
		d.ocid(),
		rel.Tender.Title,
		d.buyer(),
		d.Extra.ParentTop.Name,
		rel.Tender.MainProcurementCategory,
		rel.Tender.ProcurementMethodDetails,
		status,
		rel.Tender.TenderPeriod.StartDate,
		rel.Tender.TenderPeriod.EndDate,
		amount,
		currency,
	}
}

func contractRows(d *document) [][]string {
	rel := d.Doc.CompiledRelease
	suppliers := make(map[string]string, len(rel.Awards))
	for _, a := range rel.Awards {
		names := make([]string, 0, len(a.Suppliers))
		for _, s := range a.Suppliers {
			names = append(names, s.Name)
		}
		suppliers[a.ID] = strings.Join(names, "; ")
	}

	rows := make([][]string, 0, len(rel.Contracts))
	for _, c := range rel.Contracts {
		rows = append(rows, []string{
			d.ocid(),
			c.ID,
			d.buyer(),
			c.Title,
			c.Description,
			suppliers[c.AwardID],
			c.Status,
			c.DateSigned,
			c.Period.StartDate,
			formatNumber(c.Value.Amount),
			c.Value.Currency,
		})
	}
	return rows
}

func itemRows(d *document) [][]string {
	rel := d.Doc.CompiledRelease
	rows := make([][]string, 0, len(rel.Tender.Items))
	for _, it := range rel.Tender.Items {
		classification := it.Classification.Description
		if classification == "" {
			classification = it.Classification.ID
		}
		rows = append(rows, []string{
			d.ocid(),
			d.buyer(),
			rel.Tender.Title,
			it.ID,
			it.Description,
			classification,
			formatNumber(it.Quantity),
			it.Unit.Name,
			formatNumber(it.Unit.Value.Amount),
			it.Unit.Value.Currency,
		})
	}
	return rows
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
