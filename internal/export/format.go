// Package export writes search results as CSV or XLSX tables.
package export

import (
	"fmt"
	"time"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat reads a formato parameter. Blank means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", raw)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Kind is what one exported row describes.
type Kind string

const (
	KindProcesses Kind = "procesos"
	KindContracts Kind = "contratos"
	KindItems     Kind = "productos"
)

// ParseKind reads an export tipo.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindProcesses, KindContracts, KindItems:
		return k, nil
	default:
		return "", fmt.Errorf("unknown export kind %q", raw)
	}
}

// FileName builds "<prefix>-<kind>-<YYYYmmddHHMMSS>.<ext>".
func FileName(prefix string, kind Kind, format Format, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s.%s", prefix, kind, at.Format("20060102150405"), format)
}
