package service

import (
	"maps"
	"net/url"
	"strconv"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// Values of the tid parameter.
const (
	TIDName = "nombre"
	TIDID   = "id"
)

// perPage reads paginarPor. Blank and values below 1 fall back to the default page size;
// values above the maximum are capped.
func (s Settings) perPage(params query.Params) (int, error) {
	raw := params.Get("paginarPor")
	if raw == "" {
		return s.PageSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Invalid("paginarPor must be an integer, got %q", raw)
	}
	if n < 1 {
		return s.PageSize, nil
	}
	if s.MaxPageSize > 0 && n > s.MaxPageSize {
		return s.MaxPageSize, nil
	}
	return n, nil
}

// parseTID reads tid, returning def when it is blank.
func parseTID(params query.Params, def string) (string, error) {
	tid := params.GetDefault("tid", def)
	if tid != TIDName && tid != TIDID {
		return "", apperrors.Invalid("tid must be %q or %q, got %q", TIDName, TIDID, tid)
	}
	return tid, nil
}

// parseYear reads a four digit year.
func parseYear(raw string) (int, error) {
	if len(raw) != 4 {
		return 0, apperrors.Invalid("year must be a 4-digit year, got %q", raw)
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1000 {
		return 0, apperrors.Invalid("year must be a 4-digit year, got %q", raw)
	}
	return year, nil
}

// unescapePartie decodes a buyer name or id taken from the path. '+' reads as a space.
func unescapePartie(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// echo copies the named parameters, blank ones included, into the parametros block.
func echo(params query.Params, extra map[string]any, keys ...string) domain.Parameters {
	out := make(domain.Parameters, len(keys)+len(extra))
	for _, k := range keys {
		out[k] = params.Get(k)
	}
	maps.Copy(out, extra)
	return out
}

// page reads pagina.
func page(params query.Params) int {
	return pagination.ParsePage(params.Get("pagina"))
}
