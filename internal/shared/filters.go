package shared

import (
	"net/url"
	"strconv"
	"time"
)

const defaultListLimit = 100

// ListFilters carries the unvalidated business parameters accepted by the
// list endpoints. They are passed through to storage untouched.
type ListFilters struct {
	Limit          int
	Offset         int
	CreationDateGT *time.Time
	CreationDateLT *time.Time
	Schema         string
}

// FiltersFromQuery parses the supported query parameters. Unknown
// parameters are ignored, malformed ones fall back to defaults.
func FiltersFromQuery(values url.Values) ListFilters {
	f := ListFilters{Limit: defaultListLimit}
	if v, err := strconv.Atoi(values.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(values.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}
	if t, err := time.Parse(time.RFC3339, values.Get("creation_date_gte")); err == nil {
		f.CreationDateGT = &t
	}
	if t, err := time.Parse(time.RFC3339, values.Get("creation_date_lte")); err == nil {
		f.CreationDateLT = &t
	}
	f.Schema = values.Get("schema")
	return f
}
