package shared

import (
	"net/http"
	"strconv"
)

const TotalCountHeader = "X-Total-Count"

// Pagination is the limit/offset window of a list request.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads ?limit= and ?offset=. Missing or invalid values fall back to
// defaultLimit and zero; limit is capped at maxLimit when maxLimit is positive.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := Pagination{
		Limit:  queryInt(r, "limit", defaultLimit, 1),
		Offset: queryInt(r, "offset", 0, 0),
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

// WriteTotal sets the total row count header of a paged list.
func WriteTotal(w http.ResponseWriter, total int) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
}

func queryInt(r *http.Request, name string, fallback, floor int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < floor {
		return fallback
	}
	return v
}
