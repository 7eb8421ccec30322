package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
	// Search is the free-text filter from ?q= (or ?search=).
	Search string
	// Sort is the raw sort key, e.g. "name" or "-created".
	Sort string
}

// FromContext extracts pagination, search and sort parameters from the echo context.
// Both limit/offset and page/page_size styles are accepted.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("page_size"))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}

	search := strings.TrimSpace(c.QueryParam("q"))
	if search == "" {
		search = strings.TrimSpace(c.QueryParam("search"))
	}

	return Params{
		Limit:  limit,
		Offset: offset,
		Search: search,
		Sort:   strings.TrimSpace(c.QueryParam("sort")),
	}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Window applies offset and limit to an in-memory slice length, returning the
// half-open index range to keep.
func (p Params) Window(n int) (int, int) {
	return Window(n, p.Limit, p.Offset)
}

// Window returns the [start, end) bounds of a page over a slice of length n.
func Window(n, limit, offset int) (int, int) {
	if offset >= n {
		return n, n
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if limit <= 0 || end > n {
		end = n
	}
	return offset, end
}

// SearchParams builds the repository params map: "q" and "sort" from p plus
// every named query parameter that is present and non-blank.
func SearchParams(c echo.Context, p Params, keys ...string) map[string]string {
	params := make(map[string]string, len(keys)+2)
	if p.Search != "" {
		params["q"] = p.Search
	}
	if p.Sort != "" {
		params["sort"] = p.Sort
	}
	for _, k := range keys {
		if v := strings.TrimSpace(c.QueryParam(k)); v != "" {
			params[k] = v
		}
	}
	return params
}
