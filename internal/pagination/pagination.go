// Package pagination holds the request and response shapes shared by every
// paginated listing.
package pagination

import "strconv"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a requested page. Zero values select the defaults.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize applies defaults and caps the limit.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Parse reads page and limit from query-string values. Malformed numbers
// fall back to the defaults.
func Parse(page, limit string) Params {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return Params{Page: p, Limit: l}.Normalize()
}

// Page is one page of results plus the total row count.
type Page[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	PageSize    int `json:"page_size"`
	CurrentPage int `json:"current_page"`
}

// NewPage wraps items fetched for params.
func NewPage[T any](items []T, total int, params Params) Page[T] {
	n := params.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, PageSize: n.Limit, CurrentPage: n.Page}
}

// TotalPages returns the number of pages needed to show Total rows.
func (p Page[T]) TotalPages() int {
	if p.PageSize == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
