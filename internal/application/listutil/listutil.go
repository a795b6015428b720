// Package listutil parses list query parameters (page, sort, search) and
// pages in-memory result sets.
package listutil

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// DefaultPerPage is the page size used when the request names none.
const DefaultPerPage = 50

// MaxPerPage caps the page size a client may ask for.
const MaxPerPage = 200

// Params are the list parameters of one request.
type Params struct {
	Page    int    // 1-indexed
	PerPage int    // 1..MaxPerPage
	Sort    string // one of the allowed columns, or empty for the store order
	Desc    bool
	Search  string // lower-cased, trimmed
}

// Parse extracts page, per_page, sort, dir and q from the query.
// PRE: none
// POST: Page >= 1; PerPage in [1, MaxPerPage]; Sort is empty or in sortable
func Parse(q url.Values, sortable []string) Params {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && n > 0 {
		p.PerPage = min(n, MaxPerPage)
	}
	if s := q.Get("sort"); lo.Contains(sortable, s) {
		p.Sort = s
	}
	p.Desc = q.Get("dir") == "desc"
	p.Search = strings.ToLower(strings.TrimSpace(q.Get("q")))
	return p
}

// PageInfo is the pagination metadata returned alongside a page.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPageInfo clamps page into the range the total allows.
// PRE: total >= 0
// POST: 1 <= Page <= TotalPages; TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	pages := max((total+perPage-1)/perPage, 1)
	return PageInfo{
		Page:       min(max(page, 1), pages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: pages,
	}
}

// Offset is the index of the first item on the page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Paginate returns the slice of items on the requested page with its metadata.
func Paginate[T any](items []T, p Params) ([]T, PageInfo) {
	info := NewPageInfo(p.Page, p.PerPage, len(items))
	start := info.Offset()
	return lo.Slice(items, start, start+info.PerPage), info
}
