package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

// Page selects a 1-based page of a list endpoint
type Page struct {
	Number int
	Size   int
}

// Normalise clamps the page to valid values
func (p Page) Normalise() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// Query renders the page as the backend's pageNumber/pageSize parameters,
// merged into q (which may be nil).
func (p Page) Query(q url.Values) url.Values {
	p = p.Normalise()
	if q == nil {
		q = url.Values{}
	}
	q.Set("pageNumber", strconv.Itoa(p.Number))
	q.Set("pageSize", strconv.Itoa(p.Size))
	return q
}

// Result is one page of a list response
type Result[T any] struct {
	Items []T `json:"items"`
	Total int `json:"totalCount"`
	Page  int `json:"pageNumber"`
	Size  int `json:"pageSize"`
}

func (r Result[T]) TotalPages() int {
	if r.Size <= 0 || r.Total <= 0 {
		return 0
	}
	return (r.Total + r.Size - 1) / r.Size
}

func (r Result[T]) HasNext() bool {
	return r.Page < r.TotalPages()
}

func (r Result[T]) HasPrevious() bool {
	return r.Page > 1
}

// Next returns the page after r, or false when r is the last one
func (r Result[T]) Next() (Page, bool) {
	if !r.HasNext() {
		return Page{}, false
	}
	return Page{Number: r.Page + 1, Size: r.Size}, true
}

// Fill sets Page and Size from p when the backend omitted them
func (r *Result[T]) Fill(p Page) {
	p = p.Normalise()
	if r.Page == 0 {
		r.Page = p.Number
	}
	if r.Size == 0 {
		r.Size = p.Size
	}
	if r.Total == 0 && len(r.Items) > 0 && r.Page == 1 && len(r.Items) < r.Size {
		r.Total = len(r.Items)
	}
}
