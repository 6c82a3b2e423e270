// Package page holds the pagination envelope used by list endpoints.
package page

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Request is a 1-based page request.
type Request struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Normalize clamps the request into the supported range.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Size <= 0 {
		r.Size = DefaultSize
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	return r
}

// Offset is the number of rows to skip.
func (r Request) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.Size
}

// Result is one page of items plus the total match count.
type Result[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// NewResult builds a result for req, never returning a nil item slice.
func NewResult[T any](items []T, total int, req Request) Result[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total, Page: req.Page, Size: req.Size}
}

// Slice applies req to an in-memory slice.
func Slice[T any](all []T, req Request) Result[T] {
	req = req.Normalize()
	start := req.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	out := make([]T, end-start)
	copy(out, all[start:end])
	return NewResult(out, len(all), req)
}
