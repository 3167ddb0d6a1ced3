// Package pagination pages over lazily counted and sliced result sets.
package pagination

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Source is a result set that can be counted and sliced without materialising it.
type Source[T any] interface {
	Count(ctx context.Context) (int64, error)
	Slice(ctx context.Context, offset, limit int) ([]T, error)
}

// Meta is the "paginador" block of list responses.
type Meta struct {
	HasPrevious        bool  `json:"has_previous"`
	HasNext            bool  `json:"has_next"`
	PreviousPageNumber *int  `json:"previous_page_number"`
	Page               int   `json:"page"`
	NextPageNumber     *int  `json:"next_page_number"`
	NumPages           int   `json:"num_pages"`
	TotalItems         int64 `json:"total.items"`
}

// Page is one materialised page.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// ParsePage reads a 1-based page number. Non-integers, zero and negatives read as 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// NumPages returns the page count for total items; an empty set has one page.
func NumPages(total int64, perPage int) int {
	if perPage < 1 || total <= 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// NewMeta computes the metadata for page, clamping it into [1, NumPages].
func NewMeta(page, perPage int, total int64) Meta {
	pages := NumPages(total, perPage)
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	m := Meta{
		Page:       page,
		NumPages:   pages,
		TotalItems: total,
	}
	if page > 1 {
		prev := page - 1
		m.HasPrevious = true
		m.PreviousPageNumber = &prev
	}
	if page < pages {
		next := page + 1
		m.HasNext = true
		m.NextPageNumber = &next
	}
	return m
}

// Paginate counts src, clamps page and fetches only that page's slice.
func Paginate[T any](ctx context.Context, src Source[T], page, perPage int) (Page[T], error) {
	if perPage < 1 {
		return Page[T]{}, fmt.Errorf("page size must be positive, got %d", perPage)
	}

	total, err := src.Count(ctx)
	if err != nil {
		return Page[T]{}, fmt.Errorf("count results: %w", err)
	}

	meta := NewMeta(page, perPage, total)
	if total == 0 {
		return Page[T]{Items: []T{}, Meta: meta}, nil
	}

	items, err := src.Slice(ctx, (meta.Page-1)*perPage, perPage)
	if err != nil {
		return Page[T]{}, fmt.Errorf("fetch page %d: %w", meta.Page, err)
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: meta}, nil
}

// SliceSource adapts an in-memory slice.
type SliceSource[T any] []T

// Count returns the slice length.
func (s SliceSource[T]) Count(context.Context) (int64, error) {
	return int64(len(s)), nil
}

// Slice returns a copy of s[offset:offset+limit], bounded by the slice length.
func (s SliceSource[T]) Slice(_ context.Context, offset, limit int) ([]T, error) {
	if offset >= len(s) || offset < 0 {
		return []T{}, nil
	}
	end := min(offset+limit, len(s))
	out := make([]T, end-offset)
	copy(out, s[offset:end])
	return out, nil
}
