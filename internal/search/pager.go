// ABOUTME: Fixed-size pagination over trade candidates with clamped prev/next navigation
// ABOUTME: Offsets are stored in the session; this package only computes and fetches pages

package search

import (
	"context"
	"fmt"

	"github.com/2389/tradein-gateway/internal/store"
)

// DefaultPageSize is the number of candidates shown per page.
const DefaultPageSize = 5

// Move is a navigation request relative to the stored offset.
type Move int

const (
	Stay Move = iota
	Prev
	Next
)

// Source is the slice of the item store the pager reads from.
type Source interface {
	ListCandidates(ctx context.Context, filter store.CandidateFilter, offset, limit int) ([]*store.Item, error)
	CountCandidates(ctx context.Context, filter store.CandidateFilter) (int, error)
}

// Page is one rendered slice of the candidate list.
type Page struct {
	Items    []*store.Item
	Offset   int
	Total    int
	PageSize int
}

// Number is the 1-based page number.
func (p *Page) Number() int {
	return p.Offset/p.PageSize + 1
}

// Pages is the page count, never less than 1 so an empty result reads "Page 1 of 1".
func (p *Page) Pages() int {
	return max(1, (p.Total+p.PageSize-1)/p.PageSize)
}

// DisplayIndex is the 1-based position of Items[i] across the whole result set.
func (p *Page) DisplayIndex(i int) int {
	return p.Offset + i + 1
}

// HasPrev reports whether a previous page exists.
func (p *Page) HasPrev() bool {
	return p.Offset > 0
}

// HasNext reports whether a further page exists.
func (p *Page) HasNext() bool {
	return p.Offset+p.PageSize < p.Total
}

// Header is the summary line shown above the cards.
func (p *Page) Header() string {
	return fmt.Sprintf("Page %d of %d. %d item(s) found in total.", p.Number(), p.Pages(), p.Total)
}

// Pager fetches candidate pages.
type Pager struct {
	src  Source
	size int
}

// NewPager creates a pager. A non-positive size uses DefaultPageSize.
func NewPager(src Source, size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{src: src, size: size}
}

// PageSize returns the configured page size.
func (p *Pager) PageSize() int {
	return p.size
}

// Fetch applies move to offset, clamps the result to the data and loads that page.
func (p *Pager) Fetch(ctx context.Context, filter store.CandidateFilter, offset int, move Move) (*Page, error) {
	total, err := p.src.CountCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("counting candidates: %w", err)
	}

	offset = Navigate(offset, move, p.size, total)

	items, err := p.src.ListCandidates(ctx, filter, offset, p.size)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	return &Page{Items: items, Offset: offset, Total: total, PageSize: p.size}, nil
}

// Navigate computes the new offset. Prev never goes below zero; Next on the last
// page is a no-op; an offset at or past the data snaps to the last page start.
func Navigate(offset int, move Move, size, total int) int {
	switch move {
	case Prev:
		offset -= size
	case Next:
		if offset+size < total {
			offset += size
		}
	}
	return Clamp(offset, size, total)
}

// Clamp bounds offset to [0, last page start] and aligns it to a page boundary.
func Clamp(offset, size, total int) int {
	if offset < 0 || total <= 0 {
		return 0
	}
	last := LastPageStart(size, total)
	if offset > last {
		return last
	}
	return offset - offset%size
}

// LastPageStart is the offset of the final page.
func LastPageStart(size, total int) int {
	if total <= 0 {
		return 0
	}
	return ((total - 1) / size) * size
}
