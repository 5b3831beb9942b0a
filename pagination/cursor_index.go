// Package pagination maps page numbers onto a cursor-only listing.
package pagination

import (
	"errors"
	"sort"
	"sync"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

// ErrPageUnknown is returned when a page is requested whose cursor has not been learned yet.
var ErrPageUnknown = errors.New("page cursor unknown: page forward from a known page first")

// CursorIndex remembers the cursor needed to fetch each page it has seen.
// Page 1 always maps to the empty cursor. Cursors are only valid for the page
// size they were issued for, so changing the size forgets everything.
type CursorIndex struct {
	mu       sync.Mutex
	pageSize int
	cursors  map[int]string
}

func NewCursorIndex(pageSize int) *CursorIndex {
	idx := &CursorIndex{pageSize: normalizeSize(pageSize)}
	idx.resetLocked()
	return idx
}

func normalizeSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func (i *CursorIndex) PageSize() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pageSize
}

// SetPageSize switches the page size and reports whether the index was reset.
func (i *CursorIndex) SetPageSize(n int) bool {
	n = normalizeSize(n)
	i.mu.Lock()
	defer i.mu.Unlock()
	if n == i.pageSize {
		return false
	}
	i.pageSize = n
	i.resetLocked()
	return true
}

// Reset forgets every cursor except page 1's. Used when filters change.
func (i *CursorIndex) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resetLocked()
}

func (i *CursorIndex) resetLocked() {
	i.cursors = map[int]string{1: ""}
}

// CursorFor returns the cursor for page, or ErrPageUnknown.
func (i *CursorIndex) CursorFor(page int) (string, error) {
	if page == 1 {
		return "", nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	cursor, ok := i.cursors[page]
	if !ok || page < 1 {
		return "", ErrPageUnknown
	}
	return cursor, nil
}

func (i *CursorIndex) CanJump(page int) bool {
	_, err := i.CursorFor(page)
	return err == nil
}

// Record stores what fetching page with cursor returned. An empty next means
// page is the last one, so every entry past it is dropped.
func (i *CursorIndex) Record(page int, cursor, next, previous string) {
	if page < 1 {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if page > 1 && cursor != "" {
		i.cursors[page] = cursor
	}
	// page 1 stays pinned to the empty cursor
	if previous != "" && page > 2 {
		i.cursors[page-1] = previous
	}
	if next != "" {
		i.cursors[page+1] = next
		return
	}
	for p := range i.cursors {
		if p > page {
			delete(i.cursors, p)
		}
	}
}

// KnownPages lists every page that can be jumped to, ascending.
func (i *CursorIndex) KnownPages() []int {
	i.mu.Lock()
	defer i.mu.Unlock()
	pages := make([]int, 0, len(i.cursors))
	for p := range i.cursors {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func (i *CursorIndex) HighestKnown() int {
	pages := i.KnownPages()
	return pages[len(pages)-1]
}
