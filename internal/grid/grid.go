// Package grid implements the paginated slot model: page-local compaction,
// empty page removal, and the cascading insert used while dragging.
//
// All functions are pure: they return a new slice and never modify the input.
package grid

import "github.com/starford/launchgrid/internal/models"

// PerPage normalises a page capacity to at least one slot.
func PerPage(n int) int {
	return max(1, n)
}

// PageCount returns how many pages n slots occupy.
func PageCount(n, perPage int) int {
	p := PerPage(perPage)
	return (n + p - 1) / p
}

// Locate returns the page and in-page position of index.
func Locate(index, perPage int) (page, position int) {
	p := PerPage(perPage)
	return index / p, index % p
}

// Compact moves the non-empty slots of every page to the front of that page,
// keeping their relative order, and refills the rest with fresh empty slots.
// Nothing crosses a page boundary. The last page may be short and stays short.
func Compact(items []models.Slot, perPage int) []models.Slot {
	p := PerPage(perPage)
	out := make([]models.Slot, 0, len(items))
	for start := 0; start < len(items); start += p {
		end := min(start+p, len(items))
		empties := 0
		for _, s := range items[start:end] {
			if s.IsEmpty() {
				empties++
				continue
			}
			out = append(out, s)
		}
		for range empties {
			out = append(out, models.EmptySlot())
		}
	}
	return out
}

// IsCompact reports whether every page has all its non-empty slots before its empty ones.
func IsCompact(items []models.Slot, perPage int) bool {
	p := PerPage(perPage)
	for start := 0; start < len(items); start += p {
		end := min(start+p, len(items))
		seenEmpty := false
		for _, s := range items[start:end] {
			if s.IsEmpty() {
				seenEmpty = true
			} else if seenEmpty {
				return false
			}
		}
	}
	return true
}

// RemoveEmptyPages drops every page that holds only empty slots. The second
// result reports whether anything was removed.
func RemoveEmptyPages(items []models.Slot, perPage int) ([]models.Slot, bool) {
	p := PerPage(perPage)
	out := make([]models.Slot, 0, len(items))
	for start := 0; start < len(items); start += p {
		end := min(start+p, len(items))
		page := items[start:end]
		if allEmpty(page) {
			continue
		}
		out = append(out, page...)
	}
	return out, len(out) != len(items)
}

// ClampPage bounds the current page cursor to the pages that remain.
func ClampPage(current, n, perPage int) int {
	last := max(0, PageCount(n, perPage)-1)
	return max(0, min(current, last))
}

// PadToPage appends empty slots until len is a multiple of perPage.
func PadToPage(items []models.Slot, perPage int) []models.Slot {
	p := PerPage(perPage)
	out := append([]models.Slot(nil), items...)
	if rem := len(out) % p; rem != 0 {
		for range p - rem {
			out = append(out, models.EmptySlot())
		}
	}
	return out
}

// AppendPage appends one full page of empty slots.
func AppendPage(items []models.Slot, perPage int) []models.Slot {
	out := append([]models.Slot(nil), items...)
	for range PerPage(perPage) {
		out = append(out, models.EmptySlot())
	}
	return out
}

// CascadeInsert inserts item at targetIndex. Whatever falls off the end of
// the target page is carried to position 0 of the next page, and so on until
// an empty slot is pushed out or nothing overflows. A new page is appended
// when the carry runs past the last page.
//
// The caller must void the item's source slot first; CascadeInsert does not
// look for duplicates.
func CascadeInsert(items []models.Slot, item models.Slot, targetIndex, perPage int) []models.Slot {
	p := PerPage(perPage)
	out := PadToPage(items, p)

	page := max(0, targetIndex/p)
	local := max(0, min(targetIndex-page*p, p-1))
	carry := item
	for {
		start := page * p
		end := start + p
		for len(out) < end {
			out = append(out, models.EmptySlot())
		}

		slice := make([]models.Slot, 0, p+1)
		slice = append(slice, out[start:start+local]...)
		slice = append(slice, carry)
		slice = append(slice, out[start+local:end]...)
		spilled := slice[p]
		copy(out[start:end], slice[:p])

		if spilled.IsEmpty() {
			return out
		}
		carry = spilled
		page++
		local = 0
	}
}

// IndexOf returns the index of the slot with the given id, or -1.
func IndexOf(items []models.Slot, id string) int {
	for i, s := range items {
		if s.ID() == id {
			return i
		}
	}
	return -1
}

// FirstEmpty returns the index of the first empty slot, or -1.
func FirstEmpty(items []models.Slot) int {
	for i, s := range items {
		if s.IsEmpty() {
			return i
		}
	}
	return -1
}

// Keys projects items to their token-independent keys.
func Keys(items []models.Slot) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.Key()
	}
	return out
}

func allEmpty(page []models.Slot) bool {
	for _, s := range page {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}
