// Package launcher owns the launcher layout: the slot list, the folder
// registry, the free-app list and the scanned catalog mirror. Every
// mutation runs on a single goroutine owned by Service.
package launcher

import (
	"slices"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/grid"
	"github.com/starford/launchgrid/internal/models"
)

// Grid bounds.
const (
	MinColumns     = 3
	MaxColumns     = 12
	MinRows        = 2
	MaxRows        = 8
	DefaultColumns = 6
	DefaultRows    = 4
)

// Resolver builds a record for a single path, failing when the path is
// missing or not a valid bundle.
type Resolver func(path string) (models.ApplicationRecord, error)

// workspace is the mutable launcher state. It is not safe for concurrent
// use; Service confines it to one goroutine.
type workspace struct {
	items     []models.Slot
	apps      []models.ApplicationRecord // free apps, name-sorted
	folders   []models.FolderRecord
	available []models.ApplicationRecord // catalog mirror, name-sorted

	columns    int
	rows       int
	fullscreen bool

	currentPage int
	dragPage    int // page appended for a drag preview, -1 when none

	// loaded is set once the in-memory layout is authoritative for the
	// store: after a successful load or any committed mutation.
	loaded bool

	resolve Resolver
}

func newWorkspace(columns, rows int, resolve Resolver) *workspace {
	w := &workspace{dragPage: -1, resolve: resolve}
	w.columns, w.rows = ClampGrid(columns, rows)
	return w
}

// ClampGrid bounds grid dimensions, substituting defaults for zero values.
func ClampGrid(columns, rows int) (int, int) {
	if columns == 0 {
		columns = DefaultColumns
	}
	if rows == 0 {
		rows = DefaultRows
	}
	return max(MinColumns, min(columns, MaxColumns)), max(MinRows, min(rows, MaxRows))
}

func (w *workspace) perPage() int { return grid.PerPage(w.columns * w.rows) }

func (w *workspace) compact() {
	w.items = grid.Compact(w.items, w.perPage())
}

func (w *workspace) removeEmptyPages() {
	items, removed := grid.RemoveEmptyPages(w.items, w.perPage())
	if !removed {
		return
	}
	w.items = items
	w.currentPage = grid.ClampPage(w.currentPage, len(w.items), w.perPage())
}

func (w *workspace) folderIndex(id string) int {
	return slices.IndexFunc(w.folders, func(f models.FolderRecord) bool { return f.ID == id })
}

func (w *workspace) freeIndex(path string) int {
	return slices.IndexFunc(w.apps, func(a models.ApplicationRecord) bool { return a.Path == path })
}

func (w *workspace) availableIndex(path string) int {
	return slices.IndexFunc(w.available, func(a models.ApplicationRecord) bool { return a.Path == path })
}

// folderOf returns the index of the folder holding path, or -1.
func (w *workspace) folderOf(path string) int {
	return slices.IndexFunc(w.folders, func(f models.FolderRecord) bool { return f.Contains(path) })
}

func (w *workspace) isWorking(path string) bool {
	return w.freeIndex(path) >= 0 || w.folderOf(path) >= 0
}

// workingSet returns free apps followed by folder members, without duplicates.
func (w *workspace) workingSet() []models.ApplicationRecord {
	seen := make(map[string]struct{})
	var out []models.ApplicationRecord
	add := func(a models.ApplicationRecord) {
		if _, ok := seen[a.Path]; ok {
			return
		}
		seen[a.Path] = struct{}{}
		out = append(out, a)
	}
	for _, a := range w.apps {
		add(a)
	}
	for _, f := range w.folders {
		for _, a := range f.Apps {
			add(a)
		}
	}
	return out
}

// lookup finds a known record for path in the working set or the catalog.
func (w *workspace) lookup(path string) (models.ApplicationRecord, bool) {
	if i := w.freeIndex(path); i >= 0 {
		return w.apps[i], true
	}
	for _, f := range w.folders {
		for _, a := range f.Apps {
			if a.Path == path {
				return a, true
			}
		}
	}
	if i := w.availableIndex(path); i >= 0 {
		return w.available[i], true
	}
	return models.ApplicationRecord{}, false
}

// probe resolves path against known records first, then the file system.
func (w *workspace) probe(path string) (models.ApplicationRecord, bool) {
	if rec, ok := w.lookup(path); ok {
		return rec, true
	}
	if w.resolve == nil {
		return models.ApplicationRecord{}, false
	}
	rec, err := w.resolve(path)
	if err != nil {
		return models.ApplicationRecord{}, false
	}
	return rec, true
}

func (w *workspace) addFree(rec models.ApplicationRecord) {
	if w.freeIndex(rec.Path) >= 0 {
		return
	}
	w.apps = append(w.apps, rec)
	catalog.SortByName(w.apps)
}

func (w *workspace) removeFree(path string) {
	w.apps = slices.DeleteFunc(w.apps, func(a models.ApplicationRecord) bool { return a.Path == path })
}

// refreshFolderSlots rewrites every slot referencing folder id from the registry.
func (w *workspace) refreshFolderSlots(id string) {
	fi := w.folderIndex(id)
	for i, s := range w.items {
		if s.Kind != models.SlotFolder || s.Folder.ID != id {
			continue
		}
		if fi < 0 {
			w.items[i] = models.EmptySlot()
			continue
		}
		w.items[i] = models.FolderSlot(w.folders[fi])
	}
}

// place puts s into the first empty slot, or appends it and pads the new
// page to full capacity.
func (w *workspace) place(s models.Slot) {
	if i := grid.FirstEmpty(w.items); i >= 0 {
		w.items[i] = s
		return
	}
	w.items = grid.PadToPage(append(w.items, s), w.perPage())
}

// purge deletes the given paths from the free list and every folder,
// dropping folders that become empty, and voids the affected slots.
func (w *workspace) purge(paths map[string]struct{}) {
	if len(paths) == 0 {
		return
	}
	gone := func(a models.ApplicationRecord) bool {
		_, ok := paths[a.Path]
		return ok
	}
	for i := range w.folders {
		w.folders[i].Apps = slices.DeleteFunc(w.folders[i].Apps, gone)
	}
	w.folders = slices.DeleteFunc(w.folders, func(f models.FolderRecord) bool { return len(f.Apps) == 0 })
	w.apps = slices.DeleteFunc(w.apps, gone)

	for i, s := range w.items {
		switch s.Kind {
		case models.SlotApp:
			if gone(s.App) {
				w.items[i] = models.EmptySlot()
			}
		case models.SlotFolder:
			if fi := w.folderIndex(s.Folder.ID); fi < 0 {
				w.items[i] = models.EmptySlot()
			} else {
				w.items[i] = models.FolderSlot(w.folders[fi])
			}
		}
	}
}

// replaceRecords swaps every copy of a re-observed record for the fresh one.
func (w *workspace) replaceRecords(fresh map[string]models.ApplicationRecord) {
	if len(fresh) == 0 {
		return
	}
	for i, a := range w.apps {
		if rec, ok := fresh[a.Path]; ok {
			w.apps[i] = rec
		}
	}
	catalog.SortByName(w.apps)
	for fi := range w.folders {
		for ai, a := range w.folders[fi].Apps {
			if rec, ok := fresh[a.Path]; ok {
				w.folders[fi].Apps[ai] = rec
			}
		}
	}
	for i, a := range w.available {
		if rec, ok := fresh[a.Path]; ok {
			w.available[i] = rec
		}
	}
	for i, s := range w.items {
		switch s.Kind {
		case models.SlotApp:
			if rec, ok := fresh[s.App.Path]; ok {
				w.items[i] = models.AppSlot(rec)
			}
		case models.SlotFolder:
			if fi := w.folderIndex(s.Folder.ID); fi >= 0 {
				w.items[i] = models.FolderSlot(w.folders[fi])
			}
		}
	}
}

// Snapshot is an immutable copy of the launcher state.
type Snapshot struct {
	Columns     int
	Rows        int
	PerPage     int
	CurrentPage int
	Fullscreen  bool
	Items       []models.Slot
	Apps        []models.ApplicationRecord
	Folders     []models.FolderRecord
	Available   []models.ApplicationRecord
}

// Pages returns the number of pages in the snapshot.
func (s Snapshot) Pages() int { return grid.PageCount(len(s.Items), s.PerPage) }

func (w *workspace) snapshot() Snapshot {
	items := make([]models.Slot, len(w.items))
	for i, s := range w.items {
		if s.Kind == models.SlotFolder {
			s.Folder = s.Folder.Clone()
		}
		items[i] = s
	}
	folders := make([]models.FolderRecord, len(w.folders))
	for i, f := range w.folders {
		folders[i] = f.Clone()
	}
	return Snapshot{
		Columns:     w.columns,
		Rows:        w.rows,
		PerPage:     w.perPage(),
		CurrentPage: w.currentPage,
		Fullscreen:  w.fullscreen,
		Items:       items,
		Apps:        slices.Clone(w.apps),
		Folders:     folders,
		Available:   slices.Clone(w.available),
	}
}
