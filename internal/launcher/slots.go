package launcher

import (
	"fmt"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/grid"
	"github.com/starford/launchgrid/internal/models"
)

// moveItem drags the slot with the given id to target, cascading overflow
// into later pages. When the drop lands on the final page, compaction is
// left to the caller after a settle delay and settle is true.
func (w *workspace) moveItem(id string, target int) (settle bool, err error) {
	src := grid.IndexOf(w.items, id)
	if src < 0 {
		return false, fmt.Errorf("launcher: slot %s: %w", id, apperr.ErrNotFound)
	}
	if target < 0 || target > len(w.items) {
		return false, fmt.Errorf("launcher: target %d out of range: %w", target, apperr.ErrInvalidArgument)
	}
	item := w.items[src]
	if item.IsEmpty() {
		return false, fmt.Errorf("launcher: cannot move an empty slot: %w", apperr.ErrInvalidArgument)
	}

	pp := w.perPage()
	w.items[src] = models.EmptySlot()
	w.items = grid.CascadeInsert(w.items, item, target, pp)

	if target/pp == grid.PageCount(len(w.items), pp)-1 {
		return true, nil
	}
	w.compact()
	return false, nil
}

// setGrid changes the grid dimensions and re-pages the layout. It reports
// whether anything changed.
func (w *workspace) setGrid(columns, rows int) bool {
	columns, rows = ClampGrid(columns, rows)
	if columns == w.columns && rows == w.rows {
		return false
	}
	w.columns, w.rows = columns, rows
	w.compact()
	w.removeEmptyPages()
	return true
}

// beginDragPage appends a blank page so a drag can target it and returns
// its index. Calling it again before endDragPage returns the same page.
func (w *workspace) beginDragPage() int {
	if w.dragPage >= 0 {
		return w.dragPage
	}
	pp := w.perPage()
	w.items = grid.PadToPage(w.items, pp)
	w.dragPage = grid.PageCount(len(w.items), pp)
	w.items = grid.AppendPage(w.items, pp)
	return w.dragPage
}

// endDragPage removes the preview page if nothing was dropped on it.
func (w *workspace) endDragPage() bool {
	if w.dragPage < 0 {
		return false
	}
	pp := w.perPage()
	start := w.dragPage * pp
	w.dragPage = -1
	if start >= len(w.items) {
		return false
	}
	end := min(start+pp, len(w.items))
	for _, s := range w.items[start:end] {
		if !s.IsEmpty() {
			return false
		}
	}
	w.items = append(w.items[:start:start], w.items[end:]...)
	w.currentPage = grid.ClampPage(w.currentPage, len(w.items), pp)
	return true
}

// importApps adds records that are not yet in the launcher, each into the
// first empty slot or onto a new page. It returns the records added.
func (w *workspace) importApps(recs []models.ApplicationRecord) []models.ApplicationRecord {
	var added []models.ApplicationRecord
	for _, rec := range recs {
		if w.isWorking(rec.Path) {
			continue
		}
		w.addFree(rec)
		w.place(models.AppSlot(rec))
		added = append(added, rec)
	}
	if len(added) > 0 {
		w.compact()
	}
	return added
}

// removeApps takes the given paths out of the launcher entirely and
// returns how many were present.
func (w *workspace) removeApps(paths []string) int {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if w.isWorking(p) {
			set[p] = struct{}{}
		}
	}
	if len(set) == 0 {
		return 0
	}
	w.purge(set)
	w.rebuildItems()
	w.compact()
	w.removeEmptyPages()
	return len(set)
}

// resetImported forgets every imported app and folder.
func (w *workspace) resetImported() {
	w.items = nil
	w.apps = nil
	w.folders = nil
	w.currentPage = 0
	w.dragPage = -1
}

// rebuildItems restores the slot invariants after free-form mutation:
// folder slots mirror the registry, folder members and unknown apps leave
// the top level, duplicates are dropped, and unplaced free apps and
// folders are appended.
func (w *workspace) rebuildItems() {
	inFolder := make(map[string]struct{})
	for _, f := range w.folders {
		for _, a := range f.Apps {
			inFolder[a.Path] = struct{}{}
		}
	}

	seenApps := make(map[string]struct{})
	seenFolders := make(map[string]struct{})
	out := make([]models.Slot, 0, len(w.items)+len(w.apps))
	for _, s := range w.items {
		switch s.Kind {
		case models.SlotFolder:
			fi := w.folderIndex(s.Folder.ID)
			if fi < 0 {
				continue
			}
			if _, dup := seenFolders[s.Folder.ID]; dup {
				continue
			}
			seenFolders[s.Folder.ID] = struct{}{}
			out = append(out, models.FolderSlot(w.folders[fi]))
		case models.SlotApp:
			if _, ok := inFolder[s.App.Path]; ok {
				continue
			}
			if _, dup := seenApps[s.App.Path]; dup {
				continue
			}
			if w.freeIndex(s.App.Path) < 0 {
				continue
			}
			seenApps[s.App.Path] = struct{}{}
			out = append(out, s)
		default:
			out = append(out, s)
		}
	}
	for _, a := range w.apps {
		if _, ok := inFolder[a.Path]; ok {
			continue
		}
		if _, ok := seenApps[a.Path]; !ok {
			out = append(out, models.AppSlot(a))
		}
	}
	for _, f := range w.folders {
		if _, ok := seenFolders[f.ID]; !ok {
			out = append(out, models.FolderSlot(f))
		}
	}
	w.items = out
}
