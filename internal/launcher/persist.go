package launcher

import (
	"github.com/starford/launchgrid/internal/grid"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/store"
)

// slotRows projects the layout onto one row per page position. Folder rows
// take their name and members from the registry, not from the slot copy.
func (w *workspace) slotRows() []store.SlotRow {
	pp := w.perPage()
	rows := make([]store.SlotRow, 0, len(w.items))
	for i, s := range w.items {
		page, pos := grid.Locate(i, pp)
		row := store.SlotRow{SlotID: store.SlotID(page, pos), PageIndex: page, Position: pos}
		switch s.Kind {
		case models.SlotApp:
			row.Kind = store.KindApp
			row.AppPath = s.App.Path
		case models.SlotFolder:
			f := s.Folder
			if fi := w.folderIndex(f.ID); fi >= 0 {
				f = w.folders[fi]
			}
			row.Kind = store.KindFolder
			row.FolderID = f.ID
			row.FolderName = f.Name
			row.AppPaths = f.Paths()
			row.CreatedAt = f.CreatedAt
		default:
			row.Kind = store.KindEmpty
		}
		rows = append(rows, row)
	}
	return rows
}

// folderBuilder reconstructs folders from persisted member paths, dropping
// members that no longer resolve and folders left with none.
type folderBuilder struct {
	w       *workspace
	byID    map[string]models.FolderRecord
	order   []string
	claimed map[string]struct{}
}

func newFolderBuilder(w *workspace) *folderBuilder {
	return &folderBuilder{w: w, byID: make(map[string]models.FolderRecord), claimed: make(map[string]struct{})}
}

func (b *folderBuilder) add(row store.SlotRow) {
	if row.FolderID == "" {
		return
	}
	if _, ok := b.byID[row.FolderID]; ok {
		return
	}
	name := row.FolderName
	if name == "" {
		name = models.DefaultFolderName
	}
	f := models.FolderRecord{ID: row.FolderID, Name: name, CreatedAt: row.CreatedAt}
	for _, p := range row.AppPaths {
		if _, dup := b.claimed[p]; dup {
			continue
		}
		rec, ok := b.w.probe(p)
		if !ok {
			continue
		}
		b.claimed[p] = struct{}{}
		f.Apps = append(f.Apps, rec)
	}
	if len(f.Apps) == 0 {
		return
	}
	b.byID[f.ID] = f
	b.order = append(b.order, f.ID)
}

func (b *folderBuilder) folders() []models.FolderRecord {
	out := make([]models.FolderRecord, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

// loadSlots rebuilds the layout from per-slot rows ordered by page and
// position. It reports whether anything was applied.
func (w *workspace) loadSlots(rows []store.SlotRow) bool {
	if len(rows) == 0 {
		return false
	}
	b := newFolderBuilder(w)
	for _, row := range rows {
		if row.Kind == store.KindFolder {
			b.add(row)
		}
	}

	placedApps := make(map[string]struct{})
	placedFolders := make(map[string]struct{})
	items := make([]models.Slot, 0, len(rows))
	for _, row := range rows {
		switch row.Kind {
		case store.KindFolder:
			f, ok := b.byID[row.FolderID]
			if _, dup := placedFolders[row.FolderID]; !ok || dup {
				items = append(items, models.EmptySlotWithToken(row.SlotID))
				continue
			}
			placedFolders[f.ID] = struct{}{}
			items = append(items, models.FolderSlot(f))
		case store.KindApp:
			if _, ok := b.claimed[row.AppPath]; ok {
				continue
			}
			if _, dup := placedApps[row.AppPath]; dup {
				continue
			}
			rec, ok := w.probe(row.AppPath)
			if !ok {
				continue
			}
			placedApps[row.AppPath] = struct{}{}
			items = append(items, models.AppSlot(rec))
		case store.KindEmpty:
			items = append(items, models.EmptySlotWithToken(row.SlotID))
		}
	}
	w.apply(items, b.folders())
	return true
}

// loadLegacy rebuilds the layout from the older single ordered list. Free
// apps that the list never mentions are appended.
func (w *workspace) loadLegacy(rows []store.LegacyRow) bool {
	if len(rows) == 0 {
		return false
	}
	b := newFolderBuilder(w)
	for _, row := range rows {
		if row.Kind == store.KindFolder {
			b.add(store.SlotRow{FolderID: row.ID, FolderName: row.FolderName, AppPaths: row.AppPaths, CreatedAt: row.CreatedAt})
		}
	}

	placed := make(map[string]struct{})
	var items []models.Slot
	for _, row := range rows {
		switch row.Kind {
		case store.KindFolder:
			if f, ok := b.byID[row.ID]; ok {
				items = append(items, models.FolderSlot(f))
			}
		case store.KindEmpty:
			items = append(items, models.EmptySlotWithToken(row.ID))
		case store.KindApp:
			if _, ok := b.claimed[row.AppPath]; ok {
				continue
			}
			if _, dup := placed[row.AppPath]; dup {
				continue
			}
			if rec, ok := w.probe(row.AppPath); ok {
				placed[row.AppPath] = struct{}{}
				items = append(items, models.AppSlot(rec))
			}
		}
	}
	for _, a := range w.apps {
		_, inFolder := b.claimed[a.Path]
		_, seen := placed[a.Path]
		if !inFolder && !seen {
			items = append(items, models.AppSlot(a))
		}
	}
	w.apply(items, b.folders())
	return true
}

// apply installs a reconstructed layout. Top-level apps join the free
// list, which keeps it equal to the set of App slots.
func (w *workspace) apply(items []models.Slot, folders []models.FolderRecord) {
	w.folders = folders
	if len(items) > 0 {
		w.items = items
		for _, s := range items {
			if s.Kind == models.SlotApp {
				w.addFree(s.App)
			}
		}
	}
	for _, f := range folders {
		for _, a := range f.Apps {
			w.removeFree(a.Path)
		}
	}
	w.compact()
	w.currentPage = grid.ClampPage(w.currentPage, len(w.items), w.perPage())
	w.loaded = true
}
