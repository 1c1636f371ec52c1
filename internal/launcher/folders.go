package launcher

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/models"
)

// createFolder groups free apps into a new folder. The folder takes the
// slot at insertAt when that slot is free after the members are lifted
// out, otherwise the lowest slot a member occupied.
func (w *workspace) createFolder(paths []string, name string, insertAt int) (models.FolderRecord, error) {
	var members []models.ApplicationRecord
	memberSet := make(map[string]struct{})
	for _, p := range paths {
		if _, dup := memberSet[p]; dup {
			continue
		}
		i := w.freeIndex(p)
		if i < 0 {
			continue
		}
		memberSet[p] = struct{}{}
		members = append(members, w.apps[i])
	}
	if len(members) == 0 {
		return models.FolderRecord{}, fmt.Errorf("launcher: create folder: no free apps among %d paths: %w",
			len(paths), apperr.ErrInvalidArgument)
	}

	folder := models.NewFolder(strings.TrimSpace(name), members)
	w.folders = append(w.folders, folder)
	for _, m := range members {
		w.removeFree(m.Path)
	}

	target := -1
	for i, s := range w.items {
		if s.Kind != models.SlotApp {
			continue
		}
		if _, ok := memberSet[s.App.Path]; ok {
			if target < 0 {
				target = i
			}
			w.items[i] = models.EmptySlot()
		}
	}
	if insertAt >= 0 && insertAt < len(w.items) && w.items[insertAt].IsEmpty() {
		target = insertAt
	}
	if target >= 0 {
		w.items[target] = models.FolderSlot(folder)
	} else {
		w.place(models.FolderSlot(folder))
	}
	w.compact()
	return folder.Clone(), nil
}

// addAppToFolder moves a free app, or a member of another folder, into
// the folder.
func (w *workspace) addAppToFolder(folderID, path string) error {
	fi := w.folderIndex(folderID)
	if fi < 0 {
		return fmt.Errorf("launcher: folder %s: %w", folderID, apperr.ErrNotFound)
	}
	if w.folders[fi].Contains(path) {
		return nil
	}

	var rec models.ApplicationRecord
	if i := w.freeIndex(path); i >= 0 {
		rec = w.apps[i]
		w.removeFree(path)
	} else if from := w.folderOf(path); from >= 0 {
		src := w.folders[from]
		rec = src.Apps[slices.IndexFunc(src.Apps, func(a models.ApplicationRecord) bool { return a.Path == path })]
		w.detach(src.ID, path)
		fi = w.folderIndex(folderID)
	} else {
		return fmt.Errorf("launcher: app %s: %w", path, apperr.ErrNotFound)
	}

	w.folders[fi].Apps = append(w.folders[fi].Apps, rec)

	if pos := appSlotIndex(w.items, path); pos >= 0 {
		w.items[pos] = models.EmptySlot()
		w.compact()
	} else {
		w.rebuildItems()
	}
	w.refreshFolderSlots(folderID)
	return nil
}

// removeAppFromFolder lifts an app out of a folder back onto the top level.
// A folder left empty is deleted and its slot becomes empty.
func (w *workspace) removeAppFromFolder(folderID, path string) error {
	fi := w.folderIndex(folderID)
	if fi < 0 {
		return fmt.Errorf("launcher: folder %s: %w", folderID, apperr.ErrNotFound)
	}
	ai := slices.IndexFunc(w.folders[fi].Apps, func(a models.ApplicationRecord) bool { return a.Path == path })
	if ai < 0 {
		return fmt.Errorf("launcher: app %s in folder %s: %w", path, folderID, apperr.ErrNotFound)
	}
	rec := w.folders[fi].Apps[ai]

	w.detach(folderID, path)
	w.addFree(rec)
	w.place(models.AppSlot(rec))
	w.compact()
	return nil
}

// detach removes path from a folder, deleting the folder when it empties.
func (w *workspace) detach(folderID, path string) {
	fi := w.folderIndex(folderID)
	if fi < 0 {
		return
	}
	w.folders[fi].Apps = slices.DeleteFunc(w.folders[fi].Apps, func(a models.ApplicationRecord) bool { return a.Path == path })
	if len(w.folders[fi].Apps) == 0 {
		w.folders = slices.Delete(w.folders, fi, fi+1)
	}
	w.refreshFolderSlots(folderID)
}

// renameFolder changes a folder's display name; its identity is unchanged.
func (w *workspace) renameFolder(folderID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("launcher: folder name is empty: %w", apperr.ErrInvalidArgument)
	}
	fi := w.folderIndex(folderID)
	if fi < 0 {
		return fmt.Errorf("launcher: folder %s: %w", folderID, apperr.ErrNotFound)
	}
	w.folders[fi].Name = name
	w.refreshFolderSlots(folderID)
	w.rebuildItems()
	return nil
}

func appSlotIndex(items []models.Slot, path string) int {
	return slices.IndexFunc(items, func(s models.Slot) bool { return s.Kind == models.SlotApp && s.App.Path == path })
}
