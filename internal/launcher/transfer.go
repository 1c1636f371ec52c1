package launcher

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/grid"
	"github.com/starford/launchgrid/internal/models"
)

// Kind tags used by the export format.
const (
	KindTagApp    = "应用"
	KindTagFolder = "文件夹"
	KindTagEmpty  = "空槽位"
)

// Document is the exported layout. Fields are declared in key order so the
// encoded object has sorted keys.
type Document struct {
	ExportDate     string  `json:"exportDate"`
	FullscreenMode bool    `json:"fullscreenMode"`
	GridColumns    int     `json:"gridColumns"`
	GridRows       int     `json:"gridRows"`
	Pages          []Entry `json:"pages"`
	TotalItems     int     `json:"totalItems"`
	TotalPages     int     `json:"totalPages"`
}

// Entry is one exported slot.
type Entry struct {
	FolderAppPaths []string `json:"folderAppPaths,omitempty"`
	FolderApps     []string `json:"folderApps"`
	Kind           string   `json:"kind"`
	Name           string   `json:"name"`
	PageIndex      int      `json:"pageIndex"`
	Path           string   `json:"path"`
	Position       int      `json:"position"`
}

// Validation is the result of checking an import document.
type Validation struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message"`
	TotalPages int    `json:"total_pages"`
	TotalItems int    `json:"total_items"`
}

func (w *workspace) export(now time.Time) Document {
	pp := w.perPage()
	doc := Document{
		ExportDate:     now.UTC().Format(time.RFC3339),
		FullscreenMode: w.fullscreen,
		GridColumns:    w.columns,
		GridRows:       w.rows,
		Pages:          make([]Entry, 0, len(w.items)),
		TotalItems:     len(w.items),
		TotalPages:     grid.PageCount(len(w.items), pp),
	}
	for i, s := range w.items {
		page, pos := grid.Locate(i, pp)
		e := Entry{PageIndex: page, Position: pos, Name: s.Name(), FolderApps: []string{}}
		switch s.Kind {
		case models.SlotApp:
			e.Kind = KindTagApp
			e.Path = s.App.Path
		case models.SlotFolder:
			f := s.Folder
			if fi := w.folderIndex(f.ID); fi >= 0 {
				f = w.folders[fi]
			}
			e.Kind = KindTagFolder
			e.Name = f.Name
			e.Path = KindTagFolder + ": " + f.Name
			for _, a := range f.Apps {
				e.FolderApps = append(e.FolderApps, a.Name)
			}
			e.FolderAppPaths = f.Paths()
		default:
			e.Kind = KindTagEmpty
			e.Path = KindTagEmpty
		}
		doc.Pages = append(doc.Pages, e)
	}
	return doc
}

// ValidateImport checks that data is a layout document with a non-empty
// pages array. The returned document is nil when the data is invalid.
func ValidateImport(data []byte) (Validation, *Document) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return Validation{Message: "JSON解析失败: " + err.Error()}, nil
	}
	top, ok := probe.(map[string]any)
	if !ok {
		return Validation{Message: "数据格式无效"}, nil
	}
	rawPages, ok := top["pages"].([]any)
	if !ok {
		return Validation{Message: "缺少页面数据"}, nil
	}

	doc := &Document{
		TotalPages: intField(top, "totalPages"),
		TotalItems: intField(top, "totalItems"),
	}
	doc.ExportDate, _ = top["exportDate"].(string)
	doc.FullscreenMode, _ = top["fullscreenMode"].(bool)
	doc.GridColumns = intField(top, "gridColumns")
	doc.GridRows = intField(top, "gridRows")
	for _, raw := range rawPages {
		if m, ok := raw.(map[string]any); ok {
			doc.Pages = append(doc.Pages, entryFrom(m))
		}
	}

	err := validation.ValidateStruct(doc,
		validation.Field(&doc.Pages, validation.Required.Error("没有找到应用数据")),
	)
	if err != nil {
		return Validation{Message: "没有找到应用数据"}, nil
	}
	return Validation{
		Valid:      true,
		Message:    fmt.Sprintf("数据验证通过，共%d页，%d个项目", doc.TotalPages, doc.TotalItems),
		TotalPages: doc.TotalPages,
		TotalItems: doc.TotalItems,
	}, doc
}

func intField(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

func stringsField(m map[string]any, key string) ([]string, bool) {
	raw, ok := m[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func entryFrom(m map[string]any) Entry {
	e := Entry{
		PageIndex: intField(m, "pageIndex"),
		Position:  intField(m, "position"),
	}
	e.Kind, _ = m["kind"].(string)
	e.Name, _ = m["name"].(string)
	e.Path, _ = m["path"].(string)
	e.FolderApps, _ = stringsField(m, "folderApps")
	e.FolderAppPaths, _ = stringsField(m, "folderAppPaths")
	return e
}

// importDocument replaces the layout with the one described by doc,
// resolved against the apps already in the launcher. References that do
// not resolve become empty slots; apps the document never mentions are
// appended on a fresh trailing page.
func (w *workspace) importDocument(doc *Document) {
	working := w.workingSet()
	byPath := make(map[string]models.ApplicationRecord, len(working))
	for _, a := range working {
		byPath[a.Path] = a
	}
	byName := func(name string) (models.ApplicationRecord, bool) {
		i := slices.IndexFunc(working, func(a models.ApplicationRecord) bool { return a.Name == name })
		if i < 0 {
			return models.ApplicationRecord{}, false
		}
		return working[i], true
	}

	var items []models.Slot
	var folders []models.FolderRecord
	for _, e := range doc.Pages {
		switch e.Kind {
		case KindTagApp:
			if rec, ok := byPath[e.Path]; ok {
				items = append(items, models.AppSlot(rec))
			} else {
				items = append(items, models.EmptySlot())
			}
		case KindTagFolder:
			members := resolveMembers(e, byPath, byName)
			if len(members) == 0 {
				items = append(items, models.EmptySlot())
				continue
			}
			f, ok := w.matchFolder(e.Name, members)
			if !ok || slices.ContainsFunc(folders, func(x models.FolderRecord) bool { return x.ID == f.ID }) {
				f = models.NewFolder(e.Name, members)
			}
			folders = append(folders, f)
			items = append(items, models.FolderSlot(f))
		default:
			items = append(items, models.EmptySlot())
		}
	}

	// A path may be claimed once: by the first folder that lists it, else
	// by the first app slot.
	claimed := make(map[string]struct{})
	for fi := range folders {
		folders[fi].Apps = slices.DeleteFunc(folders[fi].Apps, func(a models.ApplicationRecord) bool {
			_, dup := claimed[a.Path]
			claimed[a.Path] = struct{}{}
			return dup
		})
	}
	folders = slices.DeleteFunc(folders, func(f models.FolderRecord) bool { return len(f.Apps) == 0 })
	kept := make(map[string]models.FolderRecord, len(folders))
	for _, f := range folders {
		kept[f.ID] = f
	}
	for i, s := range items {
		switch s.Kind {
		case models.SlotFolder:
			if f, ok := kept[s.Folder.ID]; ok {
				items[i] = models.FolderSlot(f)
			} else {
				items[i] = models.EmptySlot()
			}
		case models.SlotApp:
			if _, dup := claimed[s.App.Path]; dup {
				items[i] = models.EmptySlot()
				continue
			}
			claimed[s.App.Path] = struct{}{}
		}
	}

	var unused []models.ApplicationRecord
	for _, a := range working {
		if _, ok := claimed[a.Path]; !ok {
			unused = append(unused, a)
		}
	}
	if len(unused) > 0 {
		pp := w.perPage()
		items = grid.PadToPage(items, pp)
		for _, a := range unused {
			items = append(items, models.AppSlot(a))
		}
		items = grid.PadToPage(items, pp)
	}

	inFolder := make(map[string]struct{})
	for _, f := range folders {
		for _, a := range f.Apps {
			inFolder[a.Path] = struct{}{}
		}
	}
	var free []models.ApplicationRecord
	for _, a := range working {
		if _, ok := inFolder[a.Path]; !ok {
			free = append(free, a)
		}
	}
	catalog.SortByName(free)

	w.items = items
	w.folders = folders
	w.apps = free
	w.fullscreen = doc.FullscreenMode
	w.dragPage = -1
	w.currentPage = grid.ClampPage(w.currentPage, len(w.items), w.perPage())
}

// resolveMembers maps exported folder members to records. Paths win; a
// path that no longer resolves falls back to the name listed at the same
// index. Older exports without paths match by name alone.
func resolveMembers(e Entry, byPath map[string]models.ApplicationRecord,
	byName func(string) (models.ApplicationRecord, bool)) []models.ApplicationRecord {
	var out []models.ApplicationRecord
	if e.FolderAppPaths != nil {
		for i, p := range e.FolderAppPaths {
			if rec, ok := byPath[p]; ok {
				out = append(out, rec)
				continue
			}
			if i < len(e.FolderApps) {
				if rec, ok := byName(e.FolderApps[i]); ok {
					out = append(out, rec)
				}
			}
		}
		return out
	}
	for _, name := range e.FolderApps {
		if rec, ok := byName(name); ok {
			out = append(out, rec)
		}
	}
	return out
}

// matchFolder finds an existing folder with the same name and member set.
func (w *workspace) matchFolder(name string, members []models.ApplicationRecord) (models.FolderRecord, bool) {
	for _, f := range w.folders {
		if f.Name != name || len(f.Apps) != len(members) {
			continue
		}
		same := true
		for _, a := range f.Apps {
			if !slices.ContainsFunc(members, a.Same) {
				same = false
				break
			}
		}
		if same {
			f = f.Clone()
			f.Apps = slices.Clone(members)
			return f, true
		}
	}
	return models.FolderRecord{}, false
}
