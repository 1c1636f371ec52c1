package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/starford/launchgrid/internal/checksum"
	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/storage"
	pkgconfig "github.com/starford/launchgrid/pkg/config"
)

const backupStamp = "20060102-150405"

// Settings is the YAML file written next to each layout backup.
type Settings struct {
	Grid       GridSettings `yaml:"grid"`
	Fullscreen bool         `yaml:"fullscreen"`
	ExportedAt string       `yaml:"exported_at"`
}

// GridSettings holds the grid dimensions of a backup.
type GridSettings struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`
}

// BackupHandler writes, lists and restores layout backups.
type BackupHandler struct {
	svc   *launcher.Service
	store storage.Provider
	now   func() time.Time
}

// NewBackupHandler creates a handler over the given backup provider.
func NewBackupHandler(svc *launcher.Service, store storage.Provider) *BackupHandler {
	return &BackupHandler{svc: svc, store: store, now: time.Now}
}

// safeName validates that the name is a plain file name (no path
// separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("backup name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid backup name: %s", name)
	}
	return cleaned, nil
}

// List handles GET /api/backups.
//
//	@Summary		List layout and settings backups
//	@Tags			backups
//	@Produce		json
//	@Success		200	{object}	BackupListResponse
//	@Security		BearerAuth
//	@Router			/backups [get]
func (h *BackupHandler) List(w http.ResponseWriter, _ *http.Request) {
	items, err := h.store.List("")
	if err != nil {
		writeError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Backups: nonNil(items)})
}

// Create handles POST /api/backups. It writes the export document as JSON
// and the grid settings as YAML.
//
//	@Summary		Back up the current layout
//	@Tags			backups
//	@Produce		json
//	@Success		201	{object}	BackupResponse
//	@Security		BearerAuth
//	@Router			/backups [post]
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, "backup", err)
		return
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeError(w, "backup", err)
		return
	}
	settings, err := pkgconfig.Encode(&Settings{
		Grid:       GridSettings{Columns: doc.GridColumns, Rows: doc.GridRows},
		Fullscreen: doc.FullscreenMode,
		ExportedAt: doc.ExportDate,
	})
	if err != nil {
		writeError(w, "backup", err)
		return
	}

	stamp := h.now().Format(backupStamp)
	resp := BackupResponse{
		Layout:   "layout-" + stamp + ".json",
		Settings: "settings-" + stamp + ".yaml",
		Checksum: checksum.Sum(data),
	}
	if err := h.store.Write(resp.Layout, data); err != nil {
		writeError(w, "backup", err)
		return
	}
	if err := h.store.Write(resp.Settings, settings); err != nil {
		writeError(w, "backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Restore handles POST /api/backups/{name}/restore. A JSON backup replaces
// the layout; a YAML backup restores the grid dimensions.
//
//	@Summary		Restore a backup
//	@Tags			backups
//	@Produce		json
//	@Param			name	path		string	true	"Backup file name"
//	@Success		200		{object}	LayoutResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups/{name}/restore [post]
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := h.store.Read(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("backup not found"))
		return
	}

	switch filepath.Ext(name) {
	case ".json":
		v, err := h.svc.Import(r.Context(), data, "")
		if err != nil {
			if !v.Valid {
				writeJSON(w, http.StatusBadRequest, v)
				return
			}
			writeError(w, "restore", err)
			return
		}
	case ".yaml", ".yml":
		var s Settings
		if err := yaml.Unmarshal(data, &s); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid settings file"))
			return
		}
		if err := h.svc.SetGrid(r.Context(), s.Grid.Columns, s.Grid.Rows); err != nil {
			writeError(w, "restore", err)
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported backup type"))
		return
	}

	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "restore", err)
		return
	}
	writeJSON(w, http.StatusOK, layoutFrom(snap))
}

// Delete handles DELETE /api/backups/{name}.
//
//	@Summary		Delete a backup
//	@Tags			backups
//	@Param			name	path	string	true	"Backup file name"
//	@Success		204		"Backup deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups/{name} [delete]
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.store.Delete(name); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("backup not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
