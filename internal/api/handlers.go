package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/launchgrid/internal/launcher"
)

// Handler holds API route handlers.
type Handler struct {
	svc *launcher.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *launcher.Service) *Handler {
	return &Handler{svc: svc}
}

// Layout handles GET /api/layout.
//
//	@Summary		Get the current grid
//	@Tags			layout
//	@Produce		json
//	@Success		200	{object}	LayoutResponse
//	@Security		BearerAuth
//	@Router			/layout [get]
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, layoutFrom(snap))
}

// Catalog handles GET /api/catalog.
//
//	@Summary		List available apps, free apps and folders
//	@Tags			layout
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Security		BearerAuth
//	@Router			/catalog [get]
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, catalogFrom(snap))
}

// Move handles POST /api/layout/move.
//
//	@Summary		Drag a slot to a new position
//	@Tags			layout
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Slot and target index"
//	@Success		200		{object}	LayoutResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.MoveItem(r.Context(), req.ID, req.Target); err != nil {
		writeError(w, "move", err)
		return
	}
	h.Layout(w, r)
}

// SetGrid handles PUT /api/grid.
//
//	@Summary		Change the grid dimensions
//	@Tags			layout
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GridRequest	true	"Columns and rows"
//	@Success		200		{object}	LayoutResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/grid [put]
func (h *Handler) SetGrid(w http.ResponseWriter, r *http.Request) {
	var req GridRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.SetGrid(r.Context(), req.Columns, req.Rows); err != nil {
		writeError(w, "set grid", err)
		return
	}
	h.Layout(w, r)
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Group free apps into a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder name and member paths"
//	@Success		201		{object}	FolderDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	insertAt := -1
	if req.InsertAt != nil {
		insertAt = *req.InsertAt
	}
	folder, err := h.svc.CreateFolder(r.Context(), req.Paths, req.Name, insertAt)
	if err != nil {
		writeError(w, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// RenameFolder handles PATCH /api/folders/{id}.
//
//	@Summary		Rename a folder
//	@Tags			folders
//	@Accept			json
//	@Param			id		path	string				true	"Folder id"
//	@Param			body	body	RenameFolderRequest	true	"New name"
//	@Success		204		"Folder renamed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{id} [patch]
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req RenameFolderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.RenameFolder(r.Context(), chi.URLParam(r, "id"), req.Name); err != nil {
		writeError(w, "rename folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddFolderApp handles POST /api/folders/{id}/apps.
//
//	@Summary		Move an app into a folder
//	@Tags			folders
//	@Accept			json
//	@Param			id		path	string				true	"Folder id"
//	@Param			body	body	FolderAppRequest	true	"App path"
//	@Success		204		"App added"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{id}/apps [post]
func (h *Handler) AddFolderApp(w http.ResponseWriter, r *http.Request) {
	var req FolderAppRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.AddAppToFolder(r.Context(), chi.URLParam(r, "id"), req.Path); err != nil {
		writeError(w, "add folder app", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFolderApp handles DELETE /api/folders/{id}/apps.
//
//	@Summary		Move an app out of a folder
//	@Tags			folders
//	@Accept			json
//	@Param			id		path	string				true	"Folder id"
//	@Param			body	body	FolderAppRequest	true	"App path"
//	@Success		204		"App removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{id}/apps [delete]
func (h *Handler) RemoveFolderApp(w http.ResponseWriter, r *http.Request) {
	var req FolderAppRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.RemoveAppFromFolder(r.Context(), chi.URLParam(r, "id"), req.Path); err != nil {
		writeError(w, "remove folder app", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportApps handles POST /api/apps/import.
//
//	@Summary		Add application bundles to the launcher
//	@Tags			apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathsRequest	true	"Bundle paths"
//	@Success		200		{object}	ImportAppsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/apps/import [post]
func (h *Handler) ImportApps(w http.ResponseWriter, r *http.Request) {
	var req PathsRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	added, err := h.svc.ImportApps(r.Context(), req.Paths)
	if err != nil {
		writeError(w, "import apps", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportAppsResponse{Added: nonNil(added)})
}

// RemoveApps handles POST /api/apps/remove.
//
//	@Summary		Remove apps from the launcher
//	@Tags			apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathsRequest	true	"Bundle paths"
//	@Success		200		{object}	RemoveAppsResponse
//	@Security		BearerAuth
//	@Router			/apps/remove [post]
func (h *Handler) RemoveApps(w http.ResponseWriter, r *http.Request) {
	var req PathsRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	n, err := h.svc.RemoveApps(r.Context(), req.Paths)
	if err != nil {
		writeError(w, "remove apps", err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveAppsResponse{Removed: n})
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Rescan application roots and reconcile the layout
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	LayoutResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetLayout(r.Context()); err != nil {
		writeError(w, "refresh", err)
		return
	}
	h.Layout(w, r)
}

// Reset handles POST /api/reset.
//
//	@Summary		Forget imported apps, folders and the saved layout
//	@Tags			maintenance
//	@Success		204	"Reset"
//	@Security		BearerAuth
//	@Router			/reset [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetImported(r.Context()); err != nil {
		writeError(w, "reset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/export. The ETag is the layout digest expected
// by If-Match on import.
//
//	@Summary		Export the layout as JSON
//	@Tags			transfer
//	@Produce		json
//	@Success		200	{object}	launcher.Document
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc, digest, err := h.svc.ExportWithDigest(r.Context())
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("ETag", `"`+digest+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// ValidateImport handles POST /api/import/validate.
//
//	@Summary		Check an export document without applying it
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	ImportResponse
//	@Security		BearerAuth
//	@Router			/import/validate [post]
func (h *Handler) ValidateImport(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	v, _ := launcher.ValidateImport(body)
	status := http.StatusOK
	if !v.Valid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, v)
}

// Import handles POST /api/import.
//
//	@Summary		Replace the layout with an export document
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header		string	false	"Layout digest from the export ETag"
//	@Success		200			{object}	ImportResponse
//	@Failure		400			{object}	ImportResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	v, err := h.svc.Import(r.Context(), body, ifMatch)
	if err != nil {
		if !v.Valid {
			writeJSON(w, http.StatusBadRequest, v)
			return
		}
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	return body, true
}
