package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// backups, if non-nil, serves the /backups routes.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *launcher.Service, backups storage.Provider, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Layout.
	r.Get("/layout", h.Layout)
	r.Get("/catalog", h.Catalog)
	r.Post("/layout/move", h.Move)
	r.Put("/grid", h.SetGrid)

	// Folders.
	r.Post("/folders", h.CreateFolder)
	r.Patch("/folders/{id}", h.RenameFolder)
	r.Post("/folders/{id}/apps", h.AddFolderApp)
	r.Delete("/folders/{id}/apps", h.RemoveFolderApp)

	// Apps.
	r.Post("/apps/import", h.ImportApps)
	r.Post("/apps/remove", h.RemoveApps)

	// Maintenance.
	r.Post("/refresh", h.Refresh)
	r.Post("/reset", h.Reset)

	// Export / import.
	r.Get("/export", h.Export)
	r.Post("/import/validate", h.ValidateImport)
	r.Post("/import", h.Import)

	if backups != nil {
		bh := NewBackupHandler(svc, backups)
		r.Get("/backups", bh.List)
		r.Post("/backups", bh.Create)
		r.Post("/backups/{name}/restore", bh.Restore)
		r.Delete("/backups/{name}", bh.Delete)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
