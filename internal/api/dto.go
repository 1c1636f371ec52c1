package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/models"
)

// AppDTO is an application in API responses.
type AppDTO = models.ApplicationRecord

// FolderDTO is a folder in API responses.
type FolderDTO = models.FolderRecord

// SlotDTO is one grid position.
type SlotDTO struct {
	ID       string   `json:"id" example:"app_/Applications/Safari.app" validate:"required"`
	Kind     string   `json:"kind" example:"app" validate:"required"`
	Name     string   `json:"name" example:"Safari"`
	Page     int      `json:"page" example:"0"`
	Position int      `json:"position" example:"3"`
	Path     string   `json:"path,omitempty" example:"/Applications/Safari.app"`
	IconPath string   `json:"icon_path,omitempty"`
	FolderID string   `json:"folder_id,omitempty"`
	Apps     []AppDTO `json:"apps,omitempty"`
}

// LayoutResponse is the current grid.
type LayoutResponse struct {
	Columns     int       `json:"columns" example:"6"`
	Rows        int       `json:"rows" example:"4"`
	PerPage     int       `json:"per_page" example:"24"`
	Pages       int       `json:"pages" example:"2"`
	CurrentPage int       `json:"current_page" example:"0"`
	Fullscreen  bool      `json:"fullscreen"`
	Items       []SlotDTO `json:"items" validate:"required"`
}

// CatalogResponse lists known applications and folders.
type CatalogResponse struct {
	Available []AppDTO    `json:"available" validate:"required"`
	Free      []AppDTO    `json:"free" validate:"required"`
	Folders   []FolderDTO `json:"folders" validate:"required"`
}

func layoutFrom(snap launcher.Snapshot) LayoutResponse {
	items := make([]SlotDTO, len(snap.Items))
	for i, s := range snap.Items {
		d := SlotDTO{
			ID:       s.ID(),
			Kind:     s.Kind.String(),
			Name:     s.Name(),
			Page:     i / snap.PerPage,
			Position: i % snap.PerPage,
		}
		switch s.Kind {
		case models.SlotApp:
			d.Path = s.App.Path
			d.IconPath = s.App.IconPath
		case models.SlotFolder:
			d.FolderID = s.Folder.ID
			d.Apps = s.Folder.Apps
		}
		items[i] = d
	}
	return LayoutResponse{
		Columns:     snap.Columns,
		Rows:        snap.Rows,
		PerPage:     snap.PerPage,
		Pages:       snap.Pages(),
		CurrentPage: snap.CurrentPage,
		Fullscreen:  snap.Fullscreen,
		Items:       items,
	}
}

func catalogFrom(snap launcher.Snapshot) CatalogResponse {
	return CatalogResponse{
		Available: nonNil(snap.Available),
		Free:      nonNil(snap.Apps),
		Folders:   nonNil(snap.Folders),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MoveRequest drags a slot to a global index.
type MoveRequest struct {
	ID     string `json:"id" example:"app_/Applications/Safari.app" validate:"required"`
	Target int    `json:"target" example:"5"`
}

// Validate validates the request.
func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Target, validation.Min(0)),
	)
}

// GridRequest changes the grid dimensions.
type GridRequest struct {
	Columns int `json:"columns" example:"6" validate:"required"`
	Rows    int `json:"rows" example:"4" validate:"required"`
}

// Validate validates the request.
func (r GridRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Columns, validation.Required,
			validation.Min(launcher.MinColumns), validation.Max(launcher.MaxColumns)),
		validation.Field(&r.Rows, validation.Required,
			validation.Min(launcher.MinRows), validation.Max(launcher.MaxRows)),
	)
}

// CreateFolderRequest groups apps into a new folder.
type CreateFolderRequest struct {
	Name     string   `json:"name" example:"Utilities"`
	Paths    []string `json:"paths" validate:"required"`
	InsertAt *int     `json:"insert_at,omitempty"`
}

// Validate validates the request.
func (r CreateFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Paths, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.InsertAt, validation.Min(0)),
	)
}

// RenameFolderRequest changes a folder name.
type RenameFolderRequest struct {
	Name string `json:"name" example:"Games" validate:"required"`
}

// Validate validates the request.
func (r RenameFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// FolderAppRequest names one app to add to or remove from a folder.
type FolderAppRequest struct {
	Path string `json:"path" example:"/Applications/Chess.app" validate:"required"`
}

// Validate validates the request.
func (r FolderAppRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// PathsRequest carries bundle paths to import or remove.
type PathsRequest struct {
	Paths []string `json:"paths" validate:"required"`
}

// Validate validates the request.
func (r PathsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Paths, validation.Required, validation.Each(validation.Required)),
	)
}

// ImportAppsResponse lists the apps that were added.
type ImportAppsResponse struct {
	Added []AppDTO `json:"added" validate:"required"`
}

// RemoveAppsResponse reports how many apps were removed.
type RemoveAppsResponse struct {
	Removed int `json:"removed" example:"2"`
}

// ImportResponse is the outcome of an import.
type ImportResponse = launcher.Validation

// BackupResponse names the files written by a backup.
type BackupResponse struct {
	Layout   string `json:"layout" example:"layout-20260101-120000.json" validate:"required"`
	Settings string `json:"settings" example:"settings-20260101-120000.yaml" validate:"required"`
	Checksum string `json:"checksum" validate:"required"`
}

// BackupListResponse lists stored backups, newest first.
type BackupListResponse struct {
	Backups []models.BackupMetadata `json:"backups" validate:"required"`
}
