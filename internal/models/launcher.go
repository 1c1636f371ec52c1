// Package models defines the domain types for the launcher grid.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ApplicationRecord is an installed application bundle. Identity is the
// canonical (symlink-resolved) path; records are replaced wholesale, never
// mutated in place.
type ApplicationRecord struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	IconPath   string    `json:"icon_path,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Same reports whether a and b refer to the same application.
func (a ApplicationRecord) Same(b ApplicationRecord) bool {
	return a.Path == b.Path
}

// FolderRecord is a user-created group of applications.
type FolderRecord struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	CreatedAt time.Time           `json:"created_at"`
	Apps      []ApplicationRecord `json:"apps"`
}

// DefaultFolderName is used when a folder is created without a name.
const DefaultFolderName = "Untitled"

// NewFolder creates a folder with a freshly generated id.
func NewFolder(name string, apps []ApplicationRecord) FolderRecord {
	if name == "" {
		name = DefaultFolderName
	}
	return FolderRecord{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		Apps:      slices.Clone(apps),
	}
}

// Contains reports whether the folder holds the application at path.
func (f FolderRecord) Contains(path string) bool {
	return slices.ContainsFunc(f.Apps, func(a ApplicationRecord) bool { return a.Path == path })
}

// Paths returns member paths in folder order.
func (f FolderRecord) Paths() []string {
	out := make([]string, len(f.Apps))
	for i, a := range f.Apps {
		out[i] = a.Path
	}
	return out
}

// Clone returns a copy that shares no backing storage with f.
func (f FolderRecord) Clone() FolderRecord {
	f.Apps = slices.Clone(f.Apps)
	return f
}

// SlotKind discriminates the Slot variant.
type SlotKind int

const (
	SlotEmpty SlotKind = iota
	SlotApp
	SlotFolder
)

func (k SlotKind) String() string {
	switch k {
	case SlotApp:
		return "app"
	case SlotFolder:
		return "folder"
	default:
		return "empty"
	}
}

// Slot is one grid position: an application, a folder, or an empty
// placeholder carrying an opaque token. Only the field matching Kind is set.
type Slot struct {
	Kind   SlotKind
	App    ApplicationRecord
	Folder FolderRecord
	Token  string
}

// AppSlot wraps an application.
func AppSlot(a ApplicationRecord) Slot {
	return Slot{Kind: SlotApp, App: a}
}

// FolderSlot wraps a copy of the folder.
func FolderSlot(f FolderRecord) Slot {
	return Slot{Kind: SlotFolder, Folder: f.Clone()}
}

// EmptySlot returns a placeholder with a fresh token.
func EmptySlot() Slot {
	return Slot{Kind: SlotEmpty, Token: uuid.NewString()}
}

// EmptySlotWithToken returns a placeholder with the given token.
func EmptySlotWithToken(token string) Slot {
	return Slot{Kind: SlotEmpty, Token: token}
}

// IsEmpty reports whether s is a placeholder.
func (s Slot) IsEmpty() bool { return s.Kind == SlotEmpty }

// ID is the slot identity used by reorder requests.
func (s Slot) ID() string {
	switch s.Kind {
	case SlotApp:
		return "app_" + s.App.Path
	case SlotFolder:
		return "folder_" + s.Folder.ID
	default:
		return "empty_" + s.Token
	}
}

// Key is like ID but ignores empty-slot tokens, for structural comparisons.
func (s Slot) Key() string {
	if s.Kind == SlotEmpty {
		return "empty"
	}
	return s.ID()
}

// Name is the display name of the slot content.
func (s Slot) Name() string {
	switch s.Kind {
	case SlotApp:
		return s.App.Name
	case SlotFolder:
		return s.Folder.Name
	default:
		return ""
	}
}

// ChangeEvent is one raw file-system notification.
type ChangeEvent struct {
	Path     string
	Created  bool
	Removed  bool
	Renamed  bool
	Modified bool
	IsDir    bool
}

// Structural reports whether the event creates, removes, or renames path.
func (e ChangeEvent) Structural() bool {
	return e.Created || e.Removed || e.Renamed
}

// BackupMetadata describes a stored layout backup file.
type BackupMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
