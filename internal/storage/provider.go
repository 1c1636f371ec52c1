// Package storage keeps layout backups and settings files in a directory.
package storage

import "github.com/starford/launchgrid/internal/models"

// Provider is the interface for backup file operations.
type Provider interface {
	// List returns metadata for every backup file (.json, .yaml) under dir
	// (relative to the backup root), newest first.
	List(dir string) ([]models.BackupMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the backup root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the backup root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the backup root).
	Delete(path string) error
}
