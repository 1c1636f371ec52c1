// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	// ErrNotFound: a referenced path, folder, or slot no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrInvalidBundle: the path exists but is not a top-level application bundle.
	ErrInvalidBundle = errors.New("invalid bundle")
	// ErrStoreUnavailable: the durable store is missing or could not be opened.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDecode: a persisted row or an import document could not be decoded.
	ErrDecode = errors.New("decode failure")

	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = errors.New("closed")
)
