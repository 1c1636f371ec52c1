// Package testutil provides shared test helpers for application roots and stores.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/launchgrid/internal/store"
)

// TestDB creates a temporary SQLite order store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "launchgrid-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary applications root. The returned path has
// symlinks resolved so it matches the canonical paths the scanner reports.
func TestRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>%s</string>
	<key>CFBundleIdentifier</key>
	<string>com.example.%s</string>
</dict>
</plist>
`

// MakeBundle creates dir/name.app with a minimal Info.plist whose bundle
// name is name, and returns the bundle path.
func MakeBundle(t *testing.T, dir, name string) string {
	t.Helper()
	bundle := filepath.Join(dir, name+".app")
	contents := filepath.Join(bundle, "Contents")
	if err := os.MkdirAll(filepath.Join(contents, "Resources"), 0o755); err != nil {
		t.Fatal(err)
	}
	plist := fmt.Sprintf(plistTemplate, name, name)
	if err := os.WriteFile(filepath.Join(contents, "Info.plist"), []byte(plist), 0o644); err != nil {
		t.Fatal(err)
	}
	return bundle
}
