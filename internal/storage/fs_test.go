package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/launchgrid/internal/checksum"
)

func tempBackups(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempBackups(t)
	content := []byte(`{"pages":[]}`)
	if err := s.Write("layout.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("layout.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempBackups(t)
	if err := s.Write("2024/05/layout.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("2024/05/layout.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempBackups(t)
	_ = s.Write("del.json", []byte("bye"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempBackups(t)
	_ = s.Write("old.json", []byte("a"))
	_ = s.Write("sub/settings.yaml", []byte("grid: {}"))
	_ = s.Write("readme.txt", []byte("not a backup"))
	_ = s.Write(".hidden.json", []byte("{}"))

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(s.Root(), "old.json"), past, past); err != nil {
		t.Fatal(err)
	}

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].Path != "sub/settings.yaml" || items[1].Path != "old.json" {
		t.Errorf("order = %s, %s; want newest first", items[0].Path, items[1].Path)
	}
	if items[1].Checksum != checksum.Sum([]byte("a")) || items[1].Size != 1 {
		t.Errorf("metadata = %+v", items[1])
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempBackups(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempBackups(t)
	_ = s.Write("atomic.json", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".launchgrid-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups", "nested")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("backup dir not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "launchgrid-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
