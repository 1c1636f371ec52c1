package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/store"
)

func rec(name string) models.ApplicationRecord {
	return models.ApplicationRecord{Path: "/Applications/" + name + ".app", Name: name}
}

func recs(names ...string) []models.ApplicationRecord {
	out := make([]models.ApplicationRecord, len(names))
	for i, n := range names {
		out[i] = rec(n)
	}
	return out
}

func numbered(n int) []models.ApplicationRecord {
	out := make([]models.ApplicationRecord, n)
	for i := range n {
		out[i] = rec(fmt.Sprintf("App%03d", i))
	}
	return out
}

// fakeSource is an in-memory catalog.
type fakeSource struct {
	mu       sync.Mutex
	apps     map[string]models.ApplicationRecord
	failScan bool
	scans    int
}

func newFakeSource(apps ...models.ApplicationRecord) *fakeSource {
	f := &fakeSource{apps: make(map[string]models.ApplicationRecord)}
	for _, a := range apps {
		f.apps[a.Path] = a
	}
	return f
}

func (f *fakeSource) set(apps ...models.ApplicationRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range apps {
		f.apps[a.Path] = a
	}
}

func (f *fakeSource) drop(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.apps, p)
	}
}

func (f *fakeSource) Scan(_ context.Context, _ []string) ([]models.ApplicationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.failScan {
		return nil, fmt.Errorf("fake: %w", apperr.ErrNotFound)
	}
	out := make([]models.ApplicationRecord, 0, len(f.apps))
	for _, a := range f.apps {
		out = append(out, a)
	}
	catalog.SortByName(out)
	return out, nil
}

func (f *fakeSource) Resolve(path string) (models.ApplicationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[path]
	if !ok {
		return models.ApplicationRecord{}, fmt.Errorf("fake: %s: %w", path, apperr.ErrNotFound)
	}
	return a, nil
}

func (f *fakeSource) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

// memStore is an in-memory OrderStore that counts saves.
type memStore struct {
	mu     sync.Mutex
	rows   []store.SlotRow
	legacy []store.LegacyRow
	saves  int
}

func (m *memStore) SaveSlots(rows []store.SlotRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.Clone(rows)
	m.legacy = nil
	m.saves++
	return nil
}

func (m *memStore) LoadSlots() ([]store.SlotRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.rows)
	slices.SortStableFunc(out, func(a, b store.SlotRow) int {
		if a.PageIndex != b.PageIndex {
			return a.PageIndex - b.PageIndex
		}
		return a.Position - b.Position
	})
	return out, nil
}

func (m *memStore) LoadLegacy() ([]store.LegacyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.legacy), nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.legacy = nil, nil
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testWorkspace builds a 6x4 workspace whose resolver knows src.
func testWorkspace(src *fakeSource) *workspace {
	return newWorkspace(6, 4, src.Resolve)
}

// checkInvariants fails the test when the model breaks the slot or
// folder invariants.
func checkInvariants(t *testing.T, w *workspace) {
	t.Helper()
	members := make(map[string]string)
	for _, f := range w.folders {
		if len(f.Apps) == 0 {
			t.Errorf("folder %s is empty", f.ID)
		}
		for _, a := range f.Apps {
			if other, dup := members[a.Path]; dup {
				t.Errorf("%s is in folders %s and %s", a.Path, other, f.ID)
			}
			members[a.Path] = f.ID
		}
	}
	for _, a := range w.apps {
		if _, ok := members[a.Path]; ok {
			t.Errorf("free app %s is also a folder member", a.Path)
		}
	}
	top := make(map[string]struct{})
	folderSlots := make(map[string]struct{})
	for i, s := range w.items {
		switch s.Kind {
		case models.SlotApp:
			if _, dup := top[s.App.Path]; dup {
				t.Errorf("slot %d duplicates %s", i, s.App.Path)
			}
			top[s.App.Path] = struct{}{}
			if _, ok := members[s.App.Path]; ok {
				t.Errorf("slot %d holds folder member %s", i, s.App.Path)
			}
		case models.SlotFolder:
			if _, dup := folderSlots[s.Folder.ID]; dup {
				t.Errorf("slot %d duplicates folder %s", i, s.Folder.ID)
			}
			folderSlots[s.Folder.ID] = struct{}{}
			if w.folderIndex(s.Folder.ID) < 0 {
				t.Errorf("slot %d references deleted folder %s", i, s.Folder.ID)
			}
		}
	}
}

func appAt(t *testing.T, w *workspace, i int) string {
	t.Helper()
	if i >= len(w.items) {
		t.Fatalf("index %d beyond %d slots", i, len(w.items))
	}
	s := w.items[i]
	if s.Kind != models.SlotApp {
		return s.Kind.String()
	}
	return s.App.Name
}

func countEmpty(items []models.Slot) int {
	n := 0
	for _, s := range items {
		if s.IsEmpty() {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
