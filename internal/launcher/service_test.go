package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/grid"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/store"
	"github.com/starford/launchgrid/internal/testutil"
)

func newTestService(t *testing.T, src *fakeSource, st store.OrderStore, opts Options) *Service {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Columns == 0 {
		opts.Columns, opts.Rows = 6, 4
	}
	svc := New(src, st, opts)
	t.Cleanup(svc.Close)
	return svc
}

func pathsOf(apps []models.ApplicationRecord) []string {
	out := make([]string, len(apps))
	for i, r := range apps {
		out[i] = r.Path
	}
	return out
}

func TestService_LoadSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	apps := recs("Alpha", "Beta", "Charlie", "Delta")
	src := newFakeSource(apps...)
	db := testutil.TestDB(t)

	svc := New(src, db, Options{Columns: 6, Rows: 4, PersistDebounce: time.Hour, Logger: quietLogger()})
	if _, err := svc.ImportApps(ctx, pathsOf(apps)); err != nil {
		t.Fatal(err)
	}
	f, err := svc.CreateFolder(ctx, []string{rec("Beta").Path, rec("Delta").Path}, "Tools", -1)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Snapshot(ctx)
	svc.Close()

	reloaded := newTestService(t, src, db, Options{})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	after, err := reloaded.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := grid.Keys(after.Items), grid.Keys(before.Items); !slices.Equal(got, want) {
		t.Errorf("layout after reload:\n got %v\nwant %v", got, want)
	}
	if len(after.Folders) != 1 || after.Folders[0].ID != f.ID || after.Folders[0].Name != "Tools" {
		t.Errorf("folders after reload = %+v", after.Folders)
	}
	if len(after.Apps) != 2 {
		t.Errorf("free apps after reload = %+v", after.Apps)
	}
}

func TestService_LoadPrefersSlotsThenLegacy(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(recs("Alpha", "Beta")...)
	st := &memStore{legacy: []store.LegacyRow{
		{ID: "b", Kind: store.KindApp, OrderIndex: 0, AppPath: rec("Beta").Path},
		{ID: "a", Kind: store.KindApp, OrderIndex: 1, AppPath: rec("Alpha").Path},
	}}
	svc := newTestService(t, src, st, Options{})
	if err := svc.Load(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	want := []string{"app_" + rec("Beta").Path, "app_" + rec("Alpha").Path}
	if got := grid.Keys(snap.Items); !slices.Equal(got, want) {
		t.Errorf("legacy layout = %v, want %v", got, want)
	}
}

func TestService_LoadNothingStored(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeSource(), &memStore{}, Options{})
	if err := svc.Load(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	if len(snap.Items) != 0 {
		t.Errorf("items = %d, want empty", len(snap.Items))
	}
}

func TestService_DebouncesSaves(t *testing.T) {
	ctx := context.Background()
	apps := numbered(30)
	st := &memStore{}
	svc := newTestService(t, newFakeSource(apps...), st, Options{PersistDebounce: 50 * time.Millisecond})

	if _, err := svc.ImportApps(ctx, pathsOf(apps)); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if err := svc.MoveItem(ctx, "app_"+apps[i].Path, 10); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, time.Second, 10*time.Millisecond, func() bool { return st.saveCount() >= 1 }, "layout saved")
	time.Sleep(150 * time.Millisecond)
	if n := st.saveCount(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
	rows, _ := st.LoadSlots()
	if len(rows) != 48 {
		t.Errorf("saved rows = %d, want 48", len(rows))
	}
}

func TestService_FlushAndCloseSave(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	src := newFakeSource(recs("Alpha", "Beta")...)
	svc := New(src, st, Options{Columns: 6, Rows: 4, PersistDebounce: time.Hour, Logger: quietLogger()})

	if _, err := svc.ImportApps(ctx, []string{rec("Alpha").Path}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if n := st.saveCount(); n != 1 {
		t.Fatalf("saves after flush = %d, want 1", n)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if n := st.saveCount(); n != 1 {
		t.Errorf("idle flush saved again: %d", n)
	}

	if _, err := svc.ImportApps(ctx, []string{rec("Beta").Path}); err != nil {
		t.Fatal(err)
	}
	svc.Close()
	if n := st.saveCount(); n != 2 {
		t.Errorf("saves after close = %d, want 2", n)
	}
	if _, err := svc.Snapshot(ctx); !errors.Is(err, apperr.ErrClosed) {
		t.Errorf("snapshot after close err = %v, want ErrClosed", err)
	}
	if err := svc.Flush(ctx); !errors.Is(err, apperr.ErrClosed) {
		t.Errorf("flush after close err = %v, want ErrClosed", err)
	}
}

func TestService_NilStore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeSource(recs("Alpha")...), nil, Options{PersistDebounce: time.Millisecond})

	if err := svc.Load(ctx); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("Load err = %v, want ErrStoreUnavailable", err)
	}
	added, err := svc.ImportApps(ctx, []string{rec("Alpha").Path})
	if err != nil || len(added) != 1 {
		t.Fatalf("ImportApps = %v, %v", added, err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Errorf("Flush err = %v", err)
	}
	snap, _ := svc.Snapshot(ctx)
	if len(snap.Apps) != 1 {
		t.Errorf("apps = %+v", snap.Apps)
	}
}

func TestService_SettleCompactsFinalPage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeSource(recs("Alpha", "Beta", "Charlie")...), &memStore{},
		Options{SettleDelay: 20 * time.Millisecond})
	if _, err := svc.ImportApps(ctx, pathsOf(recs("Alpha", "Beta", "Charlie"))); err != nil {
		t.Fatal(err)
	}

	if err := svc.MoveItem(ctx, "app_"+rec("Alpha").Path, 5); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	if snap.Items[5].Name() != "Alpha" || !snap.Items[0].IsEmpty() {
		t.Fatalf("drop not held in place: %v", grid.Keys(snap.Items))
	}

	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		snap, _ := svc.Snapshot(ctx)
		return snap.Items[2].Name() == "Alpha"
	}, "final page compacted")
	snap, _ = svc.Snapshot(ctx)
	if snap.Items[0].Name() != "Beta" || snap.Items[1].Name() != "Charlie" {
		t.Errorf("layout after settle = %v", grid.Keys(snap.Items))
	}
}

func TestService_MoveItemErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeSource(recs("Alpha")...), &memStore{}, Options{})
	svc.ImportApps(ctx, []string{rec("Alpha").Path})

	if err := svc.MoveItem(ctx, "app_/nope.app", 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
	if err := svc.MoveItem(ctx, "app_"+rec("Alpha").Path, 99); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestService_Rescan(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(recs("Alpha", "Beta")...)

	var mu sync.Mutex
	var kinds []ChangeKind
	notifier := NotifierFunc(func(k ChangeKind) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, k)
	})
	svc := newTestService(t, src, &memStore{}, Options{Notifier: notifier})

	if _, err := svc.ImportApps(ctx, pathsOf(recs("Alpha", "Beta"))); err != nil {
		t.Fatal(err)
	}
	src.drop(rec("Alpha").Path)
	src.set(rec("Charlie"))

	if err := svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	want := []string{"app_" + rec("Beta").Path}
	if got := grid.Keys(snap.Items[:1]); !slices.Equal(got, want) || !snap.Items[1].IsEmpty() {
		t.Errorf("layout = %v", grid.Keys(snap.Items))
	}
	if len(snap.Available) != 2 || snap.Available[1].Name != "Charlie" {
		t.Errorf("available = %+v", snap.Available)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, k := range []ChangeKind{ChangeCatalog, ChangeLayout, ChangeFolders} {
		if !slices.Contains(kinds, k) {
			t.Errorf("no %s notification in %v", k, kinds)
		}
	}
}

func TestService_RescanFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(recs("Alpha")...)
	svc := newTestService(t, src, &memStore{}, Options{})
	svc.ImportApps(ctx, []string{rec("Alpha").Path})

	src.mu.Lock()
	src.failScan = true
	src.mu.Unlock()

	if err := svc.Rescan(ctx); err == nil {
		t.Fatal("Rescan succeeded with failing roots")
	}
	if src.scanCount() != 1 {
		t.Errorf("scans = %d", src.scanCount())
	}
	snap, _ := svc.Snapshot(ctx)
	if len(snap.Apps) != 1 || snap.Items[0].Name() != "Alpha" {
		t.Errorf("state changed after failed rescan: %v", grid.Keys(snap.Items))
	}
}

func TestService_ApplyChanges(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(recs("Alpha", "Beta")...)
	svc := newTestService(t, src, &memStore{}, Options{})
	if err := svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	svc.ImportApps(ctx, []string{rec("Alpha").Path, rec("Beta").Path})

	src.drop(rec("Alpha").Path)
	src.set(rec("Charlie"))
	if err := svc.ApplyChanges(ctx, []string{rec("Alpha").Path, rec("Charlie").Path}); err != nil {
		t.Fatal(err)
	}

	snap, _ := svc.Snapshot(ctx)
	if snap.Items[0].Name() != "Beta" || !snap.Items[1].IsEmpty() {
		t.Errorf("layout = %v", grid.Keys(snap.Items))
	}
	var names []string
	for _, a := range snap.Available {
		names = append(names, a.Name)
	}
	if !slices.Equal(names, []string{"Beta", "Charlie"}) {
		t.Errorf("available = %v", names)
	}
}

func TestService_ImportIfMatch(t *testing.T) {
	ctx := context.Background()
	apps := recs("Alpha", "Beta")
	svc := newTestService(t, newFakeSource(apps...), &memStore{}, Options{})
	svc.ImportApps(ctx, pathsOf(apps))

	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(doc)
	stale, _ := svc.Digest(ctx)

	if err := svc.MoveItem(ctx, "app_"+rec("Beta").Path, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Import(ctx, data, stale); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale If-Match err = %v, want ErrConflict", err)
	}

	current, _ := svc.Digest(ctx)
	if current == stale {
		t.Fatal("digest did not change after move")
	}
	v, err := svc.Import(ctx, data, current)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Valid || v.TotalItems != 24 {
		t.Errorf("validation = %+v", v)
	}
	if d, _ := svc.Digest(ctx); d != stale {
		t.Error("import did not restore the exported layout")
	}

	if _, err := svc.Import(ctx, []byte("{"), ""); !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("malformed import err = %v, want ErrDecode", err)
	}
}

func TestService_ExportWithDigestMatchesDocument(t *testing.T) {
	ctx := context.Background()
	apps := recs("Alpha", "Beta", "Charlie")
	svc := newTestService(t, newFakeSource(apps...), &memStore{}, Options{PersistDebounce: time.Hour, SettleDelay: time.Hour})
	if _, err := svc.ImportApps(ctx, pathsOf(apps)); err != nil {
		t.Fatal(err)
	}

	type exported struct {
		data   []byte
		digest string
	}
	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
		got  []exported
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := range 200 {
			a := apps[i%len(apps)]
			if err := svc.MoveItem(ctx, "app_"+a.Path, (i/len(apps))%len(apps)); err != nil {
				t.Errorf("move %d: %v", i, err)
				return
			}
		}
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		doc, digest, err := svc.ExportWithDigest(ctx)
		if err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, exported{data: data, digest: digest})
	}
	wg.Wait()

	for i, e := range got {
		if _, err := svc.Import(ctx, e.data, ""); err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
		if d, _ := svc.Digest(ctx); d != e.digest {
			t.Fatalf("export %d: digest %s does not describe its document (%s)", i, e.digest, d)
		}
	}
}

func TestService_SetGridPersists(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	apps := numbered(10)
	svc := newTestService(t, newFakeSource(apps...), st, Options{PersistDebounce: time.Hour})
	svc.ImportApps(ctx, pathsOf(apps))

	if err := svc.SetGrid(ctx, 3, 2); err != nil {
		t.Fatal(err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	if snap.PerPage != 6 || snap.Pages() != 2 {
		t.Errorf("grid = %d per page, %d pages", snap.PerPage, snap.Pages())
	}
	rows, _ := st.LoadSlots()
	if len(rows) != 12 || rows[11].PageIndex != 1 || rows[11].Position != 5 {
		t.Errorf("saved %d rows, last %+v", len(rows), rows[len(rows)-1])
	}
}

func TestService_ResetImported(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	svc := newTestService(t, newFakeSource(recs("Alpha", "Beta")...), st, Options{PersistDebounce: time.Hour})
	svc.ImportApps(ctx, pathsOf(recs("Alpha", "Beta")))
	svc.CreateFolder(ctx, []string{rec("Alpha").Path}, "", -1)
	svc.Flush(ctx)

	if err := svc.ResetImported(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx)
	if len(snap.Items) != 0 || len(snap.Apps) != 0 || len(snap.Folders) != 0 {
		t.Errorf("state after reset = %+v", snap)
	}
	if rows, _ := st.LoadSlots(); len(rows) != 0 {
		t.Errorf("store still holds %d rows", len(rows))
	}
}
