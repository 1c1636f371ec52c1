package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/testutil"
)

func startWatch(t *testing.T, root string) *fakeTarget {
	t.Helper()
	target := &fakeTarget{}
	scanner := catalog.NewScanner(".app", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline(ctx, target, Options{
		Roots:      []string{root},
		Debounce:   30 * time.Millisecond,
		BundlePath: scanner.BundlePath,
		Logger:     quietLogger(),
	})

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p, []string{root}, ".app", quietLogger()) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return target
}

func patched(target *fakeTarget, path string) bool {
	target.mu.Lock()
	defer target.mu.Unlock()
	for _, batch := range target.patches {
		if slices.Contains(batch, path) {
			return true
		}
	}
	return false
}

func TestWatch_NewBundleUnderRootForcesRescan(t *testing.T) {
	root := testutil.TestRoot(t)
	target := startWatch(t, root)

	testutil.MakeBundle(t, root, "Fresh")

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		rescans, _ := target.counts()
		return rescans >= 1
	}, "bundle created under root did not force a rescan")
}

func TestWatch_NewBundleInSubfolderPatched(t *testing.T) {
	root := testutil.TestRoot(t)
	sub := filepath.Join(root, "Utilities")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	target := startWatch(t, root)

	bundle := testutil.MakeBundle(t, sub, "Fresh")

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return patched(target, bundle)
	}, "new bundle not reported")
	if rescans, _ := target.counts(); rescans != 0 {
		t.Errorf("rescans = %d, want 0", rescans)
	}
}

func TestWatch_BundleModifiedPatched(t *testing.T) {
	root := testutil.TestRoot(t)
	bundle := testutil.MakeBundle(t, root, "Existing")
	target := startWatch(t, root)

	plist := filepath.Join(bundle, "Contents", "Info.plist")
	if err := os.WriteFile(plist, []byte("<plist/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return patched(target, bundle)
	}, "modified bundle not reported")
}

func TestWatch_RootFolderForcesRescan(t *testing.T) {
	root := testutil.TestRoot(t)
	target := startWatch(t, root)

	if err := os.Mkdir(filepath.Join(root, "Utilities"), 0o755); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		rescans, _ := target.counts()
		return rescans == 1
	}, "root-level folder did not force a rescan")
}

func TestWatch_NoRoots(t *testing.T) {
	p := NewPipeline(context.Background(), &fakeTarget{}, Options{Logger: quietLogger()})
	err := Watch(context.Background(), p, []string{filepath.Join(t.TempDir(), "missing")}, ".app", quietLogger())
	if err == nil {
		t.Fatal("Watch succeeded without any watchable root")
	}
}
