package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/checksum"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/store"
)

// ChangeKind names what a committed mutation touched.
type ChangeKind string

const (
	ChangeLayout  ChangeKind = "layout"
	ChangeFolders ChangeKind = "folders"
	ChangeCatalog ChangeKind = "catalog"
)

// Notifier receives a call after every committed mutation.
type Notifier interface {
	Notify(kind ChangeKind)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind ChangeKind)

// Notify calls f(kind).
func (f NotifierFunc) Notify(kind ChangeKind) { f(kind) }

// Options configures a Service.
type Options struct {
	Roots           []string
	Columns         int
	Rows            int
	PersistDebounce time.Duration
	SettleDelay     time.Duration
	Notifier        Notifier
	Logger          *slog.Logger
}

// Service is the single owner of the launcher state.
//
// Concurrency model: one goroutine owns the workspace and runs submitted
// operations in order. Scanning and path resolution happen on the caller's
// goroutine; only their immutable results are handed to the owner. A
// second goroutine debounces saves to the order store.
type Service struct {
	source   catalog.Source
	store    store.OrderStore
	notifier Notifier
	logger   *slog.Logger
	roots    []string

	persistDelay time.Duration
	settleDelay  time.Duration

	ws *workspace

	ops     chan func(*workspace)
	dirtyCh chan struct{}
	flushCh chan chan struct{}

	stopSaver   chan struct{}
	saverDone   chan struct{}
	stopCh      chan struct{}
	stopped     chan struct{}
	closed      atomic.Bool
	warnedStore atomic.Bool
}

// New creates a service and starts its owner and saver goroutines. st may
// be nil, in which case loads and saves are no-ops.
func New(source catalog.Source, st store.OrderStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PersistDebounce <= 0 {
		opts.PersistDebounce = 500 * time.Millisecond
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}

	s := &Service{
		source:       source,
		store:        st,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		roots:        opts.Roots,
		persistDelay: opts.PersistDebounce,
		settleDelay:  opts.SettleDelay,
		ws:           newWorkspace(opts.Columns, opts.Rows, source.Resolve),
		ops:          make(chan func(*workspace)),
		dirtyCh:      make(chan struct{}, 1),
		flushCh:      make(chan chan struct{}),
		stopSaver:    make(chan struct{}),
		saverDone:    make(chan struct{}),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	go s.run()
	go s.saveLoop()
	return s
}

func (s *Service) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stopCh:
			return
		case op := <-s.ops:
			op(s.ws)
		}
	}
}

// do runs fn on the owner goroutine and waits for its result.
func (s *Service) do(ctx context.Context, fn func(w *workspace) error) error {
	done := make(chan error, 1)
	op := func(w *workspace) { done <- fn(w) }

	select {
	case s.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return apperr.ErrClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return apperr.ErrClosed
	}
}

// commit marks the layout as authoritative, schedules a save and notifies
// observers. It must run on the owner goroutine.
func (s *Service) commit(w *workspace, kinds ...ChangeKind) {
	persist := false
	for _, k := range kinds {
		if k != ChangeCatalog {
			persist = true
		}
	}
	if persist {
		w.loaded = true
		select {
		case s.dirtyCh <- struct{}{}:
		default:
		}
	}
	if s.notifier != nil {
		for _, k := range kinds {
			s.notifier.Notify(k)
		}
	}
}

func (s *Service) saveLoop() {
	defer close(s.saverDone)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := false

	for {
		select {
		case <-s.dirtyCh:
			pending = true
			if timer == nil {
				timer = time.NewTimer(s.persistDelay)
			} else {
				timer.Reset(s.persistDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			pending = false
			s.persist()

		case ack := <-s.flushCh:
			select {
			case <-s.dirtyCh:
				pending = true
			default:
			}
			if pending {
				if timer != nil {
					timer.Stop()
				}
				fire = nil
				pending = false
				s.persist()
			}
			close(ack)

		case <-s.stopSaver:
			select {
			case <-s.dirtyCh:
				pending = true
			default:
			}
			if pending {
				if timer != nil {
					timer.Stop()
				}
				s.persist()
			}
			return
		}
	}
}

// persist writes the current layout to the store.
func (s *Service) persist() {
	if s.store == nil {
		if s.warnedStore.CompareAndSwap(false, true) {
			s.logger.Warn("launcher: order store unavailable, layout changes are kept in memory only")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rows []store.SlotRow
	skip := false
	err := s.do(ctx, func(w *workspace) error {
		if !w.loaded && len(w.items) == 0 {
			skip = true
			return nil
		}
		rows = w.slotRows()
		return nil
	})
	if err != nil {
		s.logger.Warn("launcher: snapshot for save failed", slog.String("error", err.Error()))
		return
	}
	if skip {
		return
	}
	if err := s.store.SaveSlots(rows); err != nil {
		s.logger.Warn("launcher: save failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("launcher: layout saved", slog.Int("rows", len(rows)))
}

// Flush writes any pending change to the store immediately.
func (s *Service) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return apperr.ErrClosed
	}
	ack := make(chan struct{})
	select {
	case s.flushCh <- ack:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.saverDone:
		return apperr.ErrClosed
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close saves pending changes and stops the service. Operations submitted
// after Close return apperr.ErrClosed.
func (s *Service) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		<-s.stopped
		return
	}
	close(s.stopSaver)
	<-s.saverDone
	close(s.stopCh)
	<-s.stopped
}

// Load restores the layout from the store, preferring per-slot rows over
// the legacy list. Read or decode failures leave the state untouched.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("launcher: load: %w", apperr.ErrStoreUnavailable)
	}
	rows, err := s.store.LoadSlots()
	if err != nil {
		s.logger.Warn("launcher: load slots failed", slog.String("error", err.Error()))
		return fmt.Errorf("launcher: load: %w", err)
	}
	var legacy []store.LegacyRow
	if len(rows) == 0 {
		legacy, err = s.store.LoadLegacy()
		if err != nil {
			s.logger.Warn("launcher: load legacy rows failed", slog.String("error", err.Error()))
			return fmt.Errorf("launcher: load legacy: %w", err)
		}
	}

	return s.do(ctx, func(w *workspace) error {
		switch {
		case w.loadSlots(rows):
			s.logger.Info("launcher: layout loaded", slog.Int("slots", len(w.items)), slog.Int("folders", len(w.folders)))
		case w.loadLegacy(legacy):
			s.logger.Info("launcher: legacy layout migrated", slog.Int("slots", len(w.items)), slog.Int("folders", len(w.folders)))
		default:
			w.loaded = true
			return nil
		}
		if s.notifier != nil {
			s.notifier.Notify(ChangeLayout)
			s.notifier.Notify(ChangeFolders)
		}
		return nil
	})
}

// Rescan scans every root and reconciles the layout against the result.
// When every root fails the layout is left as it is.
func (s *Service) Rescan(ctx context.Context) error {
	scanned, err := s.source.Scan(ctx, s.roots)
	if err != nil {
		s.logger.Warn("launcher: rescan failed", slog.String("error", err.Error()))
		return err
	}
	return s.do(ctx, func(w *workspace) error {
		w.reconcile(scanned)
		s.commit(w, ChangeCatalog, ChangeLayout, ChangeFolders)
		s.logger.Info("launcher: reconciled",
			slog.Int("catalog", len(w.available)),
			slog.Int("slots", len(w.items)),
			slog.Int("folders", len(w.folders)))
		return nil
	})
}

// ResetLayout rescans and reconciles the current layout.
func (s *Service) ResetLayout(ctx context.Context) error {
	return s.Rescan(ctx)
}

// ApplyChanges patches the model for the given bundle paths without a
// full scan. Paths are probed on the caller's goroutine.
func (s *Service) ApplyChanges(ctx context.Context, paths []string) error {
	probes := make([]probeResult, 0, len(paths))
	for _, p := range paths {
		rec, err := s.source.Resolve(p)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrInvalidBundle) {
			s.logger.Debug("launcher: resolve failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		probes = append(probes, probeResult{path: p, rec: rec, valid: err == nil})
	}
	return s.do(ctx, func(w *workspace) error {
		stats := w.applyProbes(probes)
		if stats.empty() {
			return nil
		}
		s.commit(w, ChangeCatalog, ChangeLayout, ChangeFolders)
		s.logger.Info("launcher: incremental patch",
			slog.Int("inserted", stats.Inserted),
			slog.Int("updated", stats.Updated),
			slog.Int("removed", stats.Removed))
		return nil
	})
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func(w *workspace) error {
		snap = w.snapshot()
		return nil
	})
	return snap, err
}

// MoveItem drags the slot with the given id to target.
func (s *Service) MoveItem(ctx context.Context, id string, target int) error {
	return s.do(ctx, func(w *workspace) error {
		settle, err := w.moveItem(id, target)
		if err != nil {
			return err
		}
		if settle {
			time.AfterFunc(s.settleDelay, s.settle)
		}
		s.commit(w, ChangeLayout)
		return nil
	})
}

// settle compacts the final page after a drag onto it has come to rest.
func (s *Service) settle() {
	err := s.do(context.Background(), func(w *workspace) error {
		w.compact()
		s.commit(w, ChangeLayout)
		return nil
	})
	if err != nil && !errors.Is(err, apperr.ErrClosed) {
		s.logger.Warn("launcher: settle failed", slog.String("error", err.Error()))
	}
}

// SetGrid changes the grid dimensions; values are clamped to the allowed range.
func (s *Service) SetGrid(ctx context.Context, columns, rows int) error {
	return s.do(ctx, func(w *workspace) error {
		if w.setGrid(columns, rows) {
			s.commit(w, ChangeLayout)
		}
		return nil
	})
}

// BeginDragPage appends a preview page for a drag in progress.
func (s *Service) BeginDragPage(ctx context.Context) (int, error) {
	var page int
	err := s.do(ctx, func(w *workspace) error {
		page = w.beginDragPage()
		if s.notifier != nil {
			s.notifier.Notify(ChangeLayout)
		}
		return nil
	})
	return page, err
}

// EndDragPage drops the preview page if the drag left it empty.
func (s *Service) EndDragPage(ctx context.Context) error {
	return s.do(ctx, func(w *workspace) error {
		if w.endDragPage() && s.notifier != nil {
			s.notifier.Notify(ChangeLayout)
		}
		return nil
	})
}

// CreateFolder groups free apps into a new folder. insertAt < 0 places it
// where its first member was.
func (s *Service) CreateFolder(ctx context.Context, paths []string, name string, insertAt int) (models.FolderRecord, error) {
	var folder models.FolderRecord
	err := s.do(ctx, func(w *workspace) error {
		f, err := w.createFolder(paths, name, insertAt)
		if err != nil {
			return err
		}
		folder = f
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
	return folder, err
}

// AddAppToFolder moves an app into a folder.
func (s *Service) AddAppToFolder(ctx context.Context, folderID, path string) error {
	return s.do(ctx, func(w *workspace) error {
		if err := w.addAppToFolder(folderID, path); err != nil {
			return err
		}
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
}

// RemoveAppFromFolder moves an app out of a folder onto the top level.
func (s *Service) RemoveAppFromFolder(ctx context.Context, folderID, path string) error {
	return s.do(ctx, func(w *workspace) error {
		if err := w.removeAppFromFolder(folderID, path); err != nil {
			return err
		}
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
}

// RenameFolder changes a folder's display name.
func (s *Service) RenameFolder(ctx context.Context, folderID, name string) error {
	return s.do(ctx, func(w *workspace) error {
		if err := w.renameFolder(folderID, name); err != nil {
			return err
		}
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
}

// ImportApps resolves the given bundle paths and adds those not already in
// the launcher. Paths that do not resolve to a valid bundle are skipped.
func (s *Service) ImportApps(ctx context.Context, paths []string) ([]models.ApplicationRecord, error) {
	seen := make(map[string]struct{})
	var recs []models.ApplicationRecord
	for _, p := range paths {
		rec, err := s.source.Resolve(p)
		if err != nil {
			s.logger.Debug("launcher: import skipped", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[rec.Path]; dup {
			continue
		}
		seen[rec.Path] = struct{}{}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	var added []models.ApplicationRecord
	err := s.do(ctx, func(w *workspace) error {
		added = w.importApps(recs)
		if len(added) > 0 {
			s.commit(w, ChangeLayout)
		}
		return nil
	})
	return added, err
}

// RemoveApps takes apps out of the launcher and returns how many were present.
func (s *Service) RemoveApps(ctx context.Context, paths []string) (int, error) {
	var n int
	err := s.do(ctx, func(w *workspace) error {
		n = w.removeApps(paths)
		if n > 0 {
			s.commit(w, ChangeFolders, ChangeLayout)
		}
		return nil
	})
	return n, err
}

// ResetImported forgets every imported app and folder and clears the store.
func (s *Service) ResetImported(ctx context.Context) error {
	return s.do(ctx, func(w *workspace) error {
		w.resetImported()
		if s.store != nil {
			if err := s.store.Clear(); err != nil {
				s.logger.Warn("launcher: clear store failed", slog.String("error", err.Error()))
			}
		}
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
}

// Export returns the current layout as an export document.
func (s *Service) Export(ctx context.Context) (Document, error) {
	var doc Document
	err := s.do(ctx, func(w *workspace) error {
		doc = w.export(time.Now())
		return nil
	})
	return doc, err
}

// ExportWithDigest returns the export document together with the Digest of
// the same layout state.
func (s *Service) ExportWithDigest(ctx context.Context) (Document, string, error) {
	var (
		doc Document
		sum string
	)
	err := s.do(ctx, func(w *workspace) error {
		doc = w.export(time.Now())
		sum = w.digest()
		return nil
	})
	return doc, sum, err
}

// Import validates data and replaces the layout with it. When ifMatch is
// non-empty it must equal the current Digest.
func (s *Service) Import(ctx context.Context, data []byte, ifMatch string) (Validation, error) {
	v, doc := ValidateImport(data)
	if !v.Valid {
		return v, fmt.Errorf("launcher: import: %s: %w", v.Message, apperr.ErrDecode)
	}
	err := s.do(ctx, func(w *workspace) error {
		if ifMatch != "" && ifMatch != w.digest() {
			return fmt.Errorf("launcher: import: layout changed: %w", apperr.ErrConflict)
		}
		w.importDocument(doc)
		s.commit(w, ChangeFolders, ChangeLayout)
		return nil
	})
	return v, err
}

// Digest returns a checksum of the persisted projection of the layout.
func (s *Service) Digest(ctx context.Context) (string, error) {
	var sum string
	err := s.do(ctx, func(w *workspace) error {
		sum = w.digest()
		return nil
	})
	return sum, err
}

func (w *workspace) digest() string {
	l := checksum.NewLines()
	l.Addf("grid %dx%d", w.columns, w.rows)
	for _, r := range w.slotRows() {
		l.Addf("%s %s %s %s %s %s", r.SlotID, r.Kind, r.AppPath, r.FolderID, r.FolderName, strings.Join(r.AppPaths, ":"))
	}
	return l.Sum()
}
