package launcher

import (
	"slices"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/models"
)

// reconcile folds a freshly scanned catalog into the layout: apps whose
// path vanished are removed everywhere, surviving ones get the fresh
// record. New apps only extend the catalog mirror.
func (w *workspace) reconcile(scanned []models.ApplicationRecord) {
	fresh := make(map[string]models.ApplicationRecord, len(scanned))
	for _, rec := range scanned {
		fresh[rec.Path] = rec
	}
	w.available = slices.Clone(scanned)

	gone := make(map[string]struct{})
	for _, a := range w.workingSet() {
		if _, ok := fresh[a.Path]; !ok {
			gone[a.Path] = struct{}{}
		}
	}
	w.purge(gone)
	w.replaceRecords(fresh)
	w.compact()
	w.removeEmptyPages()
}

// probeResult is the outcome of checking one changed path on disk.
type probeResult struct {
	path  string
	rec   models.ApplicationRecord
	valid bool
}

// patchStats counts what an incremental patch did.
type patchStats struct {
	Inserted int
	Updated  int
	Removed  int
}

func (p patchStats) empty() bool { return p.Inserted+p.Updated+p.Removed == 0 }

// applyProbes patches the model for individually changed paths: removals
// first, then updates, then insertions into the catalog mirror.
func (w *workspace) applyProbes(probes []probeResult) patchStats {
	var stats patchStats
	var inserts []models.ApplicationRecord
	updates := make(map[string]models.ApplicationRecord)
	gone := make(map[string]struct{})

	for _, p := range probes {
		if !p.valid {
			gone[p.path] = struct{}{}
			continue
		}
		if w.availableIndex(p.rec.Path) >= 0 || w.isWorking(p.rec.Path) {
			updates[p.rec.Path] = p.rec
			continue
		}
		if !slices.ContainsFunc(inserts, p.rec.Same) {
			inserts = append(inserts, p.rec)
		}
	}

	for path := range gone {
		if i := w.availableIndex(path); i >= 0 {
			w.available = slices.Delete(w.available, i, i+1)
			stats.Removed++
		} else if w.isWorking(path) {
			stats.Removed++
		}
	}
	w.purge(gone)

	if len(updates) > 0 {
		w.replaceRecords(updates)
		stats.Updated = len(updates)
	}

	if len(inserts) > 0 {
		w.available = append(w.available, inserts...)
		catalog.SortByName(w.available)
		stats.Inserted = len(inserts)
	}

	w.compact()
	return stats
}
