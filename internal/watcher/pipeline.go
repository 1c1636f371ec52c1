// Package watcher turns raw file-system change notifications into either a
// full catalog rescan or an incremental patch of the changed bundles.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/starford/launchgrid/internal/models"
)

// Defaults for Options.
const (
	DefaultDebounce  = 200 * time.Millisecond
	DefaultThreshold = 50
)

// Target applies the pipeline's decisions.
type Target interface {
	Rescan(ctx context.Context) error
	ApplyChanges(ctx context.Context, paths []string) error
}

// BundleMapper maps any path inside a bundle to the bundle path.
type BundleMapper func(path string) (string, bool)

// Options configures a Pipeline.
type Options struct {
	Roots      []string
	Debounce   time.Duration
	Threshold  int
	BundlePath BundleMapper
	Logger     *slog.Logger
}

// Pipeline accumulates change events and applies them after a quiet period.
//
// Every submitted batch cancels the pending timer and starts a new one, so
// only the last batch of a burst triggers work. Earlier batches are folded
// into the accumulator, never dropped.
type Pipeline struct {
	ctx        context.Context
	target     Target
	roots      map[string]struct{}
	debounce   time.Duration
	threshold  int
	bundlePath BundleMapper
	logger     *slog.Logger

	mu        sync.Mutex
	pending   map[string]struct{}
	forceFull bool
	timer     *time.Timer
	gen       uint64
	stopped   bool
}

// NewPipeline creates a pipeline whose applications run under ctx.
func NewPipeline(ctx context.Context, target Target, opts Options) *Pipeline {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	roots := make(map[string]struct{}, len(opts.Roots))
	for _, r := range opts.Roots {
		roots[filepath.Clean(r)] = struct{}{}
	}
	return &Pipeline{
		ctx:        ctx,
		target:     target,
		roots:      roots,
		debounce:   opts.Debounce,
		threshold:  opts.Threshold,
		bundlePath: opts.BundlePath,
		logger:     opts.Logger,
		pending:    make(map[string]struct{}),
	}
}

// Submit folds a batch of events into the accumulator and restarts the
// debounce timer.
func (p *Pipeline) Submit(batch []models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	for _, ev := range batch {
		if p.rootLevel(ev) {
			p.forceFull = true
			p.logger.Debug("watcher: root-level change", slog.String("path", ev.Path))
			break
		}
		if !ev.Structural() && !ev.Modified {
			continue
		}
		if bp, ok := p.mapBundle(ev.Path); ok {
			p.pending[bp] = struct{}{}
		}
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(p.debounce, func() { p.fire(gen) })
}

// rootLevel reports whether ev creates, removes or renames a directory
// directly under a watched root, or the root itself. Bundles count too.
func (p *Pipeline) rootLevel(ev models.ChangeEvent) bool {
	if !ev.IsDir || !ev.Structural() {
		return false
	}
	clean := filepath.Clean(ev.Path)
	if _, ok := p.roots[clean]; ok {
		return true
	}
	_, ok := p.roots[filepath.Dir(clean)]
	return ok
}

func (p *Pipeline) mapBundle(path string) (string, bool) {
	if p.bundlePath == nil {
		return "", false
	}
	return p.bundlePath(path)
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.stopped {
		p.mu.Unlock()
		return
	}
	paths, full := p.take()
	p.mu.Unlock()
	p.apply(p.ctx, paths, full)
}

// take drains the accumulator. The caller holds p.mu.
func (p *Pipeline) take() ([]string, bool) {
	full := p.forceFull || len(p.pending) > p.threshold
	var paths []string
	if !full {
		paths = make([]string, 0, len(p.pending))
		for path := range p.pending {
			paths = append(paths, path)
		}
		slices.Sort(paths)
	}
	p.forceFull = false
	p.pending = make(map[string]struct{})
	return paths, full
}

func (p *Pipeline) apply(ctx context.Context, paths []string, full bool) {
	switch {
	case full:
		p.logger.Info("watcher: full rescan")
		if err := p.target.Rescan(ctx); err != nil {
			p.logger.Warn("watcher: rescan failed", slog.String("error", err.Error()))
		}
	case len(paths) > 0:
		p.logger.Debug("watcher: incremental patch", slog.Int("paths", len(paths)))
		if err := p.target.ApplyChanges(ctx, paths); err != nil {
			p.logger.Warn("watcher: incremental patch failed", slog.String("error", err.Error()))
		}
	}
}

// Flush applies whatever is pending now, without waiting for the timer.
func (p *Pipeline) Flush(ctx context.Context) {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	paths, full := p.take()
	p.mu.Unlock()
	p.apply(ctx, paths, full)
}

// Stop cancels the pending timer and discards accumulated changes.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.pending = make(map[string]struct{})
	p.forceFull = false
}

// Pending returns the number of accumulated bundle paths.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
