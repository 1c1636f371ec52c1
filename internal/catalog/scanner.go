// Package catalog discovers application bundles under a set of root
// directories and resolves single bundle paths on demand.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/parser"
)

// DefaultBundleSuffix marks a directory as an application bundle.
const DefaultBundleSuffix = ".app"

// Source is the catalog contract consumed by the launcher.
type Source interface {
	// Scan returns the deduplicated, name-sorted applications under roots.
	Scan(ctx context.Context, roots []string) ([]models.ApplicationRecord, error)
	// Resolve builds a record for a single bundle path.
	Resolve(path string) (models.ApplicationRecord, error)
}

// Scanner implements Source on the local file system.
type Scanner struct {
	suffix string
	logger *slog.Logger
}

// Verify *Scanner satisfies Source at compile time.
var _ Source = (*Scanner)(nil)

// NewScanner creates a scanner recognising bundles by suffix.
func NewScanner(suffix string, logger *slog.Logger) *Scanner {
	if suffix == "" {
		suffix = DefaultBundleSuffix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{suffix: suffix, logger: logger}
}

// Suffix returns the bundle suffix.
func (s *Scanner) Suffix() string { return s.suffix }

// Scan walks every root concurrently. A root that cannot be enumerated
// contributes nothing; Scan fails only when every root failed.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]models.ApplicationRecord, error) {
	perRoot := make([][]models.ApplicationRecord, len(roots))
	failed := make([]bool, len(roots))

	g, gCtx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			found, err := s.walkRoot(gCtx, root)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failed[i] = true
				s.logger.Warn("scan: root failed", slog.String("root", root), slog.String("error", err.Error()))
				return nil
			}
			perRoot[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(roots) > 0 && !slices.Contains(failed, false) {
		return nil, fmt.Errorf("catalog: all %d roots failed: %w", len(roots), apperr.ErrNotFound)
	}

	seen := make(map[string]struct{})
	var out []models.ApplicationRecord
	for _, found := range perRoot {
		for _, rec := range found {
			if _, ok := seen[rec.Path]; ok {
				continue
			}
			seen[rec.Path] = struct{}{}
			out = append(out, rec)
		}
	}
	SortByName(out)

	s.logger.Debug("scan: complete", slog.Int("roots", len(roots)), slog.Int("apps", len(out)))
	return out, nil
}

// walkRoot enumerates one root, skipping hidden entries and never
// descending into a bundle.
func (s *Scanner) walkRoot(ctx context.Context, root string) ([]models.ApplicationRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: root is not a directory: %s", root)
	}

	seen := make(map[string]struct{})
	var out []models.ApplicationRecord
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			// Unreadable subtree; keep going.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), s.suffix) {
			return nil
		}
		if !d.IsDir() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		rec, err := s.Resolve(p)
		if err == nil {
			if _, dup := seen[rec.Path]; !dup {
				seen[rec.Path] = struct{}{}
				out = append(out, rec)
			}
		}
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve canonicalises path and builds a record for it. It fails with
// apperr.ErrNotFound when nothing exists at path and apperr.ErrInvalidBundle
// when the path is not a top-level application bundle.
func (s *Scanner) Resolve(path string) (models.ApplicationRecord, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ApplicationRecord{}, fmt.Errorf("catalog: %s: %w", path, apperr.ErrNotFound)
		}
		return models.ApplicationRecord{}, fmt.Errorf("catalog: resolve %s: %w", path, err)
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return models.ApplicationRecord{}, fmt.Errorf("catalog: resolve %s: %w", path, err)
	}

	if !strings.HasSuffix(resolved, s.suffix) || s.IsNested(resolved) {
		return models.ApplicationRecord{}, fmt.Errorf("catalog: %s: %w", resolved, apperr.ErrInvalidBundle)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return models.ApplicationRecord{}, fmt.Errorf("catalog: %s: %w", resolved, apperr.ErrNotFound)
	}
	if !info.IsDir() {
		return models.ApplicationRecord{}, fmt.Errorf("catalog: %s: %w", resolved, apperr.ErrInvalidBundle)
	}

	return s.record(resolved, info), nil
}

func (s *Scanner) record(path string, info fs.FileInfo) models.ApplicationRecord {
	rec := models.ApplicationRecord{
		Path:       path,
		Name:       strings.TrimSuffix(filepath.Base(path), s.suffix),
		ModifiedAt: info.ModTime(),
	}

	plistPath := filepath.Join(path, "Contents", "Info.plist")
	data, err := os.ReadFile(plistPath)
	if err != nil {
		return rec
	}
	if st, err := os.Stat(plistPath); err == nil {
		rec.ModifiedAt = st.ModTime()
	}
	meta, err := parser.Parse(data)
	if err != nil {
		s.logger.Debug("scan: unreadable Info.plist", slog.String("path", path), slog.String("error", err.Error()))
		return rec
	}
	if title := meta.Title(); title != "" {
		rec.Name = title
	}
	if meta.IconFile != "" {
		icon := filepath.Join(path, "Contents", "Resources", meta.IconFile)
		if _, err := os.Stat(icon); err == nil {
			rec.IconPath = icon
		}
	}
	return rec
}

// IsNested reports whether path lies inside another bundle.
func (s *Scanner) IsNested(path string) bool {
	n := 0
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasSuffix(part, s.suffix) {
			n++
		}
	}
	return n > 1
}

// BundlePath maps any path inside a bundle to the bundle itself, by cutting
// after the first path component that carries the bundle suffix.
func (s *Scanner) BundlePath(raw string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(raw)), "/")
	for i, part := range parts {
		if strings.HasSuffix(part, s.suffix) {
			return filepath.FromSlash(strings.Join(parts[:i+1], "/")), true
		}
	}
	return "", false
}
