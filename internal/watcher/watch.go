package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/launchgrid/internal/models"
)

// Watch starts an fsnotify watcher on every root and feeds the pipeline
// until ctx is cancelled. Roots that cannot be watched are skipped; Watch
// fails only when none can be.
//
// Directories are watched recursively, except that a bundle contributes
// only itself and its Contents directory. New directories created at
// runtime are added to the watch list.
func Watch(ctx context.Context, p *Pipeline, roots []string, suffix string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]struct{})
	watched := 0
	for _, root := range roots {
		if err := addDirs(w, root, suffix, dirs); err != nil {
			logger.Warn("watcher: root skipped", slog.String("root", root), slog.String("error", err.Error()))
			continue
		}
		watched++
	}
	if watched == 0 && len(roots) > 0 {
		return errors.New("watcher: no root could be watched")
	}

	logger.Info("watcher: started", slog.Int("roots", watched), slog.Int("dirs", len(dirs)))

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			batch := []fsnotify.Event{ev}
		drain:
			for {
				select {
				case more, ok := <-w.Events:
					if !ok {
						break drain
					}
					batch = append(batch, more)
				default:
					break drain
				}
			}
			p.Submit(toChanges(w, batch, suffix, dirs, logger))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// toChanges converts fsnotify events, registering new directories on the way.
func toChanges(w *fsnotify.Watcher, events []fsnotify.Event, suffix string, dirs map[string]struct{}, logger *slog.Logger) []models.ChangeEvent {
	out := make([]models.ChangeEvent, 0, len(events))
	for _, ev := range events {
		c := models.ChangeEvent{
			Path:     ev.Name,
			Created:  ev.Op&fsnotify.Create != 0,
			Removed:  ev.Op&fsnotify.Remove != 0,
			Renamed:  ev.Op&fsnotify.Rename != 0,
			Modified: ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0,
		}
		if _, ok := dirs[ev.Name]; ok {
			c.IsDir = true
		}
		if c.Created {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				c.IsDir = true
				if err := addDirs(w, ev.Name, suffix, dirs); err != nil {
					logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
				}
			}
		}
		if c.Removed || c.Renamed {
			delete(dirs, ev.Name)
		}
		out = append(out, c)
	}
	return out
}

// addDirs adds root and its subdirectories to the watcher. Hidden
// directories are skipped and bundles are not descended past Contents.
func addDirs(w *fsnotify.Watcher, root, suffix string, dirs map[string]struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			if path == root {
				return err
			}
			return nil
		}
		dirs[path] = struct{}{}

		if strings.HasSuffix(d.Name(), suffix) {
			contents := filepath.Join(path, "Contents")
			if info, statErr := os.Stat(contents); statErr == nil && info.IsDir() {
				if w.Add(contents) == nil {
					dirs[contents] = struct{}{}
				}
			}
			return filepath.SkipDir
		}
		return nil
	})
}
