package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a
// corpus is refreshed.
const DefaultDebounce = 2 * time.Second

// Watch starts an fsnotify watcher on every target root and refreshes a
// target once its tree has been quiet for debounce. It blocks until ctx is
// cancelled.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, p *Pipeline, targets []Target, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make([]string, len(targets))
	for i, t := range targets {
		abs, err := filepath.Abs(t.Root)
		if err != nil {
			return err
		}
		roots[i] = abs
		if err := addDirsRecursive(w, abs); err != nil {
			logger.Warn("watcher: corpus not watched", slog.String("root", abs), slog.String("error", err.Error()))
			continue
		}
		logger.Info("watcher: started", slog.String("root", abs), slog.String("collection", t.Collection))
	}

	// Timers fire into due; the loop owns every refresh.
	due := make(chan int, len(targets))
	timers := make([]*time.Timer, len(targets))
	schedule := func(i int) {
		if timers[i] != nil {
			timers[i].Reset(debounce)
			return
		}
		timers[i] = time.AfterFunc(debounce, func() {
			select {
			case due <- i:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				if t != nil {
					t.Stop()
				}
			}
			logger.Info("watcher: stopped")
			return nil

		case i := <-due:
			res, err := p.Refresh(ctx, targets[i])
			if err != nil {
				logger.Error("watcher: reindex failed",
					slog.String("collection", targets[i].Collection),
					slog.String("error", err.Error()))
				continue
			}
			if !res.Skipped {
				logger.Info("watcher: reindexed",
					slog.String("collection", res.Collection),
					slog.Int("chunks", res.Chunks))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if i := owner(roots, ev.Name); i >= 0 {
				logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule(i)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// owner returns the index of the deepest root containing name, or -1.
func owner(roots []string, name string) int {
	best, bestLen := -1, -1
	for i, r := range roots {
		if name != r && !strings.HasPrefix(name, r+string(os.PathSeparator)) {
			continue
		}
		if len(r) > bestLen {
			best, bestLen = i, len(r)
		}
	}
	return best
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
