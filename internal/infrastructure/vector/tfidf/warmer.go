package tfidf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ArtifactName is the file name the pipeline writes per domain.
const ArtifactName = "index.json"

// Warmer preloads rebuilt index artifacts into a Cache as soon as they are
// written, so the next search does not pay the parse cost.
type Warmer struct {
	cache   *Cache
	watcher *fsnotify.Watcher
	roots   map[string]struct{}
	logger  *slog.Logger
}

// NewWarmer watches every directory in artifactDirs for index artifacts.
// Directories in domainRoots are watched together with their current and
// future subdirectories.
func NewWarmer(cache *Cache, artifactDirs []string, domainRoots []string, logger *slog.Logger) (*Warmer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create index watcher: %w", err)
	}
	w := &Warmer{
		cache:   cache,
		watcher: watcher,
		roots:   make(map[string]struct{}, len(domainRoots)),
		logger:  logger,
	}

	for _, dir := range artifactDirs {
		if err := w.watch(dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	for _, root := range domainRoots {
		clean := filepath.Clean(root)
		if err := w.watch(clean); err != nil {
			_ = watcher.Close()
			return nil, err
		}
		w.roots[clean] = struct{}{}
		entries, err := os.ReadDir(clean)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() && !isHidden(entry.Name()) {
				if err := w.watch(filepath.Join(clean, entry.Name())); err != nil {
					w.logger.Warn("index_watch_failed", "dir", entry.Name(), "error", err)
				}
			}
		}
	}
	return w, nil
}

// Run consumes watcher events until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("index_watch_error", "error", err)
		}
	}
}

// Watched lists the directories currently watched.
func (w *Warmer) Watched() []string {
	return w.watcher.WatchList()
}

func (w *Warmer) Close() error {
	return w.watcher.Close()
}

func (w *Warmer) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(event.Name)
	if isHidden(name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if _, isRoot := w.roots[filepath.Dir(event.Name)]; isRoot {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watch(event.Name); err != nil {
					w.logger.Warn("index_watch_failed", "dir", event.Name, "error", err)
				}
				return
			}
		}
	}

	if name != ArtifactName {
		return
	}
	if _, err := w.cache.Load(event.Name); err != nil {
		// A partially written artifact fails to parse; the final write event reloads it.
		w.logger.Debug("index_warm_skipped", "path", event.Name, "error", err)
		return
	}
	w.logger.Info("index_warmed", "path", event.Name)
}

func (w *Warmer) watch(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watched dir %s: %w", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
