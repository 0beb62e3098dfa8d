package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var watchedExtensions = map[string]bool{
	".csv":     true,
	".txt":     true,
	".xlsx":    true,
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
}

// Watcher reloads the dataset when files in the local source directories change.
// Bursts of events within the debounce window cause a single reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reloader Reloader
	debounce time.Duration
	ignore   map[string]bool
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// WatchDirs returns the directories to watch for the given source specs. URLs are
// skipped; files contribute their parent directory.
func WatchDirs(specs []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" || strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
			continue
		}
		dir := spec
		if info, err := os.Stat(spec); err == nil && !info.IsDir() {
			dir = filepath.Dir(spec)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// NewWatcher watches dirs. Paths in ignore (e.g. the snapshot written on reload)
// never trigger a reload.
func NewWatcher(dirs []string, reloader Reloader, debounce time.Duration, ignore []string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	ignored := make(map[string]bool, len(ignore))
	for _, p := range ignore {
		if p != "" {
			ignored[filepath.Clean(p)] = true
		}
	}

	return &Watcher{
		watcher:  fw,
		reloader: reloader,
		debounce: debounce,
		ignore:   ignored,
		logger:   logger,
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.logger.Debug("Source change detected",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()))
				w.schedule(ctx)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Source watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.ignore[name] || strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	// sqlite -wal and -journal files have their own extensions and are skipped
	return watchedExtensions[strings.ToLower(filepath.Ext(name))]
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()

		if err := w.reloader.Reload(ctx); err != nil {
			w.logger.Error("Reload after source change failed", zap.Error(err))
		}
	})
}

// Reloads returns how many reloads the watcher has triggered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
