package daemon

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/templates"
)

const debounceWindow = 300 * time.Millisecond

// watcher turns filesystem events on the content directory (and the
// overrides file in the cache directory) into debounced rebuild
// requests.
type watcher struct {
	fsw      *fsnotify.Watcher
	cacheDir string
	requests chan struct{}
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// newWatcher watches contentDir recursively plus the template
// overrides file under cacheDir.
func newWatcher(contentDir, cacheDir string, logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &watcher{
		fsw:      fsw,
		cacheDir: cacheDir,
		requests: make(chan struct{}, 1),
		logger:   logger,
	}
	if err := w.addRecursive(contentDir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	// The cache directory fills with render artifacts; only the
	// overrides file in it is an input.
	if err := fsw.Add(cacheDir); err != nil {
		w.logger.Warn("cannot watch cache dir", logfields.Path(cacheDir), logfields.Error(err))
	}
	return w, nil
}

// Requests delivers at most one pending rebuild signal.
func (w *watcher) Requests() <-chan struct{} { return w.requests }

// Run consumes filesystem events until the event channel closes.
func (w *watcher) Run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *watcher) handle(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}
	// New tag directories need their own watch.
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("cannot watch new dir", logfields.Path(ev.Name), logfields.Error(err))
			}
		}
	}
	w.logger.Debug("change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.trigger()
}

// trigger arms the debounce timer; only the last event within the
// window produces a request.
func (w *watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, func() {
		select {
		case w.requests <- struct{}{}:
		default:
		}
	})
}

// ignored filters events that must not trigger rebuilds: hidden and
// editor scratch files everywhere, and everything in the cache
// directory except the overrides file.
func (w *watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if filepath.Dir(path) == filepath.Clean(w.cacheDir) && base != templates.OverrideFile {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return false
}

func (w *watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}
