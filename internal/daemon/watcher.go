package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

// Watcher requests a run after changes under the watched paths settle for
// the debounce window. Directories are watched recursively; a watched file is
// watched through its parent directory, which survives editors that replace
// the file on save.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	trigger  func(reason string) bool
	files    map[string]struct{} // watched individual files
	dirs     map[string]struct{} // recursively watched roots

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
	done    chan struct{}
}

// NewWatcher registers paths with fsnotify. Missing paths are skipped with a
// warning so a daemon can start before every directory exists.
func NewWatcher(paths []string, debounce time.Duration, trigger func(reason string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.DaemonError("failed to create file watcher").WithCause(err).Build()
	}
	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		trigger:  trigger,
		files:    map[string]struct{}{},
		dirs:     map[string]struct{}{},
		done:     make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, errors.ConfigError("invalid watch path").WithCause(err).WithContext("path", p).Build()
		}
		info, err := os.Stat(abs)
		if err != nil {
			slog.Warn("Watch path unavailable; skipping", logfields.Path(abs), logfields.Error(err))
			continue
		}
		if info.IsDir() {
			w.dirs[abs] = struct{}{}
			err = w.addTree(abs)
		} else {
			w.files[abs] = struct{}{}
			err = fw.Add(filepath.Dir(abs))
		}
		if err != nil {
			_ = fw.Close()
			return nil, errors.DaemonError("failed to watch path").WithCause(err).WithContext("path", abs).Build()
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

// WatchList returns every directory registered with fsnotify.
func (w *Watcher) WatchList() []string { return w.watcher.WatchList() }

// Start processes events until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	slog.Info("Starting file watcher", logfields.Count(len(w.watcher.WatchList())))
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
		return
	}
	slog.Debug("Watched path changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	w.schedule()
}

func (w *Watcher) relevant(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}
	for root := range w.dirs {
		if name == root || isWithin(root, name) {
			return true
		}
	}
	return false
}

func isWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// schedule restarts the debounce window.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.trigger(ReasonWatch) })
}

// Stop closes the watcher and cancels a pending debounce.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	started := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	if started {
		<-w.done
	}
	return err
}
