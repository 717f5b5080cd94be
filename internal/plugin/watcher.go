package plugin

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

// watchDebounce coalesces the burst of filesystem events an editor save
// produces into one change notification.
const watchDebounce = 300 * time.Millisecond

// Watcher observes plugin search paths and reports which plugin directory
// changed, debounced. The host wires the callback to reload the affected
// plugin; the watcher itself never touches the manager.
type Watcher struct {
	fs       *fsnotify.Watcher
	roots    []string
	onChange func(dir string)
	log      *logging.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	done    chan struct{}
}

// NewWatcher starts watching the given plugin search paths. onChange
// receives the changed plugin directory (or the search path itself for
// single-file plugins) and runs on the watcher goroutine.
func NewWatcher(paths []string, onChange func(dir string), log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		roots:    append([]string(nil), paths...),
		onChange: onChange,
		log:      log,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, p := range paths {
		if err := fs.Add(p); err != nil {
			log.Warn("cannot watch plugin path %s: %v", p, err)
			continue
		}
		// fsnotify is not recursive: each plugin directory must be
		// watched itself for edits to the files inside it.
		w.watchSubdirs(p)
	}
	go w.run()
	return w, nil
}

// watchSubdirs adds every direct subdirectory of root to the watch set.
func (w *Watcher) watchSubdirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := w.fs.Add(dir); err != nil {
			w.log.Warn("cannot watch plugin dir %s: %v", dir, err)
		}
	}
}

// Close stops the watcher and cancels pending notifications.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()

	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// A plugin directory created after startup joins the watch
			// set so edits inside it are seen too.
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.fs.Add(ev.Name); err != nil {
						w.log.Warn("cannot watch plugin dir %s: %v", ev.Name, err)
					}
				}
			}
			w.schedule(w.pluginDir(ev.Name))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("plugin watcher: %v", err)
		}
	}
}

// pluginDir maps a changed path to the plugin directory it belongs to.
// Changes directly inside a search root (single-file plugins, new plugin
// directories) map to the root itself.
func (w *Watcher) pluginDir(path string) string {
	dir := filepath.Dir(path)
	for _, root := range w.roots {
		if dir == root {
			return root
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		// First path element under the root is the plugin directory.
		first := strings.Split(rel, string(filepath.Separator))[0]
		return filepath.Join(root, first)
	}
	return dir
}

// schedule arms (or re-arms) the debounce timer for one plugin directory.
func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[dir]; ok {
		t.Reset(watchDebounce)
		return
	}
	w.pending[dir] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.log.Info("plugin change detected in %s", dir)
		w.onChange(dir)
	})
}
