package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

// Info describes a discovered but not yet loaded plugin.
type Info struct {
	Manifest *Manifest
	// Dir is the plugin's directory; for single-file plugins, the directory
	// containing the script.
	Dir string
}

// Loader discovers script plugins on disk. Two layouts are recognized: a
// directory containing a plugin.json, and a bare .lua file directly in a
// search path.
type Loader struct {
	mu    sync.Mutex
	paths []string
	found map[string]*Info
	log   *logging.Logger
}

// NewLoader creates a loader searching the given directories.
func NewLoader(paths []string, log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{paths: paths, log: log}
}

// Discover scans the search paths and returns every valid plugin found,
// sorted by id. Invalid manifests are logged and skipped, not fatal; one
// broken plugin must not hide the rest. Results are cached until Refresh.
func (l *Loader) Discover() ([]*Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.found == nil {
		if err := l.scan(); err != nil {
			return nil, err
		}
	}
	out := make([]*Info, 0, len(l.found))
	for _, info := range l.found {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out, nil
}

// Refresh drops the discovery cache and rescans.
func (l *Loader) Refresh() ([]*Info, error) {
	l.mu.Lock()
	l.found = nil
	l.mu.Unlock()
	return l.Discover()
}

// Find returns a discovered plugin by id.
func (l *Loader) Find(id string) (*Info, error) {
	if _, err := l.Discover(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.found[id]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}
	return info, nil
}

// Paths returns the search paths.
func (l *Loader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// scan walks the search paths. Caller holds the lock.
func (l *Loader) scan() error {
	l.found = make(map[string]*Info)
	for _, root := range l.paths {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan plugin path %s: %w", root, err)
		}
		for _, entry := range entries {
			full := filepath.Join(root, entry.Name())
			switch {
			case entry.IsDir():
				l.add(func() (*Manifest, error) { return LoadManifestFromDir(full) }, full)
			case filepath.Ext(entry.Name()) == ".lua":
				l.add(func() (*Manifest, error) { return SingleFileManifest(full), nil }, root)
			}
		}
	}
	return nil
}

func (l *Loader) add(load func() (*Manifest, error), dir string) {
	m, err := load()
	if err != nil {
		l.log.Warn("skipping plugin at %s: %v", dir, err)
		return
	}
	if prev, dup := l.found[m.ID]; dup {
		l.log.Warn("duplicate plugin id %q at %s, keeping %s", m.ID, dir, prev.Dir)
		return
	}
	l.found[m.ID] = &Info{Manifest: m, Dir: dir}
}
