package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsPluginDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "hello")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	changes := make(chan string, 8)
	w, err := NewWatcher([]string{root}, func(dir string) { changes <- dir }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte("-- v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != dir {
			t.Fatalf("changed dir = %q, want %q", got, dir)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "burst")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	changes := make(chan string, 8)
	w, err := NewWatcher([]string{root}, func(dir string) { changes <- dir }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte("-- rev"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
	// The burst should have collapsed into a single notification.
	select {
	case got := <-changes:
		t.Fatalf("unexpected extra notification for %q", got)
	case <-time.After(2 * watchDebounce):
	}
}

func TestWatcherRootLevelChange(t *testing.T) {
	root := t.TempDir()

	changes := make(chan string, 8)
	w, err := NewWatcher([]string{root}, func(dir string) { changes <- dir }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// A single-file plugin dropped directly into the search path maps to
	// the path itself.
	if err := os.WriteFile(filepath.Join(root, "wordcount.lua"), []byte("-- hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != root {
			t.Fatalf("changed dir = %q, want root %q", got, root)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherSeesNewPluginDir(t *testing.T) {
	root := t.TempDir()

	changes := make(chan string, 8)
	w, err := NewWatcher([]string{root}, func(dir string) { changes <- dir }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Directory created after the watcher started.
	dir := filepath.Join(root, "fresh")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for the created directory")
	}

	// Edits inside it must now be seen too.
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte("-- v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-changes:
			if got == dir {
				return
			}
		case <-deadline:
			t.Fatal("no notification for a file inside the new directory")
		}
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := NewWatcher([]string{t.TempDir()}, func(string) {}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
