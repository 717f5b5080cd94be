package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.LogLevel != def.LogLevel || cfg.Bunny.Workers != def.Bunny.Workers {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
	if !cfg.AutoActivate || !cfg.Watch {
		t.Fatal("auto_activate and watch should default to true")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
plugin_paths = ["/opt/plugins"]
auto_activate = false
log_level = "debug"

[bunny]
workers = 4
cache_size = 32
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.PluginPaths) != 1 || cfg.PluginPaths[0] != "/opt/plugins" {
		t.Fatalf("plugin paths = %v", cfg.PluginPaths)
	}
	if cfg.AutoActivate {
		t.Fatal("auto_activate should be false")
	}
	if cfg.Bunny.Workers != 4 || cfg.Bunny.CacheSize != 32 {
		t.Fatalf("bunny = %+v", cfg.Bunny)
	}
	// Unset keys keep their defaults.
	if !cfg.Watch {
		t.Fatal("watch should keep its default")
	}
	if cfg.Bunny.PollInterval != 50*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Bunny.PollInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BUBBLEFISH_LOG_LEVEL", "error")
	t.Setenv("BUBBLEFISH_BUNNY_WORKERS", "8")
	t.Setenv("BUBBLEFISH_WATCH", "false")
	t.Setenv("BUBBLEFISH_BUNNY_POLL_INTERVAL", "25ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Bunny.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Bunny.Workers)
	}
	if cfg.Watch {
		t.Fatal("watch should be disabled via env")
	}
	if cfg.Bunny.PollInterval != 25*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Bunny.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "shout"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("err = %v, want ErrInvalidLogLevel", err)
	}

	cfg = Default()
	cfg.Bunny.Workers = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidWorkers) {
		t.Fatalf("err = %v, want ErrInvalidWorkers", err)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.Level
	}{
		{"debug", logging.LevelDebug},
		{"info", logging.LevelInfo},
		{"", logging.LevelInfo},
		{"warn", logging.LevelWarn},
		{"warning", logging.LevelWarn},
		{"ERROR", logging.LevelError},
	}
	for _, tt := range tests {
		cfg := Config{LogLevel: tt.in}
		got, err := cfg.Level()
		if err != nil {
			t.Fatalf("Level(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("log_level = [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
