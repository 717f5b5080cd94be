// Package config loads host configuration from a TOML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// BUBBLEFISH_LOG_LEVEL=debug.
const EnvPrefix = "BUBBLEFISH_"

// FileName is the default configuration file name inside the user
// config directory.
const FileName = "config.toml"

var (
	ErrInvalidLogLevel = errors.New("config: invalid log level")
	ErrInvalidWorkers  = errors.New("config: workers must be positive")
)

// Config holds the host settings.
type Config struct {
	// PluginPaths are the directories searched for plugins.
	PluginPaths []string `toml:"plugin_paths"`

	// AutoActivate controls whether plugins are activated immediately
	// after successful initialization.
	AutoActivate bool `toml:"auto_activate"`

	// Watch enables hot reload of plugins when their files change.
	Watch bool `toml:"watch"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	Bunny BunnyConfig `toml:"bunny"`
}

// BunnyConfig tunes the OCR/translation executor.
type BunnyConfig struct {
	// Workers is the number of concurrent bunny jobs.
	Workers int `toml:"workers"`

	// CacheSize is the number of cached results; zero uses the default.
	CacheSize int `toml:"cache_size"`

	// PollInterval is how often running providers should check for
	// cancellation.
	PollInterval time.Duration `toml:"poll_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PluginPaths:  []string{defaultPluginDir()},
		AutoActivate: true,
		Watch:        true,
		LogLevel:     "info",
		Bunny: BunnyConfig{
			Workers:      2,
			CacheSize:    256,
			PollInterval: 50 * time.Millisecond,
		},
	}
}

// Load reads the configuration file at path, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(defaultConfigDir(), FileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the host cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Bunny.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Bunny.Workers)
	}
	return nil
}

// Level translates LogLevel into a logging level.
func (c *Config) Level() (logging.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logging.LevelDebug, nil
	case "info", "":
		return logging.LevelInfo, nil
	case "warn", "warning":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}

// applyEnv overrides fields from BUBBLEFISH_* environment variables.
func (c *Config) applyEnv() {
	if v, ok := lookupEnv("PLUGIN_PATHS"); ok {
		c.PluginPaths = splitList(v)
	}
	if v, ok := lookupEnv("AUTO_ACTIVATE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoActivate = b
		}
	}
	if v, ok := lookupEnv("WATCH"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch = b
		}
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("BUNNY_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bunny.Workers = n
		}
	}
	if v, ok := lookupEnv("BUNNY_CACHE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bunny.CacheSize = n
		}
	}
	if v, ok := lookupEnv("BUNNY_POLL_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Bunny.PollInterval = d
		}
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bubblefish")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bubblefish")
}

func defaultPluginDir() string {
	return filepath.Join(defaultConfigDir(), "plugins")
}
