package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/security"
)

// Manifest describes a script plugin on disk: identity, grants, and the
// entry script. It lives in a plugin.json next to the plugin's Lua sources.
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`

	// Permissions are grant strings in the security package grammar.
	Permissions []string `json:"permissions"`

	// Events are the event type names the plugin subscribes to.
	Events []string `json:"events"`

	// Main is the entry script relative to the plugin directory.
	Main string `json:"main"`

	// dir is where the manifest was loaded from.
	dir string
}

// Manifest validation errors.
var (
	ErrMissingID      = errors.New("manifest: id is required")
	ErrInvalidID      = errors.New("manifest: id must be lowercase alphanumeric with hyphens")
	ErrInvalidVersion = errors.New("manifest: version must be semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?$`)

// ManifestFile is the expected file name inside a plugin directory.
const ManifestFile = "plugin.json"

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir reads the plugin.json inside dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// SingleFileManifest builds a minimal manifest for a bare .lua plugin with
// no plugin.json. The plugin id is the file name without extension; such
// plugins get no grants beyond system events.
func SingleFileManifest(path string) *Manifest {
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return &Manifest{
		ID:      id,
		Name:    id,
		Version: "0.0.0",
		Main:    base,
		dir:     filepath.Dir(path),
	}
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if m.Name == "" {
		m.Name = m.ID
	}
}

// Validate checks the manifest fields and the permission grammar.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, m.ID)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %q", ErrInvalidMain, m.Main)
	}
	// Parse grants now so a typo fails at load, not at first use.
	if _, err := security.Parse(m.Permissions); err != nil {
		return err
	}
	return nil
}

// Dir returns the plugin directory.
func (m *Manifest) Dir() string { return m.dir }

// MainPath returns the absolute path of the entry script.
func (m *Manifest) MainPath() string { return filepath.Join(m.dir, m.Main) }

// Metadata converts the manifest to runtime plugin metadata.
func (m *Manifest) Metadata() Metadata {
	return Metadata{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		Permissions: append([]string(nil), m.Permissions...),
		Events:      append([]string(nil), m.Events...),
	}
}

// String returns "name vVersion".
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
