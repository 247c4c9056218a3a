// Package recipe defines the provisioning recipe: the package list, the
// artifacts built from downloads, the files and directories deployed, the
// services restarted and the secondary-runtime requirements installed.
package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jaspreet-dot-casa/vmprov/assets"
)

// Recipe is the full provisioning recipe.
type Recipe struct {
	Packages     []string      `yaml:"packages"`
	Artifacts    []Artifact    `yaml:"artifacts"`
	Directories  []Directory   `yaml:"directories"`
	Files        []File        `yaml:"files"`
	Services     []Service     `yaml:"services"`
	Requirements *Requirements `yaml:"requirements,omitempty"`
}

// Artifact is a third-party library installed from downloaded archives or
// packages.
type Artifact struct {
	Name      string     `yaml:"name"`
	Version   string     `yaml:"version"`
	Marker    string     `yaml:"marker"` // Installed file whose presence means "installed"
	Downloads []Download `yaml:"downloads"`
	Dir       string     `yaml:"dir,omitempty"` // Subdirectory of the work dir the steps run in
	Steps     [][]string `yaml:"steps"`         // Build/install commands, argv form
	Requires  []string   `yaml:"requires,omitempty"`
}

// Download is one file fetched for an artifact.
type Download struct {
	URL     string `yaml:"url"`
	SHA256  string `yaml:"sha256,omitempty"`
	Extract bool   `yaml:"extract,omitempty"`
}

// Directory is a directory ensured with explicit ownership and mode.
type Directory struct {
	Path     string   `yaml:"path"`
	Owner    string   `yaml:"owner"`
	Group    string   `yaml:"group"`
	Mode     FileMode `yaml:"mode"`
	Requires []string `yaml:"requires,omitempty"`
}

// File is a static file copied from the bundled sources.
type File struct {
	Source   string   `yaml:"source"`
	Dest     string   `yaml:"dest"`
	Owner    string   `yaml:"owner"`
	Group    string   `yaml:"group"`
	Mode     FileMode `yaml:"mode"`
	Notifies []string `yaml:"notifies,omitempty"` // Services restarted after this file
	Requires []string `yaml:"requires,omitempty"`
}

// Service is a system service restarted on every run.
type Service struct {
	Name     string   `yaml:"name"`
	Requires []string `yaml:"requires,omitempty"`
}

// Requirements is a pinned manifest installed with a secondary-runtime
// package installer.
type Requirements struct {
	Manifest  string   `yaml:"manifest"`
	Installer string   `yaml:"installer,omitempty"` // Defaults to DefaultInstaller
	Requires  []string `yaml:"requires,omitempty"`
}

// DefaultInstaller is the requirements installer used when none is set.
const DefaultInstaller = "pip"

// InstallerOrDefault returns the configured installer or DefaultInstaller.
func (r *Requirements) InstallerOrDefault() string {
	if r.Installer == "" {
		return DefaultInstaller
	}
	return r.Installer
}

// FileMode is a permission mode written in YAML as an octal string ("0644").
type FileMode os.FileMode

// Perm returns the mode as os.FileMode permission bits.
func (m FileMode) Perm() os.FileMode {
	return os.FileMode(m).Perm()
}

// String returns the mode in octal form, e.g. "0644".
func (m FileMode) String() string {
	return fmt.Sprintf("%#04o", uint32(m))
}

// UnmarshalYAML parses an octal mode. Both "0644" and "0o644" are accepted.
func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimPrefix(strings.TrimSpace(value.Value), "0o")
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid mode %q: must be octal", value.Line, value.Value)
	}
	*m = FileMode(v)
	return nil
}

// MarshalYAML writes the mode as a quoted octal string.
func (m FileMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Parse parses a recipe from YAML.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	return &r, nil
}

// Load reads and parses a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	return Parse(data)
}

// UniquePackages returns the package list without duplicates, keeping the
// first occurrence of each name.
func (r *Recipe) UniquePackages() []string {
	seen := make(map[string]bool, len(r.Packages))
	pkgs := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// within reports whether path lies strictly inside dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Default returns the embedded default recipe.
func Default() (*Recipe, error) {
	return Parse(assets.Recipe)
}
