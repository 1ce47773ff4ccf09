package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultFileName is the manifest file looked up in every package directory
const DefaultFileName = "package.json"

// Manifest is the per-package descriptor: a name and declared dependencies.
// Version specifiers are carried verbatim and never interpreted.
type Manifest struct {
	Name         string            `json:"name"`
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// Dir is the directory the manifest was loaded from
	Dir string `json:"-"`
}

// DependencyNames returns the declared dependency names in sorted order
func (m Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadManifest loads and parses a manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Op: ErrManifestRead, Path: path, Err: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &LoadError{Op: ErrManifestDecode, Path: path, Err: err}
	}
	if m.Name == "" {
		return nil, &LoadError{Op: ErrManifestDecode, Path: path, Err: fmt.Errorf("missing \"name\" field")}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	m.Dir = filepath.Dir(path)

	return &m, nil
}

// LoadManifestFromDir loads the manifest named fileName from a package directory
func LoadManifestFromDir(dir, fileName string) (*Manifest, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return LoadManifest(filepath.Join(dir, fileName))
}

// SaveManifest writes a manifest as indented JSON
func SaveManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}
