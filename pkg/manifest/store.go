package manifest

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// DefaultPackagesDir is the directory, relative to the monorepo root, holding one subdirectory per package
const DefaultPackagesDir = "packages"

// StoreConfig locates manifests inside a monorepo
type StoreConfig struct {
	Root        string
	PackagesDir string
	FileName    string
}

// Store discovers and loads package manifests from a monorepo checkout
type Store struct {
	config StoreConfig
	log    *logrus.Logger
}

// NewStore creates a new manifest store
func NewStore(config StoreConfig, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	if config.Root == "" {
		config.Root = "."
	}
	if config.PackagesDir == "" {
		config.PackagesDir = DefaultPackagesDir
	}
	if config.FileName == "" {
		config.FileName = DefaultFileName
	}

	return &Store{
		config: config,
		log:    log,
	}
}

// PackagesPath returns the directory scanned for packages
func (s *Store) PackagesPath() string {
	return filepath.Join(s.config.Root, s.config.PackagesDir)
}

// Load reads one manifest per immediate subdirectory of the packages directory.
// Manifests are returned ordered by directory name. Any failure aborts the load.
func (s *Store) Load(ctx context.Context) ([]Manifest, error) {
	dir := s.PackagesPath()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Op: ErrPackagesDirRead, Path: dir, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, entry.Name())
		isDir, err := s.isDir(entry, path)
		if err != nil {
			return nil, &LoadError{Op: ErrPackagesDirEntryRead, Path: path, Err: err}
		}
		if !isDir {
			continue
		}

		m, err := LoadManifestFromDir(path, s.config.FileName)
		if err != nil {
			return nil, err
		}

		s.log.Debugf("Loaded manifest %s (%d dependencies) from %s", m.Name, len(m.Dependencies), path)
		manifests = append(manifests, *m)
	}

	s.log.Infof("Loaded %d package manifests from %s", len(manifests), dir)
	return manifests, nil
}

// isDir follows symlinks so that linked package directories are still discovered
func (s *Store) isDir(entry os.DirEntry, path string) (bool, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
