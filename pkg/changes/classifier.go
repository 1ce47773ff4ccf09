package changes

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// RootPackage is the pseudo-package owning every change outside the packages directory.
// It has no node in the dependency graph, so it never has dependents.
const RootPackage = "root"

// Classifier maps a changed file path to the name of the package owning it
type Classifier interface {
	Classify(path string) (string, bool)
}

// PrefixClassifier owns "<packagesDir>/<name>/..." paths by <name> and everything
// else by a root sentinel. It assumes package directory names equal declared
// package names.
type PrefixClassifier struct {
	pattern *regexp.Regexp
	root    string
}

// NewPrefixClassifier creates a classifier for the given packages directory and root sentinel.
// Empty arguments fall back to "packages" and RootPackage.
func NewPrefixClassifier(packagesDir, root string) (*PrefixClassifier, error) {
	if packagesDir == "" {
		packagesDir = "packages"
	}
	if root == "" {
		root = RootPackage
	}

	dir := strings.Trim(path.Clean(strings.ReplaceAll(packagesDir, `\`, "/")), "/")
	if dir == "" || dir == "." {
		return nil, fmt.Errorf("invalid packages directory: %q", packagesDir)
	}

	pattern, err := regexp.Compile(`(?:^|/)` + regexp.QuoteMeta(dir) + `/([^/]+)/`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile package pattern: %w", err)
	}

	return &PrefixClassifier{pattern: pattern, root: root}, nil
}

// Classify returns the owning package of a path. Empty paths are not classified.
func (c *PrefixClassifier) Classify(p string) (string, bool) {
	if p == "" {
		return "", false
	}

	match := c.pattern.FindStringSubmatch(strings.ReplaceAll(p, `\`, "/"))
	if match == nil {
		return c.root, true
	}
	return match[1], true
}

// ChangedPackages classifies the old and new path of every changed file and
// returns the distinct package names in sorted order
func ChangedPackages(files []ChangedFile, c Classifier) []string {
	seen := make(map[string]struct{})
	for _, f := range files {
		for _, p := range []string{f.OldPath, f.NewPath} {
			if name, ok := c.Classify(p); ok {
				seen[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
