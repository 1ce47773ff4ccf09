package dependencies

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/platinummonkey/morp/pkg/manifest"
)

// Edge is a dependency relation: From depends on To
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the package dependency graph of one monorepo snapshot.
//
// Nodes are package names. Each node has an integer index into the name table;
// adjacency is kept in both directions so dependents can be walked without a
// scan. A Graph is never mutated after Build and is safe for concurrent readers.
type Graph struct {
	names    []string // sorted; position is the node index
	index    map[string]int
	outgoing [][]int // dependencies, sorted ascending
	incoming [][]int // dependents, sorted ascending
	external map[string][]string
	edges    int

	validated bool
}

// Build creates the dependency graph for a set of packages.
//
// Every package becomes a node. A declared dependency becomes an edge only
// when a package with that name exists; anything else is external to the
// monorepo and is dropped. Duplicate package names are rejected.
func Build(pkgs []manifest.Manifest) (*Graph, error) {
	dirs := make(map[string][]string, len(pkgs))
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		if pkg.Name == "" {
			return nil, ErrEmptyPackageName
		}
		if _, seen := dirs[pkg.Name]; !seen {
			names = append(names, pkg.Name)
		}
		dirs[pkg.Name] = append(dirs[pkg.Name], pkg.Dir)
	}
	for _, name := range names {
		if len(dirs[name]) > 1 {
			return nil, &DuplicatePackageError{Name: name, Dirs: dirs[name]}
		}
	}
	sort.Strings(names)

	g := &Graph{
		names:    names,
		index:    make(map[string]int, len(names)),
		outgoing: make([][]int, len(names)),
		incoming: make([][]int, len(names)),
		external: make(map[string][]string),
	}
	for i, name := range names {
		g.index[name] = i
	}

	for _, pkg := range pkgs {
		from := g.index[pkg.Name]
		for _, dep := range pkg.DependencyNames() {
			to, ok := g.index[dep]
			if !ok {
				g.external[pkg.Name] = append(g.external[pkg.Name], dep)
				continue
			}
			g.outgoing[from] = append(g.outgoing[from], to)
			g.incoming[to] = append(g.incoming[to], from)
			g.edges++
		}
	}
	for i := range g.names {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	return g, nil
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.names)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Validated reports whether the graph passed Validate
func (g *Graph) Validated() bool {
	return g.validated
}

// HasNode reports whether a package with this name is in the graph
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns all package names in sorted order
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Edges returns all edges sorted by (From, To)
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for from, deps := range g.outgoing {
		for _, to := range deps {
			out = append(out, Edge{From: g.names[from], To: g.names[to]})
		}
	}
	return out
}

// Dependencies returns the direct in-monorepo dependencies of a package
func (g *Graph) Dependencies(name string) []string {
	idx, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.outgoing[idx])
}

// Dependents returns the packages that directly depend on a package
func (g *Graph) Dependents(name string) []string {
	idx, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.incoming[idx])
}

// External returns the declared dependencies of a package that are not part of the monorepo
func (g *Graph) External(name string) []string {
	ext := g.external[name]
	out := make([]string, len(ext))
	copy(out, ext)
	return out
}

// Fingerprint returns a stable hash of the node and edge sets
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	for _, name := range g.names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, e := range g.Edges() {
		h.Write([]byte(e.From))
		h.Write([]byte{0})
		h.Write([]byte(e.To))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Graph) namesOf(indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		out = append(out, g.names[i])
	}
	return out
}
