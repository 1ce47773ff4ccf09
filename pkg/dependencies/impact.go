package dependencies

import (
	"sort"
)

// Set is an unordered set of package names
type Set map[string]struct{}

// NewSet creates a set from names, dropping duplicates
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the names in sorted order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Propagate returns every package impacted by a change to the seed packages:
// the seeds themselves plus everything that depends on them, directly or
// transitively. Seeds with no node in the graph are reported as impacted and
// have no dependents.
//
// The graph must be acyclic. A graph that did not go through Validate is
// checked first, and a cycle yields ErrInvariantViolation.
func Propagate(g *Graph, seeds []string) (Set, error) {
	if err := g.requireAcyclic(); err != nil {
		return nil, err
	}

	impacted := make(Set, len(seeds))
	stack := make([]string, len(seeds))
	copy(stack, seeds)

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if impacted.Has(name) {
			continue
		}
		impacted[name] = struct{}{}

		idx, ok := g.index[name]
		if !ok {
			continue
		}
		for _, dependent := range g.incoming[idx] {
			stack = append(stack, g.names[dependent])
		}
	}

	return impacted, nil
}

// ImpactAnalysis breaks down the impact of a change set
type ImpactAnalysis struct {
	// Changed are the seed packages
	Changed []string `json:"changed"`
	// Impacted is Changed plus every transitive dependent
	Impacted []string `json:"impacted"`
	// Direct are the immediate dependents of changed packages that were not changed themselves
	Direct []string `json:"direct_dependents"`
	// Transitive are the remaining impacted packages reached only through other dependents
	Transitive []string `json:"transitive_dependents"`
	// Unknown are changed names with no package in the graph, such as the root sentinel
	Unknown     []string `json:"unknown"`
	TotalImpact int      `json:"total_impact"`
}

// Analyze propagates the seeds and classifies the result
func Analyze(g *Graph, seeds []string) (*ImpactAnalysis, error) {
	impacted, err := Propagate(g, seeds)
	if err != nil {
		return nil, err
	}

	changed := NewSet(seeds...)
	direct := make(Set)
	unknown := make([]string, 0)
	for _, name := range changed.Sorted() {
		if !g.HasNode(name) {
			unknown = append(unknown, name)
			continue
		}
		for _, dependent := range g.Dependents(name) {
			if !changed.Has(dependent) {
				direct[dependent] = struct{}{}
			}
		}
	}

	transitive := make([]string, 0)
	for _, name := range impacted.Sorted() {
		if !changed.Has(name) && !direct.Has(name) {
			transitive = append(transitive, name)
		}
	}

	return &ImpactAnalysis{
		Changed:     changed.Sorted(),
		Impacted:    impacted.Sorted(),
		Direct:      direct.Sorted(),
		Transitive:  transitive,
		Unknown:     unknown,
		TotalImpact: direct.Len() + len(transitive),
	}, nil
}
