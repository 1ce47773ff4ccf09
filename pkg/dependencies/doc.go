// Package dependencies builds the package dependency graph of a monorepo and
// answers change-impact questions over it.
//
// # Overview
//
// A graph is built from package manifests, validated once for cycles, and then
// treated as an immutable snapshot. An edge A -> B means "A depends on B".
// Dependencies on packages outside the monorepo never become edges.
//
// # Usage Example
//
// Build and validate:
//
//	g, err := dependencies.Build(manifests)
//	if err != nil {
//		return err
//	}
//	if _, err := dependencies.Validate(g); err != nil {
//		var cyclic *dependencies.CyclicDependencyError
//		if errors.As(err, &cyclic) {
//			fmt.Println(strings.Join(cyclic.Cycle, " -> "))
//		}
//		return err
//	}
//
// Impact of a change set (the seeds plus every transitive dependent):
//
//	impacted, err := dependencies.Propagate(g, []string{"core"})
//	for _, name := range impacted.Sorted() {
//		fmt.Println(name)
//	}
//
// Export for Graphviz:
//
//	err := dependencies.WriteDOT(f, g)
//
// Release order (dependencies first):
//
//	order, err := dependencies.TopologicalOrder(g)
//
// # Related Packages
//
//   - pkg/manifest: Loads the manifests a graph is built from
//   - pkg/changes: Turns changed files into the seed package names
//   - pkg/monorepo: Runs load, build and validate as one step
package dependencies
