package dependencies

import (
	"container/heap"
	"fmt"
)

const (
	unvisited = iota
	visiting
	done
)

// Validate checks the graph for directed cycles.
//
// On success the same graph is returned, marked as validated. On failure a
// *CyclicDependencyError naming one offending cycle is returned and the graph
// must not be used for impact propagation or export.
func Validate(g *Graph) (*Graph, error) {
	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}
	g.validated = true
	return g, nil
}

// requireAcyclic enforces the propagation precondition without mutating the graph
func (g *Graph) requireAcyclic() error {
	if g.validated {
		return nil
	}
	if cycle := g.findCycle(); cycle != nil {
		return fmt.Errorf("%w: %w", ErrInvariantViolation, &CyclicDependencyError{Cycle: cycle})
	}
	return nil
}

// findCycle runs an iterative three-colour DFS and returns the first cycle found, or nil
func (g *Graph) findCycle() []string {
	type frame struct {
		node int
		next int
	}

	state := make([]uint8, len(g.names))
	parent := make([]int, len(g.names))

	for start := range g.names {
		if state[start] != unvisited {
			continue
		}

		state[start] = visiting
		parent[start] = -1
		stack := []frame{{node: start}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.outgoing[top.node]) {
				dep := g.outgoing[top.node][top.next]
				top.next++

				switch state[dep] {
				case unvisited:
					state[dep] = visiting
					parent[dep] = top.node
					stack = append(stack, frame{node: dep})
				case visiting:
					return g.cyclePath(parent, top.node, dep)
				}
				continue
			}

			state[top.node] = done
			stack = stack[:len(stack)-1]
		}
	}

	return nil
}

// cyclePath rebuilds the cycle closed by the back edge from -> to
func (g *Graph) cyclePath(parent []int, from, to int) []string {
	var reversed []int
	for cur := from; ; cur = parent[cur] {
		reversed = append(reversed, cur)
		if cur == to {
			break
		}
	}

	cycle := make([]string, 0, len(reversed)+1)
	for i := len(reversed) - 1; i >= 0; i-- {
		cycle = append(cycle, g.names[reversed[i]])
	}
	return append(cycle, g.names[to])
}

// TopologicalOrder returns the packages ordered so that every package comes
// after all of its dependencies. Ties are broken by name, so the order is
// deterministic.
func TopologicalOrder(g *Graph) ([]string, error) {
	remaining := make([]int, len(g.names))
	ready := &indexHeap{}
	for i := range g.names {
		remaining[i] = len(g.outgoing[i])
		if remaining[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]string, 0, len(g.names))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, g.names[n])
		for _, dependent := range g.incoming[n] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(g.names) {
		return nil, &CyclicDependencyError{Cycle: g.findCycle()}
	}
	return order, nil
}

// indexHeap is a min-heap of node indices; indices follow name order
type indexHeap []int

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
