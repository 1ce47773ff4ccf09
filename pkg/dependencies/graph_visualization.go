package dependencies

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "package", "current", "dependency", "dependent"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// Node types used in CytoscapeNodeData.Type
const (
	NodeTypePackage    = "package"
	NodeTypeCurrent    = "current"
	NodeTypeDependency = "dependency"
	NodeTypeDependent  = "dependent"
)

// Cytoscape converts the graph to Cytoscape.js format.
//
// With an empty focus every package and edge is included. Otherwise only the
// focus package, its transitive dependencies and its transitive dependents are
// included, along with the edges between them.
func Cytoscape(g *Graph, focus string) CytoscapeGraph {
	types := make(map[int]string)

	if focus == "" {
		for i := range g.names {
			types[i] = NodeTypePackage
		}
	} else if idx, ok := g.index[focus]; ok {
		g.walk(idx, g.outgoing, types, NodeTypeDependency)
		g.walk(idx, g.incoming, types, NodeTypeDependent)
		types[idx] = NodeTypeCurrent
	}

	out := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(types)),
		Edges: make([]CytoscapeEdge, 0),
	}

	for i, name := range g.names {
		nodeType, ok := types[i]
		if !ok {
			continue
		}
		out.Nodes = append(out.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{ID: name, Name: name, Type: nodeType},
		})
	}

	for from, deps := range g.outgoing {
		if _, ok := types[from]; !ok {
			continue
		}
		for _, to := range deps {
			if _, ok := types[to]; !ok {
				continue
			}
			out.Edges = append(out.Edges, CytoscapeEdge{
				Data: CytoscapeEdgeData{
					ID:     g.names[from] + "->" + g.names[to],
					Source: g.names[from],
					Target: g.names[to],
				},
			})
		}
	}

	return out
}

// walk marks every node reachable from start through adjacency with nodeType
func (g *Graph) walk(start int, adjacency [][]int, types map[int]string, nodeType string) {
	visited := map[int]bool{start: true}
	stack := []int{start}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adjacency[n] {
			if visited[next] {
				continue
			}
			visited[next] = true
			types[next] = nodeType
			stack = append(stack, next)
		}
	}
}
