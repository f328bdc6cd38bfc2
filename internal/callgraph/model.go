// Package callgraph builds a node/edge call graph for one event of a
// profile summary.
package callgraph

import (
	"github.com/callgrind-analysis/pkg/model"
)

// Node represents a function in the call graph.
type Node struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Object    string  `json:"object,omitempty"`
	File      string  `json:"file,omitempty"`
	Label     string  `json:"label,omitempty"`
	SelfPct   float64 `json:"selfPct"`
	TotalPct  float64 `json:"totalPct"`
	Self      uint64  `json:"self"`
	Inclusive uint64  `json:"inclusive"`
}

// Edge represents a call relationship in the call graph.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Calls  uint64  `json:"calls"`
	Cost   uint64  `json:"cost"`
}

// CallGraph is the graph of one event.
type CallGraph struct {
	Name  string  `json:"name,omitempty"`
	Event string  `json:"event"`
	Total uint64  `json:"total"`
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	nodeMap map[string]*Node
	edgeMap map[string]*Edge
}

// NewCallGraph creates a new call graph.
func NewCallGraph() *CallGraph {
	return &CallGraph{
		Nodes:   make([]*Node, 0),
		Edges:   make([]*Edge, 0),
		nodeMap: make(map[string]*Node),
		edgeMap: make(map[string]*Edge),
	}
}

// AddNode adds a function or adds to its costs if already present.
func (cg *CallGraph) AddNode(id model.FunctionID, self, inclusive uint64) *Node {
	nodeID := id.String()

	if node, exists := cg.nodeMap[nodeID]; exists {
		node.Self += self
		node.Inclusive += inclusive
		return node
	}

	node := &Node{
		ID:        nodeID,
		Name:      id.Name,
		Object:    id.Object,
		File:      id.File,
		Label:     id.Name,
		Self:      self,
		Inclusive: inclusive,
	}

	cg.nodeMap[nodeID] = node
	cg.Nodes = append(cg.Nodes, node)

	return node
}

// AddEdge adds a call edge or accumulates into an existing one.
func (cg *CallGraph) AddEdge(source, target model.FunctionID, calls, cost uint64) *Edge {
	edgeID := makeEdgeID(source.String(), target.String())

	if edge, exists := cg.edgeMap[edgeID]; exists {
		edge.Calls += calls
		edge.Cost += cost
		return edge
	}

	edge := &Edge{
		ID:     edgeID,
		Source: source.String(),
		Target: target.String(),
		Calls:  calls,
		Cost:   cost,
	}

	cg.edgeMap[edgeID] = edge
	cg.Edges = append(cg.Edges, edge)

	return edge
}

// GetNode returns the node of a function.
func (cg *CallGraph) GetNode(id model.FunctionID) *Node {
	return cg.nodeMap[id.String()]
}

// GetEdge returns the edge between two functions.
func (cg *CallGraph) GetEdge(source, target model.FunctionID) *Edge {
	return cg.edgeMap[makeEdgeID(source.String(), target.String())]
}

// CalculatePercentages derives percentages of Total for nodes and edges.
func (cg *CallGraph) CalculatePercentages() {
	if cg.Total == 0 {
		return
	}

	total := float64(cg.Total)

	for _, node := range cg.Nodes {
		node.SelfPct = float64(node.Self) / total * 100
		node.TotalPct = float64(node.Inclusive) / total * 100
	}

	for _, edge := range cg.Edges {
		edge.Weight = float64(edge.Cost) / total * 100
	}
}

// Cleanup drops nodes and edges below the given percentages.
func (cg *CallGraph) Cleanup(minNodePct, minEdgePct float64) {
	if minNodePct <= 0 && minEdgePct <= 0 {
		return
	}

	keepNodes := make(map[string]bool, len(cg.Nodes))
	filteredNodes := make([]*Node, 0, len(cg.Nodes))
	for _, node := range cg.Nodes {
		if node.TotalPct >= minNodePct {
			filteredNodes = append(filteredNodes, node)
			keepNodes[node.ID] = true
		} else {
			delete(cg.nodeMap, node.ID)
		}
	}
	cg.Nodes = filteredNodes

	filteredEdges := make([]*Edge, 0, len(cg.Edges))
	for _, edge := range cg.Edges {
		if keepNodes[edge.Source] && keepNodes[edge.Target] && edge.Weight >= minEdgePct {
			filteredEdges = append(filteredEdges, edge)
		} else {
			delete(cg.edgeMap, edge.ID)
		}
	}
	cg.Edges = filteredEdges
}

func makeEdgeID(source, target string) string {
	return source + "->" + target
}

// Stats returns statistics about the call graph.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	MaxSelfPct  float64
	MaxTotalPct float64
}

// GetStats returns statistics about the call graph.
func (cg *CallGraph) GetStats() *Stats {
	stats := &Stats{
		NodeCount: len(cg.Nodes),
		EdgeCount: len(cg.Edges),
	}

	for _, node := range cg.Nodes {
		if node.SelfPct > stats.MaxSelfPct {
			stats.MaxSelfPct = node.SelfPct
		}
		if node.TotalPct > stats.MaxTotalPct {
			stats.MaxTotalPct = node.TotalPct
		}
	}

	return stats
}
