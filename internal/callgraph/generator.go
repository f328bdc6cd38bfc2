package callgraph

import (
	"context"
	"fmt"

	"github.com/callgrind-analysis/pkg/model"
)

// GeneratorOptions holds configuration options for the call graph generator.
type GeneratorOptions struct {
	// Event selects the cost column. Empty means the first event.
	Event string

	// MinNodePct is the minimum inclusive percentage for a node to be included.
	MinNodePct float64

	// MinEdgePct is the minimum percentage for an edge to be included.
	MinEdgePct float64
}

// DefaultGeneratorOptions returns default generator options.
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		MinNodePct: 0.5,
		MinEdgePct: 0.1,
	}
}

// Generator turns profile summaries into call graphs.
type Generator struct {
	opts *GeneratorOptions
}

// NewGenerator creates a new call graph generator.
func NewGenerator(opts *GeneratorOptions) *Generator {
	if opts == nil {
		opts = DefaultGeneratorOptions()
	}
	return &Generator{opts: opts}
}

// Generate builds the call graph of the configured event.
func (g *Generator) Generate(ctx context.Context, summary *model.ProfileSummary) (*CallGraph, error) {
	column, event, err := resolveEvent(summary, g.opts.Event)
	if err != nil {
		return nil, err
	}

	cg := NewCallGraph()
	cg.Name = summary.Command()
	cg.Event = event

	if column < 0 {
		return cg, nil
	}

	if totals := summary.Totals(); column < len(totals) {
		cg.Total = totals[column]
	}

	nodes := summary.Nodes()
	for _, node := range nodes {
		cg.AddNode(node.ID, node.Self[column], node.Inclusive()[column])
	}

	for _, node := range nodes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, edge := range node.Calls {
			cg.AddEdge(node.ID, edge.Callee, edge.Calls, edge.Cost[column])
		}
	}

	cg.CalculatePercentages()
	cg.Cleanup(g.opts.MinNodePct, g.opts.MinEdgePct)

	return cg, nil
}

// GenerateAll builds one call graph per event, in schema order.
func (g *Generator) GenerateAll(ctx context.Context, summary *model.ProfileSummary) ([]*CallGraph, error) {
	events := summary.Events()
	graphs := make([]*CallGraph, 0, len(events))
	for _, event := range events {
		opts := *g.opts
		opts.Event = event
		cg, err := NewGenerator(&opts).Generate(ctx, summary)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, cg)
	}
	return graphs, nil
}

// resolveEvent returns the column of event, -1 when the summary has no
// events at all.
func resolveEvent(summary *model.ProfileSummary, event string) (int, string, error) {
	events := summary.Events()
	if event == "" {
		if len(events) == 0 {
			return -1, "", nil
		}
		return 0, events[0], nil
	}

	column := summary.EventIndex(event)
	if column < 0 {
		return -1, "", fmt.Errorf("unknown event %q, profile has %v", event, events)
	}
	return column, event, nil
}

func heaviestNode(nodes []*Node, skip map[string]bool) *Node {
	var best *Node
	for _, node := range nodes {
		if skip[node.ID] {
			continue
		}
		if best == nil || node.Inclusive > best.Inclusive {
			best = node
		}
	}
	return best
}

// HotPath follows the heaviest outgoing edge from the heaviest root
// until a leaf or an already visited node is reached.
func HotPath(cg *CallGraph) []*Node {
	called := make(map[string]bool, len(cg.Edges))
	outgoing := make(map[string][]*Edge, len(cg.Nodes))
	for _, edge := range cg.Edges {
		if edge.Source != edge.Target {
			called[edge.Target] = true
		}
		outgoing[edge.Source] = append(outgoing[edge.Source], edge)
	}

	current := heaviestNode(cg.Nodes, called)
	if current == nil {
		// Every node is called from somewhere: a cycle with no entry point.
		current = heaviestNode(cg.Nodes, nil)
	}

	var path []*Node
	visited := make(map[string]bool)
	for current != nil && !visited[current.ID] {
		visited[current.ID] = true
		path = append(path, current)

		var heaviest *Edge
		for _, edge := range outgoing[current.ID] {
			if visited[edge.Target] {
				continue
			}
			if heaviest == nil || edge.Cost > heaviest.Cost {
				heaviest = edge
			}
		}
		if heaviest == nil || heaviest.Cost == 0 {
			break
		}
		current = cg.nodeMap[heaviest.Target]
	}
	return path
}
