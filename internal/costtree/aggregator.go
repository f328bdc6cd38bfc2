// Package costtree folds parsed cost records into a call graph with summed
// costs per function and per call edge.
//
// Nodes live in an arena keyed by function identity; edges reference callees
// by key, so recursive and mutually recursive calls need no special casing.
// Aggregation is purely additive and therefore independent of the order in
// which edges are visited.
package costtree

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/callgrind-analysis/pkg/model"
)

// ErrFinalized is returned when recording into a finalized aggregator.
var ErrFinalized = errors.New("aggregator already finalized")

// ErrEmptyFunction is returned when a record names no function.
var ErrEmptyFunction = errors.New("function identity has no name")

type edgeState struct {
	calls uint64
	cost  model.CostVector
}

type nodeState struct {
	id      model.FunctionID
	self    model.CostVector
	edges   map[model.FunctionID]*edgeState
	callees []model.FunctionID
}

// Aggregator accumulates costs for one parse session.
type Aggregator struct {
	width     int
	nodes     map[model.FunctionID]*nodeState
	order     []model.FunctionID
	totals    model.CostVector
	records   int64
	saturated bool
	finalized bool
}

// New creates an aggregator for cost vectors of the given width.
func New(width int) *Aggregator {
	return &Aggregator{
		width:  width,
		nodes:  make(map[model.FunctionID]*nodeState),
		totals: model.NewCostVector(width),
	}
}

// Width returns the number of events per cost vector.
func (a *Aggregator) Width() int { return a.width }

// Len returns the number of distinct functions seen so far.
func (a *Aggregator) Len() int { return len(a.order) }

// Records returns how many cost and call records were aggregated.
func (a *Aggregator) Records() int64 { return a.records }

// Saturated reports whether any sum was clamped at the uint64 maximum.
func (a *Aggregator) Saturated() bool { return a.saturated }

// RecordCost adds v to the self cost of fn.
func (a *Aggregator) RecordCost(fn model.FunctionID, v model.CostVector) error {
	if err := a.check(fn, v); err != nil {
		return err
	}
	node := a.node(fn)
	a.saturated = node.self.Add(v) || a.saturated
	a.saturated = a.totals.Add(v) || a.saturated
	a.records++
	return nil
}

// RecordCall adds count and v to the edge caller -> callee. Both nodes are
// created if absent so callees that never run code of their own still
// appear in the graph.
func (a *Aggregator) RecordCall(caller, callee model.FunctionID, count uint64, v model.CostVector) error {
	if err := a.check(caller, v); err != nil {
		return err
	}
	if callee.Name == "" {
		return ErrEmptyFunction
	}

	from := a.node(caller)
	a.node(callee)

	edge, ok := from.edges[callee]
	if !ok {
		edge = &edgeState{cost: model.NewCostVector(a.width)}
		from.edges[callee] = edge
		from.callees = append(from.callees, callee)
	}
	calls, carry := bits.Add64(edge.calls, count, 0)
	if carry != 0 {
		calls = math.MaxUint64
		a.saturated = true
	}
	edge.calls = calls
	a.saturated = edge.cost.Add(v) || a.saturated
	a.records++
	return nil
}

// Snapshot returns a copy of the nodes aggregated so far.
func (a *Aggregator) Snapshot() []model.CostNode {
	out := make([]model.CostNode, 0, len(a.order))
	for _, id := range a.order {
		n := a.nodes[id]
		node := model.CostNode{
			ID:    id,
			Self:  n.self.Clone(),
			Calls: make([]model.CallEdge, 0, len(n.callees)),
		}
		for _, callee := range n.callees {
			e := n.edges[callee]
			node.Calls = append(node.Calls, model.CallEdge{
				Callee: callee,
				Calls:  e.calls,
				Cost:   e.cost.Clone(),
			})
		}
		out = append(out, node)
	}
	return out
}

// Totals returns the sum of all self costs recorded so far.
func (a *Aggregator) Totals() model.CostVector { return a.totals.Clone() }

// Finalize freezes the aggregator and builds the immutable summary.
func (a *Aggregator) Finalize(header model.ProfileHeader, events []string, declared model.CostVector) *model.ProfileSummary {
	a.finalized = true
	return model.NewProfileSummary(header, events, a.Snapshot(), a.totals, declared)
}

func (a *Aggregator) check(fn model.FunctionID, v model.CostVector) error {
	if a.finalized {
		return ErrFinalized
	}
	if fn.Name == "" {
		return ErrEmptyFunction
	}
	if len(v) != a.width {
		return fmt.Errorf("cost vector has %d values, schema has %d", len(v), a.width)
	}
	return nil
}

func (a *Aggregator) node(id model.FunctionID) *nodeState {
	if n, ok := a.nodes[id]; ok {
		return n
	}
	n := &nodeState{
		id:    id,
		self:  model.NewCostVector(a.width),
		edges: make(map[model.FunctionID]*edgeState),
	}
	a.nodes[id] = n
	a.order = append(a.order, id)
	return n
}
