package model

import (
	"encoding/json"
	"math"
	"math/bits"
	"strings"
)

// FunctionID identifies a function by the object and file it was declared in.
type FunctionID struct {
	Object string `json:"object,omitempty"`
	File   string `json:"file,omitempty"`
	Name   string `json:"name"`
}

// String returns a human readable identity, e.g. "libc.so:malloc.c:malloc".
func (f FunctionID) String() string {
	parts := make([]string, 0, 3)
	if f.Object != "" {
		parts = append(parts, f.Object)
	}
	if f.File != "" {
		parts = append(parts, f.File)
	}
	parts = append(parts, f.Name)
	return strings.Join(parts, ":")
}

// CostVector holds one value per event of the schema.
type CostVector []uint64

// NewCostVector returns a zeroed vector of the given width.
func NewCostVector(width int) CostVector {
	return make(CostVector, width)
}

// Add adds other element-wise, saturating at MaxUint64.
// It reports whether any element saturated.
func (v CostVector) Add(other CostVector) bool {
	saturated := false
	for i := 0; i < len(v) && i < len(other); i++ {
		sum, carry := bits.Add64(v[i], other[i], 0)
		if carry != 0 {
			sum = math.MaxUint64
			saturated = true
		}
		v[i] = sum
	}
	return saturated
}

// Clone returns a copy of the vector.
func (v CostVector) Clone() CostVector {
	if v == nil {
		return nil
	}
	out := make(CostVector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both vectors have the same width and values.
func (v CostVector) Equal(other CostVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// CallEdge is the accumulated cost of calls from one function to another.
type CallEdge struct {
	Callee FunctionID `json:"callee"`
	Calls  uint64     `json:"calls"`
	Cost   CostVector `json:"cost"`
}

// CostNode holds the self cost of a function and its outgoing call edges
// in first-seen order.
type CostNode struct {
	ID    FunctionID `json:"id"`
	Self  CostVector `json:"self"`
	Calls []CallEdge `json:"calls"`
}

// Inclusive returns self cost plus the cost of every outgoing call,
// excluding direct self-recursion which is already part of the caller.
func (n CostNode) Inclusive() CostVector {
	total := n.Self.Clone()
	for _, edge := range n.Calls {
		if edge.Callee == n.ID {
			continue
		}
		total.Add(edge.Cost)
	}
	return total
}

// Clone returns a deep copy of the node.
func (n CostNode) Clone() CostNode {
	out := CostNode{ID: n.ID, Self: n.Self.Clone(), Calls: make([]CallEdge, len(n.Calls))}
	for i, edge := range n.Calls {
		out.Calls[i] = CallEdge{Callee: edge.Callee, Calls: edge.Calls, Cost: edge.Cost.Clone()}
	}
	return out
}

// EventSpec describes one event declared with an "event:" line.
type EventSpec struct {
	Name      string `json:"name"`
	LongName  string `json:"long_name,omitempty"`
	Inherited string `json:"inherited,omitempty"`
}

// TargetIDs holds the process, thread and part identifiers of a dump.
type TargetIDs struct {
	PID    uint64 `json:"pid,omitempty"`
	Thread uint64 `json:"thread,omitempty"`
	Part   uint64 `json:"part,omitempty"`
}

// ProfileHeader is the metadata recovered from the header section.
type ProfileHeader struct {
	Version      string            `json:"version,omitempty"`
	Creator      string            `json:"creator,omitempty"`
	Command      string            `json:"command,omitempty"`
	Targets      TargetIDs         `json:"targets"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	Positions    []string          `json:"positions,omitempty"`
	EventSpecs   []EventSpec       `json:"event_specs,omitempty"`
}

// Clone returns a deep copy of the header.
func (h ProfileHeader) Clone() ProfileHeader {
	out := h
	if h.Descriptions != nil {
		out.Descriptions = make(map[string]string, len(h.Descriptions))
		for k, v := range h.Descriptions {
			out.Descriptions[k] = v
		}
	}
	out.Positions = append([]string(nil), h.Positions...)
	out.EventSpecs = append([]EventSpec(nil), h.EventSpecs...)
	return out
}

// ProfileSummary is the finished, immutable result of a parse.
// All accessors return copies.
type ProfileSummary struct {
	header         ProfileHeader
	events         []string
	nodes          []CostNode
	index          map[FunctionID]int
	totals         CostVector
	declaredTotals CostVector
}

// NewProfileSummary builds a summary, taking ownership of nothing: every
// argument is copied.
func NewProfileSummary(header ProfileHeader, events []string, nodes []CostNode, totals, declared CostVector) *ProfileSummary {
	s := &ProfileSummary{
		header:         header.Clone(),
		events:         append([]string(nil), events...),
		nodes:          make([]CostNode, len(nodes)),
		index:          make(map[FunctionID]int, len(nodes)),
		totals:         totals.Clone(),
		declaredTotals: declared.Clone(),
	}
	for i, n := range nodes {
		s.nodes[i] = n.Clone()
		s.index[n.ID] = i
	}
	return s
}

// Header returns the header metadata.
func (s *ProfileSummary) Header() ProfileHeader { return s.header.Clone() }

// Version returns the declared format version.
func (s *ProfileSummary) Version() string { return s.header.Version }

// Creator returns the creator string.
func (s *ProfileSummary) Creator() string { return s.header.Creator }

// Command returns the profiled command line.
func (s *ProfileSummary) Command() string { return s.header.Command }

// Targets returns the pid, thread and part identifiers.
func (s *ProfileSummary) Targets() TargetIDs { return s.header.Targets }

// Events returns the event schema in column order.
func (s *ProfileSummary) Events() []string { return append([]string(nil), s.events...) }

// EventIndex returns the column of the named event or -1.
func (s *ProfileSummary) EventIndex(name string) int {
	for i, e := range s.events {
		if e == name {
			return i
		}
	}
	return -1
}

// Len returns the number of functions.
func (s *ProfileSummary) Len() int { return len(s.nodes) }

// Nodes returns all cost nodes in first-appearance order.
func (s *ProfileSummary) Nodes() []CostNode {
	out := make([]CostNode, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Node returns the node for a function.
func (s *ProfileSummary) Node(id FunctionID) (CostNode, bool) {
	i, ok := s.index[id]
	if !ok {
		return CostNode{}, false
	}
	return s.nodes[i].Clone(), true
}

// Totals returns the sum of all self costs.
func (s *ProfileSummary) Totals() CostVector { return s.totals.Clone() }

// DeclaredTotals returns the totals of the summary record, nil if absent.
func (s *ProfileSummary) DeclaredTotals() CostVector { return s.declaredTotals.Clone() }

type summaryJSON struct {
	Header         ProfileHeader `json:"header"`
	Events         []string      `json:"events"`
	Nodes          []CostNode    `json:"nodes"`
	Totals         CostVector    `json:"totals"`
	DeclaredTotals CostVector    `json:"declared_totals,omitempty"`
}

// MarshalJSON encodes the summary with nodes in first-appearance order.
func (s *ProfileSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		Header:         s.header,
		Events:         s.events,
		Nodes:          s.nodes,
		Totals:         s.totals,
		DeclaredTotals: s.declaredTotals,
	})
}

// UnmarshalJSON decodes a summary written by MarshalJSON.
func (s *ProfileSummary) UnmarshalJSON(data []byte) error {
	var raw summaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *NewProfileSummary(raw.Header, raw.Events, raw.Nodes, raw.Totals, raw.DeclaredTotals)
	return nil
}

// ParseResult pairs a summary with the diagnostics collected while parsing.
type ParseResult struct {
	Summary     *ProfileSummary `json:"summary"`
	Diagnostics Diagnostics     `json:"diagnostics,omitempty"`
	// Suppressed counts diagnostics dropped once the configured limit was hit.
	Suppressed int `json:"suppressed_diagnostics,omitempty"`
	Lines      int `json:"lines"`
}
