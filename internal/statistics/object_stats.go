package statistics

import (
	"sort"

	"github.com/callgrind-analysis/pkg/model"
)

// ObjectStatsCalculator sums self cost per object (executable or shared
// library).
type ObjectStatsCalculator struct {
	maxObjects int
	event      string
}

// ObjectStatsOption configures the ObjectStatsCalculator.
type ObjectStatsOption func(*ObjectStatsCalculator)

// WithMaxObjects sets the maximum number of objects to return.
func WithMaxObjects(n int) ObjectStatsOption {
	return func(c *ObjectStatsCalculator) {
		c.maxObjects = n
	}
}

// WithObjectEvent selects the event objects are ordered by.
func WithObjectEvent(event string) ObjectStatsOption {
	return func(c *ObjectStatsCalculator) {
		c.event = event
	}
}

// NewObjectStatsCalculator creates a new ObjectStatsCalculator.
func NewObjectStatsCalculator(opts ...ObjectStatsOption) *ObjectStatsCalculator {
	c := &ObjectStatsCalculator{
		maxObjects: 0, // 0 means no limit
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ObjectEntry is the self cost of all functions of one object.
type ObjectEntry struct {
	Object     string           `json:"object"`
	Functions  int              `json:"functions"`
	Self       model.CostVector `json:"self"`
	Percentage float64          `json:"percentage"`
}

// ObjectStatsResult holds the calculation result.
type ObjectStatsResult struct {
	Event   string        `json:"event"`
	Objects []ObjectEntry `json:"objects"`
}

// Calculate groups the functions of summary by object. Functions without
// an object are grouped under the empty name.
func (c *ObjectStatsCalculator) Calculate(summary *model.ProfileSummary) (*ObjectStatsResult, error) {
	column, event, err := resolveColumn(summary, c.event)
	if err != nil {
		return nil, err
	}

	result := &ObjectStatsResult{
		Event:   event,
		Objects: make([]ObjectEntry, 0),
	}

	width := len(summary.Events())
	byObject := make(map[string]*ObjectEntry)
	var order []string
	for _, node := range summary.Nodes() {
		entry, ok := byObject[node.ID.Object]
		if !ok {
			entry = &ObjectEntry{Object: node.ID.Object, Self: model.NewCostVector(width)}
			byObject[node.ID.Object] = entry
			order = append(order, node.ID.Object)
		}
		entry.Functions++
		entry.Self.Add(node.Self)
	}

	var total uint64
	if totals := summary.Totals(); column >= 0 && column < len(totals) {
		total = totals[column]
	}

	entries := make([]ObjectEntry, 0, len(order))
	for _, name := range order {
		entry := *byObject[name]
		if column >= 0 {
			entry.Percentage = percent(entry.Self[column], total)
		}
		entries = append(entries, entry)
	}

	if column >= 0 {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Self[column] > entries[j].Self[column]
		})
	}

	if c.maxObjects > 0 && len(entries) > c.maxObjects {
		entries = entries[:c.maxObjects]
	}
	result.Objects = entries

	return result, nil
}

// GetObject returns the entry of the named object.
func (r *ObjectStatsResult) GetObject(name string) *ObjectEntry {
	for i := range r.Objects {
		if r.Objects[i].Object == name {
			return &r.Objects[i]
		}
	}
	return nil
}
