// Package statistics ranks functions and objects of a profile summary.
package statistics

import (
	"fmt"
	"sort"

	"github.com/callgrind-analysis/pkg/model"
)

// SortKey selects the cost a ranking is ordered by.
type SortKey string

const (
	SortBySelf      SortKey = "self"
	SortByInclusive SortKey = "inclusive"
)

// ParseSortKey parses "self" or "inclusive".
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortBySelf, SortByInclusive:
		return SortKey(s), nil
	case "":
		return SortBySelf, nil
	}
	return "", fmt.Errorf("unknown sort key %q, expected self or inclusive", s)
}

// TopFuncsCalculator ranks functions by cost of one event.
type TopFuncsCalculator struct {
	topN   int
	event  string
	sortBy SortKey
}

// TopFuncsOption configures the TopFuncsCalculator.
type TopFuncsOption func(*TopFuncsCalculator)

// WithTopN sets the number of top functions to return. Zero returns all.
func WithTopN(n int) TopFuncsOption {
	return func(c *TopFuncsCalculator) {
		c.topN = n
	}
}

// WithEvent selects the event to rank by. Empty means the first event.
func WithEvent(event string) TopFuncsOption {
	return func(c *TopFuncsCalculator) {
		c.event = event
	}
}

// WithSortBy selects self or inclusive cost.
func WithSortBy(key SortKey) TopFuncsOption {
	return func(c *TopFuncsCalculator) {
		c.sortBy = key
	}
}

// NewTopFuncsCalculator creates a new TopFuncsCalculator.
func NewTopFuncsCalculator(opts ...TopFuncsOption) *TopFuncsCalculator {
	c := &TopFuncsCalculator{
		topN:   15,
		sortBy: SortBySelf,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TopFuncEntry represents a function with its statistics.
type TopFuncEntry struct {
	ID               model.FunctionID `json:"id"`
	Self             uint64           `json:"self"`
	Inclusive        uint64           `json:"inclusive"`
	SelfPercent      float64          `json:"self_percent"`
	InclusivePercent float64          `json:"inclusive_percent"`
	// CalledTimes is the number of calls received from all callers.
	CalledTimes uint64 `json:"called_times"`
	Callers     int    `json:"callers"`
}

// TopFuncsResult holds the calculation result.
type TopFuncsResult struct {
	Event    string         `json:"event"`
	SortBy   SortKey        `json:"sort_by"`
	Total    uint64         `json:"total"`
	TopFuncs []TopFuncEntry `json:"top_funcs"`
}

// Calculate ranks the functions of summary. Ties keep first-appearance order.
func (c *TopFuncsCalculator) Calculate(summary *model.ProfileSummary) (*TopFuncsResult, error) {
	column, event, err := resolveColumn(summary, c.event)
	if err != nil {
		return nil, err
	}

	result := &TopFuncsResult{
		Event:    event,
		SortBy:   c.sortBy,
		TopFuncs: make([]TopFuncEntry, 0),
	}
	if column < 0 {
		return result, nil
	}
	if totals := summary.Totals(); column < len(totals) {
		result.Total = totals[column]
	}

	nodes := summary.Nodes()
	incoming := make(map[model.FunctionID]*TopFuncEntry, len(nodes))
	entries := make([]TopFuncEntry, len(nodes))
	for i, node := range nodes {
		entries[i] = TopFuncEntry{
			ID:               node.ID,
			Self:             node.Self[column],
			Inclusive:        node.Inclusive()[column],
			SelfPercent:      percent(node.Self[column], result.Total),
			InclusivePercent: percent(node.Inclusive()[column], result.Total),
		}
		incoming[node.ID] = &entries[i]
	}
	for _, node := range nodes {
		for _, edge := range node.Calls {
			if callee, ok := incoming[edge.Callee]; ok && edge.Callee != node.ID {
				callee.CalledTimes += edge.Calls
				callee.Callers++
			}
		}
	}

	key := func(e TopFuncEntry) uint64 { return e.Self }
	if c.sortBy == SortByInclusive {
		key = func(e TopFuncEntry) uint64 { return e.Inclusive }
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return key(entries[i]) > key(entries[j])
	})

	if c.topN > 0 && c.topN < len(entries) {
		entries = entries[:c.topN]
	}
	result.TopFuncs = entries

	return result, nil
}

func resolveColumn(summary *model.ProfileSummary, event string) (int, string, error) {
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

func percent(value, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(value) / float64(total) * 100
}
