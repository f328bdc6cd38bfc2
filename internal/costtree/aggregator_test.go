package costtree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/pkg/model"
)

func fn(name string) model.FunctionID {
	return model.FunctionID{Object: "a.out", File: "main.c", Name: name}
}

func TestAggregator_RecordCost(t *testing.T) {
	agg := New(2)

	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{100, 50}))
	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{1, 2}))

	nodes := agg.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, model.CostVector{101, 52}, nodes[0].Self)
	assert.Equal(t, model.CostVector{101, 52}, agg.Totals())
	assert.Equal(t, int64(2), agg.Records())
}

func TestAggregator_RecordCallCreatesCallee(t *testing.T) {
	agg := New(2)

	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{100, 50}))
	require.NoError(t, agg.RecordCall(fn("main"), fn("helper"), 3, model.CostVector{10, 5}))

	nodes := agg.Snapshot()
	require.Len(t, nodes, 2)

	assert.Equal(t, "main", nodes[0].ID.Name)
	require.Len(t, nodes[0].Calls, 1)
	assert.Equal(t, fn("helper"), nodes[0].Calls[0].Callee)
	assert.Equal(t, uint64(3), nodes[0].Calls[0].Calls)
	assert.Equal(t, model.CostVector{10, 5}, nodes[0].Calls[0].Cost)

	assert.Equal(t, "helper", nodes[1].ID.Name)
	assert.Equal(t, model.CostVector{0, 0}, nodes[1].Self)
	assert.Empty(t, nodes[1].Calls)
}

func TestAggregator_RecursiveEdges(t *testing.T) {
	agg := New(1)

	require.NoError(t, agg.RecordCall(fn("fib"), fn("fib"), 2, model.CostVector{40}))
	require.NoError(t, agg.RecordCall(fn("fib"), fn("fib"), 1, model.CostVector{2}))
	require.NoError(t, agg.RecordCall(fn("even"), fn("odd"), 1, model.CostVector{5}))
	require.NoError(t, agg.RecordCall(fn("odd"), fn("even"), 1, model.CostVector{4}))

	nodes := agg.Snapshot()
	require.Len(t, nodes, 3)
	assert.Equal(t, uint64(3), nodes[0].Calls[0].Calls)
	assert.Equal(t, model.CostVector{42}, nodes[0].Calls[0].Cost)
	assert.Equal(t, fn("odd"), nodes[1].Calls[0].Callee)
	assert.Equal(t, fn("even"), nodes[2].Calls[0].Callee)
}

func TestAggregator_ConservesCost(t *testing.T) {
	agg := New(2)
	delivered := model.NewCostVector(2)

	record := func(v model.CostVector) model.CostVector {
		delivered.Add(v)
		return v
	}

	require.NoError(t, agg.RecordCost(fn("a"), record(model.CostVector{3, 4})))
	require.NoError(t, agg.RecordCall(fn("a"), fn("b"), 1, record(model.CostVector{7, 1})))
	require.NoError(t, agg.RecordCost(fn("b"), record(model.CostVector{9, 9})))
	require.NoError(t, agg.RecordCall(fn("b"), fn("a"), 2, record(model.CostVector{1, 0})))
	require.NoError(t, agg.RecordCall(fn("a"), fn("b"), 1, record(model.CostVector{2, 2})))

	sum := model.NewCostVector(2)
	for _, node := range agg.Snapshot() {
		sum.Add(node.Self)
		for _, edge := range node.Calls {
			sum.Add(edge.Cost)
		}
	}
	assert.Equal(t, delivered, sum)
}

func TestAggregator_Saturates(t *testing.T) {
	agg := New(1)

	require.NoError(t, agg.RecordCost(fn("hot"), model.CostVector{math.MaxUint64 - 1}))
	require.NoError(t, agg.RecordCost(fn("hot"), model.CostVector{5}))

	assert.True(t, agg.Saturated())
	assert.Equal(t, model.CostVector{math.MaxUint64}, agg.Snapshot()[0].Self)
}

func TestAggregator_CallCountSaturates(t *testing.T) {
	agg := New(1)

	require.NoError(t, agg.RecordCall(fn("main"), fn("f"), math.MaxUint64, model.CostVector{1}))
	assert.False(t, agg.Saturated())
	require.NoError(t, agg.RecordCall(fn("main"), fn("f"), 2, model.CostVector{1}))

	assert.True(t, agg.Saturated())
	edge := agg.Snapshot()[0].Calls[0]
	assert.Equal(t, uint64(math.MaxUint64), edge.Calls)
	assert.Equal(t, model.CostVector{2}, edge.Cost)
}

func TestAggregator_RejectsBadRecords(t *testing.T) {
	agg := New(2)

	assert.ErrorIs(t, agg.RecordCost(model.FunctionID{}, model.CostVector{1, 1}), ErrEmptyFunction)
	assert.Error(t, agg.RecordCost(fn("main"), model.CostVector{1}))
	assert.ErrorIs(t, agg.RecordCall(fn("main"), model.FunctionID{}, 1, model.CostVector{1, 1}), ErrEmptyFunction)
	assert.Equal(t, 0, agg.Len())
}

func TestAggregator_Finalize(t *testing.T) {
	agg := New(1)
	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{10}))

	summary := agg.Finalize(model.ProfileHeader{Version: "1"}, []string{"Ir"}, model.CostVector{10})

	assert.ErrorIs(t, agg.RecordCost(fn("main"), model.CostVector{1}), ErrFinalized)
	assert.ErrorIs(t, agg.RecordCall(fn("main"), fn("x"), 1, model.CostVector{1}), ErrFinalized)

	require.Equal(t, 1, summary.Len())
	assert.Equal(t, []string{"Ir"}, summary.Events())
	assert.Equal(t, model.CostVector{10}, summary.Totals())
	assert.Equal(t, model.CostVector{10}, summary.DeclaredTotals())

	// Mutating returned copies must not leak into the summary.
	nodes := summary.Nodes()
	nodes[0].Self[0] = 999
	node, ok := summary.Node(fn("main"))
	require.True(t, ok)
	assert.Equal(t, model.CostVector{10}, node.Self)
}

func TestAggregator_SnapshotBeforeFinalize(t *testing.T) {
	agg := New(1)
	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{1}))

	partial := agg.Snapshot()
	require.NoError(t, agg.RecordCost(fn("main"), model.CostVector{1}))

	assert.Equal(t, model.CostVector{1}, partial[0].Self)
	assert.Equal(t, model.CostVector{2}, agg.Snapshot()[0].Self)
}
