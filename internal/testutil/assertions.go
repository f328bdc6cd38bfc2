package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/pkg/model"
)

// AssertJSONEqual asserts that two JSON documents are semantically equal.
func AssertJSONEqual(t *testing.T, expected, actual string) {
	t.Helper()
	assert.JSONEq(t, expected, actual)
}

// AssertCosts asserts that a cost vector holds exactly the expected values.
func AssertCosts(t *testing.T, expected []uint64, actual model.CostVector) {
	t.Helper()
	assert.Equal(t, expected, []uint64(actual))
}

// AssertDiagnosticKinds asserts the kinds of diagnostics, in order.
func AssertDiagnosticKinds(t *testing.T, diags model.Diagnostics, kinds ...model.DiagnosticKind) {
	t.Helper()
	got := make([]model.DiagnosticKind, 0, len(diags))
	for _, d := range diags {
		got = append(got, d.Kind)
	}
	if len(kinds) == 0 {
		assert.Empty(t, got, "diagnostics: %v", diags)
		return
	}
	assert.Equal(t, kinds, got, "diagnostics: %v", diags)
}

// RequireNode fetches a node from a summary, failing the test when absent.
func RequireNode(t *testing.T, summary *model.ProfileSummary, id model.FunctionID) model.CostNode {
	t.Helper()
	node, ok := summary.Node(id)
	require.True(t, ok, "node %s not found", id)
	return node
}

// MarshalJSON encodes v or fails the test.
func MarshalJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
