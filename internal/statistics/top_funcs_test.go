package statistics

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/internal/parser/callgrind"
	"github.com/callgrind-analysis/internal/testutil"
	"github.com/callgrind-analysis/pkg/model"
)

func parseSummary(t *testing.T, input string) *model.ProfileSummary {
	t.Helper()
	result, err := callgrind.NewParser(nil).Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	return result.Summary
}

func names(entries []TopFuncEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID.Name
	}
	return out
}

func TestTopFuncsCalculator_Calculate_BySelf(t *testing.T) {
	result, err := NewTopFuncsCalculator().Calculate(parseSummary(t, testutil.SampleProfile))

	require.NoError(t, err)
	assert.Equal(t, "Ir", result.Event)
	assert.Equal(t, SortBySelf, result.SortBy)
	assert.Equal(t, uint64(1370), result.Total)
	// main and helper tie at 150; main appeared first.
	assert.Equal(t, []string{"compute", "main", "helper", "memcpy"}, names(result.TopFuncs))

	compute := result.TopFuncs[0]
	assert.Equal(t, uint64(1050), compute.Self)
	assert.Equal(t, uint64(1200), compute.Inclusive)
	assert.InDelta(t, 76.64, compute.SelfPercent, 0.01)
	assert.Equal(t, uint64(3), compute.CalledTimes)
	assert.Equal(t, 1, compute.Callers)
}

func TestTopFuncsCalculator_Calculate_ByInclusive(t *testing.T) {
	calc := NewTopFuncsCalculator(WithSortBy(SortByInclusive), WithTopN(2), WithEvent("Dr"))
	result, err := calc.Calculate(parseSummary(t, testutil.SampleProfile))

	require.NoError(t, err)
	assert.Equal(t, "Dr", result.Event)
	assert.Equal(t, uint64(340), result.Total)
	assert.Equal(t, []string{"main", "compute"}, names(result.TopFuncs))
	assert.InDelta(t, 100.0, result.TopFuncs[0].InclusivePercent, 0.001)
}

func TestTopFuncsCalculator_Calculate_UnknownEvent(t *testing.T) {
	_, err := NewTopFuncsCalculator(WithEvent("Bc")).Calculate(parseSummary(t, testutil.SampleProfile))

	assert.Error(t, err)
}

func TestTopFuncsCalculator_Calculate_Empty(t *testing.T) {
	result, err := NewTopFuncsCalculator().Calculate(parseSummary(t, ""))

	require.NoError(t, err)
	assert.Empty(t, result.TopFuncs)
	assert.Zero(t, result.Total)
}

func TestTopFuncsCalculator_Calculate_RecursionNotCounted(t *testing.T) {
	summary := parseSummary(t, "events: A\nfn=f\n1\ncfn=f\ncalls=5\n3\n")

	result, err := NewTopFuncsCalculator().Calculate(summary)

	require.NoError(t, err)
	require.Len(t, result.TopFuncs, 1)
	assert.Zero(t, result.TopFuncs[0].CalledTimes)
	assert.Equal(t, uint64(1), result.TopFuncs[0].Inclusive)
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("inclusive")
	require.NoError(t, err)
	assert.Equal(t, SortByInclusive, key)

	key, err = ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortBySelf, key)

	_, err = ParseSortKey("total")
	assert.Error(t, err)
}
