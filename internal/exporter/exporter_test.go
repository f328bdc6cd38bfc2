package exporter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/internal/mock"
	"github.com/callgrind-analysis/internal/parser/callgrind"
	"github.com/callgrind-analysis/internal/testutil"
	"github.com/callgrind-analysis/pkg/model"
)

func sampleSummary(t *testing.T) *model.ProfileSummary {
	t.Helper()
	result, err := callgrind.NewParser(nil).Parse(context.Background(), testutil.Reader(testutil.SampleProfile))
	require.NoError(t, err)
	return result.Summary
}

func sampleMeta() exporter.ExportMeta {
	return exporter.ExportMeta{
		ID:        "run-1",
		Source:    "/tmp/dumps/callgrind.out.4242",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Attributes: map[string]string{
			"host": "ci-7",
		},
	}
}

func TestRunAll_IndependentExporters(t *testing.T) {
	summary := sampleSummary(t)
	meta := sampleMeta()

	failing := mock.NewMockExporter("storage")
	failing.ExpectExport(errors.New("bucket unavailable"))
	succeeding := mock.NewMockExporter("database")
	succeeding.ExpectExport(nil)

	statuses := exporter.RunAll(context.Background(), []exporter.Exporter{failing, succeeding}, summary, meta, nil)

	require.Len(t, statuses, 2)
	assert.Equal(t, "storage", statuses[0].Exporter)
	assert.Equal(t, "bucket unavailable", statuses[0].Error)
	assert.Error(t, statuses[0].Err())
	assert.Equal(t, "database", statuses[1].Exporter)
	assert.NoError(t, statuses[1].Err())
	assert.Empty(t, statuses[1].Error)

	failing.AssertExpectations(t)
	succeeding.AssertExpectations(t)
	succeeding.AssertCalled(t, "Export", tmock.Anything, summary, meta)

	err := exporter.FirstError(statuses)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage exporter")
}

func TestRunAll_Empty(t *testing.T) {
	statuses := exporter.RunAll(context.Background(), nil, sampleSummary(t), sampleMeta(), nil)
	assert.Empty(t, statuses)
	assert.NoError(t, exporter.FirstError(statuses))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		source string
		ext    string
		want   string
	}{
		{"path source", "callgrind", "/tmp/dumps/callgrind.out.1", ".json", "callgrind/callgrind.out.1/run-1.json"},
		{"stdin", "callgrind", "-", ".json.zst", "callgrind/stdin/run-1.json.zst"},
		{"empty source", "reports", "", ".json", "reports/stdin/run-1.json"},
		{"windows path", "callgrind", `C:\dumps\out.2`, ".json.gz", "callgrind/out.2/run-1.json.gz"},
		{"no prefix", "", "out.3", ".json", "out.3/run-1.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := exporter.ExportMeta{ID: "run-1", Source: tt.source}
			assert.Equal(t, tt.want, exporter.ObjectKey(tt.prefix, meta, tt.ext))
		})
	}
}
