package exporter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/pkg/config"
)

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = filepath.Join(dir, "objects")
	cfg.Database.Type = "sqlite"
	cfg.Database.Database = filepath.Join(dir, "callgrind.db")
	cfg.Export.Metrics.Endpoint = "http://localhost:9/metric"
	cfg.Export.Metrics.APIKey = "k"

	set, err := exporter.FromConfig(context.Background(), cfg,
		[]string{config.TargetStorage, config.TargetDatabase, config.TargetMetrics}, nil)
	require.NoError(t, err)
	defer set.Close()

	var names []string
	for _, e := range set.Exporters {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"storage", "database", "metrics"}, names)

	statuses := exporter.RunAll(context.Background(), set.Exporters[:2], sampleSummary(t), sampleMeta(), nil)
	assert.NoError(t, exporter.FirstError(statuses))
}

func TestFromConfig_Errors(t *testing.T) {
	cfg := config.Default()

	_, err := exporter.FromConfig(context.Background(), cfg, []string{"kafka"}, nil)
	assert.ErrorContains(t, err, "unknown export target")

	// Metrics without an endpoint cannot be built.
	_, err = exporter.FromConfig(context.Background(), cfg, []string{config.TargetMetrics}, nil)
	assert.ErrorContains(t, err, "failed to create metrics exporter")

	cfg.Export.Compression = "lz4"
	_, err = exporter.FromConfig(context.Background(), cfg, []string{config.TargetStorage}, nil)
	assert.Error(t, err)
}

func TestFromConfig_None(t *testing.T) {
	set, err := exporter.FromConfig(context.Background(), config.Default(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, set.Exporters)
	assert.NoError(t, set.Close())
}
