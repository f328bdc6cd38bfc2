package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/callgrind-analysis/internal/repository"
	"github.com/callgrind-analysis/internal/storage"
	"github.com/callgrind-analysis/pkg/compression"
	"github.com/callgrind-analysis/pkg/config"
	"github.com/callgrind-analysis/pkg/utils"
)

// Set is the exporters built from a configuration.
type Set struct {
	Exporters []Exporter
	closers   []func() error
}

// Close releases connections held by the exporters.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the exporters named in targets. Unlisted exporters are
// not constructed, so their backends are never contacted.
func FromConfig(ctx context.Context, cfg *config.Config, targets []string, logger utils.Logger) (*Set, error) {
	set := &Set{}
	for _, target := range targets {
		exp, closer, err := build(ctx, cfg, target, logger)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("failed to create %s exporter: %w", target, err)
		}
		set.Exporters = append(set.Exporters, exp)
		if closer != nil {
			set.closers = append(set.closers, closer)
		}
	}
	return set, nil
}

func build(ctx context.Context, cfg *config.Config, target string, logger utils.Logger) (Exporter, func() error, error) {
	switch target {
	case config.TargetMetrics:
		m := cfg.Export.Metrics
		exp, err := NewMetricsExporter(MetricsOptions{
			Endpoint:    m.Endpoint,
			APIKey:      m.APIKey,
			Prefix:      m.Prefix,
			BatchSize:   m.BatchSize,
			Concurrency: m.Concurrency,
			MaxRetries:  m.MaxRetries,
			Timeout:     m.Timeout,
			Logger:      logger,
		})
		return exp, nil, err

	case config.TargetStorage:
		codec, err := compression.ParseType(cfg.Export.Compression)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		return NewStorageExporter(store, codec, cfg.Export.KeyPrefix), nil, nil

	case config.TargetDatabase:
		db, err := repository.NewGormDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repos := repository.NewRepositories(db, 0)
		if err := repos.Migrate(ctx); err != nil {
			_ = repos.Close()
			return nil, nil, err
		}
		return NewDatabaseExporter(repos.Profiles), repos.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown export target: %s", target)
	}
}
