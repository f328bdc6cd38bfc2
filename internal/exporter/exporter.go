// Package exporter ships parsed profiles to external systems: a metric
// ingestion endpoint, object storage and a SQL database.
package exporter

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/callgrind-analysis/pkg/model"
	"github.com/callgrind-analysis/pkg/telemetry"
	"github.com/callgrind-analysis/pkg/utils"
)

// ExportMeta describes the profile being exported.
type ExportMeta struct {
	// ID uniquely names this export, e.g. a UUID.
	ID string
	// Source is the path of the parsed dump, "-" for stdin.
	Source      string
	Timestamp   time.Time
	Diagnostics int
	// Attributes are attached to every exported record.
	Attributes map[string]string
}

// Exporter sends a summary somewhere.
type Exporter interface {
	Name() string
	Export(ctx context.Context, summary *model.ProfileSummary, meta ExportMeta) error
}

// Status is the outcome of one exporter.
type Status struct {
	Exporter string        `json:"exporter"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	err      error
}

// Err returns the export error, nil on success.
func (s Status) Err() error { return s.err }

// RunAll runs exporters concurrently and independently: a failing exporter
// does not cancel the others. Statuses are returned in exporter order.
func RunAll(ctx context.Context, exporters []Exporter, summary *model.ProfileSummary, meta ExportMeta, logger utils.Logger) []Status {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	statuses := make([]Status, len(exporters))

	var g errgroup.Group
	for i, exp := range exporters {
		g.Go(func() error {
			start := time.Now()
			spanCtx, span := telemetry.StartSpan(ctx, "export."+exp.Name(), attribute.String("export.id", meta.ID))
			err := exp.Export(spanCtx, summary, meta)
			telemetry.EndSpan(span, err)

			statuses[i] = Status{Exporter: exp.Name(), Duration: time.Since(start), err: err}
			if err != nil {
				statuses[i].Error = err.Error()
				logger.Error("export to %s failed: %v", exp.Name(), err)
				return nil
			}
			logger.Info("exported %s to %s in %v", meta.ID, exp.Name(), statuses[i].Duration)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// FirstError returns the first failed status as an error.
func FirstError(statuses []Status) error {
	for _, s := range statuses {
		if s.err != nil {
			return fmt.Errorf("%s exporter: %w", s.Exporter, s.err)
		}
	}
	return nil
}

// ObjectKey builds "<prefix>/<source base>/<id><ext>".
func ObjectKey(prefix string, meta ExportMeta, ext string) string {
	base := path.Base(strings.ReplaceAll(meta.Source, "\\", "/"))
	if base == "." || base == "/" || base == "-" || base == "" {
		base = "stdin"
	}
	return path.Join(prefix, base, meta.ID+ext)
}
